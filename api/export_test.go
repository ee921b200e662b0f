package api

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReportXLSX_Download(t *testing.T) {
	ts := newMemoryServer(t)
	loadScenario(t, ts, "oversold")

	rec := ts.do(t, http.MethodGet, "/api/report?format=xlsx", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "stock_report_")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(reportSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"product_id", "product_name", "location_id", "location_name", "quantity"},
		{"P1", "Widget", "SHOP", "Shop floor", "-2"},
		{"P2", "Gadget", "SHOP", "Shop floor", "7"},
	}, rows)
}

func TestReportXLSX_EmptyHasHeaderOnly(t *testing.T) {
	data, err := reportXLSX(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(reportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "quantity", rows[0][4])
	assert.Equal(t, []string{reportSheet}, f.GetSheetList())
}

func TestReportFilename(t *testing.T) {
	asOf := time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)

	assert.Equal(t, "stock_report_20240309_140500.xlsx", reportFilename(asOf))
}
