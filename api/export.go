package api

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/warp/stock-ledger/inventory"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	reportSheet     = "Stock"
)

var reportHeader = []any{"product_id", "product_name", "location_id", "location_name", "quantity"}

// reportXLSX renders report rows as a single-sheet workbook: one header row,
// then one row per report line in report order.
func reportXLSX(rows []inventory.ReportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), reportSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(reportSheet, "A1", &reportHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := []any{
			string(row.ProductID),
			row.ProductName,
			string(row.LocationID),
			row.LocationName,
			row.Quantity,
		}
		if err := f.SetSheetRow(reportSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func reportFilename(asOf time.Time) string {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	return fmt.Sprintf("stock_report_%s.xlsx", asOf.Format("20060102_150405"))
}
