package api

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stock-ledger/inventory"
	"github.com/warp/stock-ledger/inventory/store"
)

// failingStore fails every snapshot.
type failingStore struct {
	*store.Memory
}

func (failingStore) Snapshot(context.Context) (inventory.Snapshot, error) {
	return inventory.Snapshot{}, inventory.StorageFailure("snapshot", errors.New("disk on fire"))
}

func TestAuditor_RunOnceReportsNegativeStock(t *testing.T) {
	// GIVEN: the oversold scenario (P1 at SHOP is -2)
	ts := newMemoryServer(t)
	loadScenario(t, ts, "oversold")

	var logs bytes.Buffer
	auditor := NewNegativeStockAuditor(ts.handler.Service, ts.handler.Metrics, time.Minute, zerolog.New(&logs))

	// WHEN
	negative, err := auditor.RunOnce(context.Background())

	// THEN
	require.NoError(t, err)
	assert.Equal(t, []inventory.Entry{{Product: "P1", Location: "SHOP", Quantity: -2}}, negative)
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.handler.Metrics.NegativeBalances))
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.handler.Metrics.AuditRuns.WithLabelValues("ok")))
	assert.Contains(t, logs.String(), `"message":"negative stock"`)
	assert.Contains(t, logs.String(), `"location_id":"SHOP"`)
}

func TestAuditor_GaugeClearsWhenStockRecovers(t *testing.T) {
	ts := newMemoryServer(t)
	loadScenario(t, ts, "oversold")
	auditor := NewNegativeStockAuditor(ts.handler.Service, ts.handler.Metrics, time.Minute, zerolog.Nop())

	_, err := auditor.RunOnce(context.Background())
	require.NoError(t, err)

	_, err = ts.handler.Service.Ledger.Append(context.Background(), inventory.MovementRequest{
		ProductID: "P1", To: "SHOP", Quantity: 2,
	})
	require.NoError(t, err)

	negative, err := auditor.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, negative)
	assert.Equal(t, 0.0, testutil.ToFloat64(ts.handler.Metrics.NegativeBalances))
}

func TestAuditor_StorageFailure(t *testing.T) {
	metrics := NewMetrics()
	svc := inventory.NewService(failingStore{store.NewMemory()}, false)
	auditor := NewNegativeStockAuditor(svc, metrics, time.Minute, zerolog.Nop())

	_, err := auditor.RunOnce(context.Background())

	assert.ErrorIs(t, err, inventory.ErrStorage)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuditRuns.WithLabelValues("error")))
}

func TestAuditor_StartStop(t *testing.T) {
	ts := newMemoryServer(t)
	loadScenario(t, ts, "oversold")
	auditor := NewNegativeStockAuditor(ts.handler.Service, ts.handler.Metrics, time.Hour, zerolog.Nop())

	// The loop audits once immediately on start.
	auditor.Start()
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(ts.handler.Metrics.AuditRuns.WithLabelValues("ok")) == 1
	}, time.Second, 10*time.Millisecond)
	auditor.Stop()
	auditor.Stop()
}

func TestAuditor_DisabledWithZeroInterval(t *testing.T) {
	ts := newMemoryServer(t)
	auditor := NewNegativeStockAuditor(ts.handler.Service, ts.handler.Metrics, 0, zerolog.Nop())

	auditor.Start()
	auditor.Stop()

	assert.Equal(t, 0.0, testutil.ToFloat64(ts.handler.Metrics.AuditRuns.WithLabelValues("ok")))
}
