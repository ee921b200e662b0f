package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stock-ledger/inventory"
)

func TestBuildReport_SkipsZeroAndOrdersByCatalog(t *testing.T) {
	// GIVEN: P2 stocked at both locations, P1 moved out of L1 entirely
	b := inventory.Compute(products, locations, []inventory.Movement{
		mv("P2", "", "L2", 5),
		mv("P2", "", "L1", 1),
		mv("P1", "", "L1", 3),
		mv("P1", "L1", "", 3),
	})

	// WHEN
	rows := inventory.BuildReport(products, locations, b)

	// THEN: only non-zero cells, product-major in catalog order
	assert.Equal(t, []inventory.ReportRow{
		{ProductID: "P2", ProductName: "Gadget", LocationID: "L1", LocationName: "Main", Quantity: 1},
		{ProductID: "P2", ProductName: "Gadget", LocationID: "L2", LocationName: "Backroom", Quantity: 5},
	}, rows)
}

func TestBuildReport_EmptyIsNotNil(t *testing.T) {
	rows := inventory.BuildReport(products, locations, inventory.Compute(products, locations, nil))
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestBuildReport_IncludesNegative(t *testing.T) {
	rows := inventory.BuildReport(products, locations,
		inventory.Compute(products, locations, []inventory.Movement{mv("P1", "L2", "", 2)}))

	require.Len(t, rows, 1)
	assert.Equal(t, int64(-2), rows[0].Quantity)
	assert.Equal(t, "Backroom", rows[0].LocationName)
}

func TestService_ReportDeterministic(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	appendOK(t, svc, inventory.MovementRequest{ProductID: "P1", To: "L2", Quantity: 8})
	appendOK(t, svc, inventory.MovementRequest{ProductID: "P2", To: "L1", Quantity: 2})
	appendOK(t, svc, inventory.MovementRequest{ProductID: "P1", From: "L2", To: "L1", Quantity: 3})

	first, err := svc.Report(ctx, time.Time{})
	require.NoError(t, err)
	second, err := svc.Report(ctx, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first, 3)
	assert.Equal(t, inventory.LocationID("L1"), first[0].LocationID)
	assert.Equal(t, int64(3), first[0].Quantity)
	assert.Equal(t, int64(5), first[1].Quantity)
	assert.Equal(t, inventory.ProductID("P2"), first[2].ProductID)
}
