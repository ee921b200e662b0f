package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stock-ledger/inventory"
	"github.com/warp/stock-ledger/inventory/store"
)

func TestCatalog_AddTrimsAndValidates(t *testing.T) {
	ctx := context.Background()
	c := inventory.NewCatalog(store.NewMemory(), false)

	p, err := c.AddProduct(ctx, "  P1 ", " Widget ")
	require.NoError(t, err)
	assert.Equal(t, inventory.Product{ID: "P1", Name: "Widget"}, p)

	_, err = c.AddProduct(ctx, "   ", "x")
	assert.Equal(t, inventory.ReasonMissingID, reasonOf(err))

	_, err = c.AddLocation(ctx, "L1", "")
	assert.Equal(t, inventory.ReasonMissingName, reasonOf(err))

	_, err = c.AddProduct(ctx, "P1", "Again")
	assert.ErrorIs(t, err, inventory.ErrDuplicateID)
}

func TestCatalog_RemoveTrimsIDs(t *testing.T) {
	ctx := context.Background()
	for _, strict := range []bool{false, true} {
		c := inventory.NewCatalog(store.NewMemory(), strict)
		_, err := c.AddProduct(ctx, " P1", "Widget")
		require.NoError(t, err)
		_, err = c.AddLocation(ctx, "L1 ", "Main")
		require.NoError(t, err)

		// IDs are matched the way they were stored
		require.NoError(t, c.RemoveProduct(ctx, " P1"))
		require.NoError(t, c.RemoveLocation(ctx, "L1 "))

		products, err := c.Products(ctx)
		require.NoError(t, err)
		assert.Empty(t, products)
		locations, err := c.Locations(ctx)
		require.NoError(t, err)
		assert.Empty(t, locations)
	}
}

func TestCatalog_RemoveMissing(t *testing.T) {
	ctx := context.Background()
	for _, strict := range []bool{false, true} {
		c := inventory.NewCatalog(store.NewMemory(), strict)
		assert.ErrorIs(t, c.RemoveProduct(ctx, "nope"), inventory.ErrNotFound)
		assert.ErrorIs(t, c.RemoveLocation(ctx, "nope"), inventory.ErrNotFound)
	}
}

func TestCatalog_LenientRemoveLeavesDanglingHistory(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	appendOK(t, svc, inventory.MovementRequest{ProductID: "P1", To: "L1", Quantity: 10})
	appendOK(t, svc, inventory.MovementRequest{ProductID: "P1", From: "L1", To: "L2", Quantity: 4})

	// WHEN: the source location is removed from the catalog
	require.NoError(t, svc.Catalog.RemoveLocation(ctx, "L1"))

	// THEN: history is intact and balances skip only the dangling endpoint
	movements, err := svc.Ledger.Movements(ctx)
	require.NoError(t, err)
	assert.Len(t, movements, 2)

	view, err := svc.Balances(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), view.Balances.Get("P1", "L2"))
	assert.Len(t, view.Balances, 2)

	// AND: new movements may no longer name it
	_, err = svc.Ledger.Append(ctx, inventory.MovementRequest{ProductID: "P1", To: "L1", Quantity: 1})
	assert.Equal(t, inventory.ReasonUnknownLocation, reasonOf(err))
}

func TestCatalog_StrictRemoveRefusesReferenced(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	svc.Catalog.Strict = true
	appendOK(t, svc, inventory.MovementRequest{ProductID: "P1", To: "L1", Quantity: 1})

	assert.ErrorIs(t, svc.Catalog.RemoveProduct(ctx, "P1"), inventory.ErrReferenced)
	assert.ErrorIs(t, svc.Catalog.RemoveLocation(ctx, "L1"), inventory.ErrReferenced)

	// Unreferenced entries still go.
	require.NoError(t, svc.Catalog.RemoveProduct(ctx, "P2"))
	require.NoError(t, svc.Catalog.RemoveLocation(ctx, "L2"))

	products, err := svc.Catalog.Products(ctx)
	require.NoError(t, err)
	assert.Equal(t, []inventory.Product{{ID: "P1", Name: "Widget"}}, products)
}
