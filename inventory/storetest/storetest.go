// Package storetest holds the behavior every inventory.TxStore must share.
// Each store package runs it against its own constructor.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stock-ledger/inventory"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) inventory.TxStore

var errAbort = errors.New("abort")

// Run exercises the full store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("catalog keeps insertion order", func(t *testing.T) { testCatalogOrder(t, newStore(t)) })
	t.Run("duplicate catalog id", func(t *testing.T) { testDuplicateID(t, newStore(t)) })
	t.Run("delete catalog entry", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("append assigns increasing ids", func(t *testing.T) { testAppendOrder(t, newStore(t)) })
	t.Run("movement fields round trip", func(t *testing.T) { testRoundTrip(t, newStore(t)) })
	t.Run("duplicate idempotency key", func(t *testing.T) { testIdempotency(t, newStore(t)) })
	t.Run("referenced lookups", func(t *testing.T) { testReferenced(t, newStore(t)) })
	t.Run("tx rolls back on error", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("tx commits on success", func(t *testing.T) { testCommit(t, newStore(t)) })
	t.Run("snapshot", func(t *testing.T) { testSnapshot(t, newStore(t)) })
	t.Run("reset", func(t *testing.T) { testReset(t, newStore(t)) })
}

// at is truncated to microseconds, the coarsest precision any store keeps.
func at(minute int) time.Time {
	return time.Date(2025, time.March, 1, 9, minute, 0, 123456000, time.UTC)
}

func seed(t *testing.T, s inventory.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.InsertProduct(ctx, inventory.Product{ID: "P1", Name: "Widget"}))
	require.NoError(t, s.InsertProduct(ctx, inventory.Product{ID: "P2", Name: "Gadget"}))
	require.NoError(t, s.InsertLocation(ctx, inventory.Location{ID: "L1", Name: "Main"}))
	require.NoError(t, s.InsertLocation(ctx, inventory.Location{ID: "L2", Name: "Backroom"}))
}

func testCatalogOrder(t *testing.T, s inventory.TxStore) {
	ctx := context.Background()

	// GIVEN: products inserted out of alphabetical order
	for _, id := range []inventory.ProductID{"P3", "P1", "P2"} {
		require.NoError(t, s.InsertProduct(ctx, inventory.Product{ID: id, Name: "n-" + string(id)}))
	}
	require.NoError(t, s.InsertLocation(ctx, inventory.Location{ID: "Z", Name: "Zed"}))
	require.NoError(t, s.InsertLocation(ctx, inventory.Location{ID: "A", Name: "Ay"}))

	// WHEN: listing
	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	locations, err := s.ListLocations(ctx)
	require.NoError(t, err)

	// THEN: insertion order is kept
	assert.Equal(t, []inventory.Product{
		{ID: "P3", Name: "n-P3"}, {ID: "P1", Name: "n-P1"}, {ID: "P2", Name: "n-P2"},
	}, products)
	assert.Equal(t, []inventory.Location{{ID: "Z", Name: "Zed"}, {ID: "A", Name: "Ay"}}, locations)
}

func testDuplicateID(t *testing.T, s inventory.TxStore) {
	ctx := context.Background()
	seed(t, s)

	err := s.InsertProduct(ctx, inventory.Product{ID: "P1", Name: "Other"})
	assert.ErrorIs(t, err, inventory.ErrDuplicateID)

	err = s.InsertLocation(ctx, inventory.Location{ID: "L1", Name: "Other"})
	assert.ErrorIs(t, err, inventory.ErrDuplicateID)

	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, "Widget", products[0].Name)
}

func testDelete(t *testing.T, s inventory.TxStore) {
	ctx := context.Background()
	seed(t, s)

	require.NoError(t, s.DeleteProduct(ctx, "P1"))
	ok, err := s.ProductExists(ctx, "P1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, s.DeleteProduct(ctx, "P1"), inventory.ErrNotFound)
	assert.ErrorIs(t, s.DeleteLocation(ctx, "nope"), inventory.ErrNotFound)

	require.NoError(t, s.DeleteLocation(ctx, "L2"))
	ok, err = s.LocationExists(ctx, "L1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.LocationExists(ctx, "L2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testAppendOrder(t *testing.T, s inventory.TxStore) {
	ctx := context.Background()
	seed(t, s)

	var ids []inventory.MovementID
	for i := 0; i < 5; i++ {
		mv, err := s.AppendMovement(ctx, inventory.Movement{
			ProductID: "P1", To: "L1", Quantity: int64(i + 1), CreatedAt: at(i),
		})
		require.NoError(t, err)
		ids = append(ids, mv.ID)
	}

	for i := 1; i < len(ids); i++ {
		assert.Greater(t, ids[i], ids[i-1], "ids must strictly increase")
	}

	listed, err := s.ListMovements(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 5)
	for i, mv := range listed {
		assert.Equal(t, ids[i], mv.ID)
		assert.Equal(t, int64(i+1), mv.Quantity)
	}
}

func testRoundTrip(t *testing.T, s inventory.TxStore) {
	ctx := context.Background()
	seed(t, s)

	in := []inventory.Movement{
		{ProductID: "P1", To: "L1", Quantity: 10, CreatedAt: at(1), IdempotencyKey: "k-1"},
		{ProductID: "P1", From: "L1", To: "L2", Quantity: 4, CreatedAt: at(2)},
		{ProductID: "P2", From: "L2", Quantity: 1, CreatedAt: at(3)},
	}
	for _, m := range in {
		_, err := s.AppendMovement(ctx, m)
		require.NoError(t, err)
	}

	out, err := s.ListMovements(ctx)
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		assert.Equal(t, in[i].ProductID, out[i].ProductID)
		assert.Equal(t, in[i].From, out[i].From)
		assert.Equal(t, in[i].To, out[i].To)
		assert.Equal(t, in[i].Quantity, out[i].Quantity)
		assert.Equal(t, in[i].IdempotencyKey, out[i].IdempotencyKey)
		assert.True(t, in[i].CreatedAt.Equal(out[i].CreatedAt),
			"created_at %v != %v", in[i].CreatedAt, out[i].CreatedAt)
	}
}

func testIdempotency(t *testing.T, s inventory.TxStore) {
	ctx := context.Background()
	seed(t, s)

	_, err := s.AppendMovement(ctx, inventory.Movement{
		ProductID: "P1", To: "L1", Quantity: 1, CreatedAt: at(1), IdempotencyKey: "same",
	})
	require.NoError(t, err)

	ok, err := s.IdempotencyKeyExists(ctx, "same")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.AppendMovement(ctx, inventory.Movement{
		ProductID: "P1", To: "L1", Quantity: 2, CreatedAt: at(2), IdempotencyKey: "same",
	})
	assert.ErrorIs(t, err, inventory.ErrDuplicateIdempotencyKey)

	// Empty keys never collide.
	for i := 0; i < 2; i++ {
		_, err = s.AppendMovement(ctx, inventory.Movement{ProductID: "P1", To: "L1", Quantity: 1, CreatedAt: at(3)})
		require.NoError(t, err)
	}

	listed, err := s.ListMovements(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 3)
}

func testReferenced(t *testing.T, s inventory.TxStore) {
	ctx := context.Background()
	seed(t, s)

	_, err := s.AppendMovement(ctx, inventory.Movement{ProductID: "P1", From: "L2", Quantity: 1, CreatedAt: at(1)})
	require.NoError(t, err)

	used, err := s.ProductReferenced(ctx, "P1")
	require.NoError(t, err)
	assert.True(t, used)

	used, err = s.ProductReferenced(ctx, "P2")
	require.NoError(t, err)
	assert.False(t, used)

	used, err = s.LocationReferenced(ctx, "L2")
	require.NoError(t, err)
	assert.True(t, used, "from endpoint counts as a reference")

	used, err = s.LocationReferenced(ctx, "L1")
	require.NoError(t, err)
	assert.False(t, used)
}

func testRollback(t *testing.T, s inventory.TxStore) {
	ctx := context.Background()
	seed(t, s)

	// WHEN: a transaction writes and then fails
	err := s.WithTx(ctx, func(tx inventory.Store) error {
		if err := tx.InsertProduct(ctx, inventory.Product{ID: "P9", Name: "Ghost"}); err != nil {
			return err
		}
		if _, err := tx.AppendMovement(ctx, inventory.Movement{
			ProductID: "P9", To: "L1", Quantity: 3, CreatedAt: at(1), IdempotencyKey: "ghost",
		}); err != nil {
			return err
		}
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)

	// THEN: nothing from the transaction is visible
	ok, err := s.ProductExists(ctx, "P9")
	require.NoError(t, err)
	assert.False(t, ok)

	movements, err := s.ListMovements(ctx)
	require.NoError(t, err)
	assert.Empty(t, movements)

	ok, err = s.IdempotencyKeyExists(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testCommit(t *testing.T, s inventory.TxStore) {
	ctx := context.Background()
	seed(t, s)

	var stored inventory.Movement
	err := s.WithTx(ctx, func(tx inventory.Store) error {
		ok, err := tx.ProductExists(ctx, "P1")
		if err != nil || !ok {
			return errAbort
		}
		stored, err = tx.AppendMovement(ctx, inventory.Movement{ProductID: "P1", To: "L1", Quantity: 7, CreatedAt: at(1)})
		return err
	})
	require.NoError(t, err)

	movements, err := s.ListMovements(ctx)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, stored.ID, movements[0].ID)
	assert.Equal(t, int64(7), movements[0].Quantity)
}

func testSnapshot(t *testing.T, s inventory.TxStore) {
	ctx := context.Background()
	seed(t, s)
	_, err := s.AppendMovement(ctx, inventory.Movement{ProductID: "P1", To: "L1", Quantity: 5, CreatedAt: at(1)})
	require.NoError(t, err)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Products, 2)
	assert.Len(t, snap.Locations, 2)
	require.Len(t, snap.Movements, 1)
	assert.Equal(t, int64(5), snap.Movements[0].Quantity)

	// Later writes do not leak into an already taken snapshot.
	_, err = s.AppendMovement(ctx, inventory.Movement{ProductID: "P1", To: "L1", Quantity: 1, CreatedAt: at(2)})
	require.NoError(t, err)
	assert.Len(t, snap.Movements, 1)
}

func testReset(t *testing.T, s inventory.TxStore) {
	r, ok := s.(inventory.Resetter)
	if !ok {
		t.Skip("store does not support Reset")
	}
	ctx := context.Background()
	seed(t, s)
	_, err := s.AppendMovement(ctx, inventory.Movement{ProductID: "P1", To: "L1", Quantity: 5, CreatedAt: at(1)})
	require.NoError(t, err)

	require.NoError(t, r.Reset(ctx))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Products)
	assert.Empty(t, snap.Locations)
	assert.Empty(t, snap.Movements)

	// Catalog IDs are free again after a reset.
	require.NoError(t, s.InsertProduct(ctx, inventory.Product{ID: "P1", Name: "Widget"}))
}
