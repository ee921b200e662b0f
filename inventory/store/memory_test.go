package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stock-ledger/inventory"
	"github.com/warp/stock-ledger/inventory/store"
	"github.com/warp/stock-ledger/inventory/storetest"
)

func TestMemory_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) inventory.TxStore {
		return store.NewMemory()
	})
}

func TestMemory_ListReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.InsertProduct(ctx, inventory.Product{ID: "P1", Name: "Widget"}))

	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	products[0].Name = "mutated"

	again, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Widget", again[0].Name)
}

func TestMemory_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	ledger := inventory.NewLedger(s)
	require.NoError(t, s.InsertProduct(ctx, inventory.Product{ID: "P1", Name: "Widget"}))
	require.NoError(t, s.InsertLocation(ctx, inventory.Location{ID: "L1", Name: "Main"}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Append(ctx, inventory.MovementRequest{ProductID: "P1", To: "L1", Quantity: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	movements, err := s.ListMovements(ctx)
	require.NoError(t, err)
	require.Len(t, movements, 50)
	for i, mv := range movements {
		assert.Equal(t, inventory.MovementID(i+1), mv.ID)
	}
}
