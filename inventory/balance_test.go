package inventory_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stock-ledger/inventory"
)

var (
	products  = []inventory.Product{{ID: "P1", Name: "Widget"}, {ID: "P2", Name: "Gadget"}}
	locations = []inventory.Location{{ID: "L1", Name: "Main"}, {ID: "L2", Name: "Backroom"}}
)

func mv(p inventory.ProductID, from, to inventory.LocationID, q int64) inventory.Movement {
	return inventory.Movement{ProductID: p, From: from, To: to, Quantity: q}
}

// =============================================================================
// COMPUTE
// =============================================================================

func TestCompute_ReceiptTransferIssue(t *testing.T) {
	// GIVEN: 10 received at L1, 4 moved to L2, 1 issued from L2
	movements := []inventory.Movement{
		mv("P1", "", "L1", 10),
		mv("P1", "L1", "L2", 4),
		mv("P1", "L2", "", 1),
	}

	// WHEN
	b := inventory.Compute(products, locations, movements)

	// THEN
	assert.Equal(t, int64(6), b.Get("P1", "L1"))
	assert.Equal(t, int64(3), b.Get("P1", "L2"))
	assert.Equal(t, int64(0), b.Get("P2", "L1"))
	assert.Equal(t, int64(9), b.ProductTotal("P1"))
}

func TestCompute_EveryCatalogPairPresent(t *testing.T) {
	b := inventory.Compute(products, locations, nil)

	assert.Len(t, b, 4)
	for _, p := range products {
		for _, l := range locations {
			q, ok := b[inventory.Key{Product: p.ID, Location: l.ID}]
			assert.True(t, ok, "%s/%s missing", p.ID, l.ID)
			assert.Zero(t, q)
		}
	}
}

func TestCompute_NegativeIsNotClamped(t *testing.T) {
	b := inventory.Compute(products, locations, []inventory.Movement{mv("P1", "L1", "", 7)})

	assert.Equal(t, int64(-7), b.Get("P1", "L1"))
	assert.Equal(t, []inventory.Entry{{Product: "P1", Location: "L1", Quantity: -7}},
		b.Negative(products, locations))
}

func TestCompute_DanglingReferencesSkippedPerEndpoint(t *testing.T) {
	// GIVEN: movements naming a deleted product and a deleted location
	movements := []inventory.Movement{
		mv("GONE", "", "L1", 100),
		mv("P1", "", "L1", 10),
		mv("P1", "L1", "OLD", 4), // from side still counts
		mv("P1", "OLD", "L2", 2), // to side still counts
	}

	b := inventory.Compute(products, locations, movements)

	assert.Equal(t, int64(6), b.Get("P1", "L1"))
	assert.Equal(t, int64(2), b.Get("P1", "L2"))
	assert.Len(t, b, 4, "no cells appear for unknown ids")
	_, ok := b[inventory.Key{Product: "GONE", Location: "L1"}]
	assert.False(t, ok)
}

func TestCompute_Conservation(t *testing.T) {
	// Total per product equals what came in from outside minus what left.
	rng := rand.New(rand.NewSource(42))
	ends := []inventory.LocationID{"", "L1", "L2"}

	var movements []inventory.Movement
	external := map[inventory.ProductID]int64{}
	for i := 0; i < 500; i++ {
		p := products[rng.Intn(len(products))].ID
		from, to := ends[rng.Intn(3)], ends[rng.Intn(3)]
		if from == "" && to == "" {
			continue
		}
		q := int64(rng.Intn(20) + 1)
		movements = append(movements, mv(p, from, to, q))
		if from == "" {
			external[p] += q
		}
		if to == "" {
			external[p] -= q
		}
	}

	b := inventory.Compute(products, locations, movements)
	for _, p := range products {
		assert.Equal(t, external[p.ID], b.ProductTotal(p.ID), "product %s", p.ID)
	}
}

func TestCompute_OrderIndependent(t *testing.T) {
	movements := []inventory.Movement{
		mv("P1", "", "L1", 10),
		mv("P1", "L1", "L2", 4),
		mv("P2", "", "L2", 3),
		mv("P1", "L2", "", 1),
		mv("P2", "L2", "L1", 2),
	}
	want := inventory.Compute(products, locations, movements)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]inventory.Movement{}, movements...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, inventory.Compute(products, locations, shuffled))
	}
}

func TestBalances_EntriesCatalogOrder(t *testing.T) {
	b := inventory.Compute(products, locations, []inventory.Movement{mv("P2", "", "L2", 5)})

	entries := b.Entries(products, locations)
	require.Len(t, entries, 4)
	assert.Equal(t, inventory.Entry{Product: "P1", Location: "L1"}, entries[0])
	assert.Equal(t, inventory.Entry{Product: "P1", Location: "L2"}, entries[1])
	assert.Equal(t, inventory.Entry{Product: "P2", Location: "L1"}, entries[2])
	assert.Equal(t, inventory.Entry{Product: "P2", Location: "L2", Quantity: 5}, entries[3])
}

// =============================================================================
// AS-OF
// =============================================================================

func TestMovementsAsOf(t *testing.T) {
	base := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	movements := []inventory.Movement{
		{ID: 1, ProductID: "P1", To: "L1", Quantity: 1, CreatedAt: base},
		{ID: 2, ProductID: "P1", To: "L1", Quantity: 2, CreatedAt: base.Add(time.Hour)},
		{ID: 3, ProductID: "P1", To: "L1", Quantity: 4, CreatedAt: base.Add(2 * time.Hour)},
	}

	got := inventory.MovementsAsOf(movements, base.Add(time.Hour))
	require.Len(t, got, 2, "boundary is inclusive")
	assert.Equal(t, inventory.MovementID(1), got[0].ID)
	assert.Equal(t, inventory.MovementID(2), got[1].ID)

	assert.Empty(t, inventory.MovementsAsOf(movements, base.Add(-time.Second)))
	assert.Len(t, movements, 3, "input is not modified")
}

func TestService_BalancesAsOf(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	first := appendOK(t, svc, inventory.MovementRequest{ProductID: "P1", To: "L1", Quantity: 10})
	appendOK(t, svc, inventory.MovementRequest{ProductID: "P1", From: "L1", Quantity: 3})

	past, err := svc.Balances(ctx, first.CreatedAt)
	require.NoError(t, err)
	assert.Equal(t, int64(10), past.Balances.Get("P1", "L1"))

	now, err := svc.Balances(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), now.Balances.Get("P1", "L1"))
}

func TestService_NegativeBalances(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	appendOK(t, svc, inventory.MovementRequest{ProductID: "P2", From: "L2", Quantity: 4})

	neg, err := svc.NegativeBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, []inventory.Entry{{Product: "P2", Location: "L2", Quantity: -4}}, neg)
}
