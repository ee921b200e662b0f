/*
balance.go - On-hand quantities derived from the ledger

PURPOSE:
  Folds a movement history into per-(product, location) quantities. This is
  the only place stock levels exist, and they exist only in memory for the
  duration of a query.

ALGORITHM:
  1. Every (product, location) pair in the supplied catalogs starts at 0
  2. For each movement:
       To set   -> balance[product, To]   += quantity
       From set -> balance[product, From] -= quantity
  3. Endpoints naming a product or location that is not in the supplied
     catalogs are skipped (dangling references after a catalog delete)

PROPERTIES:
  - Pure: output depends only on the arguments
  - Order-independent: addition commutes, so movement order is irrelevant
  - Conservation: for one product, the sum over all locations equals
    received-from-outside minus sent-to-outside (with full catalogs)
  - Negative results are kept as-is, not clamped

COST:
  O(products x locations + movements) per call. Nothing is cached.

EXAMPLE:
  catalog P1; L1, L2
  P1  ""  -> L1  10
  P1  L1  -> L2   4
  Compute => {(P1,L1): 6, (P1,L2): 4}
*/
package inventory

import "time"

// =============================================================================
// BALANCES
// =============================================================================

// Key identifies one balance cell.
type Key struct {
	Product  ProductID
	Location LocationID
}

// Balances maps (product, location) to signed quantity on hand. Pairs from
// the catalogs are always present, possibly with value 0.
type Balances map[Key]int64

// Entry is one balance cell with its key spelled out.
type Entry struct {
	Product  ProductID
	Location LocationID
	Quantity int64
}

// Get returns the balance for a pair, 0 if absent.
func (b Balances) Get(p ProductID, l LocationID) int64 {
	return b[Key{Product: p, Location: l}]
}

// ProductTotal sums a product's balance across all locations.
func (b Balances) ProductTotal(p ProductID) int64 {
	var total int64
	for k, q := range b {
		if k.Product == p {
			total += q
		}
	}
	return total
}

// Entries lists every cell in catalog order, product-major.
func (b Balances) Entries(products []Product, locations []Location) []Entry {
	entries := make([]Entry, 0, len(products)*len(locations))
	for _, p := range products {
		for _, l := range locations {
			entries = append(entries, Entry{Product: p.ID, Location: l.ID, Quantity: b.Get(p.ID, l.ID)})
		}
	}
	return entries
}

// Negative lists cells below zero in catalog order. A negative cell means
// more was issued from a location than was ever received there.
func (b Balances) Negative(products []Product, locations []Location) []Entry {
	var out []Entry
	for _, e := range b.Entries(products, locations) {
		if e.Quantity < 0 {
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// COMPUTE
// =============================================================================

// Compute folds movements into balances for the given catalogs.
func Compute(products []Product, locations []Location, movements []Movement) Balances {
	knownProduct := make(map[ProductID]bool, len(products))
	knownLocation := make(map[LocationID]bool, len(locations))
	balances := make(Balances, len(products)*len(locations))

	for _, l := range locations {
		knownLocation[l.ID] = true
	}
	for _, p := range products {
		knownProduct[p.ID] = true
		for _, l := range locations {
			balances[Key{Product: p.ID, Location: l.ID}] = 0
		}
	}

	for _, m := range movements {
		if !knownProduct[m.ProductID] {
			continue
		}
		if m.HasTo() && knownLocation[m.To] {
			balances[Key{Product: m.ProductID, Location: m.To}] += m.Quantity
		}
		if m.HasFrom() && knownLocation[m.From] {
			balances[Key{Product: m.ProductID, Location: m.From}] -= m.Quantity
		}
	}
	return balances
}

// MovementsAsOf returns the movements recorded at or before t, keeping
// their order.
func MovementsAsOf(movements []Movement, t time.Time) []Movement {
	out := make([]Movement, 0, len(movements))
	for _, m := range movements {
		if !m.CreatedAt.After(t) {
			out = append(out, m)
		}
	}
	return out
}
