/*
Package inventory provides the stock ledger engine.

PURPOSE:
  Records discrete stock movements of products between locations and
  derives on-hand quantities from the complete movement history. There is
  no stored "stock level" anywhere: every balance is a replay of the ledger.

KEY CONCEPTS IN THIS FILE (types.go):
  - Product / Location: catalog entries keyed by a caller-chosen string ID
  - Movement: an immutable ledger entry moving Quantity of one product
    out of From, into To, or both
  - Snapshot: products, locations and movements read together

MOVEMENT SHAPES:
  receipt   From = ""   To = "L1"   stock enters from outside
  issue     From = "L1" To = ""     stock leaves to outside
  transfer  From = "L1" To = "L2"   stock moves between locations

DESIGN PRINCIPLES:
  1. Immutability: Movements are never modified or deleted
  2. Derivation: Balances are computed, never persisted
  3. Type Safety: ProductID and LocationID cannot be mixed up

SEE ALSO:
  - ledger.go: Append/validation rules
  - balance.go: Balance computation from movements
  - report.go: Report rows built from balances
*/
package inventory

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProductID string
type LocationID string
type MovementID int64

// =============================================================================
// CATALOG ENTRIES
// =============================================================================

// Product is a stock-keeping item. Immutable once created.
type Product struct {
	ID   ProductID
	Name string
}

// Location is a place that holds stock (warehouse, shelf, store).
type Location struct {
	ID   LocationID
	Name string
}

// =============================================================================
// MOVEMENT - Atomic change to stock
// =============================================================================

// Movement is one ledger entry. An empty From or To means the stock came
// from, or went to, outside the tracked locations.
type Movement struct {
	ID             MovementID
	ProductID      ProductID
	From           LocationID
	To             LocationID
	Quantity       int64
	CreatedAt      time.Time
	IdempotencyKey string
}

func (m Movement) HasFrom() bool { return m.From != "" }
func (m Movement) HasTo() bool   { return m.To != "" }

// IsTransfer reports whether the movement moves stock between two locations.
func (m Movement) IsTransfer() bool { return m.HasFrom() && m.HasTo() }

// Kind names the movement shape: "receipt", "issue" or "transfer".
func (m Movement) Kind() string {
	switch {
	case m.IsTransfer():
		return "transfer"
	case m.HasTo():
		return "receipt"
	default:
		return "issue"
	}
}

// MovementRequest is what callers hand to the ledger. ID and CreatedAt are
// assigned by the ledger.
type MovementRequest struct {
	ProductID      ProductID
	From           LocationID
	To             LocationID
	Quantity       int64
	IdempotencyKey string
}

// =============================================================================
// SNAPSHOT - Consistent read of the whole store
// =============================================================================

// Snapshot is a consistent view of both catalogs and the ledger. Stores
// capture all three collections under one lock or transaction so a movement
// appended concurrently is either fully in or fully out.
type Snapshot struct {
	Products  []Product
	Locations []Location
	Movements []Movement
}
