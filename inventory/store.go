/*
store.go - Persistence interfaces for catalogs and the movement ledger

PURPOSE:
  Defines the boundary between the ledger rules and the database. Stores
  persist; they do not validate movement shape. Implementations:
  - inventory/store/memory.go: In-memory (tests, demos)
  - store/sqlite/sqlite.go:    SQLite
  - store/postgres/postgres.go: PostgreSQL via pgx

APPEND-ONLY CONTRACT:
  MovementStore has AppendMovement and nothing that edits or removes a
  movement. Reset (below) exists only for demo scenarios.

ATOMICITY:
  TxStore.WithTx runs a function against a transactional view. The ledger
  uses it so the catalog existence checks and the insert of a movement
  either all happen or none do.

SNAPSHOTS:
  Snapshot returns catalogs and movements read together. A reader never
  sees a movement whose append has not committed.
*/
package inventory

import "context"

// =============================================================================
// CATALOG STORE
// =============================================================================

// CatalogStore persists products and locations. List methods return entries
// in insertion order.
type CatalogStore interface {
	// InsertProduct fails with ErrDuplicateID if the ID exists.
	InsertProduct(ctx context.Context, p Product) error
	ListProducts(ctx context.Context) ([]Product, error)
	// DeleteProduct fails with ErrNotFound if the ID does not exist.
	DeleteProduct(ctx context.Context, id ProductID) error
	ProductExists(ctx context.Context, id ProductID) (bool, error)

	InsertLocation(ctx context.Context, l Location) error
	ListLocations(ctx context.Context) ([]Location, error)
	DeleteLocation(ctx context.Context, id LocationID) error
	LocationExists(ctx context.Context, id LocationID) (bool, error)
}

// =============================================================================
// MOVEMENT STORE - Append-only
// =============================================================================

// MovementStore persists movements.
type MovementStore interface {
	// AppendMovement stores m with the next sequential ID and returns the
	// stored record. m.ID is ignored. Returns ErrDuplicateIdempotencyKey if
	// m.IdempotencyKey is set and already used.
	AppendMovement(ctx context.Context, m Movement) (Movement, error)

	// ListMovements returns every movement in ID order.
	ListMovements(ctx context.Context) ([]Movement, error)

	// IdempotencyKeyExists checks whether key was already used.
	IdempotencyKeyExists(ctx context.Context, key string) (bool, error)

	// ProductReferenced / LocationReferenced report whether any movement
	// mentions the ID. Used by strict catalogs.
	ProductReferenced(ctx context.Context, id ProductID) (bool, error)
	LocationReferenced(ctx context.Context, id LocationID) (bool, error)
}

// =============================================================================
// STORE
// =============================================================================

// Store is the full persistence surface.
type Store interface {
	CatalogStore
	MovementStore

	// Snapshot reads products, locations and movements consistently.
	Snapshot(ctx context.Context) (Snapshot, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Resetter clears all data. Implemented by every store; used by demo
// scenarios only.
type Resetter interface {
	Reset(ctx context.Context) error
}
