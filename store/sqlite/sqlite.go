/*
Package sqlite provides a SQLite-backed implementation of inventory.TxStore.

PURPOSE:
  Persists the product and location catalogs and the movement ledger in a
  single SQLite file. Balances are never stored; they are computed from
  Snapshot() by the inventory package.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements anywhere
  - No DELETE on movements (Reset aside, which wipes everything)
  - Corrections are new movements

KEY TABLES:
  products / locations: catalog rows, listed in insertion order (seq)
  movements:            the ledger, id assigned by AUTOINCREMENT

CONCURRENCY:
  The pool is capped at one connection so ":memory:" databases are shared
  and SQLite never sees two writers. sync.RWMutex serializes Go callers on
  top of that; WithTx holds the write lock for the whole transaction.

MIGRATION:
  Schema is applied by goose from the embedded migrations/ directory on
  New().

USAGE:
  store, err := sqlite.New(ctx, "./data/stock.db")
  if err != nil {
      return err
  }
  defer store.Close()

  svc := inventory.NewService(store, false)

SEE ALSO:
  - inventory/store.go: Interface definitions
  - inventory/store/memory.go: In-memory implementation for testing
  - store/postgres: Same contract on PostgreSQL
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/warp/stock-ledger/inventory"
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	_ inventory.TxStore  = (*Store)(nil)
	_ inventory.Resetter = (*Store)(nil)
)

// Store implements inventory.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New opens the database at dbPath and applies pending migrations. Missing
// parent directories are created. Use ":memory:" for an in-memory database.
func New(ctx context.Context, dbPath string) (*Store, error) {
	if dbPath != ":memory:" && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	dir, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, dir)
	if err != nil {
		return err
	}
	_, err = provider.Up(ctx)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// CATALOG
// =============================================================================

func (s *Store) InsertProduct(ctx context.Context, p inventory.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertCatalog(ctx, s.db, "products", string(p.ID), p.Name)
}

func (s *Store) ListProducts(ctx context.Context) ([]inventory.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listProducts(ctx, s.db)
}

func (s *Store) DeleteProduct(ctx context.Context, id inventory.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteCatalog(ctx, s.db, "products", string(id))
}

func (s *Store) ProductExists(ctx context.Context, id inventory.ProductID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return exists(ctx, s.db, "product exists", "SELECT COUNT(*) FROM products WHERE id = ?", string(id))
}

func (s *Store) InsertLocation(ctx context.Context, l inventory.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertCatalog(ctx, s.db, "locations", string(l.ID), l.Name)
}

func (s *Store) ListLocations(ctx context.Context) ([]inventory.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listLocations(ctx, s.db)
}

func (s *Store) DeleteLocation(ctx context.Context, id inventory.LocationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteCatalog(ctx, s.db, "locations", string(id))
}

func (s *Store) LocationExists(ctx context.Context, id inventory.LocationID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return exists(ctx, s.db, "location exists", "SELECT COUNT(*) FROM locations WHERE id = ?", string(id))
}

// =============================================================================
// MOVEMENTS
// =============================================================================

// AppendMovement inserts m and returns it with its assigned ID.
func (s *Store) AppendMovement(ctx context.Context, m inventory.Movement) (inventory.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendMovement(ctx, s.db, m)
}

func (s *Store) ListMovements(ctx context.Context) ([]inventory.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listMovements(ctx, s.db)
}

func (s *Store) IdempotencyKeyExists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return exists(ctx, s.db, "idempotency key exists",
		"SELECT COUNT(*) FROM movements WHERE idempotency_key = ?", key)
}

func (s *Store) ProductReferenced(ctx context.Context, id inventory.ProductID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return exists(ctx, s.db, "product referenced",
		"SELECT COUNT(*) FROM movements WHERE product_id = ?", string(id))
}

func (s *Store) LocationReferenced(ctx context.Context, id inventory.LocationID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return exists(ctx, s.db, "location referenced",
		"SELECT COUNT(*) FROM movements WHERE from_location = ? OR to_location = ?", string(id), string(id))
}

// =============================================================================
// SNAPSHOT / RESET
// =============================================================================

// Snapshot reads both catalogs and the ledger inside one transaction.
func (s *Store) Snapshot(ctx context.Context) (inventory.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return inventory.Snapshot{}, inventory.StorageFailure("begin snapshot", err)
	}
	defer tx.Rollback()

	return snapshot(ctx, tx)
}

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"movements", "locations", "products"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return inventory.StorageFailure("reset "+table, err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM sqlite_sequence WHERE name IN ('movements', 'locations', 'products')")
	return inventory.StorageFailure("reset sequences", err)
}

// =============================================================================
// TRANSACTIONAL STORE (inventory.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. Any error from fn
// rolls back everything fn wrote.
func (s *Store) WithTx(ctx context.Context, fn func(inventory.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return inventory.StorageFailure("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return inventory.StorageFailure("commit", sqlTx.Commit())
}

// txStore runs every query on the open transaction. It never touches the
// parent's mutex, which WithTx already holds.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) InsertProduct(ctx context.Context, p inventory.Product) error {
	return insertCatalog(ctx, ts.tx, "products", string(p.ID), p.Name)
}

func (ts *txStore) ListProducts(ctx context.Context) ([]inventory.Product, error) {
	return listProducts(ctx, ts.tx)
}

func (ts *txStore) DeleteProduct(ctx context.Context, id inventory.ProductID) error {
	return deleteCatalog(ctx, ts.tx, "products", string(id))
}

func (ts *txStore) ProductExists(ctx context.Context, id inventory.ProductID) (bool, error) {
	return exists(ctx, ts.tx, "product exists", "SELECT COUNT(*) FROM products WHERE id = ?", string(id))
}

func (ts *txStore) InsertLocation(ctx context.Context, l inventory.Location) error {
	return insertCatalog(ctx, ts.tx, "locations", string(l.ID), l.Name)
}

func (ts *txStore) ListLocations(ctx context.Context) ([]inventory.Location, error) {
	return listLocations(ctx, ts.tx)
}

func (ts *txStore) DeleteLocation(ctx context.Context, id inventory.LocationID) error {
	return deleteCatalog(ctx, ts.tx, "locations", string(id))
}

func (ts *txStore) LocationExists(ctx context.Context, id inventory.LocationID) (bool, error) {
	return exists(ctx, ts.tx, "location exists", "SELECT COUNT(*) FROM locations WHERE id = ?", string(id))
}

func (ts *txStore) AppendMovement(ctx context.Context, m inventory.Movement) (inventory.Movement, error) {
	return appendMovement(ctx, ts.tx, m)
}

func (ts *txStore) ListMovements(ctx context.Context) ([]inventory.Movement, error) {
	return listMovements(ctx, ts.tx)
}

func (ts *txStore) IdempotencyKeyExists(ctx context.Context, key string) (bool, error) {
	return exists(ctx, ts.tx, "idempotency key exists",
		"SELECT COUNT(*) FROM movements WHERE idempotency_key = ?", key)
}

func (ts *txStore) ProductReferenced(ctx context.Context, id inventory.ProductID) (bool, error) {
	return exists(ctx, ts.tx, "product referenced",
		"SELECT COUNT(*) FROM movements WHERE product_id = ?", string(id))
}

func (ts *txStore) LocationReferenced(ctx context.Context, id inventory.LocationID) (bool, error) {
	return exists(ctx, ts.tx, "location referenced",
		"SELECT COUNT(*) FROM movements WHERE from_location = ? OR to_location = ?", string(id), string(id))
}

func (ts *txStore) Snapshot(ctx context.Context) (inventory.Snapshot, error) {
	return snapshot(ctx, ts.tx)
}

// =============================================================================
// QUERIES
// =============================================================================

func insertCatalog(ctx context.Context, q querier, table, id, name string) error {
	_, err := q.ExecContext(ctx, "INSERT INTO "+table+" (id, name) VALUES (?, ?)", id, name)
	if isUniqueConstraintError(err) {
		return inventory.ErrDuplicateID
	}
	return inventory.StorageFailure("insert into "+table, err)
}

func deleteCatalog(ctx context.Context, q querier, table, id string) error {
	res, err := q.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return inventory.StorageFailure("delete from "+table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return inventory.StorageFailure("delete from "+table, err)
	}
	if n == 0 {
		return inventory.ErrNotFound
	}
	return nil
}

func listProducts(ctx context.Context, q querier) ([]inventory.Product, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, name FROM products ORDER BY seq")
	if err != nil {
		return nil, inventory.StorageFailure("list products", err)
	}
	defer rows.Close()

	products := []inventory.Product{}
	for rows.Next() {
		var p inventory.Product
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, inventory.StorageFailure("scan product", err)
		}
		products = append(products, p)
	}
	return products, inventory.StorageFailure("list products", rows.Err())
}

func listLocations(ctx context.Context, q querier) ([]inventory.Location, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, name FROM locations ORDER BY seq")
	if err != nil {
		return nil, inventory.StorageFailure("list locations", err)
	}
	defer rows.Close()

	locations := []inventory.Location{}
	for rows.Next() {
		var l inventory.Location
		if err := rows.Scan(&l.ID, &l.Name); err != nil {
			return nil, inventory.StorageFailure("scan location", err)
		}
		locations = append(locations, l)
	}
	return locations, inventory.StorageFailure("list locations", rows.Err())
}

func appendMovement(ctx context.Context, q querier, m inventory.Movement) (inventory.Movement, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO movements (product_id, from_location, to_location, quantity, created_at, idempotency_key)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(m.ProductID),
		nullString(string(m.From)),
		nullString(string(m.To)),
		m.Quantity,
		m.CreatedAt.UTC().Format(time.RFC3339Nano),
		nullString(m.IdempotencyKey),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return inventory.Movement{}, inventory.ErrDuplicateIdempotencyKey
		}
		return inventory.Movement{}, inventory.StorageFailure("append movement", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return inventory.Movement{}, inventory.StorageFailure("append movement", err)
	}
	m.ID = inventory.MovementID(id)
	return m, nil
}

func listMovements(ctx context.Context, q querier) ([]inventory.Movement, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, product_id, from_location, to_location, quantity, created_at, idempotency_key
		FROM movements
		ORDER BY id ASC`)
	if err != nil {
		return nil, inventory.StorageFailure("list movements", err)
	}
	defer rows.Close()

	movements := []inventory.Movement{}
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, inventory.StorageFailure("list movements", rows.Err())
}

func scanMovement(rows *sql.Rows) (inventory.Movement, error) {
	var (
		m              inventory.Movement
		from, to       sql.NullString
		createdAt      string
		idempotencyKey sql.NullString
	)
	if err := rows.Scan(&m.ID, &m.ProductID, &from, &to, &m.Quantity, &createdAt, &idempotencyKey); err != nil {
		return m, inventory.StorageFailure("scan movement", err)
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return m, inventory.StorageFailure("parse created_at", err)
	}
	m.From = inventory.LocationID(from.String)
	m.To = inventory.LocationID(to.String)
	m.CreatedAt = t
	m.IdempotencyKey = idempotencyKey.String
	return m, nil
}

func exists(ctx context.Context, q querier, op, query string, args ...any) (bool, error) {
	var count int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, inventory.StorageFailure(op, err)
	}
	return count > 0, nil
}

func snapshot(ctx context.Context, q querier) (inventory.Snapshot, error) {
	products, err := listProducts(ctx, q)
	if err != nil {
		return inventory.Snapshot{}, err
	}
	locations, err := listLocations(ctx, q)
	if err != nil {
		return inventory.Snapshot{}, err
	}
	movements, err := listMovements(ctx, q)
	if err != nil {
		return inventory.Snapshot{}, err
	}
	return inventory.Snapshot{Products: products, Locations: locations, Movements: movements}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
