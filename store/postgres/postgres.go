/*
Package postgres provides a PostgreSQL-backed implementation of
inventory.TxStore using pgx.

PURPOSE:
  Same contract as store/sqlite, for deployments that share one database
  between several server processes.

CONCURRENCY:
  No Go-side mutex. Every transaction opened by WithTx first takes a
  transaction-scoped advisory lock. Direct catalog inserts and deletes and
  direct AppendMovement calls go through WithTx too, so every mutation
  commits one at a time and BIGSERIAL ids follow commit order. Snapshot runs in a REPEATABLE READ, READ ONLY transaction, which
  gives all three SELECTs the same view.

MIGRATION:
  goose applies the embedded migrations/ directory on New(), through a
  database/sql handle opened on top of the pgx pool.

SEE ALSO:
  - store/sqlite: Embedded single-file store
  - inventory/store.go: Interface definitions
*/
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/warp/stock-ledger/inventory"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ledgerLockKey is the pg_advisory_xact_lock key serializing ledger writes.
const ledgerLockKey = 7_420_001

var (
	_ inventory.TxStore  = (*Store)(nil)
	_ inventory.Resetter = (*Store)(nil)
)

// Store implements inventory.TxStore on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// New connects to dsn, verifies the connection and applies migrations.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	cfg.MaxConns = 25
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	dir, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, dir)
	if err != nil {
		return err
	}
	_, err = provider.Up(ctx)
	return err
}

// Close releases every pooled connection.
func (s *Store) Close() {
	s.pool.Close()
}

// =============================================================================
// CATALOG
// =============================================================================

func (s *Store) InsertProduct(ctx context.Context, p inventory.Product) error {
	return s.WithTx(ctx, func(tx inventory.Store) error { return tx.InsertProduct(ctx, p) })
}

func (s *Store) ListProducts(ctx context.Context) ([]inventory.Product, error) {
	return listProducts(ctx, s.pool)
}

func (s *Store) DeleteProduct(ctx context.Context, id inventory.ProductID) error {
	return s.WithTx(ctx, func(tx inventory.Store) error { return tx.DeleteProduct(ctx, id) })
}

func (s *Store) ProductExists(ctx context.Context, id inventory.ProductID) (bool, error) {
	return exists(ctx, s.pool, "product exists",
		"SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)", string(id))
}

func (s *Store) InsertLocation(ctx context.Context, l inventory.Location) error {
	return s.WithTx(ctx, func(tx inventory.Store) error { return tx.InsertLocation(ctx, l) })
}

func (s *Store) ListLocations(ctx context.Context) ([]inventory.Location, error) {
	return listLocations(ctx, s.pool)
}

func (s *Store) DeleteLocation(ctx context.Context, id inventory.LocationID) error {
	return s.WithTx(ctx, func(tx inventory.Store) error { return tx.DeleteLocation(ctx, id) })
}

func (s *Store) LocationExists(ctx context.Context, id inventory.LocationID) (bool, error) {
	return exists(ctx, s.pool, "location exists",
		"SELECT EXISTS (SELECT 1 FROM locations WHERE id = $1)", string(id))
}

// =============================================================================
// MOVEMENTS
// =============================================================================

// AppendMovement inserts m in its own locked transaction.
func (s *Store) AppendMovement(ctx context.Context, m inventory.Movement) (inventory.Movement, error) {
	var stored inventory.Movement
	err := s.WithTx(ctx, func(tx inventory.Store) error {
		var err error
		stored, err = tx.AppendMovement(ctx, m)
		return err
	})
	return stored, err
}

func (s *Store) ListMovements(ctx context.Context) ([]inventory.Movement, error) {
	return listMovements(ctx, s.pool)
}

func (s *Store) IdempotencyKeyExists(ctx context.Context, key string) (bool, error) {
	return exists(ctx, s.pool, "idempotency key exists",
		"SELECT EXISTS (SELECT 1 FROM movements WHERE idempotency_key = $1)", key)
}

func (s *Store) ProductReferenced(ctx context.Context, id inventory.ProductID) (bool, error) {
	return exists(ctx, s.pool, "product referenced",
		"SELECT EXISTS (SELECT 1 FROM movements WHERE product_id = $1)", string(id))
}

func (s *Store) LocationReferenced(ctx context.Context, id inventory.LocationID) (bool, error) {
	return exists(ctx, s.pool, "location referenced",
		"SELECT EXISTS (SELECT 1 FROM movements WHERE from_location = $1 OR to_location = $1)", string(id))
}

// =============================================================================
// SNAPSHOT / RESET
// =============================================================================

func (s *Store) Snapshot(ctx context.Context) (inventory.Snapshot, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return inventory.Snapshot{}, inventory.StorageFailure("begin snapshot", err)
	}
	defer tx.Rollback(ctx)

	return snapshot(ctx, tx)
}

// Reset clears all data and restarts id sequences (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "TRUNCATE movements, locations, products RESTART IDENTITY")
	return inventory.StorageFailure("reset", err)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

func (s *Store) WithTx(ctx context.Context, fn func(inventory.Store) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return inventory.StorageFailure("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", ledgerLockKey); err != nil {
		return inventory.StorageFailure("ledger lock", err)
	}
	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	return inventory.StorageFailure("commit", tx.Commit(ctx))
}

type txStore struct {
	tx pgx.Tx
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
	return exists(ctx, ts.tx, "product exists",
		"SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)", string(id))
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
	return exists(ctx, ts.tx, "location exists",
		"SELECT EXISTS (SELECT 1 FROM locations WHERE id = $1)", string(id))
}

func (ts *txStore) AppendMovement(ctx context.Context, m inventory.Movement) (inventory.Movement, error) {
	return appendMovement(ctx, ts.tx, m)
}

func (ts *txStore) ListMovements(ctx context.Context) ([]inventory.Movement, error) {
	return listMovements(ctx, ts.tx)
}

func (ts *txStore) IdempotencyKeyExists(ctx context.Context, key string) (bool, error) {
	return exists(ctx, ts.tx, "idempotency key exists",
		"SELECT EXISTS (SELECT 1 FROM movements WHERE idempotency_key = $1)", key)
}

func (ts *txStore) ProductReferenced(ctx context.Context, id inventory.ProductID) (bool, error) {
	return exists(ctx, ts.tx, "product referenced",
		"SELECT EXISTS (SELECT 1 FROM movements WHERE product_id = $1)", string(id))
}

func (ts *txStore) LocationReferenced(ctx context.Context, id inventory.LocationID) (bool, error) {
	return exists(ctx, ts.tx, "location referenced",
		"SELECT EXISTS (SELECT 1 FROM movements WHERE from_location = $1 OR to_location = $1)", string(id))
}

func (ts *txStore) Snapshot(ctx context.Context) (inventory.Snapshot, error) {
	return snapshot(ctx, ts.tx)
}

// =============================================================================
// QUERIES
// =============================================================================

func insertCatalog(ctx context.Context, q querier, table, id, name string) error {
	_, err := q.Exec(ctx, "INSERT INTO "+table+" (id, name) VALUES ($1, $2)", id, name)
	if isUniqueViolation(err) {
		return inventory.ErrDuplicateID
	}
	return inventory.StorageFailure("insert into "+table, err)
}

func deleteCatalog(ctx context.Context, q querier, table, id string) error {
	tag, err := q.Exec(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
	if err != nil {
		return inventory.StorageFailure("delete from "+table, err)
	}
	if tag.RowsAffected() == 0 {
		return inventory.ErrNotFound
	}
	return nil
}

func listProducts(ctx context.Context, q querier) ([]inventory.Product, error) {
	rows, err := q.Query(ctx, "SELECT id, name FROM products ORDER BY seq")
	if err != nil {
		return nil, inventory.StorageFailure("list products", err)
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (inventory.Product, error) {
		var p inventory.Product
		err := row.Scan(&p.ID, &p.Name)
		return p, err
	})
	if err != nil {
		return nil, inventory.StorageFailure("list products", err)
	}
	return products, nil
}

func listLocations(ctx context.Context, q querier) ([]inventory.Location, error) {
	rows, err := q.Query(ctx, "SELECT id, name FROM locations ORDER BY seq")
	if err != nil {
		return nil, inventory.StorageFailure("list locations", err)
	}
	locations, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (inventory.Location, error) {
		var l inventory.Location
		err := row.Scan(&l.ID, &l.Name)
		return l, err
	})
	if err != nil {
		return nil, inventory.StorageFailure("list locations", err)
	}
	return locations, nil
}

func appendMovement(ctx context.Context, q querier, m inventory.Movement) (inventory.Movement, error) {
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO movements (product_id, from_location, to_location, quantity, created_at, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		string(m.ProductID),
		nullable(string(m.From)),
		nullable(string(m.To)),
		m.Quantity,
		m.CreatedAt.UTC(),
		nullable(m.IdempotencyKey),
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return inventory.Movement{}, inventory.ErrDuplicateIdempotencyKey
		}
		return inventory.Movement{}, inventory.StorageFailure("append movement", err)
	}
	m.ID = inventory.MovementID(id)
	return m, nil
}

func listMovements(ctx context.Context, q querier) ([]inventory.Movement, error) {
	rows, err := q.Query(ctx, `
		SELECT id, product_id, from_location, to_location, quantity, created_at, idempotency_key
		FROM movements
		ORDER BY id ASC`)
	if err != nil {
		return nil, inventory.StorageFailure("list movements", err)
	}
	movements, err := pgx.CollectRows(rows, scanMovement)
	if err != nil {
		return nil, inventory.StorageFailure("list movements", err)
	}
	return movements, nil
}

func scanMovement(row pgx.CollectableRow) (inventory.Movement, error) {
	var (
		m                 inventory.Movement
		from, to, idemKey *string
		createdAt         time.Time
	)
	if err := row.Scan(&m.ID, &m.ProductID, &from, &to, &m.Quantity, &createdAt, &idemKey); err != nil {
		return m, err
	}
	m.From = inventory.LocationID(deref(from))
	m.To = inventory.LocationID(deref(to))
	m.IdempotencyKey = deref(idemKey)
	m.CreatedAt = createdAt.UTC()
	return m, nil
}

func exists(ctx context.Context, q querier, op, query string, args ...any) (bool, error) {
	var ok bool
	if err := q.QueryRow(ctx, query, args...).Scan(&ok); err != nil {
		return false, inventory.StorageFailure(op, err)
	}
	return ok, nil
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

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// isUniqueViolation reports a unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
