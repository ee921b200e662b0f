// Package store provides Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/stock-ledger/inventory"
)

var _ inventory.TxStore = (*Memory)(nil)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	state memoryState
}

type memoryState struct {
	products    []inventory.Product
	locations   []inventory.Location
	movements   []inventory.Movement
	idempotency map[string]bool
	lastID      inventory.MovementID
}

func NewMemory() *Memory {
	return &Memory{state: memoryState{idempotency: make(map[string]bool)}}
}

// --- catalog ---

func (m *Memory) InsertProduct(_ context.Context, p inventory.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.insertProduct(p)
}

func (m *Memory) ListProducts(_ context.Context) ([]inventory.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]inventory.Product{}, m.state.products...), nil
}

func (m *Memory) DeleteProduct(_ context.Context, id inventory.ProductID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deleteProduct(id)
}

func (m *Memory) ProductExists(_ context.Context, id inventory.ProductID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.productIndex(id) >= 0, nil
}

func (m *Memory) InsertLocation(_ context.Context, l inventory.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.insertLocation(l)
}

func (m *Memory) ListLocations(_ context.Context) ([]inventory.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]inventory.Location{}, m.state.locations...), nil
}

func (m *Memory) DeleteLocation(_ context.Context, id inventory.LocationID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deleteLocation(id)
}

func (m *Memory) LocationExists(_ context.Context, id inventory.LocationID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.locationIndex(id) >= 0, nil
}

// --- movements (append-only) ---

func (m *Memory) AppendMovement(_ context.Context, mv inventory.Movement) (inventory.Movement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.appendMovement(mv)
}

func (m *Memory) ListMovements(_ context.Context) ([]inventory.Movement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]inventory.Movement{}, m.state.movements...), nil
}

func (m *Memory) IdempotencyKeyExists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.idempotency[key], nil
}

func (m *Memory) ProductReferenced(_ context.Context, id inventory.ProductID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.productReferenced(id), nil
}

func (m *Memory) LocationReferenced(_ context.Context, id inventory.LocationID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.locationReferenced(id), nil
}

// Snapshot copies all three collections under one read lock.
func (m *Memory) Snapshot(_ context.Context) (inventory.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.snapshot(), nil
}

// Reset clears all data (for demo scenarios).
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = memoryState{idempotency: make(map[string]bool)}
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(inventory.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := m.state.clone()
	if err := fn(&txMemoryView{state: &m.state}); err != nil {
		m.state = saved
		return err
	}
	return nil
}

// txMemoryView operates on the parent's state while the parent holds its
// write lock, so it must not lock again.
type txMemoryView struct {
	state *memoryState
}

func (tv *txMemoryView) InsertProduct(_ context.Context, p inventory.Product) error {
	return tv.state.insertProduct(p)
}

func (tv *txMemoryView) ListProducts(_ context.Context) ([]inventory.Product, error) {
	return append([]inventory.Product{}, tv.state.products...), nil
}

func (tv *txMemoryView) DeleteProduct(_ context.Context, id inventory.ProductID) error {
	return tv.state.deleteProduct(id)
}

func (tv *txMemoryView) ProductExists(_ context.Context, id inventory.ProductID) (bool, error) {
	return tv.state.productIndex(id) >= 0, nil
}

func (tv *txMemoryView) InsertLocation(_ context.Context, l inventory.Location) error {
	return tv.state.insertLocation(l)
}

func (tv *txMemoryView) ListLocations(_ context.Context) ([]inventory.Location, error) {
	return append([]inventory.Location{}, tv.state.locations...), nil
}

func (tv *txMemoryView) DeleteLocation(_ context.Context, id inventory.LocationID) error {
	return tv.state.deleteLocation(id)
}

func (tv *txMemoryView) LocationExists(_ context.Context, id inventory.LocationID) (bool, error) {
	return tv.state.locationIndex(id) >= 0, nil
}

func (tv *txMemoryView) AppendMovement(_ context.Context, mv inventory.Movement) (inventory.Movement, error) {
	return tv.state.appendMovement(mv)
}

func (tv *txMemoryView) ListMovements(_ context.Context) ([]inventory.Movement, error) {
	return append([]inventory.Movement{}, tv.state.movements...), nil
}

func (tv *txMemoryView) IdempotencyKeyExists(_ context.Context, key string) (bool, error) {
	return tv.state.idempotency[key], nil
}

func (tv *txMemoryView) ProductReferenced(_ context.Context, id inventory.ProductID) (bool, error) {
	return tv.state.productReferenced(id), nil
}

func (tv *txMemoryView) LocationReferenced(_ context.Context, id inventory.LocationID) (bool, error) {
	return tv.state.locationReferenced(id), nil
}

func (tv *txMemoryView) Snapshot(_ context.Context) (inventory.Snapshot, error) {
	return tv.state.snapshot(), nil
}

// =============================================================================
// STATE (callers hold the lock)
// =============================================================================

func (s *memoryState) productIndex(id inventory.ProductID) int {
	for i, p := range s.products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (s *memoryState) locationIndex(id inventory.LocationID) int {
	for i, l := range s.locations {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (s *memoryState) insertProduct(p inventory.Product) error {
	if s.productIndex(p.ID) >= 0 {
		return inventory.ErrDuplicateID
	}
	s.products = append(s.products, p)
	return nil
}

func (s *memoryState) deleteProduct(id inventory.ProductID) error {
	i := s.productIndex(id)
	if i < 0 {
		return inventory.ErrNotFound
	}
	s.products = append(s.products[:i:i], s.products[i+1:]...)
	return nil
}

func (s *memoryState) insertLocation(l inventory.Location) error {
	if s.locationIndex(l.ID) >= 0 {
		return inventory.ErrDuplicateID
	}
	s.locations = append(s.locations, l)
	return nil
}

func (s *memoryState) deleteLocation(id inventory.LocationID) error {
	i := s.locationIndex(id)
	if i < 0 {
		return inventory.ErrNotFound
	}
	s.locations = append(s.locations[:i:i], s.locations[i+1:]...)
	return nil
}

func (s *memoryState) appendMovement(mv inventory.Movement) (inventory.Movement, error) {
	if mv.IdempotencyKey != "" && s.idempotency[mv.IdempotencyKey] {
		return inventory.Movement{}, inventory.ErrDuplicateIdempotencyKey
	}
	s.lastID++
	mv.ID = s.lastID
	s.movements = append(s.movements, mv)
	if mv.IdempotencyKey != "" {
		s.idempotency[mv.IdempotencyKey] = true
	}
	return mv, nil
}

func (s *memoryState) productReferenced(id inventory.ProductID) bool {
	for _, mv := range s.movements {
		if mv.ProductID == id {
			return true
		}
	}
	return false
}

func (s *memoryState) locationReferenced(id inventory.LocationID) bool {
	for _, mv := range s.movements {
		if mv.From == id || mv.To == id {
			return true
		}
	}
	return false
}

func (s *memoryState) snapshot() inventory.Snapshot {
	return inventory.Snapshot{
		Products:  append([]inventory.Product{}, s.products...),
		Locations: append([]inventory.Location{}, s.locations...),
		Movements: append([]inventory.Movement{}, s.movements...),
	}
}

func (s *memoryState) clone() memoryState {
	idem := make(map[string]bool, len(s.idempotency))
	for k, v := range s.idempotency {
		idem[k] = v
	}
	return memoryState{
		products:    append([]inventory.Product{}, s.products...),
		locations:   append([]inventory.Location{}, s.locations...),
		movements:   append([]inventory.Movement{}, s.movements...),
		idempotency: idem,
		lastID:      s.lastID,
	}
}
