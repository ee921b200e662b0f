package inventory

import (
	"context"
	"time"
)

// Service wires the catalog, the ledger and snapshot reads over one store.
// It is created once at startup and shared by every request.
type Service struct {
	Store   TxStore
	Catalog *Catalog
	Ledger  *DefaultLedger
}

func NewService(store TxStore, strictCatalog bool) *Service {
	return &Service{
		Store:   store,
		Catalog: NewCatalog(store, strictCatalog),
		Ledger:  NewLedger(store),
	}
}

// View is a snapshot together with the balances computed from it.
type View struct {
	Snapshot Snapshot
	Balances Balances
}

// Balances computes balances from one consistent snapshot. A zero asOf
// means the full history.
func (s *Service) Balances(ctx context.Context, asOf time.Time) (View, error) {
	snap, err := s.Store.Snapshot(ctx)
	if err != nil {
		return View{}, err
	}
	if !asOf.IsZero() {
		snap.Movements = MovementsAsOf(snap.Movements, asOf)
	}
	return View{
		Snapshot: snap,
		Balances: Compute(snap.Products, snap.Locations, snap.Movements),
	}, nil
}

// Report returns the non-zero balances as report rows.
func (s *Service) Report(ctx context.Context, asOf time.Time) ([]ReportRow, error) {
	v, err := s.Balances(ctx, asOf)
	if err != nil {
		return nil, err
	}
	return BuildReport(v.Snapshot.Products, v.Snapshot.Locations, v.Balances), nil
}

// NegativeBalances returns the pairs currently below zero.
func (s *Service) NegativeBalances(ctx context.Context) ([]Entry, error) {
	v, err := s.Balances(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	return v.Balances.Negative(v.Snapshot.Products, v.Snapshot.Locations), nil
}
