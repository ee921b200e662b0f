/*
ledger.go - Append-only movement log

PURPOSE:
  The Ledger is the only way stock changes. Every receipt, issue and
  transfer is one Movement, and balances are always computed by replaying
  movements (see balance.go).

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. ORDERED: IDs are assigned by the store and strictly increase.
  3. VALID: Quantity > 0, at least one endpoint, product (and any named
     location) exists at write time.
  4. ATOMIC: A rejected append leaves the ledger unchanged.

CORRECTIONS:
  A wrong movement is never edited. Record the opposite movement instead:
    mistake:    P1  ""  -> L1  10
    correction: P1  L1  -> ""  10

NEGATIVE STOCK:
  Issuing more than a location holds is accepted. The balance simply goes
  negative and shows up in the report and in Balances.Negative().
*/
package inventory

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// =============================================================================
// LEDGER
// =============================================================================

// Ledger is the source of truth for all stock changes.
type Ledger interface {
	// Append validates and records a movement.
	// This is the ONLY write operation.
	Append(ctx context.Context, req MovementRequest) (Movement, error)

	// Movements returns all movements in ID order. Read-only.
	Movements(ctx context.Context) ([]Movement, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using TxStore
// =============================================================================

type DefaultLedger struct {
	Store TxStore
	Now   func() time.Time
}

func NewLedger(store TxStore) *DefaultLedger {
	return &DefaultLedger{Store: store, Now: func() time.Time { return time.Now().UTC() }}
}

// Append validates req and stores it as the next movement.
//
// Shape checks run first (no store access); existence checks, the clock
// read and the insert then run inside one store transaction.
func (l *DefaultLedger) Append(ctx context.Context, req MovementRequest) (Movement, error) {
	log := zerolog.Ctx(ctx)

	if err := ValidateShape(req); err != nil {
		log.Debug().Err(err).Str("product_id", string(req.ProductID)).Msg("movement rejected")
		return Movement{}, err
	}
	if req.From != "" && req.From == req.To {
		log.Warn().
			Str("product_id", string(req.ProductID)).
			Str("location_id", string(req.From)).
			Msg("movement transfers stock onto the same location")
	}

	draft := Movement{
		ProductID:      req.ProductID,
		From:           req.From,
		To:             req.To,
		Quantity:       req.Quantity,
		IdempotencyKey: req.IdempotencyKey,
	}

	var stored Movement
	err := l.Store.WithTx(ctx, func(s Store) error {
		if err := checkReferences(ctx, s, draft); err != nil {
			return err
		}
		if draft.IdempotencyKey != "" {
			exists, err := s.IdempotencyKeyExists(ctx, draft.IdempotencyKey)
			if err != nil {
				return err
			}
			if exists {
				return ErrDuplicateIdempotencyKey
			}
		}
		// Read under the store's write section so IDs and instants increase together.
		draft.CreatedAt = l.Now()
		mv, err := s.AppendMovement(ctx, draft)
		if err != nil {
			return err
		}
		stored = mv
		return nil
	})
	if err != nil {
		log.Debug().Err(err).Str("product_id", string(req.ProductID)).Msg("movement rejected")
		return Movement{}, err
	}

	log.Info().
		Int64("movement_id", int64(stored.ID)).
		Str("product_id", string(stored.ProductID)).
		Str("from", string(stored.From)).
		Str("to", string(stored.To)).
		Int64("quantity", stored.Quantity).
		Msg("movement recorded")
	return stored, nil
}

func (l *DefaultLedger) Movements(ctx context.Context) ([]Movement, error) {
	return l.Store.ListMovements(ctx)
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidateShape checks the rules that need no store access.
func ValidateShape(req MovementRequest) error {
	if req.From == "" && req.To == "" {
		return invalid(ReasonMissingEndpoints, "to_location",
			"a movement needs a from_location, a to_location or both")
	}
	if req.Quantity <= 0 {
		return invalid(ReasonNonPositiveQuantity, "quantity",
			"quantity must be positive, got %d", req.Quantity)
	}
	return nil
}

func checkReferences(ctx context.Context, s Store, m Movement) error {
	ok, err := productExists(ctx, s, m.ProductID)
	if err != nil {
		return err
	}
	if !ok {
		return invalid(ReasonUnknownProduct, "product_id", "product %q does not exist", m.ProductID)
	}

	for _, ep := range []struct {
		field string
		id    LocationID
	}{{"from_location", m.From}, {"to_location", m.To}} {
		if ep.id == "" {
			continue
		}
		ok, err := s.LocationExists(ctx, ep.id)
		if err != nil {
			return err
		}
		if !ok {
			return invalid(ReasonUnknownLocation, ep.field, "location %q does not exist", ep.id)
		}
	}
	return nil
}

func productExists(ctx context.Context, s Store, id ProductID) (bool, error) {
	if id == "" {
		return false, nil
	}
	return s.ProductExists(ctx, id)
}
