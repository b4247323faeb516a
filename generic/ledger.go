/*
ledger.go - Validating append-only ledger

PURPOSE:
  The Ledger is the immutable source of truth for every penalty and every
  reversal. Current state is always computed by folding transactions -
  there's no separate "applied" flag that can get out of sync.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, transactions cannot be modified
  3. SIGNED: consequences are negative, reversals are positive

CORRECTIONS:
  A penalty applied by mistake is not edited. Instead:
  1. Create a reversal transaction (opposite sign, same consequence type)
  2. Both original and reversal remain in the ledger
  3. Net effect is zero, history is preserved

EXAMPLE FLOW:
  1. Apply "trust" on Saturday:   consequence -30 (saturday)
  2. Caregiver undoes it:         consequence_reversal +30
  Ledger for that day: [-30, +30] = 0, penalty inactive

SEE ALSO:
  - store.go: Low-level persistence interface
  - consequence/engine.go: Toggle protocol writing through this ledger
*/
package generic

import (
	"context"

	"github.com/google/uuid"
)

// =============================================================================
// DEFAULT LEDGER - Store wrapper with validation
// =============================================================================

// DefaultLedger validates transactions before they reach the Store and
// assigns IDs. It satisfies Store itself so it can be layered.
type DefaultLedger struct {
	Store Store
}

var _ Store = (*DefaultLedger)(nil)

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

// Append validates tx, fills in the ID when absent and persists it.
func (l *DefaultLedger) Append(ctx context.Context, tx Transaction) error {
	if err := Validate(tx); err != nil {
		return err
	}
	if tx.ID == "" {
		tx.ID = TransactionID(uuid.NewString())
	}
	return l.Store.Append(ctx, tx)
}

func (l *DefaultLedger) Load(ctx context.Context, profileID ProfileID) ([]Transaction, error) {
	return l.Store.Load(ctx, profileID)
}

func (l *DefaultLedger) Subscribe(ctx context.Context, profileID ProfileID, fn Listener) (func(), error) {
	return l.Store.Subscribe(ctx, profileID, fn)
}

// Validate checks the write-side rules. Readers are more lenient: they skip
// malformed entries instead of rejecting them.
func Validate(tx Transaction) error {
	switch {
	case tx.ProfileID == "":
		return &ValidationError{Field: "profile_id", Reason: "is required"}
	case !tx.Type.Valid():
		return &ValidationError{Field: "type", Reason: "must be consequence or consequence_reversal"}
	case tx.ConsequenceType == "":
		return &ValidationError{Field: "consequence_type", Reason: "is required"}
	case !tx.Amount.IsSet():
		return &ValidationError{Field: "amount", Reason: "is required"}
	case tx.Timestamp.IsZero():
		return &ValidationError{Field: "timestamp", Reason: "is required"}
	case tx.Type == TxConsequence && !tx.Amount.IsNegative():
		return &ValidationError{Field: "amount", Reason: "must be negative for a consequence"}
	case tx.Type == TxReversal && !tx.Amount.IsPositive():
		return &ValidationError{Field: "amount", Reason: "must be positive for a reversal"}
	}
	return nil
}
