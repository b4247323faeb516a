/*
Package generic provides the append-only ledger primitives.

PURPOSE:
  This package contains domain-agnostic types for an append-only log of
  signed amounts per profile. The consequence package builds penalty
  semantics on top of it; this package only knows how to represent,
  validate, store and broadcast transactions.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 15 minutes)
  - Transaction: An immutable ledger entry
  - Session: A day-of-week slot a transaction is attributed to
  - Profile/Family/Transaction IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified, only reversed
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for IDs prevents mixing profile/family IDs
  4. Totality: Malformed entries are representable so readers can skip them

USAGE:
  tx := generic.Transaction{
      ProfileID:       "kid-1",
      Type:            generic.TxConsequence,
      ConsequenceType: "disrespect",
      Amount:          generic.NewAmountFromInt(-15, generic.UnitMinutes),
      TargetSession:   "friday",
      Timestamp:       time.Now(),
  }

SEE ALSO:
  - ledger.go: Validating ledger over a Store
  - store.go: Persistence and subscription interface
  - hub.go: Snapshot broadcasting shared by store implementations
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

// Amount is a signed quantity. The zero value has no unit and is treated as
// "missing" by readers of the log.
type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const UnitMinutes Unit = "minutes"

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

func NewAmountFromDecimal(value decimal.Decimal, unit Unit) Amount {
	return Amount{Value: value, Unit: unit}
}

// IsSet reports whether the amount carries a unit. Amounts decoded from
// incomplete records are left unset.
func (a Amount) IsSet() bool { return a.Unit != "" }

func (a Amount) Add(b Amount) Amount { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Neg() Amount         { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) Abs() Amount         { return Amount{Value: a.Value.Abs(), Unit: a.Unit} }
func (a Amount) IsNegative() bool    { return a.Value.IsNegative() }
func (a Amount) IsZero() bool        { return a.Value.IsZero() }
func (a Amount) IsPositive() bool    { return a.Value.IsPositive() }
func (a Amount) String() string      { return a.Value.String() + " " + string(a.Unit) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProfileID string
type FamilyID string
type TransactionID string

// Session identifies a day-of-week slot in a weekly plan ("friday").
// GeneralBalance is the null session: not tied to any planned day.
type Session string

const GeneralBalance Session = ""

func (s Session) IsGeneral() bool { return s == GeneralBalance }

// =============================================================================
// TRANSACTION - Immutable ledger entry
// =============================================================================

type TransactionType string

const (
	TxConsequence TransactionType = "consequence"          // Penalty applied (negative amount)
	TxReversal    TransactionType = "consequence_reversal" // Cancels a prior penalty (positive amount)
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TxConsequence || t == TxReversal
}

type Transaction struct {
	ID              TransactionID
	ProfileID       ProfileID
	Type            TransactionType
	ConsequenceType string
	Amount          Amount
	TargetSession   Session
	Timestamp       time.Time

	// Label is a display snapshot taken at write time so history stays
	// readable after the definition is edited.
	Label string

	// Audit fields
	CreatedBy string

	// Seq is the arrival sequence assigned by the store. Informational only;
	// readers must not rely on it being contiguous.
	Seq int64
}

// WellFormed reports whether the transaction carries everything a fold
// needs. Malformed entries are skipped, never fatal.
func (tx Transaction) WellFormed() bool {
	return tx.ConsequenceType != "" && tx.Amount.IsSet() && !tx.Timestamp.IsZero()
}
