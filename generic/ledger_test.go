package generic_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/warp/consequence-ledger/generic"
	"github.com/warp/consequence-ledger/generic/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func minutes(n int) generic.Amount {
	return generic.NewAmountFromInt(n, generic.UnitMinutes)
}

func validConsequence() generic.Transaction {
	return generic.Transaction{
		ProfileID:       "kid-1",
		Type:            generic.TxConsequence,
		ConsequenceType: "trust",
		Amount:          minutes(-30),
		TargetSession:   "saturday",
		Timestamp:       time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidate_RejectsBadTransactions(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*generic.Transaction)
		field  string
	}{
		{"missing profile", func(tx *generic.Transaction) { tx.ProfileID = "" }, "profile_id"},
		{"unknown type", func(tx *generic.Transaction) { tx.Type = "grant" }, "type"},
		{"missing consequence type", func(tx *generic.Transaction) { tx.ConsequenceType = "" }, "consequence_type"},
		{"missing amount", func(tx *generic.Transaction) { tx.Amount = generic.Amount{} }, "amount"},
		{"missing timestamp", func(tx *generic.Transaction) { tx.Timestamp = time.Time{} }, "timestamp"},
		{"positive consequence", func(tx *generic.Transaction) { tx.Amount = minutes(30) }, "amount"},
		{"negative reversal", func(tx *generic.Transaction) { tx.Type = generic.TxReversal }, "amount"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := validConsequence()
			tc.mutate(&tx)

			err := generic.Validate(tx)
			var verr *generic.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Errorf("Expected field %s, got %s", tc.field, verr.Field)
			}
			if !errors.Is(err, generic.ErrInvalidTransaction) || !generic.IsClientError(err) {
				t.Errorf("Expected ErrInvalidTransaction, got %v", err)
			}
		})
	}
}

func TestValidate_AcceptsGeneralBalance(t *testing.T) {
	tx := validConsequence()
	tx.TargetSession = generic.GeneralBalance

	if err := generic.Validate(tx); err != nil {
		t.Errorf("General balance consequence should be valid: %v", err)
	}
}

// =============================================================================
// LEDGER
// =============================================================================

func TestLedger_AssignsIDs(t *testing.T) {
	// GIVEN: A transaction without ID
	// WHEN: Appended through the ledger
	// THEN: The stored copy has a fresh ID

	mem := store.NewMemory()
	ledger := generic.NewLedger(mem)
	ctx := context.Background()

	if err := ledger.Append(ctx, validConsequence()); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := ledger.Append(ctx, validConsequence()); err != nil {
		t.Fatalf("Second append failed: %v", err)
	}

	txs, err := ledger.Load(ctx, "kid-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(txs))
	}
	if txs[0].ID == "" || txs[0].ID == txs[1].ID {
		t.Errorf("Expected distinct IDs, got %q and %q", txs[0].ID, txs[1].ID)
	}
	if txs[0].Seq >= txs[1].Seq {
		t.Errorf("Expected increasing seq, got %d then %d", txs[0].Seq, txs[1].Seq)
	}
}

func TestLedger_RejectsBeforeStore(t *testing.T) {
	mem := store.NewMemory()
	ledger := generic.NewLedger(mem)
	tx := validConsequence()
	tx.Amount = minutes(15)

	if err := ledger.Append(context.Background(), tx); err == nil {
		t.Fatal("Expected validation error")
	}
	txs, _ := mem.Load(context.Background(), "kid-1")
	if len(txs) != 0 {
		t.Errorf("Rejected transaction reached the store")
	}
}

func TestLedger_DuplicateID(t *testing.T) {
	ledger := generic.NewLedger(store.NewMemory())
	tx := validConsequence()
	tx.ID = "tx-1"

	if err := ledger.Append(context.Background(), tx); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	err := ledger.Append(context.Background(), tx)
	if !errors.Is(err, generic.ErrDuplicateTransaction) {
		t.Errorf("Expected ErrDuplicateTransaction, got %v", err)
	}
}

// =============================================================================
// AMOUNTS
// =============================================================================

func TestAmount_Arithmetic(t *testing.T) {
	a := minutes(-15)

	if !a.Neg().IsPositive() || !a.Abs().Value.Equal(minutes(15).Value) {
		t.Errorf("Neg/Abs wrong for %s", a)
	}
	if !a.Add(minutes(15)).IsZero() {
		t.Errorf("Expected -15 + 15 = 0")
	}
	if (generic.Amount{}).IsSet() {
		t.Errorf("Zero Amount must read as unset")
	}
	if a.String() != "-15 minutes" {
		t.Errorf("Unexpected String(): %s", a.String())
	}
}

func TestTransaction_WellFormed(t *testing.T) {
	tx := validConsequence()
	if !tx.WellFormed() {
		t.Errorf("Expected well-formed")
	}
	tx.Timestamp = time.Time{}
	if tx.WellFormed() {
		t.Errorf("Missing timestamp must be malformed")
	}
}
