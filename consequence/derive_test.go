package consequence_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/consequence-ledger/consequence"
	"github.com/warp/consequence-ledger/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var madrid = time.FixedZone("CET", 3600)

// friday14 is Friday 2025-03-14, local midnight.
func friday14() time.Time {
	return time.Date(2025, time.March, 14, 0, 0, 0, 0, madrid)
}

func at(day time.Time, hour int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, madrid)
}

func minutes(n int) generic.Amount {
	return generic.NewAmountFromInt(n, generic.UnitMinutes)
}

func apply(ctype string, amount int, session generic.Session, ts time.Time) generic.Transaction {
	return generic.Transaction{
		ProfileID:       "kid-1",
		Type:            generic.TxConsequence,
		ConsequenceType: ctype,
		Amount:          minutes(-amount),
		TargetSession:   session,
		Timestamp:       ts,
	}
}

func reverse(ctype string, amount int, ts time.Time) generic.Transaction {
	return generic.Transaction{
		ProfileID:       "kid-1",
		Type:            generic.TxReversal,
		ConsequenceType: ctype,
		Amount:          minutes(amount),
		Timestamp:       ts,
	}
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestDerive_GeneralBalancePenaltyIsApplied(t *testing.T) {
	// GIVEN: One disrespect penalty on the general balance
	// WHEN: Deriving the state for that day
	// THEN: It is applied with no session

	d := friday14()
	txs := []generic.Transaction{apply("disrespect", 15, generic.GeneralBalance, at(d, 10))}

	session, applied := consequence.DeriveAppliedSession(txs, "disrespect", d, madrid)

	assert.True(t, applied)
	assert.Equal(t, generic.GeneralBalance, session)
}

func TestDerive_ReversedPenaltyIsInactive(t *testing.T) {
	d := friday14()
	txs := []generic.Transaction{
		apply("trust", 30, consequence.Saturday, at(d, 9)),
		reverse("trust", 30, at(d, 11)),
	}

	state := consequence.DeriveState(txs, "trust", d, madrid, consequence.AttributionByArrival)

	assert.False(t, state.Applied)
	assert.True(t, state.Net.IsZero())
	assert.Equal(t, generic.GeneralBalance, state.Session)
}

func TestDerive_SwitchedPenaltyUsesLatestConsequence(t *testing.T) {
	// GIVEN: rules applied on monday, undone, re-applied on tuesday
	// THEN: Active on tuesday, net -15

	d := friday14()
	txs := []generic.Transaction{
		apply("rules", 15, consequence.Monday, at(d, 9)),
		reverse("rules", 15, at(d, 9)),
		apply("rules", 15, consequence.Tuesday, at(d, 9)),
	}

	state := consequence.DeriveState(txs, "rules", d, madrid, consequence.AttributionByArrival)

	assert.True(t, state.Applied)
	assert.Equal(t, consequence.Tuesday, state.Session)
	assert.True(t, state.Net.Equal(decimal.NewFromInt(-15)))
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestDerive_Idempotent(t *testing.T) {
	d := friday14()
	txs := []generic.Transaction{
		apply("trust", 30, consequence.Friday, at(d, 8)),
		reverse("trust", 30, at(d, 9)),
		apply("trust", 30, consequence.Sunday, at(d, 10)),
		apply("disorder", 5, generic.GeneralBalance, at(d, 11)),
	}
	before := append([]generic.Transaction(nil), txs...)

	first := consequence.DeriveState(txs, "trust", d, madrid, consequence.AttributionByTimestamp)
	second := consequence.DeriveState(txs, "trust", d, madrid, consequence.AttributionByTimestamp)

	assert.Equal(t, first, second)
	assert.Equal(t, before, txs, "derivation must not reorder the caller's slice")
}

func TestDerive_DayIsolation(t *testing.T) {
	// GIVEN: A penalty on day D
	// THEN: D-1 and D+1 are unaffected

	d := friday14()
	txs := []generic.Transaction{apply("disrespect", 15, consequence.Friday, at(d, 12))}

	_, applied := consequence.DeriveAppliedSession(txs, "disrespect", d, madrid)
	assert.True(t, applied)

	_, applied = consequence.DeriveAppliedSession(txs, "disrespect", d.AddDate(0, 0, -1), madrid)
	assert.False(t, applied)

	_, applied = consequence.DeriveAppliedSession(txs, "disrespect", d.AddDate(0, 0, 1), madrid)
	assert.False(t, applied)
}

func TestDerive_UsesProfileDayBoundary(t *testing.T) {
	// GIVEN: A penalty at 00:30 local time, which is still the previous day in UTC
	// THEN: It belongs to the local day, not the UTC day

	d := friday14()
	txs := []generic.Transaction{apply("disorder", 5, generic.GeneralBalance, d.Add(30*time.Minute))}

	_, applied := consequence.DeriveAppliedSession(txs, "disorder", d, madrid)
	assert.True(t, applied)

	_, applied = consequence.DeriveAppliedSession(txs, "disorder", d.AddDate(0, 0, -1), madrid)
	assert.False(t, applied)

	utcDay := time.Date(2025, time.March, 13, 12, 0, 0, 0, time.UTC)
	_, applied = consequence.DeriveAppliedSession(txs, "disorder", utcDay, time.UTC)
	assert.True(t, applied, "in UTC the same instant is on the 13th")
}

func TestDerive_OtherTypesIgnored(t *testing.T) {
	d := friday14()
	txs := []generic.Transaction{apply("trust", 30, consequence.Friday, at(d, 8))}

	_, applied := consequence.DeriveAppliedSession(txs, "rules", d, madrid)
	assert.False(t, applied)
}

func TestDerive_MalformedTransactionsSkipped(t *testing.T) {
	// GIVEN: A valid penalty plus entries missing type, amount or timestamp
	// THEN: The fold ignores them instead of failing

	d := friday14()
	missingType := apply("", 15, consequence.Friday, at(d, 8))
	missingAmount := apply("trust", 30, consequence.Sunday, at(d, 9))
	missingAmount.Amount = generic.Amount{}
	missingTime := apply("trust", 30, consequence.Monday, time.Time{})
	unknownKind := apply("trust", 30, consequence.Monday, at(d, 9))
	unknownKind.Type = "grant"

	txs := []generic.Transaction{
		apply("trust", 30, consequence.Friday, at(d, 7)),
		missingType, missingAmount, missingTime, unknownKind,
	}

	state := consequence.DeriveState(txs, "trust", d, madrid, consequence.AttributionByArrival)

	assert.True(t, state.Applied)
	assert.Equal(t, consequence.Friday, state.Session)
	assert.True(t, state.Net.Equal(decimal.NewFromInt(-30)))
}

func TestDerive_PositiveNetIsInactive(t *testing.T) {
	d := friday14()
	txs := []generic.Transaction{reverse("rules", 15, at(d, 8))}

	state := consequence.DeriveState(txs, "rules", d, madrid, consequence.AttributionByArrival)

	assert.False(t, state.Applied)
	assert.True(t, state.Net.IsPositive())
}

func TestDerive_MismatchedReversalLeavesReducedPenalty(t *testing.T) {
	// A reversal with the wrong magnitude is not validated: the remainder
	// still reads as an active penalty.
	d := friday14()
	txs := []generic.Transaction{
		apply("trust", 30, consequence.Saturday, at(d, 8)),
		reverse("trust", 20, at(d, 9)),
	}

	state := consequence.DeriveState(txs, "trust", d, madrid, consequence.AttributionByArrival)

	assert.True(t, state.Applied)
	assert.True(t, state.Net.Equal(decimal.NewFromInt(-10)))
	assert.Equal(t, consequence.Saturday, state.Session)
}

// =============================================================================
// ATTRIBUTION ORDER
// =============================================================================

func TestDerive_AttributionOrder(t *testing.T) {
	// GIVEN: Two writers raced; the feed delivered the later write first
	//   tuesday consequence created at 10:00 arrives before
	//   monday consequence created at 09:00, plus one reversal
	// WHEN: Attribution uses arrival order vs timestamp order
	// THEN: Arrival picks monday (last in feed), timestamp picks tuesday

	d := friday14()
	txs := []generic.Transaction{
		apply("rules", 15, consequence.Tuesday, at(d, 10)),
		apply("rules", 15, consequence.Monday, at(d, 9)),
		reverse("rules", 15, at(d, 11)),
	}

	byArrival := consequence.DeriveState(txs, "rules", d, madrid, consequence.AttributionByArrival)
	byTime := consequence.DeriveState(txs, "rules", d, madrid, consequence.AttributionByTimestamp)

	require.True(t, byArrival.Applied)
	require.True(t, byTime.Applied)
	assert.Equal(t, consequence.Monday, byArrival.Session)
	assert.Equal(t, consequence.Tuesday, byTime.Session)
	assert.True(t, byArrival.Net.Equal(byTime.Net), "net impact does not depend on order")
}

func TestParseAttribution(t *testing.T) {
	a, ok := consequence.ParseAttribution("timestamp")
	assert.True(t, ok)
	assert.Equal(t, consequence.AttributionByTimestamp, a)

	a, ok = consequence.ParseAttribution("")
	assert.True(t, ok)
	assert.Equal(t, consequence.AttributionByArrival, a)

	_, ok = consequence.ParseAttribution("random")
	assert.False(t, ok)
}
