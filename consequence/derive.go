/*
derive.go - Daily penalty state folded from the transaction log

PURPOSE:
  Answers "is this penalty active today, and which session carries it?"
  from nothing but the transactions. The result is never stored; it is
  recomputed from every snapshot the feed delivers.

ALGORITHM:
  1. Keep consequence and reversal transactions of the requested type whose
     timestamp falls on the requested calendar day (profile time zone).
     Malformed transactions are skipped.
  2. Net impact = sum of amounts.
  3. Net >= 0: inactive. Zero is the resting state after an undo; a
     positive net is read the same way.
  4. Net < 0: active. The session is the TargetSession of the most recent
     consequence (reversals are skipped), scanning in arrival order.

ORDERING:
  Only the sum decides applied-ness, so it does not depend on delivery
  order. Attribution does: with two writers racing, arrival order may not
  match creation order. AttributionByTimestamp sorts by timestamp first,
  which narrows but cannot close that gap across devices with skewed
  clocks.
*/
package consequence

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/consequence-ledger/generic"
)

// Attribution selects the order used to find the attributing consequence.
type Attribution int

const (
	AttributionByArrival Attribution = iota
	AttributionByTimestamp
)

// ParseAttribution maps "arrival" / "timestamp" to an Attribution.
func ParseAttribution(s string) (Attribution, bool) {
	switch s {
	case "", "arrival":
		return AttributionByArrival, true
	case "timestamp":
		return AttributionByTimestamp, true
	}
	return AttributionByArrival, false
}

// DailyState is the derived state of one (type, day) bucket.
type DailyState struct {
	Applied bool
	Session generic.Session
	Net     decimal.Decimal
}

// DeriveAppliedSession returns the active session for the bucket and whether
// the penalty is applied at all. A general-balance penalty returns
// (GeneralBalance, true).
func DeriveAppliedSession(txs []generic.Transaction, consequenceType string, day time.Time, loc *time.Location) (generic.Session, bool) {
	s := DeriveState(txs, consequenceType, day, loc, AttributionByArrival)
	return s.Session, s.Applied
}

// DeriveState folds the bucket for (consequenceType, day).
func DeriveState(txs []generic.Transaction, consequenceType string, day time.Time, loc *time.Location, order Attribution) DailyState {
	bucket := dayBucket(txs, consequenceType, day, loc)

	net := decimal.Zero
	for _, tx := range bucket {
		net = net.Add(tx.Amount.Value)
	}
	if !net.IsNegative() {
		return DailyState{Net: net}
	}

	if order == AttributionByTimestamp {
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].Timestamp.Before(bucket[j].Timestamp)
		})
	}

	state := DailyState{Applied: true, Net: net}
	for i := len(bucket) - 1; i >= 0; i-- {
		if bucket[i].Type == generic.TxConsequence {
			state.Session = bucket[i].TargetSession
			break
		}
	}
	return state
}

// dayBucket returns a fresh slice so callers may reorder it.
func dayBucket(txs []generic.Transaction, consequenceType string, day time.Time, loc *time.Location) []generic.Transaction {
	var bucket []generic.Transaction
	for _, tx := range txs {
		if !tx.Type.Valid() || !tx.WellFormed() {
			continue
		}
		if tx.ConsequenceType != consequenceType {
			continue
		}
		if !generic.SameDay(tx.Timestamp, day, loc) {
			continue
		}
		bucket = append(bucket, tx)
	}
	return bucket
}
