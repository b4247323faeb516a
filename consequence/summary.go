/*
summary.go - Day-level penalty balance

PURPOSE:
  Rolls the per-type states of one calendar day into the numbers a
  caregiver sees: total penalty minutes for the day, how they split over
  the planned sessions, and which penalties are active.

BALANCE COMPONENTS:
  Total:     Sum of the net impact of every ACTIVE bucket (<= 0)
  BySession: The same sum grouped by attributed session; the general
             balance is keyed by generic.GeneralBalance
  Active:    One entry per active type, in definition order, then any
             types present in the log but no longer defined

Buckets with a positive net (not produced by the toggle protocol) are
inactive and contribute nothing.
*/
package consequence

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/consequence-ledger/generic"
)

// ActivePenalty is one active bucket of the day.
type ActivePenalty struct {
	Type    string
	Label   string
	Session generic.Session
	Net     decimal.Decimal
}

// Summary is the penalty balance of one calendar day.
type Summary struct {
	Day       time.Time
	Total     decimal.Decimal
	BySession map[generic.Session]decimal.Decimal
	Active    []ActivePenalty
}

// Summarize computes the day's balance over defs plus any other type found
// in the log for that day.
func Summarize(txs []generic.Transaction, defs []Definition, day time.Time, loc *time.Location, order Attribution) Summary {
	summary := Summary{
		Day:       generic.StartOfDay(day, loc),
		Total:     decimal.Zero,
		BySession: make(map[generic.Session]decimal.Decimal),
	}

	labels := make(map[string]string)
	var types []string
	seen := make(map[string]bool)
	for _, d := range defs {
		if !seen[d.Type] {
			seen[d.Type] = true
			types = append(types, d.Type)
			labels[d.Type] = d.Label
		}
	}
	for _, tx := range txs {
		if !tx.WellFormed() || !generic.SameDay(tx.Timestamp, day, loc) {
			continue
		}
		if !seen[tx.ConsequenceType] {
			seen[tx.ConsequenceType] = true
			types = append(types, tx.ConsequenceType)
		}
		if _, ok := labels[tx.ConsequenceType]; !ok && tx.Label != "" {
			labels[tx.ConsequenceType] = tx.Label
		}
	}

	for _, t := range types {
		state := DeriveState(txs, t, day, loc, order)
		if !state.Applied {
			continue
		}
		summary.Total = summary.Total.Add(state.Net)
		summary.BySession[state.Session] = summary.BySession[state.Session].Add(state.Net)
		summary.Active = append(summary.Active, ActivePenalty{
			Type:    t,
			Label:   labels[t],
			Session: state.Session,
			Net:     state.Net,
		})
	}
	return summary
}
