package consequence_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/consequence-ledger/consequence"
	"github.com/warp/consequence-ledger/generic"
)

func TestSummarize_DayBalance(t *testing.T) {
	// GIVEN: trust on saturday, disorder on general balance,
	//        rules applied then undone, disrespect yesterday
	// WHEN: Summarizing today
	// THEN: Total -35, split by session, rules and yesterday excluded

	d := friday14()
	txs := []generic.Transaction{
		apply("trust", 30, consequence.Saturday, at(d, 9)),
		apply("disorder", 5, generic.GeneralBalance, at(d, 10)),
		apply("rules", 15, consequence.Friday, at(d, 11)),
		reverse("rules", 15, at(d, 12)),
		apply("disrespect", 15, consequence.Friday, at(d.AddDate(0, 0, -1), 12)),
	}

	s := consequence.Summarize(txs, consequence.DefaultDefinitions(), d, madrid, consequence.AttributionByArrival)

	assert.True(t, s.Total.Equal(decimal.NewFromInt(-35)))
	assert.True(t, s.BySession[consequence.Saturday].Equal(decimal.NewFromInt(-30)))
	assert.True(t, s.BySession[generic.GeneralBalance].Equal(decimal.NewFromInt(-5)))
	_, hasFriday := s.BySession[consequence.Friday]
	assert.False(t, hasFriday)

	require.Len(t, s.Active, 2)
	assert.Equal(t, "disorder", s.Active[0].Type, "definition order")
	assert.Equal(t, "trust", s.Active[1].Type)
	assert.Equal(t, "Confianza", s.Active[1].Label)
	assert.True(t, s.Day.Equal(d))
}

func TestSummarize_IncludesUndefinedTypesFromLog(t *testing.T) {
	// A custom type removed from the profile still shows up while active,
	// labelled from the transaction snapshot.
	d := friday14()
	custom := apply("custom_abc", 10, consequence.Friday, at(d, 9))
	custom.Label = "Pantallas"

	s := consequence.Summarize([]generic.Transaction{custom}, consequence.DefaultDefinitions(), d, madrid, consequence.AttributionByArrival)

	require.Len(t, s.Active, 1)
	assert.Equal(t, "custom_abc", s.Active[0].Type)
	assert.Equal(t, "Pantallas", s.Active[0].Label)
	assert.True(t, s.Total.Equal(decimal.NewFromInt(-10)))
}

func TestSummarize_EmptyLog(t *testing.T) {
	s := consequence.Summarize(nil, consequence.DefaultDefinitions(), friday14(), madrid, consequence.AttributionByArrival)

	assert.True(t, s.Total.IsZero())
	assert.Empty(t, s.Active)
	assert.Empty(t, s.BySession)
}
