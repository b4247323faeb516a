/*
Package consequence implements the consequence ledger: penalty definitions,
the per-day derivation of penalty state, and the toggle protocol that
applies, undoes or re-targets a penalty by appending transactions.

KEY DIFFERENCES FROM A PLAIN LEDGER:
  1. Day buckets: state is derived per (consequence type, calendar day) in
     the profile's local day boundary.
  2. Session attribution: an active penalty is attributed to one planned
     day of the weekly plan, or to the general balance.
  3. Toggle, not edit: undo and switch are expressed as reversals.

DEFAULT CONSEQUENCES:
  disrespect  15 min  "Falta de respeto"
  disorder     5 min  "Desorden"
  trust       30 min  "Confianza"
  rules       15 min  "Reglas Básicas"

SEE ALSO:
  - derive.go: Pure derivation of daily state
  - engine.go: Toggle state machine
  - subscription.go: Live feed adapter
*/
package consequence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/consequence-ledger/generic"
)

// =============================================================================
// PRESENTATION KINDS
// =============================================================================

// Kind is the closed set of presentation variants a definition can use.
type Kind string

const (
	KindAlert  Kind = "alert"
	KindHome   Kind = "home"
	KindShield Kind = "shield"
	KindClock  Kind = "clock"
)

// Presentation is what a client needs to render a kind.
type Presentation struct {
	Icon  string
	Color string
}

var presentations = map[Kind]Presentation{
	KindAlert:  {Icon: "AlertTriangle", Color: "danger"},
	KindHome:   {Icon: "Home", Color: "warning"},
	KindShield: {Icon: "Shield", Color: "danger"},
	KindClock:  {Icon: "Clock", Color: "danger"},
}

// Kinds lists every presentation kind in display order.
func Kinds() []Kind {
	return []Kind{KindAlert, KindHome, KindShield, KindClock}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	_, ok := presentations[k]
	return ok
}

// Presentation resolves k; unknown kinds render as alerts.
func (k Kind) Presentation() Presentation {
	if p, ok := presentations[k]; ok {
		return p
	}
	return presentations[KindAlert]
}

// KindForIcon maps the icon names used by older profile payloads back to a
// kind ("Shield" -> KindShield).
func KindForIcon(icon string) (Kind, bool) {
	for k, p := range presentations {
		if p.Icon == icon {
			return k, true
		}
	}
	return "", false
}

// =============================================================================
// DEFINITIONS
// =============================================================================

// Definition describes one penalty a caregiver can apply. Amount is the
// positive magnitude in minutes.
type Definition struct {
	Type        string
	Label       string
	Description string
	Amount      decimal.Decimal
	Kind        Kind
}

// Penalty returns the signed amount of a consequence transaction.
func (d Definition) Penalty() generic.Amount {
	return generic.NewAmountFromDecimal(d.Amount.Abs().Neg(), generic.UnitMinutes)
}

// Refund returns the signed amount of the matching reversal.
func (d Definition) Refund() generic.Amount {
	return generic.NewAmountFromDecimal(d.Amount.Abs(), generic.UnitMinutes)
}

// DefaultDefinitions returns the built-in set used when a profile defines none.
func DefaultDefinitions() []Definition {
	return []Definition{
		{Type: "disrespect", Label: "Falta de respeto", Description: "Gritos/Groserías", Amount: decimal.NewFromInt(15), Kind: KindAlert},
		{Type: "disorder", Label: "Desorden", Description: "Zonas comunes", Amount: decimal.NewFromInt(5), Kind: KindHome},
		{Type: "trust", Label: "Confianza", Description: "Mentiras", Amount: decimal.NewFromInt(30), Kind: KindShield},
		{Type: "rules", Label: "Reglas Básicas", Description: "Saltarse horarios", Amount: decimal.NewFromInt(15), Kind: KindClock},
	}
}

// =============================================================================
// SESSIONS & WEEKLY PLAN
// =============================================================================

const (
	Monday    generic.Session = "monday"
	Tuesday   generic.Session = "tuesday"
	Wednesday generic.Session = "wednesday"
	Thursday  generic.Session = "thursday"
	Friday    generic.Session = "friday"
	Saturday  generic.Session = "saturday"
	Sunday    generic.Session = "sunday"
)

var dayLabels = map[generic.Session]string{
	Friday: "Vie", Saturday: "Sáb", Sunday: "Dom", Monday: "Lun",
	Tuesday: "Mar", Wednesday: "Mié", Thursday: "Jue",
}

// ValidSession reports whether s is a day-of-week key.
func ValidSession(s generic.Session) bool {
	_, ok := dayLabels[s]
	return ok
}

// DayLabel returns the short display label of a session, or "Saldo General"
// for the general balance.
func DayLabel(s generic.Session) string {
	if s.IsGeneral() {
		return "Saldo General"
	}
	if l, ok := dayLabels[s]; ok {
		return l
	}
	return string(s)
}

// PlanEntry is one day of the weekly plan.
type PlanEntry struct {
	Day   generic.Session
	Hours decimal.Decimal
}

// WeeklyPlan lists planned hours per day in the plan's own order. The order
// matters: the first planned day is the default session for new penalties.
type WeeklyPlan []PlanEntry

// PlannedDays returns the days with positive hours, in plan order.
func (p WeeklyPlan) PlannedDays() []generic.Session {
	var days []generic.Session
	for _, e := range p {
		if e.Hours.IsPositive() {
			days = append(days, e.Day)
		}
	}
	return days
}

// DefaultSession is the session a penalty is attributed to when the
// caregiver did not pick one: the first planned day, else general balance.
func (p WeeklyPlan) DefaultSession() generic.Session {
	if days := p.PlannedDays(); len(days) > 0 {
		return days[0]
	}
	return generic.GeneralBalance
}

// Hours returns the planned hours for day (zero when absent).
func (p WeeklyPlan) Hours(day generic.Session) decimal.Decimal {
	for _, e := range p {
		if e.Day == day {
			return e.Hours
		}
	}
	return decimal.Zero
}

// MarshalJSON renders the plan as an object, keys in plan order.
func (p WeeklyPlan) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(e.Day))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(e.Hours.String())
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a {"day": hours} object keeping key order, which a
// map would lose.
func (p *WeeklyPlan) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("weekly plan: expected object, got %v", tok)
	}
	plan := WeeklyPlan{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var hours decimal.Decimal
		if err := dec.Decode(&hours); err != nil {
			return fmt.Errorf("weekly plan %q: %w", key, err)
		}
		plan = append(plan, PlanEntry{Day: generic.Session(key), Hours: hours})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = plan
	return nil
}

// =============================================================================
// PROFILE
// =============================================================================

// Profile is the read-only configuration the engine needs for one child.
type Profile struct {
	ID          generic.ProfileID
	FamilyID    generic.FamilyID
	Name        string
	Definitions []Definition
	Plan        WeeklyPlan
	Location    *time.Location
}

// EffectiveDefinitions returns the profile's definitions, or the defaults
// when it has none.
func (p Profile) EffectiveDefinitions() []Definition {
	if len(p.Definitions) == 0 {
		return DefaultDefinitions()
	}
	return p.Definitions
}

// Definition looks up a definition by type tag.
func (p Profile) Definition(consequenceType string) (Definition, bool) {
	for _, d := range p.EffectiveDefinitions() {
		if d.Type == consequenceType {
			return d, true
		}
	}
	return Definition{}, false
}

// Loc returns the profile's day boundary, UTC when unset.
func (p Profile) Loc() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}
