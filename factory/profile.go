/*
Package factory provides JSON/TOML to Go profile conversion.

PURPOSE:
  Converts profile definitions (penalty definitions, weekly plan, time zone)
  into consequence.Profile values. The API receives JSON, the operator CLI
  reads TOML files, and the sqlite profiles table stores the JSON form.

JSON SCHEMA:
  {
    "id": "kid-1",
    "family_id": "fam-1",
    "name": "Lucía",
    "timezone": "Europe/Madrid",
    "consequences": [
      {"type": "trust", "label": "Confianza", "description": "Mentiras",
       "amount": 30, "kind": "shield"}
    ],
    "plan": {"friday": 2, "saturday": 3}
  }

  "plan" is an object whose key order is significant: the first day with
  positive hours is the default session for new penalties.

TOML SCHEMA:
  id = "kid-1"
  family_id = "fam-1"
  name = "Lucía"
  timezone = "Europe/Madrid"

  [[consequences]]
  type = "trust"
  label = "Confianza"
  amount = 30
  kind = "shield"

  [[plan]]          # array of tables, so order survives
  day = "friday"
  hours = 2

VALIDATION:
  - Consequence types are unique; an empty type gets a custom_ tag
  - Amounts are positive minutes
  - Kind is one of alert/home/shield/clock, or a legacy icon name
  - Plan days are day-of-week keys, not repeated, hours >= 0
  - Time zone is an IANA name; empty means the factory default

USAGE:
  factory := NewProfileFactory(time.UTC)
  profile, err := factory.ParseProfile(jsonString)

SEE ALSO:
  - consequence/types.go: Profile, Definition, WeeklyPlan
  - store/sqlite/sqlite.go: ProfileRecord.ConfigJSON
*/
package factory

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/consequence-ledger/consequence"
	"github.com/warp/consequence-ledger/generic"
)

// ErrInvalidProfile is returned for profile configurations that fail
// validation.
var ErrInvalidProfile = errors.New("invalid profile")

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ProfileJSON is the JSON representation of a profile.
type ProfileJSON struct {
	ID           string                 `json:"id"`
	FamilyID     string                 `json:"family_id"`
	Name         string                 `json:"name"`
	TimeZone     string                 `json:"timezone,omitempty"`
	Consequences []DefinitionJSON       `json:"consequences,omitempty"`
	Plan         consequence.WeeklyPlan `json:"plan,omitempty"`
}

// DefinitionJSON represents one penalty definition.
type DefinitionJSON struct {
	Type        string          `json:"type"`
	Label       string          `json:"label"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        string          `json:"kind,omitempty"`
	Icon        string          `json:"icon,omitempty"` // older payloads: "Shield", "Home", ...
}

// profileTOML mirrors ProfileJSON for TOML files. The plan is an array of
// tables because TOML tables do not keep key order.
type profileTOML struct {
	ID           string           `toml:"id"`
	FamilyID     string           `toml:"family_id"`
	Name         string           `toml:"name"`
	TimeZone     string           `toml:"timezone"`
	Consequences []definitionTOML `toml:"consequences"`
	Plan         []planEntryTOML  `toml:"plan"`
}

type definitionTOML struct {
	Type        string  `toml:"type"`
	Label       string  `toml:"label"`
	Description string  `toml:"description"`
	Amount      float64 `toml:"amount"`
	Kind        string  `toml:"kind"`
	Icon        string  `toml:"icon"`
}

type planEntryTOML struct {
	Day   string  `toml:"day"`
	Hours float64 `toml:"hours"`
}

// =============================================================================
// PROFILE FACTORY
// =============================================================================

// ProfileFactory converts profile payloads to consequence.Profile.
type ProfileFactory struct {
	// DefaultLocation is used when a profile has no time zone.
	DefaultLocation *time.Location
}

// NewProfileFactory creates a new profile factory.
func NewProfileFactory(defaultLocation *time.Location) *ProfileFactory {
	if defaultLocation == nil {
		defaultLocation = time.UTC
	}
	return &ProfileFactory{DefaultLocation: defaultLocation}
}

// ParseProfile parses a JSON string into a Profile.
func (f *ProfileFactory) ParseProfile(jsonStr string) (consequence.Profile, error) {
	var pj ProfileJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return consequence.Profile{}, fmt.Errorf("failed to parse profile JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// DecodeTOML reads a TOML profile file into its JSON form.
func (f *ProfileFactory) DecodeTOML(data []byte) (ProfileJSON, error) {
	var pt profileTOML
	if _, err := toml.Decode(string(data), &pt); err != nil {
		return ProfileJSON{}, fmt.Errorf("failed to parse profile TOML: %w", err)
	}

	pj := ProfileJSON{
		ID:       pt.ID,
		FamilyID: pt.FamilyID,
		Name:     pt.Name,
		TimeZone: pt.TimeZone,
	}
	for _, c := range pt.Consequences {
		pj.Consequences = append(pj.Consequences, DefinitionJSON{
			Type:        c.Type,
			Label:       c.Label,
			Description: c.Description,
			Amount:      decimal.NewFromFloat(c.Amount),
			Kind:        c.Kind,
			Icon:        c.Icon,
		})
	}
	for _, e := range pt.Plan {
		pj.Plan = append(pj.Plan, consequence.PlanEntry{
			Day:   generic.Session(e.Day),
			Hours: decimal.NewFromFloat(e.Hours),
		})
	}
	return pj, nil
}

// ParseProfileTOML parses a TOML document into a Profile.
func (f *ProfileFactory) ParseProfileTOML(data []byte) (consequence.Profile, error) {
	pj, err := f.DecodeTOML(data)
	if err != nil {
		return consequence.Profile{}, err
	}
	return f.FromJSON(pj)
}

// FromJSON validates pj and converts it to a Profile.
func (f *ProfileFactory) FromJSON(pj ProfileJSON) (consequence.Profile, error) {
	if strings.TrimSpace(pj.Name) == "" {
		return consequence.Profile{}, invalid("name is required")
	}

	loc := f.DefaultLocation
	if pj.TimeZone != "" {
		l, err := time.LoadLocation(pj.TimeZone)
		if err != nil {
			return consequence.Profile{}, invalid("unknown timezone %q", pj.TimeZone)
		}
		loc = l
	}

	defs, err := parseDefinitions(pj.Consequences)
	if err != nil {
		return consequence.Profile{}, err
	}

	plan, err := parsePlan(pj.Plan)
	if err != nil {
		return consequence.Profile{}, err
	}

	return consequence.Profile{
		ID:          generic.ProfileID(pj.ID),
		FamilyID:    generic.FamilyID(pj.FamilyID),
		Name:        pj.Name,
		Definitions: defs,
		Plan:        plan,
		Location:    loc,
	}, nil
}

// ToJSON converts a Profile back to its JSON form. Profiles without their
// own definitions serialize without a consequences list.
func (f *ProfileFactory) ToJSON(p consequence.Profile) ProfileJSON {
	pj := ProfileJSON{
		ID:       string(p.ID),
		FamilyID: string(p.FamilyID),
		Name:     p.Name,
		Plan:     p.Plan,
	}
	// Stored even when it equals the default: readers may be configured
	// with a different default zone.
	if p.Location != nil {
		pj.TimeZone = p.Location.String()
	}
	for _, d := range p.Definitions {
		pj.Consequences = append(pj.Consequences, DefinitionJSON{
			Type:        d.Type,
			Label:       d.Label,
			Description: d.Description,
			Amount:      d.Amount,
			Kind:        string(d.Kind),
		})
	}
	return pj
}

// Encode renders a Profile as the JSON stored in the profiles table.
func (f *ProfileFactory) Encode(p consequence.Profile) (string, error) {
	data, err := json.Marshal(f.ToJSON(p))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseDefinitions(in []DefinitionJSON) ([]consequence.Definition, error) {
	seen := make(map[string]bool, len(in))
	defs := make([]consequence.Definition, 0, len(in))

	for i, dj := range in {
		if strings.TrimSpace(dj.Label) == "" {
			return nil, invalid("consequence %d: label is required", i)
		}
		if !dj.Amount.IsPositive() {
			return nil, invalid("consequence %q: amount must be positive", dj.Label)
		}

		ctype := strings.TrimSpace(dj.Type)
		if ctype == "" {
			ctype = NewCustomType()
		}
		if seen[ctype] {
			return nil, invalid("duplicate consequence type %q", ctype)
		}
		seen[ctype] = true

		kind, err := parseKind(dj.Kind, dj.Icon)
		if err != nil {
			return nil, err
		}

		defs = append(defs, consequence.Definition{
			Type:        ctype,
			Label:       dj.Label,
			Description: dj.Description,
			Amount:      dj.Amount,
			Kind:        kind,
		})
	}
	if len(defs) == 0 {
		return nil, nil
	}
	return defs, nil
}

func parseKind(kind, icon string) (consequence.Kind, error) {
	if kind != "" {
		k := consequence.Kind(strings.ToLower(kind))
		if !k.Valid() {
			return "", invalid("unknown kind %q", kind)
		}
		return k, nil
	}
	if icon != "" {
		k, ok := consequence.KindForIcon(icon)
		if !ok {
			return "", invalid("unknown icon %q", icon)
		}
		return k, nil
	}
	return consequence.KindAlert, nil
}

func parsePlan(in consequence.WeeklyPlan) (consequence.WeeklyPlan, error) {
	seen := make(map[generic.Session]bool, len(in))
	for _, e := range in {
		if !consequence.ValidSession(e.Day) {
			return nil, invalid("unknown plan day %q", e.Day)
		}
		if seen[e.Day] {
			return nil, invalid("plan day %q listed twice", e.Day)
		}
		seen[e.Day] = true
		if e.Hours.IsNegative() {
			return nil, invalid("plan day %q: hours must not be negative", e.Day)
		}
	}
	return in, nil
}

// NewCustomType returns a fresh tag for a caregiver-defined consequence.
func NewCustomType() string {
	return "custom_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidProfile, fmt.Sprintf(format, args...))
}
