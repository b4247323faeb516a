/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Profiles:
    ProfileDTO, DefinitionDTO, SessionDTO

  Daily state:
    DayStateDTO, ConsequenceStateDTO, ToggleRequest, ToggleResponse

  Balance:
    SummaryDTO, SessionTotalDTO, ActivePenaltyDTO

  Transactions:
    TransactionDTO

VALIDATION:
  Validation is done in handlers and the factory, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/profile.go: ProfileJSON request body
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/consequence-ledger/consequence"
	"github.com/warp/consequence-ledger/generic"
)

// =============================================================================
// PROFILES
// =============================================================================

// ProfileDTO represents a profile in API responses.
type ProfileDTO struct {
	ID           string                 `json:"id"`
	FamilyID     string                 `json:"family_id"`
	Name         string                 `json:"name"`
	TimeZone     string                 `json:"timezone"`
	Consequences []DefinitionDTO        `json:"consequences"`
	Plan         consequence.WeeklyPlan `json:"plan"`
	Sessions     []SessionDTO           `json:"planned_sessions"`
	CreatedAt    *time.Time             `json:"created_at,omitempty"`
	UpdatedAt    *time.Time             `json:"updated_at,omitempty"`
}

// DefinitionDTO is a penalty definition with its presentation resolved.
type DefinitionDTO struct {
	Type        string          `json:"type"`
	Label       string          `json:"label"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        string          `json:"kind"`
	Icon        string          `json:"icon"`
	Color       string          `json:"color"`
}

// SessionDTO is one planned day with its display label.
type SessionDTO struct {
	Key   string          `json:"key"`
	Label string          `json:"label"`
	Hours decimal.Decimal `json:"hours"`
}

// KindDTO lists a presentation variant clients can offer in forms.
type KindDTO struct {
	Kind  string `json:"kind"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// =============================================================================
// DAILY STATE
// =============================================================================

// ConsequenceStateDTO is one definition with its state on the requested day.
type ConsequenceStateDTO struct {
	DefinitionDTO
	Applied      bool            `json:"applied"`
	Session      string          `json:"session,omitempty"` // empty: general balance
	SessionLabel string          `json:"session_label,omitempty"`
	Net          decimal.Decimal `json:"net"`
	Toggling     bool            `json:"toggling"`
}

// DayStateDTO is the full consequence panel for a profile and day.
type DayStateDTO struct {
	ProfileID    string                `json:"profile_id"`
	Date         string                `json:"date"`
	Sessions     []SessionDTO          `json:"planned_sessions"`
	Consequences []ConsequenceStateDTO `json:"consequences"`
}

// ToggleRequest is the body of a checkbox or session pill click. An empty
// session is the checkbox.
type ToggleRequest struct {
	Date    string `json:"date,omitempty"`
	Session string `json:"session,omitempty"`
}

// ToggleResponse reports what the click did and the resulting state.
type ToggleResponse struct {
	Outcome     string              `json:"outcome"`
	Consequence ConsequenceStateDTO `json:"consequence"`
}

// =============================================================================
// BALANCE
// =============================================================================

// SummaryDTO is the penalty balance of one day.
type SummaryDTO struct {
	ProfileID string             `json:"profile_id"`
	Date      string             `json:"date"`
	Total     decimal.Decimal    `json:"total"`
	BySession []SessionTotalDTO  `json:"by_session"`
	Active    []ActivePenaltyDTO `json:"active"`
}

// SessionTotalDTO is the penalty total attributed to one session.
type SessionTotalDTO struct {
	Session string          `json:"session,omitempty"`
	Label   string          `json:"label"`
	Total   decimal.Decimal `json:"total"`
}

// ActivePenaltyDTO is one active penalty of the day.
type ActivePenaltyDTO struct {
	Type         string          `json:"type"`
	Label        string          `json:"label"`
	Session      string          `json:"session,omitempty"`
	SessionLabel string          `json:"session_label"`
	Net          decimal.Decimal `json:"net"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionDTO represents a ledger entry.
type TransactionDTO struct {
	ID              string    `json:"id"`
	Seq             int64     `json:"seq"`
	Type            string    `json:"type"`
	ConsequenceType string    `json:"consequence_type"`
	Amount          string    `json:"amount"`
	Unit            string    `json:"unit"`
	TargetSession   string    `json:"target_session,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	Label           string    `json:"label,omitempty"`
	CreatedBy       string    `json:"created_by,omitempty"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toDefinitionDTO(d consequence.Definition) DefinitionDTO {
	p := d.Kind.Presentation()
	kind := d.Kind
	if !kind.Valid() {
		kind = consequence.KindAlert
	}
	return DefinitionDTO{
		Type:        d.Type,
		Label:       d.Label,
		Description: d.Description,
		Amount:      d.Amount,
		Kind:        string(kind),
		Icon:        p.Icon,
		Color:       p.Color,
	}
}

func toSessionDTOs(plan consequence.WeeklyPlan) []SessionDTO {
	days := plan.PlannedDays()
	dtos := make([]SessionDTO, len(days))
	for i, d := range days {
		dtos[i] = SessionDTO{Key: string(d), Label: consequence.DayLabel(d), Hours: plan.Hours(d)}
	}
	return dtos
}

func toConsequenceStateDTO(s consequence.DefinitionState) ConsequenceStateDTO {
	dto := ConsequenceStateDTO{
		DefinitionDTO: toDefinitionDTO(s.Definition),
		Applied:       s.State.Applied,
		Net:           s.State.Net,
		Toggling:      s.Toggling,
	}
	if s.State.Applied {
		dto.Session = string(s.State.Session)
		dto.SessionLabel = consequence.DayLabel(s.State.Session)
	}
	return dto
}

func toDayStateDTO(p consequence.Profile, day time.Time, states []consequence.DefinitionState) DayStateDTO {
	dto := DayStateDTO{
		ProfileID:    string(p.ID),
		Date:         generic.FormatDay(day, p.Loc()),
		Sessions:     toSessionDTOs(p.Plan),
		Consequences: make([]ConsequenceStateDTO, len(states)),
	}
	for i, s := range states {
		dto.Consequences[i] = toConsequenceStateDTO(s)
	}
	return dto
}

func toSummaryDTO(p consequence.Profile, s consequence.Summary) SummaryDTO {
	dto := SummaryDTO{
		ProfileID: string(p.ID),
		Date:      generic.FormatDay(s.Day, p.Loc()),
		Total:     s.Total,
		BySession: []SessionTotalDTO{},
		Active:    make([]ActivePenaltyDTO, len(s.Active)),
	}

	// Planned sessions first, in plan order, then anything else.
	seen := make(map[generic.Session]bool)
	addSession := func(session generic.Session) {
		total, ok := s.BySession[session]
		if !ok || seen[session] {
			return
		}
		seen[session] = true
		dto.BySession = append(dto.BySession, SessionTotalDTO{
			Session: string(session),
			Label:   consequence.DayLabel(session),
			Total:   total,
		})
	}
	for _, e := range p.Plan {
		addSession(e.Day)
	}
	for _, a := range s.Active {
		addSession(a.Session)
	}

	for i, a := range s.Active {
		dto.Active[i] = ActivePenaltyDTO{
			Type:         a.Type,
			Label:        a.Label,
			Session:      string(a.Session),
			SessionLabel: consequence.DayLabel(a.Session),
			Net:          a.Net,
		}
	}
	return dto
}

func toTransactionDTO(tx generic.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:              string(tx.ID),
		Seq:             tx.Seq,
		Type:            string(tx.Type),
		ConsequenceType: tx.ConsequenceType,
		Amount:          tx.Amount.Value.String(),
		Unit:            string(tx.Amount.Unit),
		TargetSession:   string(tx.TargetSession),
		Timestamp:       tx.Timestamp,
		Label:           tx.Label,
		CreatedBy:       tx.CreatedBy,
	}
}
