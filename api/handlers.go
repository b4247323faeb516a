/*
handlers.go - HTTP API handlers for the consequence ledger

PURPOSE:
  Exposes profiles, the daily consequence panel and the toggle protocol
  via REST. Handles HTTP request/response, JSON serialization, and
  delegates to the consequence engines.

ENDPOINTS:
  Profiles:
    GET    /api/families/{familyID}/profiles              List profiles
    POST   /api/families/{familyID}/profiles              Create profile
    GET    /api/families/{familyID}/profiles/{profileID}  Get profile
    PUT    /api/families/{familyID}/profiles/{profileID}  Replace profile config
    DELETE /api/families/{familyID}/profiles/{profileID}  Remove profile config

  Consequences (under .../profiles/{profileID}):
    GET    /consequences?date=YYYY-MM-DD        Per-type state for the day
    POST   /consequences/{type}/toggle          Checkbox or session pill click
    GET    /summary?date=YYYY-MM-DD             Day balance
    GET    /transactions                        Raw ledger entries
    GET    /stream?date=YYYY-MM-DD              Live state (SSE, stream.go)

  Reference data:
    GET    /api/sessions                        Day keys and labels
    GET    /api/kinds                           Presentation kinds

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Profile records and raw transaction reads
  - Engines: One started consequence.Engine per profile
  - Profiles: JSON to Profile conversion

  The date defaults to today in the profile's time zone. The optional
  X-Caregiver header is stamped into CreatedBy of written transactions.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Unknown profile or consequence type
  - 409: Duplicate transaction
  - 502: The transaction log rejected the write
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/consequence-ledger/consequence"
	"github.com/warp/consequence-ledger/factory"
	"github.com/warp/consequence-ledger/generic"
	"github.com/warp/consequence-ledger/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Engines  *consequence.Registry
	Profiles *factory.ProfileFactory

	// Now is the clock used for the default date.
	Now func() time.Time
}

// NewHandler creates a new handler.
func NewHandler(store *sqlite.Store, engines *consequence.Registry, profiles *factory.ProfileFactory) *Handler {
	return &Handler{
		Store:    store,
		Engines:  engines,
		Profiles: profiles,
		Now:      time.Now,
	}
}

// =============================================================================
// PROFILE HANDLERS
// =============================================================================

// ListProfiles returns the family's profiles.
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	familyID := chi.URLParam(r, "familyID")

	records, err := h.Store.ListProfiles(r.Context(), familyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list profiles", err)
		return
	}

	dtos := make([]ProfileDTO, 0, len(records))
	for _, rec := range records {
		p, err := h.profileFromRecord(rec)
		if err != nil {
			continue // Skip unreadable configs
		}
		dtos = append(dtos, h.toProfileDTO(p, &rec))
	}

	writeJSON(w, http.StatusOK, dtos)
}

// CreateProfile stores a new profile. The ID is generated when omitted.
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var pj factory.ProfileJSON
	if err := json.NewDecoder(r.Body).Decode(&pj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	pj.FamilyID = chi.URLParam(r, "familyID")
	if pj.ID == "" {
		pj.ID = uuid.NewString()
	}

	existing, err := h.Store.GetProfile(r.Context(), pj.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check profile", err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "Profile already exists", nil)
		return
	}

	p, rec, ok := h.saveProfile(w, r, pj)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, h.toProfileDTO(p, rec))
}

// GetProfile returns one profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.findRecord(w, r)
	if !ok {
		return
	}
	p, err := h.profileFromRecord(*rec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Stored profile is invalid", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toProfileDTO(p, rec))
}

// UpdateProfile replaces a profile's configuration. A running engine picks
// up the new definitions and plan immediately.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.findRecord(w, r); !ok {
		return
	}

	var pj factory.ProfileJSON
	if err := json.NewDecoder(r.Body).Decode(&pj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	pj.ID = chi.URLParam(r, "profileID")
	pj.FamilyID = chi.URLParam(r, "familyID")

	p, rec, ok := h.saveProfile(w, r, pj)
	if !ok {
		return
	}
	if e, running := h.Engines.Lookup(p.ID); running {
		e.UpdateProfile(p)
	}
	writeJSON(w, http.StatusOK, h.toProfileDTO(p, rec))
}

// DeleteProfile removes the profile configuration. Its transactions stay.
func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.findRecord(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteProfile(r.Context(), rec.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete profile", err)
		return
	}
	h.Engines.Drop(generic.ProfileID(rec.ID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) saveProfile(w http.ResponseWriter, r *http.Request, pj factory.ProfileJSON) (consequence.Profile, *sqlite.ProfileRecord, bool) {
	p, err := h.Profiles.FromJSON(pj)
	if err != nil {
		writeDomainError(w, err)
		return consequence.Profile{}, nil, false
	}
	configJSON, err := h.Profiles.Encode(p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode profile", err)
		return consequence.Profile{}, nil, false
	}

	rec := sqlite.ProfileRecord{
		ID:         string(p.ID),
		FamilyID:   string(p.FamilyID),
		Name:       p.Name,
		ConfigJSON: configJSON,
	}
	if err := h.Store.SaveProfile(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save profile", err)
		return consequence.Profile{}, nil, false
	}

	saved, err := h.Store.GetProfile(r.Context(), rec.ID)
	if err != nil || saved == nil {
		saved = &rec
	}
	return p, saved, true
}

// =============================================================================
// CONSEQUENCE HANDLERS
// =============================================================================

// GetConsequences returns every definition with its state on the day.
func (h *Handler) GetConsequences(w http.ResponseWriter, r *http.Request) {
	e, p, ok := h.engineFor(w, r)
	if !ok {
		return
	}
	day, err := h.dayParam(r, p)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (want YYYY-MM-DD)", err)
		return
	}

	writeJSON(w, http.StatusOK, toDayStateDTO(p, day, e.States(day)))
}

// ToggleConsequence applies, undoes or re-targets one penalty.
func (h *Handler) ToggleConsequence(w http.ResponseWriter, r *http.Request) {
	e, p, ok := h.engineFor(w, r)
	if !ok {
		return
	}

	// An empty body (chunked or not) means "today, default session".
	var req ToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	day := h.Now()
	if req.Date != "" {
		parsed, err := generic.ParseDay(req.Date, p.Loc())
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (want YYYY-MM-DD)", err)
			return
		}
		day = parsed
	}
	day = generic.StartOfDay(day, p.Loc())

	ctype := chi.URLParam(r, "type")
	def, found := p.Definition(ctype)
	if !found {
		writeDomainError(w, fmt.Errorf("%w: %s", generic.ErrUnknownConsequence, ctype))
		return
	}

	ctx := r.Context()
	if actor := strings.TrimSpace(r.Header.Get("X-Caregiver")); actor != "" {
		ctx = consequence.WithActor(ctx, actor)
	}

	outcome, err := e.Toggle(ctx, def, day, generic.Session(req.Session))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	state := consequence.DefinitionState{
		Definition: def,
		State:      e.State(def.Type, day),
		Toggling:   e.IsToggling(def.Type),
	}
	writeJSON(w, http.StatusOK, ToggleResponse{
		Outcome:     string(outcome),
		Consequence: toConsequenceStateDTO(state),
	})
}

// GetSummary returns the day's penalty balance.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	e, p, ok := h.engineFor(w, r)
	if !ok {
		return
	}
	day, err := h.dayParam(r, p)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (want YYYY-MM-DD)", err)
		return
	}

	writeJSON(w, http.StatusOK, toSummaryDTO(p, e.Summary(day)))
}

// GetTransactions returns the profile's ledger in arrival order, newest
// last. ?limit=N keeps only the last N entries.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.findRecord(w, r)
	if !ok {
		return
	}

	txs, err := h.Store.Load(r.Context(), generic.ProfileID(rec.ID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load transactions", err)
		return
	}

	if s := r.URL.Query().Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		if len(txs) > limit {
			txs = txs[len(txs)-limit:]
		}
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// ListSessions returns every day key with its label, Friday first as in the
// weekly plan form.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	order := []generic.Session{
		consequence.Friday, consequence.Saturday, consequence.Sunday, consequence.Monday,
		consequence.Tuesday, consequence.Wednesday, consequence.Thursday,
	}
	dtos := make([]SessionDTO, len(order))
	for i, s := range order {
		dtos[i] = SessionDTO{Key: string(s), Label: consequence.DayLabel(s)}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListKinds returns the presentation variants.
func (h *Handler) ListKinds(w http.ResponseWriter, r *http.Request) {
	kinds := consequence.Kinds()
	dtos := make([]KindDTO, len(kinds))
	for i, k := range kinds {
		p := k.Presentation()
		dtos[i] = KindDTO{Kind: string(k), Icon: p.Icon, Color: p.Color}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// findRecord loads the profile named in the URL, scoped to its family.
func (h *Handler) findRecord(w http.ResponseWriter, r *http.Request) (*sqlite.ProfileRecord, bool) {
	familyID := chi.URLParam(r, "familyID")
	profileID := chi.URLParam(r, "profileID")

	rec, err := h.Store.GetProfile(r.Context(), profileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get profile", err)
		return nil, false
	}
	if rec == nil || rec.FamilyID != familyID {
		writeDomainError(w, fmt.Errorf("%w: %s", generic.ErrProfileNotFound, profileID))
		return nil, false
	}
	return rec, true
}

func (h *Handler) profileFromRecord(rec sqlite.ProfileRecord) (consequence.Profile, error) {
	p, err := h.Profiles.ParseProfile(rec.ConfigJSON)
	if err != nil {
		return consequence.Profile{}, err
	}
	p.ID = generic.ProfileID(rec.ID)
	p.FamilyID = generic.FamilyID(rec.FamilyID)
	p.Name = rec.Name
	return p, nil
}

// engineFor resolves the URL's profile and its running engine.
func (h *Handler) engineFor(w http.ResponseWriter, r *http.Request) (*consequence.Engine, consequence.Profile, bool) {
	rec, ok := h.findRecord(w, r)
	if !ok {
		return nil, consequence.Profile{}, false
	}
	p, err := h.profileFromRecord(*rec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Stored profile is invalid", err)
		return nil, consequence.Profile{}, false
	}

	// Engines outlive the request.
	e, err := h.Engines.Engine(context.WithoutCancel(r.Context()), p)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to open transaction feed", err)
		return nil, consequence.Profile{}, false
	}
	return e, p, true
}

// dayParam reads ?date=, defaulting to today in the profile's zone.
func (h *Handler) dayParam(r *http.Request, p consequence.Profile) (time.Time, error) {
	s := r.URL.Query().Get("date")
	if s == "" {
		return generic.StartOfDay(h.Now(), p.Loc()), nil
	}
	return generic.ParseDay(s, p.Loc())
}

func (h *Handler) toProfileDTO(p consequence.Profile, rec *sqlite.ProfileRecord) ProfileDTO {
	defs := p.EffectiveDefinitions()
	dto := ProfileDTO{
		ID:           string(p.ID),
		FamilyID:     string(p.FamilyID),
		Name:         p.Name,
		TimeZone:     p.Loc().String(),
		Consequences: make([]DefinitionDTO, len(defs)),
		Plan:         p.Plan,
		Sessions:     toSessionDTOs(p.Plan),
	}
	if dto.Plan == nil {
		dto.Plan = consequence.WeeklyPlan{}
	}
	for i, d := range defs {
		dto.Consequences[i] = toDefinitionDTO(d)
	}
	if rec != nil && !rec.CreatedAt.IsZero() {
		created, updated := rec.CreatedAt, rec.UpdatedAt
		dto.CreatedAt = &created
		dto.UpdatedAt = &updated
	}
	return dto
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var appendErr *consequence.AppendError
	switch {
	case errors.As(err, &appendErr):
		writeError(w, http.StatusBadGateway, "Failed to record transaction", err)
	case errors.Is(err, generic.ErrDuplicateTransaction):
		writeError(w, http.StatusConflict, "Duplicate transaction", err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case generic.IsClientError(err),
		errors.Is(err, factory.ErrInvalidProfile),
		errors.Is(err, consequence.ErrInvalidDefinition),
		errors.Is(err, consequence.ErrUnknownSession):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
