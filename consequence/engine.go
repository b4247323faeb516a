/*
engine.go - Toggle protocol for one profile

PURPOSE:
  The Engine keeps the latest snapshot of a profile's log (delivered by the
  Subscription) and turns caregiver clicks into transactions. It never
  stores derived state: after an append, the new state arrives through the
  feed like any other writer's change.

STATE MACHINE (per consequence type and day):
  Inactive        + any click            -> consequence            -> Active
  Active(s)       + checkbox or pill s   -> reversal               -> Inactive
  Active(s)       + pill s2 != s         -> reversal, consequence  -> Active(s2)

  A checkbox click on an inactive penalty attributes it to the first
  planned day of the weekly plan, or to the general balance when nothing is
  planned.

IN-FLIGHT GUARD:
  While a toggle's appends are pending, further toggles for the same type
  are skipped (not queued, not errors). Other types stay actionable. The
  guard clears when the appends settle, successfully or not. Cancelling
  the caller's context does not abort issued appends.

FAILURES:
  A failed append is returned as *AppendError. Nothing is rolled back or
  retried; the state stays whatever the last snapshot says. If the second
  append of a switch fails, the log holds the reversal only and the
  penalty reads as inactive.

SEE ALSO:
  - derive.go: State derivation
  - subscription.go: Feed adapter
  - registry.go: One engine per profile
*/
package consequence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/warp/consequence-ledger/generic"
	"github.com/warp/consequence-ledger/observability"
)

// =============================================================================
// OUTCOMES & ERRORS
// =============================================================================

// Outcome reports what a toggle did.
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeUndone   Outcome = "undone"
	OutcomeSwitched Outcome = "switched"
	OutcomeSkipped  Outcome = "skipped" // another toggle for the type was in flight
)

var (
	// ErrInvalidDefinition is returned for definitions without a type or
	// with a non-positive amount.
	ErrInvalidDefinition = errors.New("invalid consequence definition")

	// ErrUnknownSession is returned when the requested session is not a
	// day-of-week key.
	ErrUnknownSession = errors.New("unknown session")

	// ErrEngineClosed is returned by Start after Close.
	ErrEngineClosed = errors.New("engine closed")
)

// AppendError reports a failed write to the transaction log.
type AppendError struct {
	ProfileID       generic.ProfileID
	ConsequenceType string
	Step            generic.TransactionType
	Err             error
}

func (e *AppendError) Error() string {
	return fmt.Sprintf("append %s for %s/%s: %v", e.Step, e.ProfileID, e.ConsequenceType, e.Err)
}

func (e *AppendError) Unwrap() []error {
	return []error{generic.ErrAppendFailed, e.Err}
}

// =============================================================================
// ENGINE
// =============================================================================

type Option func(*Engine)

// WithClock overrides the time source used to stamp transactions.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithAttribution selects how the attributing consequence is found.
func WithAttribution(a Attribution) Option {
	return func(e *Engine) { e.attribution = a }
}

type Engine struct {
	store       generic.Store
	now         func() time.Time
	attribution Attribution

	startMu sync.Mutex

	mu        sync.Mutex
	profile   Profile
	txs       []generic.Transaction
	inFlight  map[string]bool
	watchers  map[int]func()
	nextWatch int
	sub       *Subscription
	closed    bool
}

func NewEngine(store generic.Store, profile Profile, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		now:      time.Now,
		profile:  profile,
		inFlight: make(map[string]bool),
		watchers: make(map[int]func()),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start subscribes to the profile's feed. The current snapshot is loaded
// before Start returns.
func (e *Engine) Start(ctx context.Context) error {
	e.startMu.Lock()
	defer e.startMu.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if e.sub != nil {
		e.mu.Unlock()
		return nil
	}
	profileID := e.profile.ID
	e.mu.Unlock()

	sub, err := Subscribe(ctx, e.store, profileID, e.replace)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", profileID, err)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		sub.Close()
		return ErrEngineClosed
	}
	e.sub = sub
	e.mu.Unlock()
	return nil
}

// Close stops the feed. Further snapshots are ignored.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	sub := e.sub
	e.sub = nil
	e.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

func (e *Engine) replace(txs []generic.Transaction) {
	e.mu.Lock()
	e.txs = txs
	watchers := make([]func(), 0, len(e.watchers))
	for _, fn := range e.watchers {
		watchers = append(watchers, fn)
	}
	e.mu.Unlock()

	for _, fn := range watchers {
		fn()
	}
}

// Watch registers fn to run after every snapshot replacement. fn runs on
// the store's delivery goroutine and must not block.
func (e *Engine) Watch(fn func()) (cancel func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextWatch
	e.nextWatch++
	e.watchers[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.watchers, id)
	}
}

// UpdateProfile swaps the configuration (definitions, plan, zone). The
// profile ID cannot change.
func (e *Engine) UpdateProfile(p Profile) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p.ID = e.profile.ID
	e.profile = p
}

func (e *Engine) Profile() Profile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profile
}

// =============================================================================
// QUERIES
// =============================================================================

// AppliedSession returns the session carrying the penalty on day and
// whether it is applied. (GeneralBalance, true) is an active penalty on the
// general balance.
func (e *Engine) AppliedSession(consequenceType string, day time.Time) (generic.Session, bool) {
	s := e.State(consequenceType, day)
	return s.Session, s.Applied
}

func (e *Engine) State(consequenceType string, day time.Time) DailyState {
	e.mu.Lock()
	txs, loc := e.txs, e.profile.Loc()
	e.mu.Unlock()
	return DeriveState(txs, consequenceType, day, loc, e.attribution)
}

// IsToggling reports whether a toggle for the type is in flight.
func (e *Engine) IsToggling(consequenceType string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight[consequenceType]
}

// DefinitionState is a definition with its derived state for one day.
type DefinitionState struct {
	Definition Definition
	State      DailyState
	Toggling   bool
}

// States returns every effective definition with its state on day.
func (e *Engine) States(day time.Time) []DefinitionState {
	e.mu.Lock()
	txs, profile := e.txs, e.profile
	toggling := make(map[string]bool, len(e.inFlight))
	for t, v := range e.inFlight {
		toggling[t] = v
	}
	e.mu.Unlock()

	defs := profile.EffectiveDefinitions()
	result := make([]DefinitionState, len(defs))
	for i, d := range defs {
		result[i] = DefinitionState{
			Definition: d,
			State:      DeriveState(txs, d.Type, day, profile.Loc(), e.attribution),
			Toggling:   toggling[d.Type],
		}
	}
	return result
}

// Summary returns the day's penalty balance.
func (e *Engine) Summary(day time.Time) Summary {
	e.mu.Lock()
	txs, profile := e.txs, e.profile
	e.mu.Unlock()
	return Summarize(txs, profile.EffectiveDefinitions(), day, profile.Loc(), e.attribution)
}

// =============================================================================
// TOGGLE
// =============================================================================

type step struct {
	kind    generic.TransactionType
	session generic.Session
}

// plan decides the transactions for a click. requested is GeneralBalance
// for the checkbox and a session key for a session pill.
func plan(state DailyState, requested generic.Session, weekly WeeklyPlan) (Outcome, []step) {
	if !state.Applied {
		target := requested
		if target.IsGeneral() {
			target = weekly.DefaultSession()
		}
		return OutcomeApplied, []step{{kind: generic.TxConsequence, session: target}}
	}
	if requested.IsGeneral() || requested == state.Session {
		return OutcomeUndone, []step{{kind: generic.TxReversal, session: state.Session}}
	}
	return OutcomeSwitched, []step{
		{kind: generic.TxReversal, session: state.Session},
		{kind: generic.TxConsequence, session: requested},
	}
}

// Toggle applies, undoes or re-targets def on day. A toggle for a type that
// is already in flight returns OutcomeSkipped and writes nothing. The
// outcome is only meaningful when err is nil.
func (e *Engine) Toggle(ctx context.Context, def Definition, day time.Time, requested generic.Session) (Outcome, error) {
	if def.Type == "" || !def.Amount.IsPositive() {
		return "", fmt.Errorf("%w: %q", ErrInvalidDefinition, def.Type)
	}
	if !requested.IsGeneral() && !ValidSession(requested) {
		return "", fmt.Errorf("%w: %q", ErrUnknownSession, requested)
	}

	e.mu.Lock()
	if e.inFlight[def.Type] {
		e.mu.Unlock()
		observability.RecordToggle(string(OutcomeSkipped))
		return OutcomeSkipped, nil
	}
	profile := e.profile
	state := DeriveState(e.txs, def.Type, day, profile.Loc(), e.attribution)
	e.inFlight[def.Type] = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.inFlight, def.Type)
		e.mu.Unlock()
	}()

	outcome, steps := plan(state, requested, profile.Plan)
	actor := ActorFromContext(ctx)

	// Once issued, the steps run to completion; a caller that goes away
	// must not leave a switch with only its reversal.
	ctx = context.WithoutCancel(ctx)
	for _, s := range steps {
		tx := generic.Transaction{
			ProfileID:       profile.ID,
			Type:            s.kind,
			ConsequenceType: def.Type,
			Amount:          def.Penalty(),
			TargetSession:   s.session,
			Timestamp:       generic.OnDay(day, e.now(), profile.Loc()),
			Label:           def.Label,
			CreatedBy:       actor,
		}
		if s.kind == generic.TxReversal {
			tx.Amount = def.Refund()
		}
		if err := e.store.Append(ctx, tx); err != nil {
			log.Printf("[Engine] %s %s for %s failed: %v", s.kind, def.Type, profile.ID, err)
			observability.RecordAppendFailure(string(s.kind))
			return "", &AppendError{
				ProfileID:       profile.ID,
				ConsequenceType: def.Type,
				Step:            s.kind,
				Err:             err,
			}
		}
	}
	observability.RecordToggle(string(outcome))
	return outcome, nil
}

// =============================================================================
// ACTOR
// =============================================================================

type actorKey struct{}

// WithActor records who is acting; toggles stamp it into CreatedBy.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}
