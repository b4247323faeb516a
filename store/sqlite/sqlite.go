/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements generic.Store (the append-only transaction log with its live
  feed) and the profile configuration store using SQLite.

INTERFACES IMPLEMENTED:
  generic.Store: Transaction persistence and per-profile subscriptions

APPEND-ONLY ENFORCEMENT:
  The Store enforces append-only semantics:
  - No UPDATE statements on transactions table
  - No DELETE statements on transactions table
  - Corrections via reversal transactions only

KEY TABLES:
  transactions: Immutable ledger of consequences and reversals
  profiles:     Per-child configuration (definitions, weekly plan, zone)

ARRIVAL ORDER:
  transactions.seq is an AUTOINCREMENT key. Load orders by seq, which is
  the order the store accepted writes, not timestamp order. Columns are
  nullable on purpose: rows written by older or foreign clients may lack
  fields, and they decode to malformed transactions that readers skip.

LIVE FEED:
  Appends made through this Store publish a fresh snapshot to the
  profile's subscribers. Writes from other processes sharing the file are
  picked up by the Watcher (watch.go).

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single pooled connection so
  ":memory:" databases are shared by every query.

USAGE:
  store, err := sqlite.New("./data/consequences.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := generic.NewLedger(store)

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/hub.go: Subscription bookkeeping
  - watch.go: Cross-process change detection
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/consequence-ledger/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	hub *generic.Hub

	closed bool
}

var _ generic.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, hub: generic.NewHub()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT UNIQUE,
		profile_id TEXT NOT NULL,
		tx_type TEXT,
		consequence_type TEXT,
		amount_value TEXT,
		amount_unit TEXT,
		target_session TEXT,
		timestamp TEXT,
		label TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	-- Snapshot loads (hot path)
	CREATE INDEX IF NOT EXISTS idx_transactions_profile_seq
		ON transactions(profile_id, seq);

	-- Profile configuration (mutable, not part of the ledger)
	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_profiles_family
		ON profiles(family_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTION STORE (generic.Store interface)
// =============================================================================

// Append adds a transaction to the ledger and publishes the profile's new
// snapshot.
func (s *Store) Append(ctx context.Context, tx generic.Transaction) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return generic.ErrStoreClosed
	}
	err := s.appendTx(ctx, tx)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.publishCommitted(ctx, tx.ProfileID)
	return nil
}

// publishCommitted notifies subscribers after a committed insert. The row
// is durable at this point, so a failed reload is logged rather than
// returned; the Watcher republishes on its next poll.
func (s *Store) publishCommitted(ctx context.Context, profileID generic.ProfileID) {
	if err := s.Publish(context.WithoutCancel(ctx), profileID); err != nil {
		log.Printf("[Store] Publishing %s after append failed: %v", profileID, err)
	}
}

func (s *Store) appendTx(ctx context.Context, tx generic.Transaction) error {
	query := `
		INSERT INTO transactions
		(id, profile_id, tx_type, consequence_type, amount_value, amount_unit,
		 target_session, timestamp, label, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var timestamp sql.NullString
	if !tx.Timestamp.IsZero() {
		timestamp = nullString(tx.Timestamp.Format(time.RFC3339Nano))
	}
	var amountValue sql.NullString
	if tx.Amount.IsSet() {
		amountValue = nullString(tx.Amount.Value.String())
	}

	_, err := s.db.ExecContext(ctx, query,
		nullString(string(tx.ID)),
		tx.ProfileID,
		nullString(string(tx.Type)),
		nullString(tx.ConsequenceType),
		amountValue,
		nullString(string(tx.Amount.Unit)),
		nullString(string(tx.TargetSession)),
		timestamp,
		nullString(tx.Label),
		nullString(tx.CreatedBy),
		time.Now().UTC().Format(time.RFC3339Nano),
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateTransaction
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	return nil
}

// Load returns all transactions for a profile in arrival order.
func (s *Store) Load(ctx context.Context, profileID generic.ProfileID) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, generic.ErrStoreClosed
	}

	query := `
		SELECT seq, id, profile_id, tx_type, consequence_type, amount_value, amount_unit,
		       target_session, timestamp, label, created_by
		FROM transactions
		WHERE profile_id = ?
		ORDER BY seq ASC
	`

	return s.queryTransactions(ctx, query, profileID)
}

// Subscribe registers fn for the profile's live feed.
func (s *Store) Subscribe(ctx context.Context, profileID generic.ProfileID, fn generic.Listener) (func(), error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, generic.ErrStoreClosed
	}
	return s.hub.Subscribe(ctx, profileID, fn, s.Load)
}

// Publish re-delivers the profile's snapshot to its subscribers.
func (s *Store) Publish(ctx context.Context, profileID generic.ProfileID) error {
	return s.hub.Publish(ctx, profileID, s.Load)
}

// Subscribers returns the number of live subscriptions.
func (s *Store) Subscribers() int {
	return s.hub.Count()
}

// WatchedProfiles returns the profiles that currently have subscribers.
func (s *Store) WatchedProfiles() []generic.ProfileID {
	return s.hub.Profiles()
}

// LatestSeq returns the highest arrival sequence written so far, 0 when
// the log is empty.
func (s *Store) LatestSeq(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(seq) FROM transactions").Scan(&seq); err != nil {
		return 0, err
	}
	return seq.Int64, nil
}

// ChangedSince returns the profiles with transactions after seq, and the
// newest seq seen.
func (s *Store) ChangedSince(ctx context.Context, seq int64) ([]generic.ProfileID, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT profile_id, MAX(seq) FROM transactions WHERE seq > ? GROUP BY profile_id",
		seq,
	)
	if err != nil {
		return nil, seq, err
	}
	defer rows.Close()

	latest := seq
	var profiles []generic.ProfileID
	for rows.Next() {
		var id generic.ProfileID
		var max int64
		if err := rows.Scan(&id, &max); err != nil {
			return nil, seq, err
		}
		profiles = append(profiles, id)
		if max > latest {
			latest = max
		}
	}
	return profiles, latest, rows.Err()
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]generic.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []generic.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

// scanTransaction decodes one row. Missing or unparseable columns leave the
// field at its zero value so the transaction reads as malformed.
func scanTransaction(rows *sql.Rows) (generic.Transaction, error) {
	var (
		tx              generic.Transaction
		id              sql.NullString
		txType          sql.NullString
		consequenceType sql.NullString
		amountValue     sql.NullString
		amountUnit      sql.NullString
		targetSession   sql.NullString
		timestamp       sql.NullString
		label           sql.NullString
		createdBy       sql.NullString
	)

	err := rows.Scan(
		&tx.Seq, &id, &tx.ProfileID, &txType, &consequenceType,
		&amountValue, &amountUnit, &targetSession, &timestamp, &label, &createdBy,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.ID = generic.TransactionID(id.String)
	tx.Type = generic.TransactionType(txType.String)
	tx.ConsequenceType = consequenceType.String
	tx.Amount = parseAmount(amountValue, amountUnit)
	tx.TargetSession = generic.Session(targetSession.String)
	if timestamp.Valid {
		tx.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp.String)
	}
	tx.Label = label.String
	tx.CreatedBy = createdBy.String

	return tx, nil
}

// =============================================================================
// PROFILE STORE
// =============================================================================

// ProfileRecord is a stored profile with its JSON config (definitions,
// weekly plan, time zone).
type ProfileRecord struct {
	ID         string
	FamilyID   string
	Name       string
	ConfigJSON string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SaveProfile creates or replaces a profile record.
func (s *Store) SaveProfile(ctx context.Context, p ProfileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO profiles (id, family_id, name, config_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			family_id = excluded.family_id,
			name = excluded.name,
			config_json = excluded.config_json,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.FamilyID, p.Name, p.ConfigJSON, now, now,
	)
	return err
}

// GetProfile retrieves a profile by ID. Returns nil when absent.
func (s *Store) GetProfile(ctx context.Context, id string) (*ProfileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p ProfileRecord
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, family_id, name, config_json, created_at, updated_at FROM profiles WHERE id = ?",
		id,
	).Scan(&p.ID, &p.FamilyID, &p.Name, &p.ConfigJSON, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

// ListProfiles returns the profiles of a family, or every profile when
// familyID is empty.
func (s *Store) ListProfiles(ctx context.Context, familyID string) ([]ProfileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, family_id, name, config_json, created_at, updated_at FROM profiles"
	var args []any
	if familyID != "" {
		query += " WHERE family_id = ?"
		args = append(args, familyID)
	}
	query += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []ProfileRecord
	for rows.Next() {
		var p ProfileRecord
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.FamilyID, &p.Name, &p.ConfigJSON, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// DeleteProfile removes a profile's configuration. Its transactions stay in
// the ledger.
func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM profiles WHERE id = ?", id)
	return err
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseAmount(value, unit sql.NullString) generic.Amount {
	if !value.Valid || !unit.Valid || unit.String == "" {
		return generic.Amount{}
	}
	d, err := decimal.NewFromString(value.String)
	if err != nil {
		return generic.Amount{}
	}
	return generic.Amount{Value: d, Unit: generic.Unit(unit.String)}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
