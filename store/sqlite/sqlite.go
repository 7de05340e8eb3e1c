/*
Package sqlite provides a SQLite-backed implementation of the vesting
storage interfaces.

PURPOSE:
  Implements vesting.TxStore (config, grants, ID registry), vesting.Mover
  (token accounts) and vesting.EventSink (audit log) on one database. In
  production, the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

INTERFACES IMPLEMENTED:
  vesting.TxStore:   Grant and config persistence, transactional execution
  vesting.Mover:     Token account balances and transfers
  vesting.EventSink: Append-only audit trail

ATOMICITY:
  WithTx wraps a database transaction. The transactional view implements
  Mover as well, so a ledger operation's state mutations and its token
  transfers commit or roll back together. There is no window where a
  transfer happened but the settled grant was not persisted, or vice
  versa.

KEY TABLES:
  config:   Ledger principals and grant token (single row)
  grants:   One row per grant; governance state in JSON columns
  accounts: Token balances (the bank)
  events:   Append-only audit log

GRANTS ARE NEVER DELETED:
  Cancelled and terminated grants persist as historical record. The
  creation-order rowid doubles as the grant-ID registry backing the
  aggregate allocated-funds computation.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery
  A store-level mutex serializes write transactions, matching the
  engine's sequential transactional execution model.

USAGE:
  st, err := sqlite.New("./data/vesting.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

  ledger := vesting.NewLedger(st, st)
  ledger.Events = st // audit events into the same database

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - vesting/store.go: Interface definitions
  - vesting/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/vesting-engine/vesting"
)

// Store implements vesting.TxStore, vesting.Mover and vesting.EventSink.
type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes write transactions
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: the engine serializes writes anyway, and a single
	// connection keeps ":memory:" databases coherent across calls.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Ledger configuration (single row)
	CREATE TABLE IF NOT EXISTS config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		admin TEXT NOT NULL,
		oracle TEXT NOT NULL,
		treasury TEXT NOT NULL,
		grant_token TEXT NOT NULL,
		vault TEXT NOT NULL
	);

	-- Grants. Never deleted; rowid is the append-only creation order.
	CREATE TABLE IF NOT EXISTS grants (
		id TEXT PRIMARY KEY,
		recipient TEXT NOT NULL,
		total_amount INTEGER NOT NULL,
		withdrawn INTEGER NOT NULL,
		claimable INTEGER NOT NULL,
		flow_rate INTEGER NOT NULL,
		pending_rate INTEGER NOT NULL,
		effective_at INTEGER NOT NULL,
		remainder INTEGER NOT NULL,
		start_time INTEGER NOT NULL,
		last_update_ts INTEGER NOT NULL,
		rate_updated_at INTEGER NOT NULL,
		last_claim_time INTEGER NOT NULL,
		warmup_window INTEGER NOT NULL,
		status TEXT NOT NULL,
		milestones_json TEXT,
		council_json TEXT,
		proposal_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_grants_status ON grants(status);
	CREATE INDEX IF NOT EXISTS idx_grants_recipient ON grants(recipient);

	-- Token accounts (the bank)
	CREATE TABLE IF NOT EXISTS accounts (
		token TEXT NOT NULL,
		account TEXT NOT NULL,
		balance INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (token, account)
	);

	-- Audit events (append-only)
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		topic TEXT NOT NULL,
		grant_id TEXT,
		at INTEGER NOT NULL,
		payload_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_grant ON events(grant_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// querier abstracts *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// STORE INTERFACE - direct (auto-commit) access
// =============================================================================

func (s *Store) Config(ctx context.Context) (*vesting.Config, error) {
	return getConfig(ctx, s.db)
}

func (s *Store) PutConfig(ctx context.Context, cfg vesting.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putConfig(ctx, s.db, cfg)
}

func (s *Store) Grant(ctx context.Context, id vesting.GrantID) (*vesting.Grant, error) {
	return getGrant(ctx, s.db, id)
}

func (s *Store) CreateGrant(ctx context.Context, g *vesting.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createGrant(ctx, s.db, g)
}

func (s *Store) UpdateGrant(ctx context.Context, g *vesting.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateGrant(ctx, s.db, g)
}

func (s *Store) GrantIDs(ctx context.Context) ([]vesting.GrantID, error) {
	return grantIDs(ctx, s.db)
}

// WithTx executes fn against a transactional view. The view also
// implements vesting.Mover, so token transfers commit atomically with
// grant state.
func (s *Store) WithTx(ctx context.Context, fn func(vesting.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&txView{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// txView is the transactional Store+Mover handed to WithTx callbacks.
type txView struct {
	tx *sql.Tx
}

func (v *txView) Config(ctx context.Context) (*vesting.Config, error) {
	return getConfig(ctx, v.tx)
}

func (v *txView) PutConfig(ctx context.Context, cfg vesting.Config) error {
	return putConfig(ctx, v.tx, cfg)
}

func (v *txView) Grant(ctx context.Context, id vesting.GrantID) (*vesting.Grant, error) {
	return getGrant(ctx, v.tx, id)
}

func (v *txView) CreateGrant(ctx context.Context, g *vesting.Grant) error {
	return createGrant(ctx, v.tx, g)
}

func (v *txView) UpdateGrant(ctx context.Context, g *vesting.Grant) error {
	return updateGrant(ctx, v.tx, g)
}

func (v *txView) GrantIDs(ctx context.Context) ([]vesting.GrantID, error) {
	return grantIDs(ctx, v.tx)
}

func (v *txView) Transfer(ctx context.Context, token string, from, to vesting.Principal, amount int64) error {
	return transfer(ctx, v.tx, token, from, to, amount)
}

func (v *txView) Balance(ctx context.Context, token string, account vesting.Principal) (int64, error) {
	return balance(ctx, v.tx, token, account)
}

// Publish inside a transaction writes the event on the same connection,
// so it commits or rolls back with the state change it describes.
func (v *txView) Publish(ctx context.Context, e vesting.Event) {
	if err := appendEvent(ctx, v.tx, e); err != nil {
		log.Printf("event publish failed: %v", err)
	}
}

// =============================================================================
// SHARED QUERY HELPERS
// =============================================================================

func getConfig(ctx context.Context, q querier) (*vesting.Config, error) {
	var cfg vesting.Config
	err := q.QueryRowContext(ctx,
		`SELECT admin, oracle, treasury, grant_token, vault FROM config WHERE id = 1`,
	).Scan(&cfg.Admin, &cfg.Oracle, &cfg.Treasury, &cfg.GrantToken, &cfg.Vault)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func putConfig(ctx context.Context, q querier, cfg vesting.Config) error {
	existing, err := getConfig(ctx, q)
	if err != nil {
		return err
	}
	if existing != nil {
		return vesting.ErrAlreadyInitialized
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO config (id, admin, oracle, treasury, grant_token, vault) VALUES (1, ?, ?, ?, ?, ?)`,
		string(cfg.Admin), string(cfg.Oracle), string(cfg.Treasury), cfg.GrantToken, string(cfg.Vault))
	return err
}

const grantColumns = `id, recipient, total_amount, withdrawn, claimable, flow_rate,
	pending_rate, effective_at, remainder, start_time, last_update_ts,
	rate_updated_at, last_claim_time, warmup_window, status,
	milestones_json, council_json, proposal_json`

func getGrant(ctx context.Context, q querier, id vesting.GrantID) (*vesting.Grant, error) {
	row := q.QueryRowContext(ctx, `SELECT `+grantColumns+` FROM grants WHERE id = ?`, string(id))
	g, err := scanGrant(row)
	if err == sql.ErrNoRows {
		return nil, vesting.ErrGrantNotFound
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrant(row rowScanner) (*vesting.Grant, error) {
	var g vesting.Grant
	var effectiveAt, startTime, lastUpdate, rateUpdated, lastClaim, warmup int64
	var milestones, council, proposal sql.NullString
	err := row.Scan(
		&g.ID, &g.Recipient, &g.TotalAmount, &g.Withdrawn, &g.Claimable, &g.FlowRate,
		&g.PendingRate, &effectiveAt, &g.Remainder, &startTime, &lastUpdate,
		&rateUpdated, &lastClaim, &warmup, &g.Status,
		&milestones, &council, &proposal,
	)
	if err != nil {
		return nil, err
	}
	g.EffectiveAt = uint64(effectiveAt)
	g.StartTime = uint64(startTime)
	g.LastUpdateTS = uint64(lastUpdate)
	g.RateUpdatedAt = uint64(rateUpdated)
	g.LastClaimTime = uint64(lastClaim)
	g.WarmupWindow = uint64(warmup)
	if milestones.Valid && milestones.String != "" {
		if err := json.Unmarshal([]byte(milestones.String), &g.Milestones); err != nil {
			return nil, fmt.Errorf("corrupt milestones for grant %s: %w", g.ID, err)
		}
	}
	if council.Valid && council.String != "" {
		if err := json.Unmarshal([]byte(council.String), &g.Council); err != nil {
			return nil, fmt.Errorf("corrupt council for grant %s: %w", g.ID, err)
		}
	}
	if proposal.Valid && proposal.String != "" {
		if err := json.Unmarshal([]byte(proposal.String), &g.PauseProposal); err != nil {
			return nil, fmt.Errorf("corrupt pause proposal for grant %s: %w", g.ID, err)
		}
	}
	return &g, nil
}

func grantJSON(g *vesting.Grant) (milestones, council, proposal string, err error) {
	if len(g.Milestones) > 0 {
		b, err := json.Marshal(g.Milestones)
		if err != nil {
			return "", "", "", err
		}
		milestones = string(b)
	}
	if len(g.Council) > 0 {
		b, err := json.Marshal(g.Council)
		if err != nil {
			return "", "", "", err
		}
		council = string(b)
	}
	if g.PauseProposal != nil {
		b, err := json.Marshal(g.PauseProposal)
		if err != nil {
			return "", "", "", err
		}
		proposal = string(b)
	}
	return milestones, council, proposal, nil
}

func createGrant(ctx context.Context, q querier, g *vesting.Grant) error {
	existing, err := getGrant(ctx, q, g.ID)
	if err != nil && err != vesting.ErrGrantNotFound {
		return err
	}
	if existing != nil {
		return vesting.ErrGrantAlreadyExists
	}
	milestones, council, proposal, err := grantJSON(g)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `INSERT INTO grants (`+grantColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(g.ID), string(g.Recipient), g.TotalAmount, g.Withdrawn, g.Claimable, g.FlowRate,
		g.PendingRate, int64(g.EffectiveAt), g.Remainder, int64(g.StartTime), int64(g.LastUpdateTS),
		int64(g.RateUpdatedAt), int64(g.LastClaimTime), int64(g.WarmupWindow), string(g.Status),
		milestones, council, proposal)
	return err
}

func updateGrant(ctx context.Context, q querier, g *vesting.Grant) error {
	milestones, council, proposal, err := grantJSON(g)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `UPDATE grants SET
		recipient = ?, total_amount = ?, withdrawn = ?, claimable = ?, flow_rate = ?,
		pending_rate = ?, effective_at = ?, remainder = ?, start_time = ?, last_update_ts = ?,
		rate_updated_at = ?, last_claim_time = ?, warmup_window = ?, status = ?,
		milestones_json = ?, council_json = ?, proposal_json = ?
		WHERE id = ?`,
		string(g.Recipient), g.TotalAmount, g.Withdrawn, g.Claimable, g.FlowRate,
		g.PendingRate, int64(g.EffectiveAt), g.Remainder, int64(g.StartTime), int64(g.LastUpdateTS),
		int64(g.RateUpdatedAt), int64(g.LastClaimTime), int64(g.WarmupWindow), string(g.Status),
		milestones, council, proposal, string(g.ID))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return vesting.ErrGrantNotFound
	}
	return nil
}

func grantIDs(ctx context.Context, q querier) ([]vesting.GrantID, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM grants ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []vesting.GrantID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, vesting.GrantID(id))
	}
	return ids, rows.Err()
}

// =============================================================================
// MOVER - token accounts
// =============================================================================

func (s *Store) Transfer(ctx context.Context, token string, from, to vesting.Principal, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := transfer(ctx, tx, token, from, to, amount); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) Balance(ctx context.Context, token string, account vesting.Principal) (int64, error) {
	return balance(ctx, s.db, token, account)
}

// Deposit credits an account directly. Dev and demo funding only.
func (s *Store) Deposit(ctx context.Context, token string, account vesting.Principal, amount int64) error {
	if amount <= 0 {
		return vesting.ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return credit(ctx, s.db, token, account, amount)
}

// Reset wipes all state. Demo scenario loading only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, table := range []string{"events", "accounts", "grants", "config"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

func transfer(ctx context.Context, q querier, token string, from, to vesting.Principal, amount int64) error {
	if amount <= 0 {
		return vesting.ErrInvalidAmount
	}
	bal, err := balance(ctx, q, token, from)
	if err != nil {
		return err
	}
	if bal < amount {
		return fmt.Errorf("%w: account %s has %d of %s, need %d",
			vesting.ErrInvalidAmount, from, bal, token, amount)
	}
	if _, err := q.ExecContext(ctx,
		`UPDATE accounts SET balance = balance - ? WHERE token = ? AND account = ?`,
		amount, token, string(from)); err != nil {
		return err
	}
	return credit(ctx, q, token, to, amount)
}

func credit(ctx context.Context, q querier, token string, account vesting.Principal, amount int64) error {
	_, err := q.ExecContext(ctx, `INSERT INTO accounts (token, account, balance) VALUES (?, ?, ?)
		ON CONFLICT(token, account) DO UPDATE SET balance = balance + excluded.balance`,
		token, string(account), amount)
	return err
}

func balance(ctx context.Context, q querier, token string, account vesting.Principal) (int64, error) {
	var bal int64
	err := q.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE token = ? AND account = ?`,
		token, string(account)).Scan(&bal)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return bal, err
}

// =============================================================================
// EVENT SINK - audit log
// =============================================================================

// Publish appends an audit event. Fire-and-forget: failures are logged,
// never surfaced, and never used for control flow.
func (s *Store) Publish(ctx context.Context, e vesting.Event) {
	if err := appendEvent(ctx, s.db, e); err != nil {
		log.Printf("event publish failed: %v", err)
	}
}

func appendEvent(ctx context.Context, q querier, e vesting.Event) error {
	var payload string
	if len(e.Payload) > 0 {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			return err
		}
		payload = string(b)
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO events (topic, grant_id, at, payload_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.Topic, string(e.GrantID), int64(e.At), payload, time.Now().UTC().Format(time.RFC3339))
	return err
}

// Events returns the audit trail for a grant, oldest first.
func (s *Store) Events(ctx context.Context, grantID vesting.GrantID) ([]vesting.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT topic, grant_id, at, payload_json FROM events WHERE grant_id = ? ORDER BY id`,
		string(grantID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []vesting.Event
	for rows.Next() {
		var e vesting.Event
		var at int64
		var payload sql.NullString
		if err := rows.Scan(&e.Topic, &e.GrantID, &at, &payload); err != nil {
			return nil, err
		}
		e.At = uint64(at)
		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &e.Payload); err != nil {
				return nil, err
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
