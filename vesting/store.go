/*
store.go - Persistence and host-capability interfaces

PURPOSE:
  Defines the boundary between the ledger engine and its host. The engine
  is a pure state-transition core; everything with a side effect lives
  behind one of these interfaces:

  Store / TxStore:  Grant-by-ID persistence, config, grant-ID registry
  Mover:            Token transfers and balance queries
  EventSink:        Fire-and-forget audit events
  Authorizer:       Proof-of-authority checks for principals

TRANSACTIONAL CONTRACT:
  Every ledger operation runs inside TxStore.WithTx. Either all state
  mutations commit or none do; token transfers are issued last inside the
  transaction body, so a failed transfer rolls the whole operation back.
  This is deliberately NOT fire-then-persist: no settlement is ever
  persisted on a transfer failure.

IMPLEMENTATIONS:
  - vesting/store/memory.go: In-memory store + bank for tests/dev
  - store/sqlite/sqlite.go:  Production SQLite store + bank + event log

SEE ALSO:
  - ledger.go: The operations that drive these interfaces
*/
package vesting

import "context"

// =============================================================================
// STORE - grant persistence
// =============================================================================

// Store persists grants and ledger configuration. Grants are never deleted;
// they persist permanently as historical record, and the ID registry is
// append-only (it backs the aggregate allocated-funds computation).
type Store interface {
	// Config returns the ledger configuration, or nil if not initialized.
	Config(ctx context.Context) (*Config, error)

	// PutConfig stores the configuration. Fails if already set.
	PutConfig(ctx context.Context, cfg Config) error

	// Grant returns the stored grant or ErrGrantNotFound.
	Grant(ctx context.Context, id GrantID) (*Grant, error)

	// CreateGrant stores a new grant and appends its ID to the registry.
	// Fails with ErrGrantAlreadyExists if the ID is taken.
	CreateGrant(ctx context.Context, g *Grant) error

	// UpdateGrant overwrites an existing grant.
	UpdateGrant(ctx context.Context, g *Grant) error

	// GrantIDs returns every grant ID ever created, in creation order.
	GrantIDs(ctx context.Context) ([]GrantID, error)
}

// TxStore wraps Store with atomic transaction support.
type TxStore interface {
	Store

	// WithTx executes fn against a transactional view. If fn returns an
	// error every mutation it made is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// MOVER - external token-transfer capability
// =============================================================================

// Mover executes token transfers. A failed transfer must have no effect;
// the ledger treats any error as aborting the whole operation.
type Mover interface {
	Transfer(ctx context.Context, token string, from, to Principal, amount int64) error
	Balance(ctx context.Context, token string, account Principal) (int64, error)
}

// =============================================================================
// EVENT SINK - audit events, never used for control flow
// =============================================================================

type EventSink interface {
	Publish(ctx context.Context, e Event)
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Publish(context.Context, Event) {}

// =============================================================================
// AUTHORIZER - proof of authority for a principal
// =============================================================================

// Authorizer checks that the current caller can act as principal. A failure
// aborts the whole operation before any mutation.
type Authorizer interface {
	RequireAuth(ctx context.Context, principal Principal) error
}

// CallerAuthorizer compares the principal against the caller identity
// attached to the context via WithCaller.
type CallerAuthorizer struct{}

func (CallerAuthorizer) RequireAuth(ctx context.Context, principal Principal) error {
	if CallerFrom(ctx) != principal {
		return ErrNotAuthorized
	}
	return nil
}

type callerKey struct{}

// WithCaller attaches the caller identity to the context.
func WithCaller(ctx context.Context, caller Principal) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the caller identity, or "" if none set.
func CallerFrom(ctx context.Context) Principal {
	if p, ok := ctx.Value(callerKey{}).(Principal); ok {
		return p
	}
	return ""
}
