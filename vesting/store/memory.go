// Package store provides in-memory implementations of the vesting
// host-capability interfaces, for tests and development.
package store

import (
	"context"
	"sync"

	"github.com/warp/vesting-engine/vesting"
)

// =============================================================================
// MEMORY STORE - In-memory TxStore implementation
// =============================================================================

// Memory implements vesting.TxStore and vesting.Mover. Grants and token
// balances live in the same snapshot, so a WithTx rollback also undoes
// any transfers the failed operation made (the same all-or-nothing
// contract the sqlite store gives through its database transaction).
type Memory struct {
	mu       sync.RWMutex
	cfg      *vesting.Config
	grants   map[vesting.GrantID]*vesting.Grant
	ids      []vesting.GrantID // append-only registry, creation order
	balances map[bankKey]int64
}

type bankKey struct {
	Token   string
	Account vesting.Principal
}

func NewMemory() *Memory {
	return &Memory{
		grants:   make(map[vesting.GrantID]*vesting.Grant),
		balances: make(map[bankKey]int64),
	}
}

func (m *Memory) Config(_ context.Context) (*vesting.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cfg == nil {
		return nil, nil
	}
	cfg := *m.cfg
	return &cfg, nil
}

func (m *Memory) PutConfig(_ context.Context, cfg vesting.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg != nil {
		return vesting.ErrAlreadyInitialized
	}
	m.cfg = &cfg
	return nil
}

func (m *Memory) Grant(_ context.Context, id vesting.GrantID) (*vesting.Grant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.grants[id]
	if !ok {
		return nil, vesting.ErrGrantNotFound
	}
	return g.Clone(), nil
}

func (m *Memory) CreateGrant(_ context.Context, g *vesting.Grant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.grants[g.ID]; ok {
		return vesting.ErrGrantAlreadyExists
	}
	m.grants[g.ID] = g.Clone()
	m.ids = append(m.ids, g.ID)
	return nil
}

func (m *Memory) UpdateGrant(_ context.Context, g *vesting.Grant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.grants[g.ID]; !ok {
		return vesting.ErrGrantNotFound
	}
	m.grants[g.ID] = g.Clone()
	return nil
}

func (m *Memory) GrantIDs(_ context.Context) ([]vesting.GrantID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]vesting.GrantID, len(m.ids))
	copy(ids, m.ids)
	return ids, nil
}

// WithTx executes fn against the store, restoring a snapshot on error.
// The memory store holds its lock for the duration, which matches the
// engine's single-writer transactional model.
func (m *Memory) WithTx(_ context.Context, fn func(vesting.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&memoryView{parent: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *Memory) snapshot() memorySnapshot {
	grants := make(map[vesting.GrantID]*vesting.Grant, len(m.grants))
	for id, g := range m.grants {
		grants[id] = g.Clone()
	}
	ids := make([]vesting.GrantID, len(m.ids))
	copy(ids, m.ids)
	var cfg *vesting.Config
	if m.cfg != nil {
		c := *m.cfg
		cfg = &c
	}
	balances := make(map[bankKey]int64, len(m.balances))
	for k, v := range m.balances {
		balances[k] = v
	}
	return memorySnapshot{cfg: cfg, grants: grants, ids: ids, balances: balances}
}

func (m *Memory) restore(s memorySnapshot) {
	m.cfg = s.cfg
	m.grants = s.grants
	m.ids = s.ids
	m.balances = s.balances
}

type memorySnapshot struct {
	cfg      *vesting.Config
	grants   map[vesting.GrantID]*vesting.Grant
	ids      []vesting.GrantID
	balances map[bankKey]int64
}

// memoryView is the transactional view handed to WithTx callbacks. The
// parent lock is already held, so it accesses fields directly.
type memoryView struct {
	parent *Memory
}

func (v *memoryView) Config(_ context.Context) (*vesting.Config, error) {
	if v.parent.cfg == nil {
		return nil, nil
	}
	cfg := *v.parent.cfg
	return &cfg, nil
}

func (v *memoryView) PutConfig(_ context.Context, cfg vesting.Config) error {
	if v.parent.cfg != nil {
		return vesting.ErrAlreadyInitialized
	}
	v.parent.cfg = &cfg
	return nil
}

func (v *memoryView) Grant(_ context.Context, id vesting.GrantID) (*vesting.Grant, error) {
	g, ok := v.parent.grants[id]
	if !ok {
		return nil, vesting.ErrGrantNotFound
	}
	return g.Clone(), nil
}

func (v *memoryView) CreateGrant(_ context.Context, g *vesting.Grant) error {
	if _, ok := v.parent.grants[g.ID]; ok {
		return vesting.ErrGrantAlreadyExists
	}
	v.parent.grants[g.ID] = g.Clone()
	v.parent.ids = append(v.parent.ids, g.ID)
	return nil
}

func (v *memoryView) UpdateGrant(_ context.Context, g *vesting.Grant) error {
	if _, ok := v.parent.grants[g.ID]; !ok {
		return vesting.ErrGrantNotFound
	}
	v.parent.grants[g.ID] = g.Clone()
	return nil
}

func (v *memoryView) GrantIDs(_ context.Context) ([]vesting.GrantID, error) {
	ids := make([]vesting.GrantID, len(v.parent.ids))
	copy(ids, v.parent.ids)
	return ids, nil
}

// The view implements Mover against the same balances the snapshot covers,
// so transfers inside a failed transaction roll back with the grant state.
func (v *memoryView) Transfer(_ context.Context, token string, from, to vesting.Principal, amount int64) error {
	return v.parent.transferLocked(token, from, to, amount)
}

func (v *memoryView) Balance(_ context.Context, token string, account vesting.Principal) (int64, error) {
	return v.parent.balances[bankKey{token, account}], nil
}

// =============================================================================
// MEMORY BANK - In-memory Mover implementation
// =============================================================================

// Deposit credits an account directly. Test/dev funding only.
func (m *Memory) Deposit(token string, account vesting.Principal, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[bankKey{token, account}] += amount
}

// Transfer is atomic: a failed transfer (insufficient balance) has no effect.
func (m *Memory) Transfer(_ context.Context, token string, from, to vesting.Principal, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transferLocked(token, from, to, amount)
}

func (m *Memory) Balance(_ context.Context, token string, account vesting.Principal) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[bankKey{token, account}], nil
}

// transferLocked moves funds with m.mu already held.
func (m *Memory) transferLocked(token string, from, to vesting.Principal, amount int64) error {
	if amount <= 0 {
		return vesting.ErrInvalidAmount
	}
	fromKey := bankKey{token, from}
	if m.balances[fromKey] < amount {
		return vesting.ErrInvalidAmount
	}
	m.balances[fromKey] -= amount
	m.balances[bankKey{token, to}] += amount
	return nil
}

// =============================================================================
// MEMORY EVENT SINK - records published events for inspection
// =============================================================================

type Recorder struct {
	mu     sync.Mutex
	events []vesting.Event
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Publish(_ context.Context, e vesting.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []vesting.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]vesting.Event, len(r.events))
	copy(out, r.events)
	return out
}
