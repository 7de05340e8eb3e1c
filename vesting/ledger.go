/*
ledger.go - The grant lifecycle state machine

PURPOSE:
  Ledger is the state-transition engine over Grant records. Every public
  operation follows the same shape:

    1. Load config and the grant inside a store transaction
    2. Check authorization (admin / oracle / recipient / anyone)
    3. Validate the lifecycle state
    4. Settle accrual through the current clock time
    5. Mutate, persist, then issue token transfers LAST
    6. Publish an audit event

  If any step fails the store transaction rolls back and no transfer has
  happened: there is no fire-then-persist window.

STATE MACHINE:
  Active <-> Paused
  Active/Paused -> Cancelled (admin cancel, inactivity slash, council pause->cancel)
  Active/Paused -> SelfTerminated (recipient)
  Active -> Completed (accrual or withdrawal reaches total_amount)
  Completed/Cancelled/SelfTerminated are terminal.

SEE ALSO:
  - settle.go:     Accrual math
  - governance.go: Council votes and milestone releases
  - store.go:      Host-capability interfaces
*/
package vesting

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER
// =============================================================================

// Ledger drives grant state transitions against a transactional store.
// Fields other than Store and Bank have working defaults and may be
// replaced before use (tests inject ManualClock, the API layer injects an
// event recorder).
type Ledger struct {
	Store  TxStore
	Bank   Mover
	Events EventSink
	Auth   Authorizer
	Clock  Clock
}

func NewLedger(store TxStore, bank Mover) *Ledger {
	return &Ledger{
		Store:  store,
		Bank:   bank,
		Events: NopSink{},
		Auth:   CallerAuthorizer{},
		Clock:  WallClock{},
	}
}

// config loads the ledger configuration or fails with ErrNotInitialized.
func (l *Ledger) config(ctx context.Context, s Store) (*Config, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrNotInitialized
	}
	return cfg, nil
}

// publish emits an audit event through the transactional view when the
// store doubles as an EventSink (sqlite), so events commit with the state
// change they describe. Otherwise the configured sink is used.
func (l *Ledger) publish(ctx context.Context, s Store, topic string, id GrantID, payload map[string]string) {
	sink := l.Events
	if es, ok := s.(EventSink); ok {
		sink = es
	}
	sink.Publish(ctx, Event{Topic: topic, GrantID: id, At: l.Clock.Now(), Payload: payload})
}

// bankFor prefers a Mover implemented by the transactional store view, so
// stores that keep account balances alongside grants (sqlite) commit
// transfers and state in one transaction. Otherwise the configured Bank
// is used, with transfers issued last so a failure still rolls back state.
func (l *Ledger) bankFor(s Store) Mover {
	if m, ok := s.(Mover); ok {
		return m
	}
	return l.Bank
}

// =============================================================================
// INITIALIZE
// =============================================================================

// Initialize sets the ledger-wide principals and grant token. One-shot:
// a second call fails with ErrAlreadyInitialized. The admin must authorize
// its own appointment.
func (l *Ledger) Initialize(ctx context.Context, cfg Config) error {
	if cfg.Admin == "" || cfg.Treasury == "" || cfg.Vault == "" || cfg.GrantToken == "" {
		return fmt.Errorf("%w: incomplete configuration", ErrInvalidState)
	}
	return l.Store.WithTx(ctx, func(s Store) error {
		existing, err := s.Config(ctx)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyInitialized
		}
		if err := l.Auth.RequireAuth(ctx, cfg.Admin); err != nil {
			return err
		}
		return s.PutConfig(ctx, cfg)
	})
}

// =============================================================================
// CREATE
// =============================================================================

type CreateGrantParams struct {
	ID          GrantID
	Recipient   Principal
	TotalAmount int64
	FlowRate    int64 // scaled; see RatePerSecond / ScaledRate
	// WarmupWindow > 0 ramps accrual up over the first WarmupWindow seconds.
	WarmupWindow uint64
}

// CreateGrant creates a new Active grant. Admin-only.
func (l *Ledger) CreateGrant(ctx context.Context, p CreateGrantParams) error {
	return l.Store.WithTx(ctx, func(s Store) error {
		cfg, err := l.config(ctx, s)
		if err != nil {
			return err
		}
		if err := l.Auth.RequireAuth(ctx, cfg.Admin); err != nil {
			return err
		}
		if p.TotalAmount <= 0 {
			return fmt.Errorf("%w: total amount must be positive", ErrInvalidAmount)
		}
		if p.FlowRate < 0 {
			return ErrInvalidRate
		}

		now := l.Clock.Now()
		g := &Grant{
			ID:            p.ID,
			Recipient:     p.Recipient,
			TotalAmount:   p.TotalAmount,
			FlowRate:      p.FlowRate,
			StartTime:     now,
			LastUpdateTS:  now,
			RateUpdatedAt: now,
			LastClaimTime: now,
			WarmupWindow:  p.WarmupWindow,
			Status:        StatusActive,
		}
		if err := s.CreateGrant(ctx, g); err != nil {
			return err
		}
		l.publish(ctx, s, TopicGrantCreated, p.ID, map[string]string{
			"recipient": string(p.Recipient),
			"total":     strconv.FormatInt(p.TotalAmount, 10),
			"flow_rate": strconv.FormatInt(p.FlowRate, 10),
		})
		return nil
	})
}

// =============================================================================
// WITHDRAW
// =============================================================================

// Withdraw settles the grant and moves amount from claimable to withdrawn,
// paying it out of the vault. Recipient-only.
func (l *Ledger) Withdraw(ctx context.Context, id GrantID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: withdraw amount must be positive", ErrInvalidAmount)
	}
	return l.Store.WithTx(ctx, func(s Store) error {
		cfg, err := l.config(ctx, s)
		if err != nil {
			return err
		}
		g, err := s.Grant(ctx, id)
		if err != nil {
			return err
		}
		if g.Status == StatusCancelled || g.Status == StatusSelfTerminated {
			return &StateError{GrantID: id, Status: g.Status, Op: "withdraw"}
		}
		if err := l.Auth.RequireAuth(ctx, g.Recipient); err != nil {
			return err
		}

		now := l.Clock.Now()
		if err := Settle(g, now); err != nil {
			return err
		}
		if amount > g.Claimable {
			return &InsufficientClaimableError{GrantID: id, Claimable: g.Claimable, Requested: amount}
		}

		if g.Claimable, err = subChecked(g.Claimable, amount); err != nil {
			return err
		}
		if g.Withdrawn, err = addChecked(g.Withdrawn, amount); err != nil {
			return err
		}
		accounted, err := addChecked(g.Withdrawn, g.Claimable)
		if err != nil {
			return err
		}
		if accounted > g.TotalAmount {
			return ErrInvalidState
		}
		if g.Withdrawn == g.TotalAmount {
			g.Status = StatusCompleted
			g.FlowRate = 0
			g.PendingRate = 0
			g.EffectiveAt = 0
			g.Remainder = 0
		}
		g.LastClaimTime = now

		if err := s.UpdateGrant(ctx, g); err != nil {
			return err
		}
		if err := l.bankFor(s).Transfer(ctx, cfg.GrantToken, cfg.Vault, g.Recipient, amount); err != nil {
			return err
		}
		l.publish(ctx, s, TopicWithdrawal, id, map[string]string{
			"amount":    strconv.FormatInt(amount, 10),
			"withdrawn": strconv.FormatInt(g.Withdrawn, 10),
		})
		return nil
	})
}

// =============================================================================
// PAUSE / RESUME
// =============================================================================

// Pause freezes accrual on an Active grant. Admin-only.
func (l *Ledger) Pause(ctx context.Context, id GrantID) error {
	return l.adminTransition(ctx, id, "pause", StatusActive, StatusPaused, TopicGrantPaused)
}

// Resume reactivates a Paused grant. Admin-only.
func (l *Ledger) Resume(ctx context.Context, id GrantID) error {
	return l.adminTransition(ctx, id, "resume", StatusPaused, StatusActive, TopicGrantResumed)
}

func (l *Ledger) adminTransition(ctx context.Context, id GrantID, op string, from, to Status, topic string) error {
	return l.Store.WithTx(ctx, func(s Store) error {
		cfg, err := l.config(ctx, s)
		if err != nil {
			return err
		}
		if err := l.Auth.RequireAuth(ctx, cfg.Admin); err != nil {
			return err
		}
		g, err := s.Grant(ctx, id)
		if err != nil {
			return err
		}
		if g.Status != from {
			return &StateError{GrantID: id, Status: g.Status, Op: op}
		}
		if err := Settle(g, l.Clock.Now()); err != nil {
			return err
		}
		// Settlement can complete the grant out from under the transition.
		if g.Status != from {
			return &StateError{GrantID: id, Status: g.Status, Op: op}
		}
		g.Status = to
		if err := s.UpdateGrant(ctx, g); err != nil {
			return err
		}
		l.publish(ctx, s, topic, id, nil)
		return nil
	})
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel terminates an Active or Paused grant. Accrued claimable is paid
// out to the recipient and the unvested remainder is refunded to the
// treasury, so nothing stays stranded on a Cancelled grant. Admin-only.
func (l *Ledger) Cancel(ctx context.Context, id GrantID) error {
	return l.Store.WithTx(ctx, func(s Store) error {
		cfg, err := l.config(ctx, s)
		if err != nil {
			return err
		}
		if err := l.Auth.RequireAuth(ctx, cfg.Admin); err != nil {
			return err
		}
		g, err := s.Grant(ctx, id)
		if err != nil {
			return err
		}
		if g.Status != StatusActive && g.Status != StatusPaused {
			return &StateError{GrantID: id, Status: g.Status, Op: "cancel"}
		}

		now := l.Clock.Now()
		if err := Settle(g, now); err != nil {
			return err
		}
		// Settlement can complete the grant; Completed is terminal and the
		// recipient withdraws the settled balance normally.
		if g.Status != StatusActive && g.Status != StatusPaused {
			return &StateError{GrantID: id, Status: g.Status, Op: "cancel"}
		}

		payout := g.Claimable
		if g.Withdrawn, err = addChecked(g.Withdrawn, payout); err != nil {
			return err
		}
		g.Claimable = 0
		refund, err := subChecked(g.TotalAmount, g.Withdrawn)
		if err != nil {
			return err
		}

		g.Status = StatusCancelled
		g.FlowRate = 0
		g.PendingRate = 0
		g.EffectiveAt = 0
		g.Remainder = 0
		if payout > 0 {
			g.LastClaimTime = now
		}

		if err := s.UpdateGrant(ctx, g); err != nil {
			return err
		}
		if payout > 0 {
			if err := l.bankFor(s).Transfer(ctx, cfg.GrantToken, cfg.Vault, g.Recipient, payout); err != nil {
				return err
			}
		}
		if refund > 0 {
			if err := l.bankFor(s).Transfer(ctx, cfg.GrantToken, cfg.Vault, cfg.Treasury, refund); err != nil {
				return err
			}
		}
		l.publish(ctx, s, TopicGrantCancelled, id, map[string]string{
			"payout": strconv.FormatInt(payout, 10),
			"refund": strconv.FormatInt(refund, 10),
		})
		return nil
	})
}

// =============================================================================
// RATE CHANGES
// =============================================================================

// ProposeRateChange updates the flow rate. Increases are time-locked: they
// are scheduled and only take effect RateIncreaseTimelock seconds later,
// preventing instant grant inflation. Decreases apply immediately and
// clear any pending increase. Admin-only.
func (l *Ledger) ProposeRateChange(ctx context.Context, id GrantID, newRate int64) error {
	if newRate < 0 {
		return ErrInvalidRate
	}
	return l.Store.WithTx(ctx, func(s Store) error {
		cfg, err := l.config(ctx, s)
		if err != nil {
			return err
		}
		if err := l.Auth.RequireAuth(ctx, cfg.Admin); err != nil {
			return err
		}
		g, err := s.Grant(ctx, id)
		if err != nil {
			return err
		}
		if g.Status != StatusActive {
			return &StateError{GrantID: id, Status: g.Status, Op: "rate change"}
		}

		now := l.Clock.Now()
		if err := Settle(g, now); err != nil {
			return err
		}
		if g.Status != StatusActive {
			return &StateError{GrantID: id, Status: g.Status, Op: "rate change"}
		}

		oldRate := g.FlowRate
		if newRate > g.FlowRate {
			g.PendingRate = newRate
			g.EffectiveAt = now + RateIncreaseTimelock
			if err := s.UpdateGrant(ctx, g); err != nil {
				return err
			}
			l.publish(ctx, s, TopicRateProposed, id, map[string]string{
				"old_rate":     strconv.FormatInt(oldRate, 10),
				"new_rate":     strconv.FormatInt(newRate, 10),
				"effective_at": strconv.FormatUint(g.EffectiveAt, 10),
			})
			return nil
		}

		g.FlowRate = newRate
		g.RateUpdatedAt = now
		g.PendingRate = 0
		g.EffectiveAt = 0
		if err := s.UpdateGrant(ctx, g); err != nil {
			return err
		}
		l.publish(ctx, s, TopicRateUpdated, id, map[string]string{
			"old_rate": strconv.FormatInt(oldRate, 10),
			"new_rate": strconv.FormatInt(newRate, 10),
		})
		return nil
	})
}

// ApplyKPIMultiplier scales the current flow rate (and any pending rate,
// preserving the timelock structure) by a positive multiplier. Oracle-only;
// this is the hook for KPI-driven grant adjustments.
func (l *Ledger) ApplyKPIMultiplier(ctx context.Context, id GrantID, multiplier decimal.Decimal) error {
	if multiplier.Sign() <= 0 {
		return fmt.Errorf("%w: multiplier must be positive", ErrInvalidRate)
	}
	return l.Store.WithTx(ctx, func(s Store) error {
		cfg, err := l.config(ctx, s)
		if err != nil {
			return err
		}
		if err := l.Auth.RequireAuth(ctx, cfg.Oracle); err != nil {
			return err
		}
		g, err := s.Grant(ctx, id)
		if err != nil {
			return err
		}
		if g.Status != StatusActive {
			return &StateError{GrantID: id, Status: g.Status, Op: "kpi multiplier"}
		}

		now := l.Clock.Now()
		if err := Settle(g, now); err != nil {
			return err
		}
		if g.Status != StatusActive {
			return &StateError{GrantID: id, Status: g.Status, Op: "kpi multiplier"}
		}

		oldRate := g.FlowRate
		if g.FlowRate, err = mulRateChecked(g.FlowRate, multiplier); err != nil {
			return err
		}
		if g.PendingRate > 0 {
			if g.PendingRate, err = mulRateChecked(g.PendingRate, multiplier); err != nil {
				return err
			}
		}
		g.RateUpdatedAt = now

		if err := s.UpdateGrant(ctx, g); err != nil {
			return err
		}
		l.publish(ctx, s, TopicKPIApplied, id, map[string]string{
			"old_rate":   strconv.FormatInt(oldRate, 10),
			"new_rate":   strconv.FormatInt(g.FlowRate, 10),
			"multiplier": multiplier.String(),
		})
		return nil
	})
}

// mulRateChecked scales a stored rate by a decimal multiplier, flooring the
// result, with an int64 range check.
func mulRateChecked(rate int64, multiplier decimal.Decimal) (int64, error) {
	scaled := decimal.NewFromInt(rate).Mul(multiplier).Floor()
	v := scaled.BigInt()
	if !v.IsInt64() {
		return 0, ErrMathOverflow
	}
	return v.Int64(), nil
}

// =============================================================================
// INACTIVITY SLASH
// =============================================================================

// SlashInactiveGrant cancels an Active grant whose recipient has not
// claimed within InactivityThreshold, confiscating the unclaimed balance
// to the treasury. Callable by anyone: permissionless enforcement.
func (l *Ledger) SlashInactiveGrant(ctx context.Context, id GrantID) error {
	return l.Store.WithTx(ctx, func(s Store) error {
		cfg, err := l.config(ctx, s)
		if err != nil {
			return err
		}
		g, err := s.Grant(ctx, id)
		if err != nil {
			return err
		}
		if g.Status != StatusActive {
			return &StateError{GrantID: id, Status: g.Status, Op: "slash"}
		}

		now := l.Clock.Now()
		if err := Settle(g, now); err != nil {
			return err
		}
		if g.Status != StatusActive {
			return &StateError{GrantID: id, Status: g.Status, Op: "slash"}
		}

		var inactive uint64
		if now > g.LastClaimTime {
			inactive = now - g.LastClaimTime
		}
		if inactive < InactivityThreshold {
			return ErrGrantNotInactive
		}

		remaining, err := subChecked(g.TotalAmount, g.Withdrawn)
		if err != nil {
			return err
		}

		// The slash confiscates unclaimed claimable along with the unvested
		// principal: everything not already withdrawn goes to the treasury.
		g.Claimable = 0
		g.Remainder = 0
		g.FlowRate = 0
		g.PendingRate = 0
		g.EffectiveAt = 0
		g.Status = StatusCancelled

		if err := s.UpdateGrant(ctx, g); err != nil {
			return err
		}
		if remaining > 0 {
			if err := l.bankFor(s).Transfer(ctx, cfg.GrantToken, cfg.Vault, cfg.Treasury, remaining); err != nil {
				return err
			}
		}
		l.publish(ctx, s, TopicGrantSlashed, id, map[string]string{
			"remaining":      strconv.FormatInt(remaining, 10),
			"inactive_for_s": strconv.FormatUint(inactive, 10),
		})
		return nil
	})
}

// =============================================================================
// SELF-TERMINATION
// =============================================================================

// TerminationResult describes the outcome of a self-termination.
type TerminationResult struct {
	GrantID        GrantID
	FinalClaimable int64
	Refunded       int64
	TerminatedAt   uint64
}

// SelfTerminate lets the recipient gracefully end their own grant: the
// final settled claimable is paid out, the unspent remainder goes back to
// the treasury, and the grant becomes SelfTerminated. Recipient-only.
func (l *Ledger) SelfTerminate(ctx context.Context, id GrantID) (*TerminationResult, error) {
	var result *TerminationResult
	err := l.Store.WithTx(ctx, func(s Store) error {
		cfg, err := l.config(ctx, s)
		if err != nil {
			return err
		}
		g, err := s.Grant(ctx, id)
		if err != nil {
			return err
		}
		switch g.Status {
		case StatusSelfTerminated:
			return ErrAlreadyTerminated
		case StatusCompleted:
			return ErrCannotTerminateCompleted
		case StatusCancelled:
			return ErrCannotTerminateCancelled
		case StatusActive, StatusPaused:
		default:
			return &StateError{GrantID: id, Status: g.Status, Op: "self-terminate"}
		}
		if err := l.Auth.RequireAuth(ctx, g.Recipient); err != nil {
			return err
		}

		now := l.Clock.Now()
		if err := Settle(g, now); err != nil {
			return err
		}
		if g.Status == StatusCompleted {
			return ErrCannotTerminateCompleted
		}

		final := g.Claimable
		if g.Withdrawn, err = addChecked(g.Withdrawn, final); err != nil {
			return err
		}
		g.Claimable = 0
		refund, err := subChecked(g.TotalAmount, g.Withdrawn)
		if err != nil {
			return err
		}

		g.Status = StatusSelfTerminated
		g.FlowRate = 0
		g.PendingRate = 0
		g.EffectiveAt = 0
		g.Remainder = 0
		if final > 0 {
			g.LastClaimTime = now
		}

		if err := s.UpdateGrant(ctx, g); err != nil {
			return err
		}
		if final > 0 {
			if err := l.bankFor(s).Transfer(ctx, cfg.GrantToken, cfg.Vault, g.Recipient, final); err != nil {
				return err
			}
		}
		if refund > 0 {
			if err := l.bankFor(s).Transfer(ctx, cfg.GrantToken, cfg.Vault, cfg.Treasury, refund); err != nil {
				return err
			}
		}

		result = &TerminationResult{
			GrantID:        id,
			FinalClaimable: final,
			Refunded:       refund,
			TerminatedAt:   now,
		}
		l.publish(ctx, s, TopicSelfTerminated, id, map[string]string{
			"final_claimable": strconv.FormatInt(final, 10),
			"refunded":        strconv.FormatInt(refund, 10),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// RECIPIENT REASSIGNMENT
// =============================================================================

// ReassignGrantee replaces a grant's recipient. Intended for key-loss
// recovery. The supplied old address must match the stored recipient,
// which acts as an optimistic lock against racing admin calls. Admin-only.
func (l *Ledger) ReassignGrantee(ctx context.Context, id GrantID, oldRecipient, newRecipient Principal) error {
	return l.Store.WithTx(ctx, func(s Store) error {
		cfg, err := l.config(ctx, s)
		if err != nil {
			return err
		}
		if err := l.Auth.RequireAuth(ctx, cfg.Admin); err != nil {
			return err
		}
		g, err := s.Grant(ctx, id)
		if err != nil {
			return err
		}
		if g.Recipient != oldRecipient {
			return ErrGranteeMismatch
		}
		g.Recipient = newRecipient
		if err := s.UpdateGrant(ctx, g); err != nil {
			return err
		}
		l.publish(ctx, s, TopicGranteeChanged, id, map[string]string{
			"old": string(oldRecipient),
			"new": string(newRecipient),
		})
		return nil
	})
}

// =============================================================================
// TOKEN RESCUE
// =============================================================================

// RescueTokens moves stray deposits out of the vault. When rescuing the
// grant token itself, the vault must keep at least the total allocated
// funds of all Active grants; unrelated tokens are always safe. Admin-only.
func (l *Ledger) RescueTokens(ctx context.Context, token string, amount int64, to Principal) error {
	if amount <= 0 {
		return fmt.Errorf("%w: rescue amount must be positive", ErrInvalidAmount)
	}
	return l.Store.WithTx(ctx, func(s Store) error {
		cfg, err := l.config(ctx, s)
		if err != nil {
			return err
		}
		if err := l.Auth.RequireAuth(ctx, cfg.Admin); err != nil {
			return err
		}

		balance, err := l.bankFor(s).Balance(ctx, token, cfg.Vault)
		if err != nil {
			return err
		}
		var allocated int64
		if token == cfg.GrantToken {
			if allocated, err = totalAllocatedFunds(ctx, s); err != nil {
				return err
			}
		}
		after, err := subChecked(balance, amount)
		if err != nil {
			return err
		}
		if after < allocated {
			return &AllocatedFundsError{Balance: balance, Requested: amount, Allocated: allocated}
		}
		if err := l.bankFor(s).Transfer(ctx, token, cfg.Vault, to, amount); err != nil {
			return err
		}
		l.publish(ctx, s, TopicTokensRescued, "", map[string]string{
			"token":  token,
			"amount": strconv.FormatInt(amount, 10),
			"to":     string(to),
		})
		return nil
	})
}

// totalAllocatedFunds sums total_amount - withdrawn over Active grants:
// the tokens that must remain in the vault. Linear in grants ever created.
func totalAllocatedFunds(ctx context.Context, s Store) (int64, error) {
	ids, err := s.GrantIDs(ctx)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, id := range ids {
		g, err := s.Grant(ctx, id)
		if err != nil {
			return 0, err
		}
		if g.Status != StatusActive {
			continue
		}
		remaining, err := subChecked(g.TotalAmount, g.Withdrawn)
		if err != nil {
			return 0, err
		}
		if total, err = addChecked(total, remaining); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// =============================================================================
// READ-ONLY QUERIES - settle a clone, never the stored grant
// =============================================================================

// GetGrant returns a settled preview of the grant at the current time
// without mutating stored state.
func (l *Ledger) GetGrant(ctx context.Context, id GrantID) (*Grant, error) {
	g, err := l.Store.Grant(ctx, id)
	if err != nil {
		return nil, err
	}
	return previewAt(g, l.Clock.Now())
}

// Claimable returns the accrued-but-unpaid balance as of now.
func (l *Ledger) Claimable(ctx context.Context, id GrantID) (int64, error) {
	g, err := l.GetGrant(ctx, id)
	if err != nil {
		return 0, err
	}
	return g.Claimable, nil
}

// RemainingAmount returns the not-yet-accounted portion as of now.
func (l *Ledger) RemainingAmount(ctx context.Context, id GrantID) (int64, error) {
	g, err := l.GetGrant(ctx, id)
	if err != nil {
		return 0, err
	}
	return g.Remaining()
}

// CanSelfTerminate reports whether the recipient could self-terminate now.
func (l *Ledger) CanSelfTerminate(ctx context.Context, id GrantID) (bool, error) {
	g, err := l.Store.Grant(ctx, id)
	if err != nil {
		return false, err
	}
	return g.Status == StatusActive || g.Status == StatusPaused, nil
}

// TotalAllocatedFunds returns the vault commitment across Active grants.
func (l *Ledger) TotalAllocatedFunds(ctx context.Context) (int64, error) {
	var total int64
	err := l.Store.WithTx(ctx, func(s Store) error {
		var err error
		total, err = totalAllocatedFunds(ctx, s)
		return err
	})
	return total, err
}

// ListGrants returns settled previews of every grant ever created.
func (l *Ledger) ListGrants(ctx context.Context) ([]*Grant, error) {
	ids, err := l.Store.GrantIDs(ctx)
	if err != nil {
		return nil, err
	}
	now := l.Clock.Now()
	grants := make([]*Grant, 0, len(ids))
	for _, id := range ids {
		g, err := l.Store.Grant(ctx, id)
		if err != nil {
			return nil, err
		}
		preview, err := previewAt(g, now)
		if err != nil {
			return nil, err
		}
		grants = append(grants, preview)
	}
	return grants, nil
}
