/*
governance.go - Council pause votes and milestone releases

PURPOSE:
  Two release-gating mechanisms carried alongside streaming accrual:

  COUNCIL PAUSE:
    Each grant can have a five-member council. Any member may propose a
    pause; once three members have voted the pause executes. This lets a
    DAO freeze a grant without waiting for the admin.

  MILESTONES:
    Fixed tranches the admin defines up front (their sum bounded by
    total_amount) and releases one-by-one as work lands. A released
    milestone credits claimable directly, clamped by the same
    withdrawn+claimable <= total_amount invariant as streamed accrual.
    Releases are blocked while the grant is paused.

SEE ALSO:
  - ledger.go: Core lifecycle operations
  - types.go:  Milestone, PauseProposal, CouncilSize, PauseVoteThreshold
*/
package vesting

import (
	"context"
	"fmt"
	"strconv"
)

// =============================================================================
// COUNCIL
// =============================================================================

// SetCouncil assigns the grant's council: exactly CouncilSize distinct
// members. Admin-only.
func (l *Ledger) SetCouncil(ctx context.Context, id GrantID, members []Principal) error {
	if len(members) != CouncilSize {
		return ErrInvalidCouncilSize
	}
	seen := make(map[Principal]bool, len(members))
	for _, m := range members {
		if m == "" || seen[m] {
			return ErrInvalidCouncilSize
		}
		seen[m] = true
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
		if g.Status.Terminal() {
			return &StateError{GrantID: id, Status: g.Status, Op: "set council"}
		}
		g.Council = append([]Principal(nil), members...)
		if err := s.UpdateGrant(ctx, g); err != nil {
			return err
		}
		l.publish(ctx, s, TopicCouncilSet, id, nil)
		return nil
	})
}

// councilCaller resolves which council member the caller can act as.
func (l *Ledger) councilCaller(ctx context.Context, g *Grant) (Principal, error) {
	for _, m := range g.Council {
		if l.Auth.RequireAuth(ctx, m) == nil {
			return m, nil
		}
	}
	return "", ErrNotCouncilMember
}

// ProposePause opens a pause vote on an Active grant. Council-member-only;
// the proposal starts with zero votes.
func (l *Ledger) ProposePause(ctx context.Context, id GrantID) error {
	return l.Store.WithTx(ctx, func(s Store) error {
		if _, err := l.config(ctx, s); err != nil {
			return err
		}
		g, err := s.Grant(ctx, id)
		if err != nil {
			return err
		}
		member, err := l.councilCaller(ctx, g)
		if err != nil {
			return err
		}
		if g.Status != StatusActive {
			return &StateError{GrantID: id, Status: g.Status, Op: "propose pause"}
		}
		if g.PauseProposal != nil && !g.PauseProposal.Executed {
			return fmt.Errorf("%w: pause proposal already in progress", ErrInvalidState)
		}
		g.PauseProposal = &PauseProposal{
			ProposedBy: member,
			ProposedAt: l.Clock.Now(),
		}
		if err := s.UpdateGrant(ctx, g); err != nil {
			return err
		}
		l.publish(ctx, s, TopicPauseProposed, id, map[string]string{"proposed_by": string(member)})
		return nil
	})
}

// VotePause records a council member's vote on the open pause proposal.
// Reaching PauseVoteThreshold votes settles the grant and pauses it.
// Returns whether the pause executed as a result of this vote.
func (l *Ledger) VotePause(ctx context.Context, id GrantID) (bool, error) {
	var executed bool
	err := l.Store.WithTx(ctx, func(s Store) error {
		if _, err := l.config(ctx, s); err != nil {
			return err
		}
		g, err := s.Grant(ctx, id)
		if err != nil {
			return err
		}
		member, err := l.councilCaller(ctx, g)
		if err != nil {
			return err
		}
		p := g.PauseProposal
		if p == nil || p.Executed {
			return ErrNoPauseProposal
		}
		if p.HasVoted(member) {
			return ErrAlreadyVoted
		}
		p.Votes = append(p.Votes, member)

		if len(p.Votes) >= PauseVoteThreshold {
			if g.Status != StatusActive {
				return &StateError{GrantID: id, Status: g.Status, Op: "pause vote"}
			}
			if err := Settle(g, l.Clock.Now()); err != nil {
				return err
			}
			if g.Status != StatusActive {
				return &StateError{GrantID: id, Status: g.Status, Op: "pause vote"}
			}
			g.Status = StatusPaused
			p.Executed = true
			executed = true
		}

		if err := s.UpdateGrant(ctx, g); err != nil {
			return err
		}
		l.publish(ctx, s, TopicPauseVote, id, map[string]string{
			"member":   string(member),
			"votes":    strconv.Itoa(len(p.Votes)),
			"executed": strconv.FormatBool(executed),
		})
		if executed {
			l.publish(ctx, s, TopicGrantPaused, id, map[string]string{"via": "council"})
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return executed, nil
}

// =============================================================================
// MILESTONES
// =============================================================================

// AddMilestone registers a fixed release tranche on an Active grant. The
// sum of all milestone amounts may not exceed total_amount. Admin-only.
func (l *Ledger) AddMilestone(ctx context.Context, id GrantID, milestoneID MilestoneID, amount int64, description string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: milestone amount must be positive", ErrInvalidAmount)
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
			return &StateError{GrantID: id, Status: g.Status, Op: "add milestone"}
		}

		committed := int64(0)
		for _, m := range g.Milestones {
			if m.ID == milestoneID {
				return ErrMilestoneExists
			}
			if committed, err = addChecked(committed, m.Amount); err != nil {
				return err
			}
		}
		if committed, err = addChecked(committed, amount); err != nil {
			return err
		}
		if committed > g.TotalAmount {
			return fmt.Errorf("%w: milestones total %d exceeds grant total %d",
				ErrInvalidAmount, committed, g.TotalAmount)
		}

		g.Milestones = append(g.Milestones, Milestone{
			ID:          milestoneID,
			Amount:      amount,
			Description: description,
		})
		if err := s.UpdateGrant(ctx, g); err != nil {
			return err
		}
		l.publish(ctx, s, TopicMilestoneAdded, id, map[string]string{
			"milestone": string(milestoneID),
			"amount":    strconv.FormatInt(amount, 10),
		})
		return nil
	})
}

// ApproveMilestone releases a milestone tranche into claimable. Blocked
// while the grant is paused (a council pause freezes milestone releases
// too). Returns the amount actually credited, which is clamped by the
// remaining headroom under total_amount. Admin-only.
func (l *Ledger) ApproveMilestone(ctx context.Context, id GrantID, milestoneID MilestoneID) (int64, error) {
	var released int64
	err := l.Store.WithTx(ctx, func(s Store) error {
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
			return &StateError{GrantID: id, Status: g.Status, Op: "approve milestone"}
		}

		idx := -1
		for i := range g.Milestones {
			if g.Milestones[i].ID == milestoneID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrMilestoneNotFound
		}
		if g.Milestones[idx].Released {
			return ErrMilestoneAlreadyReleased
		}

		now := l.Clock.Now()
		if err := Settle(g, now); err != nil {
			return err
		}
		if g.Status != StatusActive {
			return &StateError{GrantID: id, Status: g.Status, Op: "approve milestone"}
		}

		remaining, err := g.Remaining()
		if err != nil {
			return err
		}
		released = g.Milestones[idx].Amount
		if released > remaining {
			released = remaining
		}
		if g.Claimable, err = addChecked(g.Claimable, released); err != nil {
			return err
		}
		g.Milestones[idx].Released = true
		g.Milestones[idx].ReleasedAt = now

		accounted, err := addChecked(g.Withdrawn, g.Claimable)
		if err != nil {
			return err
		}
		if accounted == g.TotalAmount {
			g.Status = StatusCompleted
			g.FlowRate = 0
			g.PendingRate = 0
			g.EffectiveAt = 0
			g.Remainder = 0
		}

		if err := s.UpdateGrant(ctx, g); err != nil {
			return err
		}
		l.publish(ctx, s, TopicMilestoneClosed, id, map[string]string{
			"milestone": string(milestoneID),
			"released":  strconv.FormatInt(released, 10),
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}

// GetMilestone returns a stored milestone.
func (l *Ledger) GetMilestone(ctx context.Context, id GrantID, milestoneID MilestoneID) (*Milestone, error) {
	g, err := l.Store.Grant(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range g.Milestones {
		if g.Milestones[i].ID == milestoneID {
			m := g.Milestones[i]
			return &m, nil
		}
	}
	return nil, ErrMilestoneNotFound
}
