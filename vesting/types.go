/*
Package vesting provides the core streaming-grant ledger engine.

PURPOSE:
  This package contains the types and algorithms for managing time-based
  vesting grants: linear streaming accrual, admin-controlled rate changes
  with a mandatory timelock, pause/cancel lifecycle, milestone and
  council-vote gating, and safety invariants against overspend.

KEY CONCEPTS IN THIS FILE (types.go):
  - Grant: A single streaming commitment from an admin to a recipient
  - Status: Tagged lifecycle state (Active, Paused, Completed, ...)
  - Milestone: A fixed release tranche approved out-of-band
  - PauseProposal: A council vote in progress to pause a grant
  - Config: Ledger-wide principals (admin, oracle, treasury) and token

DESIGN PRINCIPLES:
  1. Checked arithmetic: every amount/time computation is overflow-checked
  2. Settle-first: every mutation settles accrual before changing state
  3. Invariant: withdrawn + claimable <= total_amount, always
  4. Terminal states are terminal: no accrual or rate changes afterwards

USAGE:
  ledger := vesting.NewLedger(store, bank)
  err := ledger.CreateGrant(ctx, vesting.CreateGrantParams{
      ID:          "grant-1",
      Recipient:   "dev-team",
      TotalAmount: 10_000,
      FlowRate:    vesting.RatePerSecond(10),
  })

SEE ALSO:
  - settle.go: The settlement (accrual) algorithm
  - ledger.go: Lifecycle operations (withdraw, pause, cancel, ...)
  - governance.go: Council votes and milestone releases
  - store.go: Persistence and host-capability interfaces
*/
package vesting

// =============================================================================
// CONSTANTS
// =============================================================================

// ScalingFactor pre-scales flow rates for precision with low-decimal tokens.
// A rate of N token units per second is stored as N*ScalingFactor; accrual
// divides back out, carrying the remainder so no value is lost to truncation.
const ScalingFactor int64 = 10_000_000 // 1e7

// RateIncreaseTimelock is the mandatory delay before a proposed rate
// increase takes effect. Decreases apply immediately.
const RateIncreaseTimelock uint64 = 48 * 60 * 60

// InactivityThreshold is how long a recipient may go without claiming
// before anyone can slash the grant back to the treasury.
const InactivityThreshold uint64 = 90 * 24 * 60 * 60

// Council governance: a grant council has exactly CouncilSize members and a
// pause proposal executes once PauseVoteThreshold votes are cast.
const (
	CouncilSize        = 5
	PauseVoteThreshold = 3
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type GrantID string
type Principal string
type MilestoneID string

// =============================================================================
// STATUS - Tagged lifecycle state
// =============================================================================

type Status string

const (
	StatusActive         Status = "active"
	StatusPaused         Status = "paused"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusSelfTerminated Status = "self_terminated"
)

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusSelfTerminated
}

// =============================================================================
// GRANT - The central entity
// =============================================================================

type Grant struct {
	ID        GrantID
	Recipient Principal

	// Accounting. Invariant: Withdrawn + Claimable <= TotalAmount.
	TotalAmount int64 // fixed ceiling, immutable after creation
	Withdrawn   int64 // cumulative paid out, monotonically non-decreasing
	Claimable   int64 // accrued but unpaid

	// Accrual. FlowRate is scaled by ScalingFactor (see RatePerSecond).
	FlowRate    int64
	PendingRate int64  // scheduled rate increase, 0 if none
	EffectiveAt uint64 // when PendingRate activates, 0 if none
	Remainder   int64  // scaled accrual residue carried between settlements

	// Timestamps (seconds).
	StartTime     uint64 // creation; anchor for accrual-curve offsets
	LastUpdateTS  uint64 // settled through this time; never decreases
	RateUpdatedAt uint64 // last active-rate change
	LastClaimTime uint64 // last withdrawal (or creation); inactivity anchor

	// WarmupWindow > 0 applies a stepwise ramp-up accrual curve over the
	// first WarmupWindow seconds of the grant. 0 means linear from the start.
	WarmupWindow uint64

	Status Status

	// Governance state, carried with the grant.
	Milestones    []Milestone
	Council       []Principal
	PauseProposal *PauseProposal
}

// Clone returns a deep copy. Read-only queries settle a clone so stored
// state is never mutated by a preview.
func (g *Grant) Clone() *Grant {
	c := *g
	if g.Milestones != nil {
		c.Milestones = make([]Milestone, len(g.Milestones))
		copy(c.Milestones, g.Milestones)
	}
	if g.Council != nil {
		c.Council = make([]Principal, len(g.Council))
		copy(c.Council, g.Council)
	}
	if g.PauseProposal != nil {
		p := *g.PauseProposal
		if g.PauseProposal.Votes != nil {
			p.Votes = make([]Principal, len(g.PauseProposal.Votes))
			copy(p.Votes, g.PauseProposal.Votes)
		}
		c.PauseProposal = &p
	}
	return &c
}

// Remaining is the unvested-and-unpaid portion: TotalAmount - Withdrawn - Claimable.
func (g *Grant) Remaining() (int64, error) {
	accounted, err := addChecked(g.Withdrawn, g.Claimable)
	if err != nil {
		return 0, err
	}
	if accounted > g.TotalAmount {
		return 0, ErrInvalidState
	}
	return g.TotalAmount - accounted, nil
}

// RatePerSecond converts a whole token-units-per-second rate into the
// scaled representation stored on a Grant.
func RatePerSecond(unitsPerSecond int64) int64 {
	return unitsPerSecond * ScalingFactor
}

// ScaledRate derives a scaled flow rate that streams total over duration
// seconds. The division rounds up: a floored rate would leave the last few
// units unvested at the full duration, while rounding up at worst vests the
// total slightly early (Settle clamps at TotalAmount, so no overshoot).
func ScaledRate(total int64, duration uint64) (int64, error) {
	if total <= 0 || duration == 0 {
		return 0, ErrInvalidRate
	}
	scaled, err := mulChecked(total, ScalingFactor)
	if err != nil {
		return 0, err
	}
	rate := scaled / int64(duration)
	if scaled%int64(duration) != 0 {
		rate++
	}
	return rate, nil
}

// =============================================================================
// MILESTONES - fixed release tranches
// =============================================================================

type Milestone struct {
	ID          MilestoneID
	Amount      int64
	Description string
	Released    bool
	ReleasedAt  uint64
}

// =============================================================================
// PAUSE PROPOSAL - council vote in progress
// =============================================================================

type PauseProposal struct {
	ProposedBy Principal
	ProposedAt uint64
	Votes      []Principal
	Executed   bool
}

// HasVoted reports whether member already voted on this proposal.
func (p *PauseProposal) HasVoted(member Principal) bool {
	for _, v := range p.Votes {
		if v == member {
			return true
		}
	}
	return false
}

// =============================================================================
// CONFIG - ledger-wide principals, set once at initialization
// =============================================================================

type Config struct {
	Admin      Principal
	Oracle     Principal
	Treasury   Principal
	GrantToken string    // token all grants pay out in
	Vault      Principal // account holding the deposited grant funds
}

// =============================================================================
// EVENTS - fire-and-forget audit records
// =============================================================================

type Event struct {
	Topic   string
	GrantID GrantID
	At      uint64
	Payload map[string]string
}

// Event topics published by the ledger.
const (
	TopicGrantCreated    = "grant.created"
	TopicGrantPaused     = "grant.paused"
	TopicGrantResumed    = "grant.resumed"
	TopicGrantCancelled  = "grant.cancelled"
	TopicGrantSlashed    = "grant.slashed"
	TopicSelfTerminated  = "grant.self_terminated"
	TopicWithdrawal      = "grant.withdrawal"
	TopicRateProposed    = "rate.proposed"
	TopicRateUpdated     = "rate.updated"
	TopicKPIApplied      = "rate.kpi_applied"
	TopicGranteeChanged  = "grantee.reassigned"
	TopicCouncilSet      = "council.set"
	TopicPauseProposed   = "council.pause_proposed"
	TopicPauseVote       = "council.pause_vote"
	TopicMilestoneAdded  = "milestone.added"
	TopicMilestoneClosed = "milestone.released"
	TopicTokensRescued   = "tokens.rescued"
)
