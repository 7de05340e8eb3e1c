/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific formatting (human-readable rates)
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

RATE FORMATTING:
  Flow rates are stored scaled by 1e7. DTOs expose both the raw scaled
  integer (authoritative) and a decimal units-per-second string for
  humans.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - vesting/types.go: Domain model
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/vesting-engine/vesting"
)

// =============================================================================
// GRANT TYPES
// =============================================================================

// GrantDTO represents a grant in API responses. Balances reflect a
// settled preview at the request time; stored state is untouched.
type GrantDTO struct {
	ID            string         `json:"id"`
	Recipient     string         `json:"recipient"`
	TotalAmount   int64          `json:"total_amount"`
	Withdrawn     int64          `json:"withdrawn"`
	Claimable     int64          `json:"claimable"`
	Remaining     int64          `json:"remaining"`
	FlowRate      int64          `json:"flow_rate"`
	FlowRateUnits string         `json:"flow_rate_units_per_sec"`
	PendingRate   int64          `json:"pending_rate,omitempty"`
	EffectiveAt   uint64         `json:"effective_at,omitempty"`
	StartTime     uint64         `json:"start_time"`
	LastUpdate    uint64         `json:"last_update_ts"`
	LastClaim     uint64         `json:"last_claim_time"`
	WarmupWindow  uint64         `json:"warmup_window,omitempty"`
	Status        string         `json:"status"`
	Milestones    []MilestoneDTO `json:"milestones,omitempty"`
	Council       []string       `json:"council,omitempty"`
	PauseProposal *ProposalDTO   `json:"pause_proposal,omitempty"`
}

type MilestoneDTO struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Description string `json:"description,omitempty"`
	Released    bool   `json:"released"`
	ReleasedAt  uint64 `json:"released_at,omitempty"`
}

type ProposalDTO struct {
	ProposedBy string   `json:"proposed_by"`
	ProposedAt uint64   `json:"proposed_at"`
	Votes      []string `json:"votes"`
	Executed   bool     `json:"executed"`
}

// rateUnits renders a scaled flow rate as decimal units per second.
func rateUnits(scaled int64) string {
	return decimal.NewFromInt(scaled).
		Div(decimal.NewFromInt(vesting.ScalingFactor)).
		String()
}

func toGrantDTO(g *vesting.Grant) GrantDTO {
	remaining := g.TotalAmount - g.Withdrawn - g.Claimable
	dto := GrantDTO{
		ID:            string(g.ID),
		Recipient:     string(g.Recipient),
		TotalAmount:   g.TotalAmount,
		Withdrawn:     g.Withdrawn,
		Claimable:     g.Claimable,
		Remaining:     remaining,
		FlowRate:      g.FlowRate,
		FlowRateUnits: rateUnits(g.FlowRate),
		PendingRate:   g.PendingRate,
		EffectiveAt:   g.EffectiveAt,
		StartTime:     g.StartTime,
		LastUpdate:    g.LastUpdateTS,
		LastClaim:     g.LastClaimTime,
		WarmupWindow:  g.WarmupWindow,
		Status:        string(g.Status),
	}
	for _, m := range g.Milestones {
		dto.Milestones = append(dto.Milestones, MilestoneDTO{
			ID:          string(m.ID),
			Amount:      m.Amount,
			Description: m.Description,
			Released:    m.Released,
			ReleasedAt:  m.ReleasedAt,
		})
	}
	for _, c := range g.Council {
		dto.Council = append(dto.Council, string(c))
	}
	if p := g.PauseProposal; p != nil {
		votes := make([]string, len(p.Votes))
		for i, v := range p.Votes {
			votes[i] = string(v)
		}
		dto.PauseProposal = &ProposalDTO{
			ProposedBy: string(p.ProposedBy),
			ProposedAt: p.ProposedAt,
			Votes:      votes,
			Executed:   p.Executed,
		}
	}
	return dto
}

// =============================================================================
// REQUEST BODIES
// =============================================================================

type InitializeRequest struct {
	Admin      string `json:"admin"`
	Oracle     string `json:"oracle"`
	Treasury   string `json:"treasury"`
	GrantToken string `json:"grant_token"`
	Vault      string `json:"vault"`
}

type CreateGrantRequest struct {
	ID          string `json:"id"`
	Recipient   string `json:"recipient"`
	TotalAmount int64  `json:"total_amount"`
	// Either a raw scaled rate or a vesting duration in seconds, from
	// which the rate is derived. DurationSec wins when both are set.
	FlowRate     int64  `json:"flow_rate,omitempty"`
	DurationSec  uint64 `json:"duration_sec,omitempty"`
	WarmupWindow uint64 `json:"warmup_window,omitempty"`
}

type WithdrawRequest struct {
	Amount int64 `json:"amount"`
}

type RateChangeRequest struct {
	NewRate int64 `json:"new_rate"`
}

type KPIRequest struct {
	Multiplier string `json:"multiplier"` // decimal, e.g. "1.25"
}

type ReassignRequest struct {
	OldRecipient string `json:"old_recipient"`
	NewRecipient string `json:"new_recipient"`
}

type CouncilRequest struct {
	Members []string `json:"members"`
}

type MilestoneRequest struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Description string `json:"description,omitempty"`
}

type RescueRequest struct {
	Token  string `json:"token"`
	Amount int64  `json:"amount"`
	To     string `json:"to"`
}

type DepositRequest struct {
	Token   string `json:"token"`
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

type AdvanceClockRequest struct {
	Seconds uint64 `json:"seconds"`
}

// =============================================================================
// RESPONSE WRAPPERS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type ClaimableDTO struct {
	GrantID   string `json:"grant_id"`
	Claimable int64  `json:"claimable"`
	AsOf      uint64 `json:"as_of"`
}

type TerminationDTO struct {
	GrantID        string `json:"grant_id"`
	FinalClaimable int64  `json:"final_claimable"`
	Refunded       int64  `json:"refunded"`
	TerminatedAt   uint64 `json:"terminated_at"`
}

type VoteResultDTO struct {
	GrantID  string `json:"grant_id"`
	Executed bool   `json:"executed"`
}

type MilestoneReleaseDTO struct {
	GrantID     string `json:"grant_id"`
	MilestoneID string `json:"milestone_id"`
	Released    int64  `json:"released"`
}

type BalanceDTO struct {
	Token   string `json:"token"`
	Account string `json:"account"`
	Balance int64  `json:"balance"`
}

type EventDTO struct {
	Topic   string            `json:"topic"`
	GrantID string            `json:"grant_id,omitempty"`
	At      uint64            `json:"at"`
	Payload map[string]string `json:"payload,omitempty"`
}

type ClockDTO struct {
	Now    uint64 `json:"now"`
	Offset uint64 `json:"offset"`
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
