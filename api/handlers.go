/*
handlers.go - HTTP API handlers for the vesting engine

PURPOSE:
  Exposes the vesting engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Grants:
    GET    /api/grants                     List all grants (settled preview)
    POST   /api/grants                     Create grant (admin)
    GET    /api/grants/{id}                Grant details
    GET    /api/grants/{id}/claimable      Current claimable balance
    GET    /api/grants/{id}/events         Audit trail
    POST   /api/grants/{id}/withdraw       Withdraw claimable (recipient)
    POST   /api/grants/{id}/pause          Pause accrual (admin)
    POST   /api/grants/{id}/resume         Resume accrual (admin)
    POST   /api/grants/{id}/cancel         Cancel grant (admin)
    POST   /api/grants/{id}/rate           Propose rate change (admin)
    POST   /api/grants/{id}/kpi            Apply KPI multiplier (oracle)
    POST   /api/grants/{id}/slash          Slash inactive grant (anyone)
    POST   /api/grants/{id}/terminate      Self-terminate (recipient)
    POST   /api/grants/{id}/reassign       Reassign recipient (admin)

  Governance:
    POST   /api/grants/{id}/council                   Set council (admin)
    POST   /api/grants/{id}/council/propose-pause     Propose pause (member)
    POST   /api/grants/{id}/council/vote              Vote on pause (member)
    POST   /api/grants/{id}/milestones                Add milestone (admin)
    POST   /api/grants/{id}/milestones/{mid}/approve  Release milestone (admin)

  Admin:
    POST   /api/admin/initialize           One-shot ledger configuration
    POST   /api/admin/rescue               Rescue stray vault tokens
    GET    /api/admin/allocated            Total allocated funds
    GET    /api/admin/clock                Demo clock state
    POST   /api/admin/clock/advance        Fast-forward the demo clock

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid state transitions
  - 403: Caller not authorized for the operation
  - 404: Grant or milestone not found
  - 409: Conflict (already initialized, duplicate, already voted)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/vesting-engine/store/sqlite"
	"github.com/warp/vesting-engine/vesting"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger *vesting.Ledger
	Store  *sqlite.Store
	Clock  *vesting.OffsetClock

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler wires the engine on top of the given store. The store serves
// as transactional state, token bank and audit sink in one; the offset
// clock lets demo traffic fast-forward vesting.
func NewHandler(store *sqlite.Store) *Handler {
	clock := &vesting.OffsetClock{}
	ledger := vesting.NewLedger(store, store)
	ledger.Events = store
	ledger.Clock = clock
	return &Handler{
		Ledger: ledger,
		Store:  store,
		Clock:  clock,
	}
}

func grantID(r *http.Request) vesting.GrantID {
	return vesting.GrantID(chi.URLParam(r, "id"))
}

// =============================================================================
// ADMIN
// =============================================================================

// Initialize performs the one-shot ledger configuration.
// POST /api/admin/initialize
func (h *Handler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req InitializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	err := h.Ledger.Initialize(r.Context(), vesting.Config{
		Admin:      vesting.Principal(req.Admin),
		Oracle:     vesting.Principal(req.Oracle),
		Treasury:   vesting.Principal(req.Treasury),
		GrantToken: req.GrantToken,
		Vault:      vesting.Principal(req.Vault),
	})
	if err != nil {
		writeDomainError(w, "Failed to initialize ledger", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "initialized"})
}

// RescueTokens moves stray vault deposits out, keeping allocated funds.
// POST /api/admin/rescue
func (h *Handler) RescueTokens(w http.ResponseWriter, r *http.Request) {
	var req RescueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	err := h.Ledger.RescueTokens(r.Context(), req.Token, req.Amount, vesting.Principal(req.To))
	if err != nil {
		writeDomainError(w, "Failed to rescue tokens", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rescued"})
}

// GetAllocated returns the vault balance pinned by active grants.
// GET /api/admin/allocated
func (h *Handler) GetAllocated(w http.ResponseWriter, r *http.Request) {
	total, err := h.Ledger.TotalAllocatedFunds(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to compute allocated funds", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"allocated": total})
}

// GetClock reports the demo clock.
// GET /api/admin/clock
func (h *Handler) GetClock(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ClockDTO{Now: h.Clock.Now(), Offset: h.Clock.Offset()})
}

// AdvanceClock fast-forwards the demo clock.
// POST /api/admin/clock/advance
func (h *Handler) AdvanceClock(w http.ResponseWriter, r *http.Request) {
	var req AdvanceClockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	h.Clock.Advance(req.Seconds)
	writeJSON(w, http.StatusOK, ClockDTO{Now: h.Clock.Now(), Offset: h.Clock.Offset()})
}

// =============================================================================
// GRANT LIFECYCLE
// =============================================================================

// ListGrants returns settled previews of all grants in creation order.
// GET /api/grants
func (h *Handler) ListGrants(w http.ResponseWriter, r *http.Request) {
	grants, err := h.Ledger.ListGrants(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list grants", err)
		return
	}
	dtos := make([]GrantDTO, len(grants))
	for i, g := range grants {
		dtos[i] = toGrantDTO(g)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateGrant creates a new streaming grant.
// POST /api/grants
func (h *Handler) CreateGrant(w http.ResponseWriter, r *http.Request) {
	var req CreateGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Recipient == "" {
		writeError(w, http.StatusBadRequest, "id and recipient are required", nil)
		return
	}

	rate := req.FlowRate
	if req.DurationSec > 0 {
		derived, err := vesting.ScaledRate(req.TotalAmount, req.DurationSec)
		if err != nil {
			writeDomainError(w, "Invalid duration", err)
			return
		}
		rate = derived
	}

	err := h.Ledger.CreateGrant(r.Context(), vesting.CreateGrantParams{
		ID:           vesting.GrantID(req.ID),
		Recipient:    vesting.Principal(req.Recipient),
		TotalAmount:  req.TotalAmount,
		FlowRate:     rate,
		WarmupWindow: req.WarmupWindow,
	})
	if err != nil {
		writeDomainError(w, "Failed to create grant", err)
		return
	}

	g, err := h.Ledger.GetGrant(r.Context(), vesting.GrantID(req.ID))
	if err != nil {
		writeDomainError(w, "Failed to load created grant", err)
		return
	}
	writeJSON(w, http.StatusCreated, toGrantDTO(g))
}

// GetGrant returns one grant as a settled preview.
// GET /api/grants/{id}
func (h *Handler) GetGrant(w http.ResponseWriter, r *http.Request) {
	g, err := h.Ledger.GetGrant(r.Context(), grantID(r))
	if err != nil {
		writeDomainError(w, "Failed to get grant", err)
		return
	}
	writeJSON(w, http.StatusOK, toGrantDTO(g))
}

// GetClaimable returns the currently withdrawable balance.
// GET /api/grants/{id}/claimable
func (h *Handler) GetClaimable(w http.ResponseWriter, r *http.Request) {
	id := grantID(r)
	claimable, err := h.Ledger.Claimable(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to compute claimable", err)
		return
	}
	writeJSON(w, http.StatusOK, ClaimableDTO{
		GrantID:   string(id),
		Claimable: claimable,
		AsOf:      h.Clock.Now(),
	})
}

// GetEvents returns the grant's audit trail, oldest first.
// GET /api/grants/{id}/events
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Store.Events(r.Context(), grantID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load events", err)
		return
	}
	dtos := make([]EventDTO, len(events))
	for i, e := range events {
		dtos[i] = EventDTO{
			Topic:   e.Topic,
			GrantID: string(e.GrantID),
			At:      e.At,
			Payload: e.Payload,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Withdraw moves settled claimable to the recipient.
// POST /api/grants/{id}/withdraw
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id := grantID(r)
	if err := h.Ledger.Withdraw(r.Context(), id, req.Amount); err != nil {
		writeDomainError(w, "Failed to withdraw", err)
		return
	}
	g, err := h.Ledger.GetGrant(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to load grant", err)
		return
	}
	writeJSON(w, http.StatusOK, toGrantDTO(g))
}

// Pause freezes accrual.
// POST /api/grants/{id}/pause
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Ledger.Pause)
}

// Resume reactivates a paused grant.
// POST /api/grants/{id}/resume
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Ledger.Resume)
}

// Cancel terminates the grant, paying out claimable and refunding the rest.
// POST /api/grants/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Ledger.Cancel)
}

// SlashInactive confiscates a grant idle past the inactivity threshold.
// POST /api/grants/{id}/slash
func (h *Handler) SlashInactive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Ledger.SlashInactiveGrant)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, id vesting.GrantID) error) {
	id := grantID(r)
	if err := op(r.Context(), id); err != nil {
		writeDomainError(w, "Operation failed", err)
		return
	}
	g, err := h.Ledger.GetGrant(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to load grant", err)
		return
	}
	writeJSON(w, http.StatusOK, toGrantDTO(g))
}

// ProposeRateChange schedules an increase or applies a decrease.
// POST /api/grants/{id}/rate
func (h *Handler) ProposeRateChange(w http.ResponseWriter, r *http.Request) {
	var req RateChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id := grantID(r)
	if err := h.Ledger.ProposeRateChange(r.Context(), id, req.NewRate); err != nil {
		writeDomainError(w, "Failed to change rate", err)
		return
	}
	g, err := h.Ledger.GetGrant(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to load grant", err)
		return
	}
	writeJSON(w, http.StatusOK, toGrantDTO(g))
}

// ApplyKPIMultiplier scales the flow rate by a decimal factor.
// POST /api/grants/{id}/kpi
func (h *Handler) ApplyKPIMultiplier(w http.ResponseWriter, r *http.Request) {
	var req KPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	mult, err := decimal.NewFromString(req.Multiplier)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multiplier (decimal string expected)", err)
		return
	}

	id := grantID(r)
	if err := h.Ledger.ApplyKPIMultiplier(r.Context(), id, mult); err != nil {
		writeDomainError(w, "Failed to apply multiplier", err)
		return
	}
	g, err := h.Ledger.GetGrant(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to load grant", err)
		return
	}
	writeJSON(w, http.StatusOK, toGrantDTO(g))
}

// SelfTerminate lets the recipient end their own grant.
// POST /api/grants/{id}/terminate
func (h *Handler) SelfTerminate(w http.ResponseWriter, r *http.Request) {
	res, err := h.Ledger.SelfTerminate(r.Context(), grantID(r))
	if err != nil {
		writeDomainError(w, "Failed to self-terminate", err)
		return
	}
	writeJSON(w, http.StatusOK, TerminationDTO{
		GrantID:        string(res.GrantID),
		FinalClaimable: res.FinalClaimable,
		Refunded:       res.Refunded,
		TerminatedAt:   res.TerminatedAt,
	})
}

// ReassignGrantee replaces the grant's recipient (key-loss recovery).
// POST /api/grants/{id}/reassign
func (h *Handler) ReassignGrantee(w http.ResponseWriter, r *http.Request) {
	var req ReassignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id := grantID(r)
	err := h.Ledger.ReassignGrantee(r.Context(), id,
		vesting.Principal(req.OldRecipient), vesting.Principal(req.NewRecipient))
	if err != nil {
		writeDomainError(w, "Failed to reassign grantee", err)
		return
	}
	g, err := h.Ledger.GetGrant(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to load grant", err)
		return
	}
	writeJSON(w, http.StatusOK, toGrantDTO(g))
}

// =============================================================================
// GOVERNANCE
// =============================================================================

// SetCouncil assigns the grant's five-member council.
// POST /api/grants/{id}/council
func (h *Handler) SetCouncil(w http.ResponseWriter, r *http.Request) {
	var req CouncilRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	members := make([]vesting.Principal, len(req.Members))
	for i, m := range req.Members {
		members[i] = vesting.Principal(m)
	}

	if err := h.Ledger.SetCouncil(r.Context(), grantID(r), members); err != nil {
		writeDomainError(w, "Failed to set council", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "council set"})
}

// ProposePause opens a council pause vote.
// POST /api/grants/{id}/council/propose-pause
func (h *Handler) ProposePause(w http.ResponseWriter, r *http.Request) {
	if err := h.Ledger.ProposePause(r.Context(), grantID(r)); err != nil {
		writeDomainError(w, "Failed to propose pause", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "pause proposed"})
}

// VotePause records the caller's vote; the threshold vote pauses the grant.
// POST /api/grants/{id}/council/vote
func (h *Handler) VotePause(w http.ResponseWriter, r *http.Request) {
	id := grantID(r)
	executed, err := h.Ledger.VotePause(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to vote", err)
		return
	}
	writeJSON(w, http.StatusOK, VoteResultDTO{GrantID: string(id), Executed: executed})
}

// AddMilestone registers a fixed release tranche.
// POST /api/grants/{id}/milestones
func (h *Handler) AddMilestone(w http.ResponseWriter, r *http.Request) {
	var req MilestoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "milestone id is required", nil)
		return
	}

	err := h.Ledger.AddMilestone(r.Context(), grantID(r),
		vesting.MilestoneID(req.ID), req.Amount, req.Description)
	if err != nil {
		writeDomainError(w, "Failed to add milestone", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "milestone added"})
}

// ApproveMilestone releases a milestone tranche into claimable.
// POST /api/grants/{id}/milestones/{milestoneID}/approve
func (h *Handler) ApproveMilestone(w http.ResponseWriter, r *http.Request) {
	id := grantID(r)
	mid := vesting.MilestoneID(chi.URLParam(r, "milestoneID"))

	released, err := h.Ledger.ApproveMilestone(r.Context(), id, mid)
	if err != nil {
		writeDomainError(w, "Failed to approve milestone", err)
		return
	}
	writeJSON(w, http.StatusOK, MilestoneReleaseDTO{
		GrantID:     string(id),
		MilestoneID: string(mid),
		Released:    released,
	})
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// GetBalance reports one token account.
// GET /api/accounts/{token}/{account}
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	account := chi.URLParam(r, "account")

	bal, err := h.Store.Balance(r.Context(), token, vesting.Principal(account))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{Token: token, Account: account, Balance: bal})
}

// Deposit credits an account. Dev and demo funding only.
// POST /api/accounts/deposit
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	err := h.Store.Deposit(r.Context(), req.Token, vesting.Principal(req.Account), req.Amount)
	if err != nil {
		writeDomainError(w, "Failed to deposit", err)
		return
	}
	bal, err := h.Store.Balance(r.Context(), req.Token, vesting.Principal(req.Account))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get balance", err)
		return
	}
	writeJSON(w, http.StatusCreated, BalanceDTO{Token: req.Token, Account: req.Account, Balance: bal})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

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

// writeDomainError maps engine errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, vesting.ErrNotAuthorized), errors.Is(err, vesting.ErrNotCouncilMember):
		writeError(w, http.StatusForbidden, message, err)
	case errors.Is(err, vesting.ErrGrantNotFound), errors.Is(err, vesting.ErrMilestoneNotFound):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, vesting.ErrNotInitialized),
		errors.Is(err, vesting.ErrAlreadyInitialized),
		errors.Is(err, vesting.ErrGrantAlreadyExists),
		errors.Is(err, vesting.ErrMilestoneExists),
		errors.Is(err, vesting.ErrAlreadyVoted):
		writeError(w, http.StatusConflict, message, err)
	case vesting.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
