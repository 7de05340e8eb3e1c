/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario initializes the ledger, funds
	the vault, and creates grants in states that demonstrate specific
	features.

AVAILABLE SCENARIOS:

	fresh-start:       Initialized ledger with one just-created grant
	mid-stream:        Grant 30 days into vesting with a withdrawal taken
	pending-raise:     Grant with a time-locked rate increase scheduled
	council-oversight: Council of five, open pause vote, milestones
	warmup-ramp:       Grant partway through its warmup window
	near-slash:        Grant idle 89 days, one day short of slashable

HOW SCENARIOS WORK:
 1. Reset database (clear all data) and the demo clock
 2. Initialize the ledger (admin, oracle, treasury, vault, token)
 3. Deposit grant funds into the vault
 4. Create grants and drive them into the target state by advancing
    the demo clock and replaying operations

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "mid-stream"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - vesting/clock.go: OffsetClock used to fast-forward vesting
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/vesting-engine/vesting"
)

// Demo principals. The X-Principal header selects among them.
const (
	demoAdmin    = vesting.Principal("admin")
	demoOracle   = vesting.Principal("oracle")
	demoTreasury = vesting.Principal("treasury")
	demoVault    = vesting.Principal("vault")
	demoToken    = "VEST"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "fresh-start",
		Name:        "Fresh Start",
		Description: "Initialized ledger with one just-created grant, nothing vested yet",
	},
	{
		ID:          "mid-stream",
		Name:        "Mid-Stream",
		Description: "Grant 30 days into vesting, recipient has withdrawn part of it",
	},
	{
		ID:          "pending-raise",
		Name:        "Pending Raise",
		Description: "Grant with a rate increase waiting out the 48h time-lock",
	},
	{
		ID:          "council-oversight",
		Name:        "Council Oversight",
		Description: "Five-member council, open pause vote, milestone tranches",
	},
	{
		ID:          "warmup-ramp",
		Name:        "Warmup Ramp",
		Description: "Grant halfway through its warmup window, accruing at reduced rate",
	},
	{
		ID:          "near-slash",
		Name:        "Near Slash",
		Description: "Grant idle for 89 days; advance one more to make it slashable",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.Clock.Reset()
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "fresh-start":
		err = h.loadFreshStartScenario(ctx)
	case "mid-stream":
		err = h.loadMidStreamScenario(ctx)
	case "pending-raise":
		err = h.loadPendingRaiseScenario(ctx)
	case "council-oversight":
		err = h.loadCouncilOversightScenario(ctx)
	case "warmup-ramp":
		err = h.loadWarmupRampScenario(ctx)
	case "near-slash":
		err = h.loadNearSlashScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// seedLedger initializes the ledger and funds the vault. Every scenario
// starts here.
func (h *Handler) seedLedger(ctx context.Context, vaultFunds int64) (context.Context, error) {
	adminCtx := vesting.WithCaller(ctx, demoAdmin)
	err := h.Ledger.Initialize(adminCtx, vesting.Config{
		Admin:      demoAdmin,
		Oracle:     demoOracle,
		Treasury:   demoTreasury,
		GrantToken: demoToken,
		Vault:      demoVault,
	})
	if err != nil {
		return nil, err
	}
	if err := h.Store.Deposit(ctx, demoToken, demoVault, vaultFunds); err != nil {
		return nil, err
	}
	return adminCtx, nil
}

func (h *Handler) loadFreshStartScenario(ctx context.Context) error {
	adminCtx, err := h.seedLedger(ctx, 10_000_000)
	if err != nil {
		return err
	}

	// 1M tokens at 0.1 token/s, roughly 115 days to full vest
	return h.Ledger.CreateGrant(adminCtx, vesting.CreateGrantParams{
		ID:          "grant-alice",
		Recipient:   "alice",
		TotalAmount: 1_000_000,
		FlowRate:    vesting.RatePerSecond(1) / 10,
	})
}

func (h *Handler) loadMidStreamScenario(ctx context.Context) error {
	adminCtx, err := h.seedLedger(ctx, 10_000_000)
	if err != nil {
		return err
	}

	// 1M tokens over a year
	rate, err := vesting.ScaledRate(1_000_000, 365*24*3600)
	if err != nil {
		return err
	}
	err = h.Ledger.CreateGrant(adminCtx, vesting.CreateGrantParams{
		ID:          "grant-bob",
		Recipient:   "bob",
		TotalAmount: 1_000_000,
		FlowRate:    rate,
	})
	if err != nil {
		return err
	}

	// 30 days in, Bob takes out 50k of the ~82k vested
	h.Clock.Advance(30 * 24 * 3600)
	bobCtx := vesting.WithCaller(ctx, "bob")
	return h.Ledger.Withdraw(bobCtx, "grant-bob", 50_000)
}

func (h *Handler) loadPendingRaiseScenario(ctx context.Context) error {
	adminCtx, err := h.seedLedger(ctx, 10_000_000)
	if err != nil {
		return err
	}

	err = h.Ledger.CreateGrant(adminCtx, vesting.CreateGrantParams{
		ID:          "grant-carol",
		Recipient:   "carol",
		TotalAmount: 2_000_000,
		FlowRate:    vesting.RatePerSecond(1) / 10, // 0.1 token/s
	})
	if err != nil {
		return err
	}

	// A week in, admin proposes doubling the rate. The increase sits
	// behind the 48h time-lock.
	h.Clock.Advance(7 * 24 * 3600)
	return h.Ledger.ProposeRateChange(adminCtx, "grant-carol", vesting.RatePerSecond(1)/5)
}

func (h *Handler) loadCouncilOversightScenario(ctx context.Context) error {
	adminCtx, err := h.seedLedger(ctx, 10_000_000)
	if err != nil {
		return err
	}

	// Milestone-driven grant: no continuous flow, tranches released on
	// council-visible approvals.
	err = h.Ledger.CreateGrant(adminCtx, vesting.CreateGrantParams{
		ID:          "grant-dao",
		Recipient:   "dave",
		TotalAmount: 500_000,
		FlowRate:    0,
	})
	if err != nil {
		return err
	}

	council := []vesting.Principal{"council-1", "council-2", "council-3", "council-4", "council-5"}
	if err := h.Ledger.SetCouncil(adminCtx, "grant-dao", council); err != nil {
		return err
	}

	milestones := []struct {
		id     vesting.MilestoneID
		amount int64
		desc   string
	}{
		{"m-testnet", 150_000, "Testnet launch"},
		{"m-audit", 150_000, "Security audit complete"},
		{"m-mainnet", 200_000, "Mainnet launch"},
	}
	for _, m := range milestones {
		if err := h.Ledger.AddMilestone(adminCtx, "grant-dao", m.id, m.amount, m.desc); err != nil {
			return err
		}
	}

	// First milestone already approved and paid
	if _, err := h.Ledger.ApproveMilestone(adminCtx, "grant-dao", "m-testnet"); err != nil {
		return err
	}
	daveCtx := vesting.WithCaller(ctx, "dave")
	if err := h.Ledger.Withdraw(daveCtx, "grant-dao", 150_000); err != nil {
		return err
	}

	// An open pause vote with two of three required votes cast
	c1 := vesting.WithCaller(ctx, council[0])
	c2 := vesting.WithCaller(ctx, council[1])
	if err := h.Ledger.ProposePause(c1, "grant-dao"); err != nil {
		return err
	}
	if _, err := h.Ledger.VotePause(c1, "grant-dao"); err != nil {
		return err
	}
	if _, err := h.Ledger.VotePause(c2, "grant-dao"); err != nil {
		return err
	}
	return nil
}

func (h *Handler) loadWarmupRampScenario(ctx context.Context) error {
	adminCtx, err := h.seedLedger(ctx, 10_000_000)
	if err != nil {
		return err
	}

	// 14-day warmup; clock sits one week in, on the 75% step of the ramp
	err = h.Ledger.CreateGrant(adminCtx, vesting.CreateGrantParams{
		ID:           "grant-erin",
		Recipient:    "erin",
		TotalAmount:  1_000_000,
		FlowRate:     vesting.RatePerSecond(1) / 10,
		WarmupWindow: 14 * 24 * 3600,
	})
	if err != nil {
		return err
	}

	h.Clock.Advance(7 * 24 * 3600)
	return nil
}

func (h *Handler) loadNearSlashScenario(ctx context.Context) error {
	adminCtx, err := h.seedLedger(ctx, 100_000_000)
	if err != nil {
		return err
	}

	// Slow grant so it outlives the inactivity threshold
	err = h.Ledger.CreateGrant(adminCtx, vesting.CreateGrantParams{
		ID:          "grant-frank",
		Recipient:   "frank",
		TotalAmount: 50_000_000,
		FlowRate:    vesting.RatePerSecond(1),
	})
	if err != nil {
		return err
	}

	// Frank claims once early on, then goes quiet for 89 days. One more
	// day of clock advance makes the grant slashable by anyone.
	h.Clock.Advance(24 * 3600)
	frankCtx := vesting.WithCaller(ctx, "frank")
	if err := h.Ledger.Withdraw(frankCtx, "grant-frank", 10_000); err != nil {
		return err
	}
	h.Clock.Advance(89 * 24 * 3600)
	return nil
}
