/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Grant lifecycle over HTTP (initialize, create, withdraw)
- Principal header authorization
- Error-to-status mapping
- Scenario loading
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/warp/vesting-engine/store/sqlite"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store)
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return srv
}

// call issues a JSON request with the given principal and decodes the
// response body into out (if non-nil).
func call(t *testing.T, srv *httptest.Server, principal, method, path string, body any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if principal != "" {
		req.Header.Set("X-Principal", principal)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func initLedger(t *testing.T, srv *httptest.Server) {
	t.Helper()
	status := call(t, srv, "admin", "POST", "/api/admin/initialize", InitializeRequest{
		Admin:      "admin",
		Oracle:     "oracle",
		Treasury:   "treasury",
		GrantToken: "VEST",
		Vault:      "vault",
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("Initialize returned %d, want 201", status)
	}
	status = call(t, srv, "admin", "POST", "/api/accounts/deposit", DepositRequest{
		Token:   "VEST",
		Account: "vault",
		Amount:  10_000_000,
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("Deposit returned %d, want 201", status)
	}
}

func TestGrantLifecycle_OverHTTP(t *testing.T) {
	// GIVEN: An initialized ledger with a funded vault
	srv := newTestServer(t)
	initLedger(t, srv)

	// WHEN: Admin creates a grant
	var created GrantDTO
	status := call(t, srv, "admin", "POST", "/api/grants", CreateGrantRequest{
		ID:          "g-1",
		Recipient:   "alice",
		TotalAmount: 1_000_000,
		DurationSec: 100_000,
	}, &created)

	// THEN: The grant exists and is active
	if status != http.StatusCreated {
		t.Fatalf("CreateGrant returned %d, want 201", status)
	}
	if created.Status != "active" {
		t.Errorf("Expected active status, got %s", created.Status)
	}
	if created.Recipient != "alice" {
		t.Errorf("Expected recipient alice, got %s", created.Recipient)
	}

	// AND: It appears in the listing
	var grants []GrantDTO
	status = call(t, srv, "", "GET", "/api/grants", nil, &grants)
	if status != http.StatusOK {
		t.Fatalf("ListGrants returned %d, want 200", status)
	}
	if len(grants) != 1 || grants[0].ID != "g-1" {
		t.Fatalf("Expected one grant g-1, got %+v", grants)
	}
}

func TestWithdraw_BeforeAnythingVested(t *testing.T) {
	// GIVEN: A freshly created grant with nothing vested
	srv := newTestServer(t)
	initLedger(t, srv)
	call(t, srv, "admin", "POST", "/api/grants", CreateGrantRequest{
		ID:          "g-1",
		Recipient:   "alice",
		TotalAmount: 1_000_000,
		DurationSec: 100_000,
	}, nil)

	// WHEN: Alice tries to withdraw immediately
	var errResp ErrorResponse
	status := call(t, srv, "alice", "POST", "/api/grants/g-1/withdraw",
		WithdrawRequest{Amount: 100}, &errResp)

	// THEN: Rejected as a client error (nothing claimable yet)
	if status != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d (%s)", status, errResp.Details)
	}
}

func TestWithdraw_AfterClockAdvance(t *testing.T) {
	// GIVEN: A grant and a fast-forwarded demo clock
	srv := newTestServer(t)
	initLedger(t, srv)
	call(t, srv, "admin", "POST", "/api/grants", CreateGrantRequest{
		ID:          "g-1",
		Recipient:   "alice",
		TotalAmount: 1_000_000,
		DurationSec: 100_000, // 10 units/s
	}, nil)
	call(t, srv, "", "POST", "/api/admin/clock/advance", AdvanceClockRequest{Seconds: 1000}, nil)

	// WHEN: Alice withdraws part of what has vested
	var g GrantDTO
	status := call(t, srv, "alice", "POST", "/api/grants/g-1/withdraw",
		WithdrawRequest{Amount: 5_000}, &g)

	// THEN: The withdrawal succeeds and shows up on the grant
	if status != http.StatusOK {
		t.Fatalf("Withdraw returned %d, want 200", status)
	}
	if g.Withdrawn != 5_000 {
		t.Errorf("Expected withdrawn 5000, got %d", g.Withdrawn)
	}

	// AND: Alice's account holds the payout
	var bal BalanceDTO
	call(t, srv, "", "GET", "/api/accounts/VEST/alice", nil, &bal)
	if bal.Balance != 5_000 {
		t.Errorf("Expected balance 5000, got %d", bal.Balance)
	}
}

func TestAuthorization_StatusCodes(t *testing.T) {
	// GIVEN: An initialized ledger with one grant
	srv := newTestServer(t)
	initLedger(t, srv)
	call(t, srv, "admin", "POST", "/api/grants", CreateGrantRequest{
		ID:          "g-1",
		Recipient:   "alice",
		TotalAmount: 1_000_000,
		DurationSec: 100_000,
	}, nil)

	cases := []struct {
		name      string
		principal string
		method    string
		path      string
		body      any
		want      int
	}{
		{"create by non-admin", "mallory", "POST", "/api/grants",
			CreateGrantRequest{ID: "g-2", Recipient: "bob", TotalAmount: 100, FlowRate: 1}, http.StatusForbidden},
		{"pause by non-admin", "mallory", "POST", "/api/grants/g-1/pause", nil, http.StatusForbidden},
		{"kpi by non-oracle", "admin", "POST", "/api/grants/g-1/kpi",
			KPIRequest{Multiplier: "1.5"}, http.StatusForbidden},
		{"unknown grant", "admin", "POST", "/api/grants/nope/pause", nil, http.StatusNotFound},
		{"duplicate grant", "admin", "POST", "/api/grants",
			CreateGrantRequest{ID: "g-1", Recipient: "bob", TotalAmount: 100, FlowRate: 1}, http.StatusConflict},
		{"double initialize", "admin", "POST", "/api/admin/initialize",
			InitializeRequest{Admin: "admin", Oracle: "oracle", Treasury: "treasury", GrantToken: "VEST", Vault: "vault"},
			http.StatusConflict},
		{"bad multiplier", "oracle", "POST", "/api/grants/g-1/kpi",
			KPIRequest{Multiplier: "not-a-number"}, http.StatusBadRequest},
	}

	for _, tc := range cases {
		var errResp ErrorResponse
		status := call(t, srv, tc.principal, tc.method, tc.path, tc.body, &errResp)
		if status != tc.want {
			t.Errorf("%s: got %d, want %d (%s)", tc.name, status, tc.want, errResp.Details)
		}
	}
}

func TestScenarios_LoadAndList(t *testing.T) {
	// GIVEN: A fresh server
	srv := newTestServer(t)

	// WHEN: Listing scenarios
	var list []ScenarioDTO
	status := call(t, srv, "", "GET", "/api/scenarios", nil, &list)
	if status != http.StatusOK {
		t.Fatalf("ListScenarios returned %d, want 200", status)
	}
	if len(list) == 0 {
		t.Fatal("Expected at least one scenario")
	}

	// THEN: Every advertised scenario loads cleanly
	for _, s := range list {
		body := map[string]string{"scenario_id": s.ID}
		var resp map[string]string
		status := call(t, srv, "", "POST", "/api/scenarios/load", body, &resp)
		if status != http.StatusOK {
			t.Errorf("Scenario %s returned %d, want 200", s.ID, status)
		}
	}

	// AND: The last scenario left grants behind
	var grants []GrantDTO
	call(t, srv, "", "GET", "/api/grants", nil, &grants)
	if len(grants) == 0 {
		t.Error("Expected grants after scenario load")
	}
}

func TestEvents_ExposedOverHTTP(t *testing.T) {
	// GIVEN: A grant with a withdrawal
	srv := newTestServer(t)
	initLedger(t, srv)
	call(t, srv, "admin", "POST", "/api/grants", CreateGrantRequest{
		ID:          "g-1",
		Recipient:   "alice",
		TotalAmount: 1_000_000,
		DurationSec: 100_000,
	}, nil)
	call(t, srv, "", "POST", "/api/admin/clock/advance", AdvanceClockRequest{Seconds: 100}, nil)
	call(t, srv, "alice", "POST", "/api/grants/g-1/withdraw", WithdrawRequest{Amount: 500}, nil)

	// WHEN: Reading the audit trail
	var events []EventDTO
	status := call(t, srv, "", "GET", "/api/grants/g-1/events", nil, &events)

	// THEN: Creation and withdrawal are both recorded, oldest first
	if status != http.StatusOK {
		t.Fatalf("GetEvents returned %d, want 200", status)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].Topic != "grant.created" {
		t.Errorf("Expected first event grant.created, got %s", events[0].Topic)
	}
	if events[1].Topic != "grant.withdrawal" {
		t.Errorf("Expected second event grant.withdrawal, got %s", events[1].Topic)
	}
}

func TestRescue_RoundTrip(t *testing.T) {
	// GIVEN: A vault holding grant funds plus a stray token deposit
	srv := newTestServer(t)
	initLedger(t, srv)
	call(t, srv, "admin", "POST", "/api/accounts/deposit", DepositRequest{
		Token: "USDC", Account: "vault", Amount: 7_500,
	}, nil)

	// WHEN: Admin rescues the stray token
	status := call(t, srv, "admin", "POST", "/api/admin/rescue", RescueRequest{
		Token: "USDC", Amount: 7_500, To: "treasury",
	}, nil)

	// THEN: The treasury holds the rescued amount
	if status != http.StatusOK {
		t.Fatalf("Rescue returned %d, want 200", status)
	}
	var bal BalanceDTO
	call(t, srv, "", "GET", "/api/accounts/USDC/treasury", nil, &bal)
	if bal.Balance != 7_500 {
		t.Errorf("Expected treasury balance 7500, got %d", bal.Balance)
	}
}

func TestAllocated_TracksActiveGrants(t *testing.T) {
	// GIVEN: Two grants with withdrawals against one of them
	srv := newTestServer(t)
	initLedger(t, srv)
	for i := 1; i <= 2; i++ {
		call(t, srv, "admin", "POST", "/api/grants", CreateGrantRequest{
			ID:          fmt.Sprintf("g-%d", i),
			Recipient:   "alice",
			TotalAmount: 1_000_000,
			DurationSec: 100_000,
		}, nil)
	}
	call(t, srv, "", "POST", "/api/admin/clock/advance", AdvanceClockRequest{Seconds: 100}, nil)
	call(t, srv, "alice", "POST", "/api/grants/g-1/withdraw", WithdrawRequest{Amount: 1_000}, nil)

	// WHEN: Reading the allocated total
	var resp map[string]int64
	status := call(t, srv, "", "GET", "/api/admin/allocated", nil, &resp)

	// THEN: Allocation = outstanding obligations (totals minus withdrawn)
	if status != http.StatusOK {
		t.Fatalf("GetAllocated returned %d, want 200", status)
	}
	if resp["allocated"] != 1_999_000 {
		t.Errorf("Expected allocated 1999000, got %d", resp["allocated"])
	}
}
