package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/warp/vesting-engine/vesting"
	"github.com/warp/vesting-engine/vesting/store"
)

func seedGrant(id vesting.GrantID) *vesting.Grant {
	return &vesting.Grant{
		ID:          id,
		Recipient:   "alice",
		TotalAmount: 1000,
		FlowRate:    vesting.RatePerSecond(1),
		Status:      vesting.StatusActive,
	}
}

func TestMemory_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A stored grant
	// WHEN: A transaction mutates it and then fails
	// THEN: The stored grant is untouched

	ctx := context.Background()
	m := store.NewMemory()
	if err := m.CreateGrant(ctx, seedGrant("g-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(s vesting.Store) error {
		g, err := s.Grant(ctx, "g-1")
		if err != nil {
			return err
		}
		g.Claimable = 999
		if err := s.UpdateGrant(ctx, g); err != nil {
			return err
		}
		if err := s.CreateGrant(ctx, seedGrant("g-2")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	g, err := m.Grant(ctx, "g-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Claimable != 0 {
		t.Errorf("rollback failed: claimable %d", g.Claimable)
	}
	if _, err := m.Grant(ctx, "g-2"); !errors.Is(err, vesting.ErrGrantNotFound) {
		t.Errorf("expected g-2 rolled back, got %v", err)
	}
}

func TestMemory_WithTx_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	if err := m.CreateGrant(ctx, seedGrant("g-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := m.WithTx(ctx, func(s vesting.Store) error {
		g, err := s.Grant(ctx, "g-1")
		if err != nil {
			return err
		}
		g.Claimable = 42
		return s.UpdateGrant(ctx, g)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g, _ := m.Grant(ctx, "g-1")
	if g.Claimable != 42 {
		t.Errorf("expected committed claimable 42, got %d", g.Claimable)
	}
}

func TestMemory_Grant_ReturnsClone(t *testing.T) {
	// Mutating a read result outside a transaction must not leak into
	// stored state.
	ctx := context.Background()
	m := store.NewMemory()
	if err := m.CreateGrant(ctx, seedGrant("g-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g, _ := m.Grant(ctx, "g-1")
	g.Claimable = 777

	again, _ := m.Grant(ctx, "g-1")
	if again.Claimable != 0 {
		t.Errorf("stored state mutated through a read: %d", again.Claimable)
	}
}

func TestBank_Transfer_InsufficientBalance(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	m.Deposit("GRANT", "vault", 100)

	err := m.Transfer(ctx, "GRANT", "vault", "alice", 101)
	if !errors.Is(err, vesting.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	bal, _ := m.Balance(ctx, "GRANT", "vault")
	if bal != 100 {
		t.Errorf("failed transfer must not move funds: %d", bal)
	}
}

func TestBank_BalancesPerToken(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	m.Deposit("GRANT", "vault", 100)
	m.Deposit("USDC", "vault", 50)

	if err := m.Transfer(ctx, "USDC", "vault", "alice", 50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	grant, _ := m.Balance(ctx, "GRANT", "vault")
	if grant != 100 {
		t.Errorf("GRANT balance should be untouched, got %d", grant)
	}
}

func TestMemory_WithTx_RollsBackTransfers(t *testing.T) {
	// GIVEN: A funded vault
	// WHEN: A transaction transfers funds and then fails
	// THEN: The transfer is undone along with the grant state

	ctx := context.Background()
	m := store.NewMemory()
	m.Deposit("GRANT", "vault", 1000)

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(s vesting.Store) error {
		mover, ok := s.(vesting.Mover)
		if !ok {
			t.Fatal("transactional view must implement Mover")
		}
		if err := mover.Transfer(ctx, "GRANT", "vault", "alice", 400); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	vault, _ := m.Balance(ctx, "GRANT", "vault")
	alice, _ := m.Balance(ctx, "GRANT", "alice")
	if vault != 1000 || alice != 0 {
		t.Errorf("transfer survived rollback: vault=%d alice=%d", vault, alice)
	}
}
