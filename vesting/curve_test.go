package vesting_test

import (
	"testing"

	"github.com/warp/vesting-engine/vesting"
)

func TestWarmupCurve_StepMultipliers(t *testing.T) {
	c := vesting.WarmupCurve{Window: 400}

	cases := []struct {
		offset uint64
		bps    int64
	}{
		{0, 2500},
		{99, 2500},
		{100, 5000},
		{199, 5000},
		{200, 7500},
		{300, 10_000},
		{399, 10_000},
		{400, 10_000},
		{10_000, 10_000},
	}
	for _, tc := range cases {
		if got := c.MultiplierBps(tc.offset); got != tc.bps {
			t.Errorf("offset %d: expected %d bps, got %d", tc.offset, tc.bps, got)
		}
	}
}

func TestWarmupCurve_Boundaries(t *testing.T) {
	c := vesting.WarmupCurve{Window: 400}

	next, ok := c.NextBoundary(0)
	if !ok || next != 100 {
		t.Errorf("expected boundary 100, got %d (ok=%v)", next, ok)
	}
	next, ok = c.NextBoundary(250)
	if !ok || next != 300 {
		t.Errorf("expected boundary 300, got %d (ok=%v)", next, ok)
	}
	if _, ok := c.NextBoundary(400); ok {
		t.Error("no boundaries expected past the window")
	}
}

func TestWarmupCurve_IndivisibleWindow_BoundariesStrictlyAdvance(t *testing.T) {
	// A 10-second window splits as 2/5/7/10; every boundary must be
	// strictly after the offset it was asked from or segmentation loops.
	c := vesting.WarmupCurve{Window: 10}

	offset := uint64(0)
	for i := 0; i < 5; i++ {
		next, ok := c.NextBoundary(offset)
		if !ok {
			break
		}
		if next <= offset {
			t.Fatalf("boundary %d not after offset %d", next, offset)
		}
		if next > 10 {
			t.Fatalf("boundary %d beyond window", next)
		}
		offset = next
	}
	if offset != 10 {
		t.Errorf("expected to land on the window end, got %d", offset)
	}
}

func TestLinearCurve_FlatAtFullRate(t *testing.T) {
	c := vesting.LinearCurve{}
	if got := c.MultiplierBps(12345); got != 10_000 {
		t.Errorf("expected 10000 bps, got %d", got)
	}
	if _, ok := c.NextBoundary(0); ok {
		t.Error("linear curve has no boundaries")
	}
}

func TestScaledRate_VestsTotalOverDuration(t *testing.T) {
	// 1,000,000 units over 100,000 seconds is 10 units/second.
	rate, err := vesting.ScaledRate(1_000_000, 100_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rate != vesting.RatePerSecond(10) {
		t.Errorf("expected %d, got %d", vesting.RatePerSecond(10), rate)
	}
}
