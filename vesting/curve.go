package vesting

// =============================================================================
// ACCRUAL CURVE - Interface for how the flow rate ramps over a grant's life
// =============================================================================

// AccrualCurve scales the flow rate as a function of grant age. The curve is
// evaluated at settlement time, so implementations must be pure functions of
// the offset from the grant's StartTime.
//
// Curves are piecewise-constant (basis points per step) rather than
// continuous: integer accrual over a step is then exact, which keeps the
// telescoping settlement property intact.
type AccrualCurve interface {
	// MultiplierBps returns the accrual multiplier in basis points
	// (10_000 = 100%) at the given offset from grant start.
	MultiplierBps(offset uint64) int64

	// NextBoundary returns the smallest offset strictly greater than offset
	// at which the multiplier changes, and whether such a boundary exists.
	NextBoundary(offset uint64) (uint64, bool)
}

// CurveFor selects the accrual curve encoded on a grant.
func CurveFor(g *Grant) AccrualCurve {
	if g.WarmupWindow > 0 {
		return WarmupCurve{Window: g.WarmupWindow}
	}
	return LinearCurve{}
}

// =============================================================================
// LINEAR CURVE - full rate from the first second
// =============================================================================

type LinearCurve struct{}

func (LinearCurve) MultiplierBps(uint64) int64         { return 10_000 }
func (LinearCurve) NextBoundary(uint64) (uint64, bool) { return 0, false }

// =============================================================================
// WARMUP CURVE - stepwise ramp 25% -> 50% -> 75% -> 100% over Window seconds
// =============================================================================

// WarmupCurve ramps accrual up in four equal steps across the warmup window,
// then holds at 100%. The ramp starts at 25% rather than 0 so a brand-new
// grant still accrues something from its first second.
type WarmupCurve struct {
	Window uint64
}

func (c WarmupCurve) MultiplierBps(offset uint64) int64 {
	if c.Window == 0 || offset >= c.Window {
		return 10_000
	}
	step := offset * 4 / c.Window // 0..3
	return int64(2_500 * (step + 1))
}

func (c WarmupCurve) NextBoundary(offset uint64) (uint64, bool) {
	if c.Window == 0 || offset >= c.Window {
		return 0, false
	}
	step := offset*4/c.Window + 1
	next := step * c.Window / 4
	// Integer division can land the boundary at or before offset when the
	// window is not divisible by four; advance until it is strictly after.
	for next <= offset {
		step++
		next = step * c.Window / 4
	}
	if next > c.Window {
		next = c.Window
	}
	return next, true
}
