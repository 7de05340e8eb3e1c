/*
settle.go - The settlement (accrual) algorithm

PURPOSE:
  Converts elapsed time and flow rate into newly claimable balance.
  Settle is the single place accrual math happens; every lifecycle
  operation settles before mutating anything else.

PROPERTIES (covered by settle_test.go):
  - Idempotent under replay: Settle(g, t) twice equals once
  - Telescoping: Settle(g, t1) then Settle(g, t2) equals Settle(g, t2)
    directly, exactly - the scaled remainder is carried between calls so
    the ScalingFactor division loses nothing
  - Clamped: accrual never pushes withdrawn+claimable above total_amount
  - Terminal: reaching total_amount transitions to Completed and zeroes
    the flow rate

SEGMENTATION:
  The elapsed interval is split at (a) the pending rate-increase
  activation boundary and (b) accrual-curve step boundaries. Within a
  segment the effective scaled rate is constant, so integer accrual per
  segment is exact.

SEE ALSO:
  - curve.go: Accrual-curve strategies (linear, warmup ramp)
  - ledger.go: Callers
*/
package vesting

// Settle advances accrual on g through now. It mutates g in place and
// advances LastUpdateTS on every successful call, including no-ops.
// now must be >= g.LastUpdateTS or ErrInvalidState is returned.
func Settle(g *Grant, now uint64) error {
	if now < g.LastUpdateTS {
		return ErrInvalidState
	}
	elapsed := now - g.LastUpdateTS

	// A pending rate increase only exists when it is strictly higher than
	// the active rate and has a scheduled activation time.
	pendingIncrease := g.PendingRate > g.FlowRate && g.EffectiveAt != 0

	// Non-active grants and zero-length or zero-rate intervals accrue
	// nothing, but the cursor still advances so a later resume does not
	// backfill the gap.
	if g.Status != StatusActive || elapsed == 0 || (g.FlowRate == 0 && !pendingIncrease) {
		g.LastUpdateTS = now
		return nil
	}

	if g.FlowRate < 0 || g.PendingRate < 0 {
		return ErrInvalidRate
	}

	accounted, err := addChecked(g.Withdrawn, g.Claimable)
	if err != nil {
		return err
	}
	if accounted > g.TotalAmount {
		return ErrInvalidState
	}

	curve := CurveFor(g)
	scaled := g.Remainder
	cursor := g.LastUpdateTS

	for cursor < now {
		segEnd := now
		if pendingIncrease && cursor < g.EffectiveAt && g.EffectiveAt < segEnd {
			segEnd = g.EffectiveAt
		}
		if b, ok := curve.NextBoundary(curveOffset(g, cursor)); ok {
			if abs := g.StartTime + b; abs > cursor && abs < segEnd {
				segEnd = abs
			}
		}

		rate := g.FlowRate
		if pendingIncrease && cursor >= g.EffectiveAt {
			rate = g.PendingRate
		}

		eff, err := mulChecked(rate, curve.MultiplierBps(curveOffset(g, cursor)))
		if err != nil {
			return err
		}
		eff /= 10_000

		dur, err := secondsToAmount(segEnd - cursor)
		if err != nil {
			return err
		}
		segScaled, err := mulChecked(eff, dur)
		if err != nil {
			return err
		}
		scaled, err = addChecked(scaled, segScaled)
		if err != nil {
			return err
		}
		cursor = segEnd
	}

	// Swap the pending rate in once its activation time has passed.
	if pendingIncrease && now >= g.EffectiveAt {
		g.FlowRate = g.PendingRate
		g.RateUpdatedAt = g.EffectiveAt
		g.PendingRate = 0
		g.EffectiveAt = 0
	}

	accrued := scaled / ScalingFactor
	g.Remainder = scaled % ScalingFactor

	remaining := g.TotalAmount - accounted
	delta := accrued
	if delta > remaining {
		delta = remaining
	}

	g.Claimable, err = addChecked(g.Claimable, delta)
	if err != nil {
		return err
	}

	newAccounted, err := addChecked(g.Withdrawn, g.Claimable)
	if err != nil {
		return err
	}
	if newAccounted == g.TotalAmount {
		g.Status = StatusCompleted
		g.FlowRate = 0
		g.PendingRate = 0
		g.EffectiveAt = 0
		g.Remainder = 0
	}

	g.LastUpdateTS = now
	return nil
}

// curveOffset is the grant-age offset used for curve evaluation.
func curveOffset(g *Grant, at uint64) uint64 {
	if at < g.StartTime {
		return 0
	}
	return at - g.StartTime
}

// previewAt returns a settled clone of g without touching stored state.
func previewAt(g *Grant, now uint64) (*Grant, error) {
	c := g.Clone()
	if err := Settle(c, now); err != nil {
		return nil, err
	}
	return c, nil
}
