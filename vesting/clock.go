package vesting

import (
	"sync"
	"time"
)

// =============================================================================
// CLOCK - the "now" supplied by the host
// =============================================================================

// Clock supplies the ledger timestamp, in seconds. The engine never reads
// wall time directly; all accrual is driven through this interface, and per
// grant the supplied time must be non-decreasing.
type Clock interface {
	Now() uint64
}

// WallClock reads the system clock.
type WallClock struct{}

func (WallClock) Now() uint64 { return uint64(time.Now().Unix()) }

// ManualClock is a settable clock for tests.
type ManualClock struct {
	mu sync.Mutex
	t  uint64
}

func NewManualClock(t uint64) *ManualClock { return &ManualClock{t: t} }

func (c *ManualClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *ManualClock) Set(t uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *ManualClock) Advance(d uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t += d
}

// OffsetClock is wall time plus an adjustable offset. The demo server uses
// it to fast-forward vesting without waiting in real time.
type OffsetClock struct {
	mu     sync.Mutex
	offset uint64
}

func (c *OffsetClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(time.Now().Unix()) + c.offset
}

func (c *OffsetClock) Advance(d uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += d
}

// Reset drops the offset back to zero (wall time).
func (c *OffsetClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = 0
}

func (c *OffsetClock) Offset() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}
