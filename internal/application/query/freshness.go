package query

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gradebook-hub/gradebook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// WRITE CLOCK
// Ticks once per committed write, before the command returns. Reads that
// start on different ticks never share a storage round trip, and a cache
// fill that straddles a tick is withdrawn.
// ══════════════════════════════════════════════════════════════════════════════

// WriteClock counts committed writes. The zero value is ready to use.
type WriteClock struct {
	ticks atomic.Uint64
}

// NewWriteClock creates a clock at tick zero.
func NewWriteClock() *WriteClock {
	return &WriteClock{}
}

// Now returns the current tick. A nil clock is always at zero.
func (c *WriteClock) Now() uint64 {
	if c == nil {
		return 0
	}
	return c.ticks.Load()
}

// Tick records a committed write.
func (c *WriteClock) Tick() {
	if c != nil {
		c.ticks.Add(1)
	}
}

// Publisher wraps next so that every published event ticks the clock first.
// Commands publish after commit, so the tick lands before they return and
// before any subscriber evicts cache entries.
func (c *WriteClock) Publisher(next shared.EventPublisher) shared.EventPublisher {
	return &tickingPublisher{clock: c, next: next}
}

type tickingPublisher struct {
	clock *WriteClock
	next  shared.EventPublisher
}

func (p *tickingPublisher) Publish(ctx context.Context, event shared.Event) error {
	p.clock.Tick()
	if p.next == nil {
		return nil
	}
	return p.next.Publish(ctx, event)
}

// ══════════════════════════════════════════════════════════════════════════════
// READ FLIGHTS
// ══════════════════════════════════════════════════════════════════════════════

// flightTimeout bounds a shared storage read, which no single caller owns.
const flightTimeout = 10 * time.Second

// flights collapses concurrent identical misses that started on the same
// tick. Without a clock every call goes to storage on its own.
type flights struct {
	group singleflight.Group
	clock *WriteClock
}

// do runs load at most once per (key, tick). The shared call is detached
// from the first caller's cancellation; each caller waits on its own ctx.
func (f *flights) do(ctx context.Context, key string, load func(ctx context.Context) (any, error)) (any, error) {
	if f.clock == nil {
		return load(ctx)
	}

	key += "@" + strconv.FormatUint(f.clock.Now(), 10)
	ch := f.group.DoChan(key, func() (any, error) {
		detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()
		return load(detached)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fill stores a value read at tick start. If a write committed since, the
// value may predate it: skip the store, or take it back when the write
// landed between the check and the store.
func fill(ctx context.Context, clock *WriteClock, start uint64, set, drop func(ctx context.Context) error) {
	if clock.Now() != start {
		return
	}
	if err := set(ctx); err != nil {
		return
	}
	if clock.Now() != start {
		_ = drop(ctx)
	}
}
