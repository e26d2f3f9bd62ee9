// Package throttle implements the admission gate that bounds concurrent
// preview fetches and spaces new grants while the gate is saturated.
package throttle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Gate bounds simultaneous admissions to a fixed number of permits.
//
// Requests that find a free permit at arrival are granted immediately.
// Requests that arrive while every permit is held join a FIFO queue and,
// once a permit frees, are additionally paced so that successive grants
// to queued waiters stay at least one delay apart. The pacing clock is a
// monotonic next-eligible-dispatch time advanced by every grant, so a
// backlog never fires a burst the instant permits free up. A capacity of
// zero disables admission control entirely.
type Gate struct {
	capacity int
	delay    time.Duration

	slots chan struct{}
	pacer *rate.Limiter

	inUse   atomic.Int64
	waiting atomic.Int64
}

// New builds a Gate. capacity <= 0 means unlimited parallelism with no
// pacing; delay <= 0 disables pacing only.
func New(capacity int, delay time.Duration) *Gate {
	g := &Gate{capacity: capacity, delay: delay}
	if capacity > 0 {
		g.slots = make(chan struct{}, capacity)
		if delay > 0 {
			g.pacer = rate.NewLimiter(rate.Every(delay), 1)
		}
	}
	return g
}

// Acquire blocks until a permit is granted, honoring ctx while queued or
// paced. The returned release func frees the permit and is safe to call
// more than once; every grant must eventually release.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	if g.capacity <= 0 {
		g.inUse.Add(1)
		return g.releaseFunc(), nil
	}

	select {
	case g.slots <- struct{}{}:
		// Free permit at arrival: grant immediately. Consuming the pacer
		// token here stamps the next-eligible time so the first queued
		// waiter is spaced relative to this grant, not to zero.
		if g.pacer != nil {
			g.pacer.Allow()
		}
		g.inUse.Add(1)
		return g.releaseFunc(), nil
	default:
	}

	g.waiting.Add(1)
	defer g.waiting.Add(-1)

	select {
	case g.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("throttle acquire: %w", ctx.Err())
	}

	if g.pacer != nil {
		if err := g.pacer.Wait(ctx); err != nil {
			// Hand the permit back; if another waiter is queued the
			// runtime passes it straight on.
			<-g.slots
			return nil, fmt.Errorf("throttle pace: %w", err)
		}
	}

	g.inUse.Add(1)
	return g.releaseFunc(), nil
}

func (g *Gate) releaseFunc() func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			g.inUse.Add(-1)
			if g.capacity > 0 {
				<-g.slots
			}
		})
	}
}

// Capacity returns the configured permit count; zero means unlimited.
func (g *Gate) Capacity() int {
	return g.capacity
}

// InUse returns the number of currently held permits.
func (g *Gate) InUse() int {
	return int(g.inUse.Load())
}

// Waiting returns the number of requests queued or paced at the gate.
func (g *Gate) Waiting() int {
	return int(g.waiting.Load())
}
