package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/irclight/unfurl/internal/preview"
)

// Ticket is the caller's handle on one submitted request. It carries the
// lifecycle state for listings, a cancel hook, and the single Outcome
// delivered when the request resolves. All methods are safe for
// concurrent use.
type Ticket struct {
	id       uuid.UUID
	req      preview.Request
	enqueued time.Time

	ctx    context.Context
	cancel context.CancelFunc

	state atomic.Int32

	deliverOnce sync.Once
	done        chan struct{}
	outcome     preview.Outcome
}

func newTicket(id uuid.UUID, req preview.Request, parent context.Context, now time.Time) *Ticket {
	ctx, cancel := context.WithCancel(parent)
	t := &Ticket{
		id:       id,
		req:      req,
		enqueued: now,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	t.state.Store(int32(preview.StateQueued))
	return t
}

// ID returns the request's UUID.
func (t *Ticket) ID() uuid.UUID {
	return t.id
}

// Request returns the submitted request.
func (t *Ticket) Request() preview.Request {
	return t.req
}

// State returns the current lifecycle position.
func (t *Ticket) State() preview.State {
	return preview.State(t.state.Load())
}

// EnqueuedAt returns when the request was accepted.
func (t *Ticket) EnqueuedAt() time.Time {
	return t.enqueued
}

// Cancel withdraws interest. The request still resolves with exactly one
// Outcome; if the cancel lands before the fetch finishes, that Outcome
// is a cancellation error. Safe to call more than once.
func (t *Ticket) Cancel() {
	t.cancel()
}

// Done returns a channel closed once the Outcome is available.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Outcome returns the terminal result, if delivered yet.
func (t *Ticket) Outcome() (preview.Outcome, bool) {
	select {
	case <-t.done:
		return t.outcome, true
	default:
		return preview.Outcome{}, false
	}
}

// Wait blocks until the Outcome is delivered or ctx finishes. The
// returned error reports only a wait interrupted by ctx; a failed
// request is a delivered Outcome with Err set.
func (t *Ticket) Wait(ctx context.Context) (preview.Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, nil
	case <-ctx.Done():
		return preview.Outcome{}, ctx.Err()
	}
}

// deliver records the terminal result exactly once. Later calls are
// ignored, which is what makes cancellation racing a natural completion
// safe.
func (t *Ticket) deliver(out preview.Outcome) bool {
	delivered := false
	t.deliverOnce.Do(func() {
		t.outcome = out
		t.state.Store(int32(preview.StateCompleted))
		close(t.done)
		delivered = true
	})
	return delivered
}

func (t *Ticket) setState(s preview.State) {
	// Completed is terminal; deliver owns that transition.
	if t.State() == preview.StateCompleted {
		return
	}
	t.state.Store(int32(s))
}
