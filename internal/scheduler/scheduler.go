// Package scheduler runs the preview request lifecycle: admission
// through the throttle gate, the streaming fetch, branch capture, and
// exactly-once outcome delivery.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/irclight/unfurl/internal/events"
	"github.com/irclight/unfurl/internal/fetch"
	"github.com/irclight/unfurl/internal/metrics"
	"github.com/irclight/unfurl/internal/preview"
	"github.com/irclight/unfurl/internal/scrape"
	"github.com/irclight/unfurl/internal/throttle"
)

// ErrClosed is returned by Submit once shutdown has begun.
var ErrClosed = errors.New("scheduler: closed")

// Scheduler accepts preview requests and drives each through fetch and
// capture on its own goroutine. Every accepted request resolves to
// exactly one Outcome, whatever combination of cancellation, timeout,
// and natural completion races in.
type Scheduler struct {
	cfg     preview.FetchConfig
	gate    *throttle.Gate
	fetcher *fetch.Fetcher
	hasher  preview.Hasher
	clock   preview.Clock
	ids     preview.IDGenerator
	emitter events.Emitter
	logger  *zap.Logger

	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu      sync.Mutex
	tickets map[uuid.UUID]*Ticket
	closed  bool
	wg      sync.WaitGroup
}

// New constructs a Scheduler.
func New(
	cfg preview.FetchConfig,
	gate *throttle.Gate,
	fetcher *fetch.Fetcher,
	hasher preview.Hasher,
	clock preview.Clock,
	ids preview.IDGenerator,
	emitter events.Emitter,
	logger *zap.Logger,
) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	rootCtx, rootCancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:        cfg,
		gate:       gate,
		fetcher:    fetcher,
		hasher:     hasher,
		clock:      clock,
		ids:        ids,
		emitter:    emitter,
		logger:     logger,
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
		tickets:    make(map[uuid.UUID]*Ticket),
	}
}

// Submit normalizes and accepts one request, returning its Ticket.
// Rejections (bad URL, closed scheduler) are synchronous errors; once a
// Ticket exists the request always resolves through its Outcome instead.
// An empty kind is recorded as unknown.
func (s *Scheduler) Submit(rawURL string, kind preview.Kind) (*Ticket, error) {
	normalized, err := preview.NormalizeURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("normalize url: %w", err)
	}
	if kind == "" {
		kind = preview.KindUnknown
	}

	id, err := s.ids.NewRawID()
	if err != nil {
		return nil, fmt.Errorf("request id: %w", err)
	}
	req := preview.Request{URL: normalized, Kind: kind}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	t := newTicket(id, req, s.rootCtx, s.clock.Now())
	s.tickets[id] = t
	s.wg.Add(1)
	s.mu.Unlock()

	metrics.ObserveRequest(string(kind))
	s.emit(s.event(t, events.StageRequestQueued))
	s.logger.Debug("request queued",
		zap.Stringer("request_id", id),
		zap.String("url", normalized),
		zap.String("kind", string(kind)),
	)

	go s.process(t)
	return t, nil
}

// Get returns the in-flight ticket with the given ID. Completed requests
// are forgotten as soon as their Outcome is delivered.
func (s *Scheduler) Get(id uuid.UUID) (*Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	return t, ok
}

// Snapshot lists in-flight tickets in submission order.
func (s *Scheduler) Snapshot() []*Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].enqueued.Equal(out[j].enqueued) {
			return out[i].id.String() < out[j].id.String()
		}
		return out[i].enqueued.Before(out[j].enqueued)
	})
	return out
}

// Cancel cancels an in-flight request by ID, reporting whether one was
// found. The request still resolves with a single Outcome.
func (s *Scheduler) Cancel(id uuid.UUID) bool {
	t, ok := s.Get(id)
	if !ok {
		return false
	}
	t.Cancel()
	return true
}

// Close stops intake and waits for in-flight requests to drain, honoring
// ctx for the wait.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler close wait: %w", ctx.Err())
	}
}

// Shutdown cancels everything in flight, then waits like Close. Each
// interrupted request still delivers a cancellation Outcome.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.rootCancel()
	return s.Close(ctx)
}

func (s *Scheduler) process(t *Ticket) {
	defer s.wg.Done()
	defer s.forget(t.id)
	defer t.cancel()

	release, err := s.gate.Acquire(t.ctx)
	if err != nil {
		s.complete(t, preview.ErrorOutcome(t.req.URL, fmt.Errorf("%w: %v", preview.ErrCancelled, err), 0, 0), "")
		return
	}
	defer func() {
		release()
		metrics.SetGateUsage(s.gate.InUse(), s.gate.Waiting())
	}()

	admissionWait := s.clock.Now().Sub(t.enqueued)
	t.setState(preview.StateAdmitted)
	metrics.ObserveAdmissionWait(admissionWait)
	metrics.SetGateUsage(s.gate.InUse(), s.gate.Waiting())
	evt := s.event(t, events.StageRequestAdmitted)
	evt.Dur = admissionWait
	s.emit(evt)

	t.setState(preview.StateFetching)
	fetchStart := s.clock.Now()
	s.emit(s.event(t, events.StageFetchStart))

	resp, err := s.fetcher.Fetch(t.ctx, t.req.URL)
	if err != nil {
		out := preview.ErrorOutcome(t.req.URL, err, 0, s.clock.Now().Sub(fetchStart))
		s.fetchDone(t, "", out)
		s.complete(t, out, "")
		return
	}
	defer resp.Close()

	branch := string(resp.Class)
	var out preview.Outcome
	switch resp.Class {
	case fetch.ClassImage:
		t.setState(preview.StateImageCapture)
		img, n, cerr := s.captureImage(resp)
		if cerr != nil {
			out = preview.ErrorOutcome(t.req.URL, cerr, n, s.clock.Now().Sub(fetchStart))
		} else {
			out = preview.ImageOutcome(resp.URL, img, n, s.clock.Now().Sub(fetchStart))
		}
	default:
		t.setState(preview.StateScraping)
		md, n, serr := s.scrapePage(resp)
		if serr != nil {
			out = preview.ErrorOutcome(t.req.URL, serr, n, s.clock.Now().Sub(fetchStart))
		} else {
			out = preview.MetadataOutcome(resp.URL, md, n, s.clock.Now().Sub(fetchStart))
		}
	}

	s.fetchDone(t, branch, out)
	s.complete(t, out, branch)
}

// captureImage drains an image response whole, enforcing the image byte
// cap as a hard failure: an oversized payload is worthless to a preview
// renderer, so no partial bytes are kept.
func (s *Scheduler) captureImage(resp *fetch.Response) (preview.Image, int64, error) {
	data, err := resp.ReadAll(s.cfg.MaxImageBytes)
	if err != nil {
		return preview.Image{}, resp.BytesRead(), err
	}
	digest, err := s.hasher.Hash(data)
	if err != nil {
		return preview.Image{}, resp.BytesRead(), fmt.Errorf("hash image: %w", err)
	}
	contentType := resp.ContentType
	if mediaType, _, perr := mime.ParseMediaType(contentType); perr == nil {
		contentType = mediaType
	} else {
		contentType = http.DetectContentType(data)
	}
	return preview.Image{
		Bytes:       data,
		ContentType: contentType,
		Digest:      digest,
	}, resp.BytesRead(), nil
}

// scrapePage streams the page through the accumulator and extracts
// metadata from whatever prefix was captured. Hitting the scrape cap is
// truncation, not failure; a page that yields nothing still succeeds
// with empty metadata.
func (s *Scheduler) scrapePage(resp *fetch.Response) (preview.Metadata, int64, error) {
	acc := scrape.NewAccumulator(s.cfg.MaxScrapeBytes)
	if _, err := resp.Stream(s.cfg.MaxScrapeBytes, acc); err != nil {
		return preview.Metadata{}, resp.BytesRead(), err
	}
	metrics.ObserveScrapeStop(string(acc.Reason()))
	return scrape.Extract(resp.URL, acc.Bytes()), resp.BytesRead(), nil
}

// complete delivers the Outcome and emits the terminal telemetry. Only
// the first delivery counts; the metrics and events follow the ticket's
// delivery so a lost race emits nothing.
func (s *Scheduler) complete(t *Ticket, out preview.Outcome, branch string) {
	if !t.deliver(out) {
		return
	}

	result := out.Result()
	metrics.ObserveOutcome(result)

	evt := s.event(t, events.StageRequestDone)
	evt.Branch = branch
	evt.Result = result
	evt.Bytes = out.Bytes
	evt.Dur = s.clock.Now().Sub(t.enqueued)
	if out.Err != nil {
		evt.Note = out.Err.Error()
	}
	s.emit(evt)

	if out.IsError() {
		s.logger.Warn("preview failed",
			zap.Stringer("request_id", t.id),
			zap.String("url", t.req.URL),
			zap.String("result", result),
			zap.Int64("bytes", out.Bytes),
			zap.Error(out.Err),
		)
		return
	}
	s.logger.Info("preview resolved",
		zap.Stringer("request_id", t.id),
		zap.String("url", out.URL),
		zap.String("result", result),
		zap.Int64("bytes", out.Bytes),
		zap.Duration("duration", out.Duration),
	)
}

func (s *Scheduler) fetchDone(t *Ticket, branch string, out preview.Outcome) {
	metrics.ObserveFetch(branchLabel(branch), out.Result(), out.Bytes, out.Duration)
	evt := s.event(t, events.StageFetchDone)
	evt.Branch = branch
	evt.Result = out.Result()
	evt.Bytes = out.Bytes
	evt.Dur = out.Duration
	s.emit(evt)
}

func (s *Scheduler) event(t *Ticket, stage events.Stage) events.Event {
	return events.Event{
		RequestID: events.UUIDToBytes(t.id),
		TS:        s.clock.Now().UTC(),
		Stage:     stage,
		Kind:      string(t.req.Kind),
		URL:       t.req.URL,
		Host:      preview.Host(t.req.URL),
	}
}

func (s *Scheduler) emit(evt events.Event) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(evt)
}

func (s *Scheduler) forget(id uuid.UUID) {
	s.mu.Lock()
	delete(s.tickets, id)
	s.mu.Unlock()
}

// branchLabel keeps the fetch metrics label non-empty when the request
// failed before classification.
func branchLabel(branch string) string {
	if branch == "" {
		return "none"
	}
	return branch
}
