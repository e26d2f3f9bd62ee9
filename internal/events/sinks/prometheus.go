package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/irclight/unfurl/internal/events"
)

// PrometheusSink exports preview lifecycle metrics via Prometheus. It owns
// all collectors for requests submitted/completed/in-flight and per-host
// fetch counters, registered against an injected registry so embedding
// applications control the scrape surface.
type PrometheusSink struct {
	requestsSubmitted *prometheus.CounterVec
	requestsCompleted *prometheus.CounterVec
	requestsInFlight  prometheus.Gauge
	requestLifetime   *prometheus.HistogramVec

	fetches       *prometheus.CounterVec
	fetchBytes    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	tracker *requestTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		requestsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unfurl_requests_total",
			Help: "Total preview requests submitted, partitioned by kind.",
		}, []string{"kind"}),
		requestsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unfurl_requests_completed_total",
			Help: "Total preview requests completed, partitioned by result.",
		}, []string{"result"}),
		requestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "unfurl_requests_in_flight",
			Help: "Current number of preview requests between submit and outcome.",
		}),
		requestLifetime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "unfurl_request_lifetime_seconds",
			Help:    "Wall time from submission to outcome per request.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"result"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unfurl_fetch_total",
			Help: "Fetch completions partitioned by host and result.",
		}, []string{"host", "result"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unfurl_fetch_bytes_total",
			Help: "Bytes read from the transport per host.",
		}, []string{"host"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "unfurl_fetch_duration_seconds",
			Help:    "Fetch duration partitioned by host and result.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"host", "result"}),
		tracker: newRequestTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.requestsSubmitted,
		s.requestsCompleted,
		s.requestsInFlight,
		s.requestLifetime,
		s.fetches,
		s.fetchBytes,
		s.fetchDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register event collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []events.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt events.Event) {
	switch evt.Stage {
	case events.StageRequestQueued:
		s.requestsSubmitted.WithLabelValues(labelOrUnknown(evt.Kind)).Inc()
		if s.tracker.start(evt.RequestID) {
			s.requestsInFlight.Inc()
		}
	case events.StageFetchDone:
		s.handleFetchEvent(evt)
	case events.StageRequestDone:
		result := labelOrUnknown(evt.Result)
		s.requestsCompleted.WithLabelValues(result).Inc()
		if evt.Dur > 0 {
			s.requestLifetime.WithLabelValues(result).Observe(evt.Dur.Seconds())
		}
		if s.tracker.complete(evt.RequestID) {
			s.requestsInFlight.Dec()
		}
	}
}

func (s *PrometheusSink) handleFetchEvent(evt events.Event) {
	host := labelOrUnknown(evt.Host)
	result := labelOrUnknown(evt.Result)
	s.fetches.WithLabelValues(host, result).Inc()
	if evt.Bytes > 0 {
		s.fetchBytes.WithLabelValues(host).Add(float64(evt.Bytes))
	}
	if evt.Dur > 0 {
		s.fetchDuration.WithLabelValues(host, result).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

func labelOrUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// requestTracker keeps the in-flight gauge honest when queued/done events
// arrive more than once or out of order.
type requestTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newRequestTracker() *requestTracker {
	return &requestTracker{running: make(map[[16]byte]struct{})}
}

func (t *requestTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *requestTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
