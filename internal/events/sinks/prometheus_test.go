package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/irclight/unfurl/internal/events"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are
// incremented from lifecycle events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	id := events.UUIDToBytes(uuid.New())
	batch := []events.Event{
		{RequestID: id, TS: time.Now(), Stage: events.StageRequestQueued, Kind: "requested"},
		{
			RequestID: id,
			TS:        time.Now().Add(time.Second),
			Stage:     events.StageFetchDone,
			Host:      "example.com",
			Branch:    "page",
			Result:    "metadata",
			Bytes:     1024,
			Dur:       200 * time.Millisecond,
		},
		{
			RequestID: id,
			TS:        time.Now().Add(2 * time.Second),
			Stage:     events.StageRequestDone,
			Result:    "metadata",
			Dur:       2 * time.Second,
		},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.requestsSubmitted.WithLabelValues("requested")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.requestsCompleted.WithLabelValues("metadata")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.requestsInFlight))

	require.InDelta(
		t,
		1.0,
		testutil.ToFloat64(sink.fetches.WithLabelValues("example.com", "metadata")),
		1e-9,
	)
	require.InDelta(t, 1024.0, testutil.ToFloat64(sink.fetchBytes.WithLabelValues("example.com")), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.fetchDuration, "unfurl_fetch_duration_seconds"))
}

// TestPrometheusSinkTracksInFlight verifies queued requests raise the gauge
// until their terminal event arrives.
func TestPrometheusSinkTracksInFlight(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	first := events.UUIDToBytes(uuid.New())
	second := events.UUIDToBytes(uuid.New())

	require.NoError(t, sink.Consume(context.Background(), []events.Event{
		{RequestID: first, TS: time.Now(), Stage: events.StageRequestQueued, Kind: "requested"},
		{RequestID: second, TS: time.Now(), Stage: events.StageRequestQueued, Kind: "unknown"},
	}))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.requestsInFlight))

	// A duplicate queued event must not inflate the gauge.
	require.NoError(t, sink.Consume(context.Background(), []events.Event{
		{RequestID: first, TS: time.Now(), Stage: events.StageRequestQueued, Kind: "requested"},
	}))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.requestsInFlight))

	require.NoError(t, sink.Consume(context.Background(), []events.Event{
		{RequestID: first, TS: time.Now(), Stage: events.StageRequestDone, Result: "timeout"},
	}))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.requestsInFlight))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.requestsCompleted.WithLabelValues("timeout")))
}
