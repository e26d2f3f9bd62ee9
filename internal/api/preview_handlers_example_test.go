package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"go.uber.org/zap"

	"github.com/irclight/unfurl/internal/clock/system"
	"github.com/irclight/unfurl/internal/fetch"
	hashsha "github.com/irclight/unfurl/internal/hash/sha256"
	idgen "github.com/irclight/unfurl/internal/id/uuid"
	"github.com/irclight/unfurl/internal/metrics"
	"github.com/irclight/unfurl/internal/preview"
	"github.com/irclight/unfurl/internal/scheduler"
	"github.com/irclight/unfurl/internal/throttle"
)

// ExampleServer_Handler shows how to serve the health endpoint.
func ExampleServer_Handler() {
	metrics.Init()

	cfg := preview.FetchConfig{
		UserAgent:   "WhatsApp/2",
		Timeout:     5 * time.Second,
		Concurrency: 1,
	}
	sched := scheduler.New(
		cfg,
		throttle.New(cfg.Concurrency, cfg.Delay),
		fetch.New(cfg, zap.NewNop()),
		hashsha.New(),
		system.New(),
		idgen.New(),
		nil,
		zap.NewNop(),
	)
	server := NewServer(sched, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		panic(err)
	}
	fmt.Printf("status: %s\n", payload["status"])
	// Output:
	// status: ok
}
