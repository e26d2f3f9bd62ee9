// Package cmd defines and implements the CLI commands for the unfurl executable.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, and preview endpoints. Submitted URLs are validated,
//     normalized, and handed to the scheduler; the response carries the resolved outcome once the fetch completes.
//   - Scheduler & gate: each request runs in its own goroutine but admission is serialized through a counted gate
//     sized by preview.request.concurrency, with a fixed pacing delay between grants once the gate saturates.
//     Context cancellation aborts queued and in-flight requests cleanly on shutdown.
//   - Fetch pipeline: requests stream the remote body and classify it by Content-Type. Image responses are captured
//     whole, subject to a hard byte cap, and digested; page responses accumulate only the scrape window and stop
//     early once the document head has been consumed.
//   - Extraction: accumulated HTML is reduced to OpenGraph-style metadata (title, description, image URL) with
//     fallbacks to standard meta tags; an empty result is still a success.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging; Prometheus
//     metrics are exported via the metrics middleware and /metrics handler; lifecycle events are batched by the
//     event hub and fanned out to log and Prometheus sinks.
//
// Operational notes:
//   - Concurrency model: counted admission gate + goroutine per request; the pacing delay applies only while the
//     gate is saturated, so sparse traffic is never slowed. Shutdown is coordinated via context cancellation
//     propagated from the server through the scheduler to each fetch.
//   - Timeouts: the per-request wall clock starts at fetch start, so time spent queued behind the gate never
//     counts against the fetch budget.
//   - Observability: zap logs carry request IDs and URLs at key transitions; Prometheus counters/histograms track
//     API and fetch activity; the event hub batches lifecycle events for downstream sinks.
//
// Quick checklist:
//   - Configure env vars: UNFURL_SERVER_PORT, UNFURL_PREVIEW_REQUEST_CONCURRENCY, UNFURL_PREVIEW_REQUEST_TIMEOUT_MS,
//     UNFURL_PREVIEW_REQUEST_USER_AGENT, and the UNFURL_EVENTS_* hub tuning knobs.
//   - Run locally: go run . serve --config config.yaml (or rely solely on env overrides).
//   - One-shot: go run . preview https://example.com/article prints the outcome a client would render.
package cmd
