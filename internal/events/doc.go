// Package events provides the lifecycle event primitives, non-blocking
// hub, and emitter interface the scheduler uses to report preview
// progress. Events are batched on a background goroutine and fanned out
// to pluggable sinks such as structured logging or Prometheus metrics.
package events
