// Package sinks provides the event sink implementations used by the hub:
// a structured-log sink for debugging and a Prometheus sink exporting
// request lifecycle metrics against an injected registry.
package sinks
