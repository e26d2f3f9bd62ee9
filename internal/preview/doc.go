// Package preview defines the core types shared across the link-preview
// subsystem: the request and outcome model, the terminal error taxonomy,
// the immutable fetch configuration snapshot, and the small capability
// interfaces the scheduler depends on.
package preview
