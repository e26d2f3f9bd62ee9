// Package api hosts the HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz / readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/previews to resolve a preview synchronously.
//   - GET /v1/requests for the in-flight request snapshot.
//   - DELETE /v1/requests/{request_id} to cancel a request.
package api
