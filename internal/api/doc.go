// Package api hosts the operator HTTP surface. Routes:
//   - GET /healthz and /readyz for liveness and readiness checks; readiness pings the frontier store.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/frontier/stats for pending and done cardinalities.
//   - POST /v1/frontier/seed to add absolute URLs to pending.
package api
