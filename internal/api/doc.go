// Package api hosts the operator HTTP endpoint:
//   - GET /healthz reports liveness and queue depths.
//   - GET /readyz for probes.
//   - GET /metrics for Prometheus scraping.
package api
