// Package api hosts the HTTP server, middleware, and REST handlers for the
// report service. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /api/news/daily and /api/topics/trending for the canned feeds.
//   - POST /api/reports/generate to queue a generation, followed through
//     /api/reports/jobs/{job_id} or its Server-Sent Events stream.
//   - GET/DELETE /api/reports/{id} and GET /api/reports/history.
//   - GET /api/runs for generation run history via store.RunRepository.
package api
