// Package api hosts the HTTP server, middleware, and REST handlers of the
// crawl service. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/crawls to submit a crawl, GET /v1/crawls to list them.
//   - GET /v1/crawls/{job_id}, /result and /live to read a crawl.
//   - POST /v1/crawls/{job_id}/cancel to stop one.
package api
