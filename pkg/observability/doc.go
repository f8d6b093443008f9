// Package observability bundles the operational concerns of the service:
// structured JSON logging, Prometheus metrics, and health/readiness probes.
package observability
