// Package observability provides structured logging and metrics for the
// API gateway.
//
// This package implements:
//   - zap logger construction from level/format settings
//   - Prometheus counters for authentication outcomes, labelled by failure class
//   - Latency histograms for the verification and enrichment stages
package observability
