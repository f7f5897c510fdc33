// Package server exposes poller activity over HTTP.
//
//   - REST API: JSON snapshot of recorded ticks at "/api/ticks"
//   - Server-Sent Events: live tick stream at "/api/sse"
//   - Metrics: Prometheus exposition at "/metrics"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
