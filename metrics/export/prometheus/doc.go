// Package prometheus exposes goSession counters as a [prometheus.Collector].
//
// Counter names are gosession_*_total; the single histogram is
// gosession_refresh_latency_seconds. Register the [Collector] with your own
// registry or mount [Handler], which uses a private one.
//
// # What this package must NOT do
//
//   - Register with the global Prometheus registry.
//   - Mutate client state.
package prometheus
