// Package otel publishes goSession counters through an OpenTelemetry meter.
//
// Counters are grouped into session instruments rather than exported one
// per counter: gosession.refresh.attempts carries a gosession.outcome
// attribute, gosession.refresh.avoided separates 401s that joined an
// in-flight refresh from those retried with a token another request had
// already rotated in, and gosession.session.ends tells logouts from
// expiries. Refresh latency is a bucket gauge keyed by le, and audit losses
// are counted per event kind.
//
// A single callback reads [goSession.Client.MetricsSnapshot] on each
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate client state.
package otel
