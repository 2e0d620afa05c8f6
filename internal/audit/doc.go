// Package audit relays session lifecycle events (login, refresh, logout,
// expiry, guard denials) to a caller-supplied sink without blocking the
// request path.
//
// # Components
//
//   - [Kind]: the closed set of session events. Kinds that end or lose a
//     session are critical and get a short grace period under backpressure.
//   - [Relay]: buffered async relay that stamps time and request id, keeps the
//     emitter's context values, and counts losses per kind.
//   - [Sink]: interface for event consumers (channel, JSON writer, zap, no-op).
//
// # What this package must NOT do
//
//   - Carry token values in events. Subjects and request ids only.
//   - Import goSession or any sibling package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
