// Package internaldefs holds the Prometheus series names and help strings,
// the refresh latency bucket bounds both exporters share, and the bucket
// helpers that turn raw histogram counts into cumulative ones.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
