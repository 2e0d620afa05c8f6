// Package internal holds code private to the goSession module: the opaque
// refresh-token codec used by the development identity stub.
//
// # Sub-packages
//
//   - audit: typed session events and the async relay that delivers them to sinks
//   - password: Argon2id hashing for stub accounts
//   - rate: Redis fixed-window throttles for the stub
package internal
