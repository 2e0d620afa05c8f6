// Package tokenstore persists the client's access and refresh tokens.
//
// A [Store] holds exactly two named values, [AccessToken] and [RefreshToken],
// inside one namespace. It is pure storage: no validation of token shape, no
// decoding, no expiry logic.
//
// # Backends
//
//   - [Memory]: in-process map guarded by a mutex. Used as the test fake.
//   - [Redis]: go-redis client, keys "<prefix>:<namespace>:<kind>".
//   - [SQLite]: database/sql over modernc.org/sqlite; survives restarts.
//   - [File]: one JSON document per namespace, replaced atomically.
//
// # Clear semantics
//
// Clear wipes the whole namespace, including keys that were not written by this
// package. Callers must not co-locate unrelated data in a session namespace
// unless they accept losing it on logout.
//
// # What this package must NOT do
//
//   - Report a storage failure as an absent value. Failures return
//     [ErrStorageUnavailable]; absence is ok == false with a nil error.
//   - Retry failed operations.
//   - Import goSession, session, or jwt (no upward imports).
package tokenstore
