// Package session answers identity questions about the stored access token.
//
// A [Service] reads the token store on every call; it never holds a token of
// its own. The only state it keeps is a subject cache keyed by the exact token
// string it was derived from, so a login, refresh, or logout is observed on
// the next call without any explicit invalidation.
//
// # Architecture boundaries
//
// This package decodes tokens but never verifies signatures or expiry, never
// writes to the store, and never talks to the network. Session validity here
// means "an access token is present". Whether the server still accepts it is
// discovered by the request transport.
//
// # What this package must NOT do
//
//   - Report a storage failure as "no session".
//   - Fail construction because the stored token is missing or malformed.
//   - Import goSession (no upward imports).
package session
