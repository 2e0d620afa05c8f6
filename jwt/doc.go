// Package jwt reads the claims carried by a bearer access token and, for test
// fixtures and the development identity stub, issues signed tokens.
//
// The session client never verifies signatures: the identity service is the
// only party that can, and it does so on every request. [Decode] therefore
// parses the payload without verification, and the resulting [Claims] are
// advisory display data, never an authorization decision on their own.
//
// # What this package must NOT do
//
//   - Read or write token storage.
//   - Treat an expired token as undecodable. Expiry is exposed through
//     [Claims.ExpiresAt] and left to the caller.
package jwt
