// Package middleware adapts the goSession navigation guard to net/http, for
// server-rendered front ends that keep one session per process.
//
// # Guards
//
//   - [Guard]: requires an active session, redirects to login otherwise.
//   - [RequireRole]: requires a role claim, mounted inside Guard.
//
// Decoded claims of an active session are available to handlers through
// [ClaimsFromContext].
//
// # What this package must NOT do
//
//   - Refresh tokens or call the identity service.
//   - Read the token store directly (the guard and session service do).
//   - Answer with 401; denials are redirects, like a view router.
package middleware
