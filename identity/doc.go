// Package identity is the HTTP client for the remote identity service that
// issues access and refresh tokens.
//
// Login, registration, and refresh are sent with the [NoAuthHeader] marker so
// that an intercepting transport never attaches a bearer token to them. The
// listing endpoints are sent unmarked and rely on the transport to
// authenticate.
//
// # Errors
//
// Every non-2xx response becomes a [*StatusError] that matches [ErrRejected]
// (and [ErrUnauthorized] for 401/403). Transport-level failures match
// [ErrNetworkFailure]. A caller can therefore tell "the server said no" apart
// from "the server could not be reached".
//
// # What this package must NOT do
//
//   - Read or write token storage.
//   - Retry requests.
package identity
