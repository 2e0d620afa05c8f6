// Package goSession is a client-side session manager for applications that
// talk to a bearer-token identity service.
//
// A [Client], assembled with [Builder], owns four cooperating parts:
//
//   - a [tokenstore.Store] holding the access and refresh token;
//   - a [session.Service] that decodes the access token and answers whether
//     a session is active;
//   - a [Transport], an http.RoundTripper that attaches the access token to
//     outgoing requests and, on 401, runs one shared refresh and retries once;
//   - a [Guard] and [Router] that gate protected routes and redirect to login.
//
// Login and registration requests are exempt from credential attachment via
// the No-Auth header or [WithNoAuth].
//
// Server-rendered front ends can mount the guard on net/http handlers with
// package middleware.
//
// # Architecture boundaries
//
// The store is the single source of truth. Nothing in this package caches a
// token across operations; every request and every guard check re-reads it.
// Only login, logout, a successful refresh, and a rejected refresh change
// stored tokens.
//
// # What this package must NOT do
//
//   - Verify token signatures or expiry. The identity service decides.
//   - Refresh from the guard. Refresh belongs to the transport alone.
//   - Log or return token values.
//   - Retry a request more than once.
package goSession
