package goSession

import "context"

type noAuthContextKey struct{}
type requestIDContextKey struct{}

// WithNoAuth marks every request made with ctx as exempt from credential
// attachment. It is the context form of the No-Auth header, for calls such as
// login and registration that must work before any token exists.
func WithNoAuth(ctx context.Context) context.Context {
	return context.WithValue(ctx, noAuthContextKey{}, true)
}

// WithRequestID attaches a request ID to ctx. [Transport] sends it as
// X-Request-ID instead of generating one.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

func noAuthFromContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}

	v, _ := ctx.Value(noAuthContextKey{}).(bool)
	return v
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}
