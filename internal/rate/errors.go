package rate

import "errors"

var (
	// ErrRateLimited means the caller spent its budget for the current window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps counter storage failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
