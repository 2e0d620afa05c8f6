// Package rate provides the Redis-backed throttles of the development
// identity stub.
//
// # Window semantics
//
// Fixed-window counters: INCR plus EXPIRE on the first hit. Keys are
// "<prefix>:l:<username>", "<prefix>:li:<ip>" and "<prefix>:r:<token id>".
package rate
