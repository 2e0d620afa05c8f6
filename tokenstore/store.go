package tokenstore

import (
	"context"
	"errors"
	"strings"
)

// ErrStorageUnavailable is returned when the backing storage cannot be read or
// written (connection, quota, or permission failure). It is never used to
// signal an absent token.
var ErrStorageUnavailable = errors.New("token storage unavailable")

// ErrInvalidKind is returned for a [Kind] other than [AccessToken] or [RefreshToken].
var ErrInvalidKind = errors.New("invalid token kind")

// ErrInvalidNamespace is returned by constructors given an empty namespace
// or one containing glob or path characters.
var ErrInvalidNamespace = errors.New("invalid token store namespace")

// ErrInvalidPrefix is returned by [NewRedis] for a key prefix containing
// glob characters.
var ErrInvalidPrefix = errors.New("invalid token store key prefix")

// Kind names one of the two persisted values. The string value is the
// storage key.
type Kind string

const (
	// AccessToken is the short-lived bearer credential, stored under "token".
	AccessToken Kind = "token"
	// RefreshToken is the long-lived credential used to mint a new access token.
	RefreshToken Kind = "refreshToken"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == AccessToken || k == RefreshToken
}

// Store is durable key-value persistence for the two session tokens.
//
// Read, Write, and Clear are atomic with respect to each other: a Read never
// observes a partially written value.
type Store interface {
	// Read returns the stored value. ok is false when nothing is stored under
	// kind; err is non-nil only when storage itself failed.
	Read(ctx context.Context, kind Kind) (value string, ok bool, err error)
	// Write overwrites the value for kind unconditionally.
	Write(ctx context.Context, kind Kind, value string) error
	// Clear removes all data in the store namespace.
	Clear(ctx context.Context) error
}

// PairWriter is implemented by backends that can replace both tokens in one
// atomic operation.
type PairWriter interface {
	WritePair(ctx context.Context, access, refresh string) error
}

// WritePair stores a freshly issued token pair. Backends implementing
// [PairWriter] write both values atomically; otherwise the refresh token is
// written first so the access token, which readers key off, flips last.
func WritePair(ctx context.Context, s Store, access, refresh string) error {
	if pw, ok := s.(PairWriter); ok {
		return pw.WritePair(ctx, access, refresh)
	}
	if err := s.Write(ctx, RefreshToken, refresh); err != nil {
		return err
	}
	return s.Write(ctx, AccessToken, access)
}

func normalizeNamespace(namespace string) (string, error) {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" || strings.ContainsAny(namespace, "*?[]/\\") {
		return "", ErrInvalidNamespace
	}
	return namespace, nil
}
