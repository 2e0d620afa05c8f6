package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
)

const (
	tokenIDSize      = 16
	refreshSecretLen = 32
	refreshTokenLen  = tokenIDSize + refreshSecretLen
)

// ErrMalformedToken is returned for refresh tokens that do not decode.
var ErrMalformedToken = errors.New("malformed refresh token")

// RefreshToken is an opaque, rotating refresh credential: a random lookup ID
// followed by a random secret. Only the secret's digest is kept server-side.
type RefreshToken struct {
	ID     string
	Digest [32]byte
}

// NewRefreshToken returns the wire form and its lookup record.
func NewRefreshToken() (string, RefreshToken, error) {
	var raw [refreshTokenLen]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", RefreshToken{}, err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), split(raw[:]), nil
}

// ParseRefreshToken decodes a token produced by [NewRefreshToken].
func ParseRefreshToken(token string) (RefreshToken, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != refreshTokenLen {
		return RefreshToken{}, ErrMalformedToken
	}
	return split(raw), nil
}

// Matches reports whether digest belongs to t.
func (t RefreshToken) Matches(digest [32]byte) bool {
	return digestEqual(t.Digest, digest)
}

func digestEqual(a, b [32]byte) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

func split(raw []byte) RefreshToken {
	return RefreshToken{
		ID:     base64.RawURLEncoding.EncodeToString(raw[:tokenIDSize]),
		Digest: sha256.Sum256(raw[tokenIDSize:]),
	}
}
