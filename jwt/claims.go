package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrDecode is the sentinel matched by every [DecodeError].
var ErrDecode = errors.New("token decode failed")

// DecodeError reports why a token could not be turned into [Claims].
type DecodeError struct {
	Reason string
	Err    error
}

// Error implements error.
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode token: %s: %v", e.Reason, e.Err)
	}
	return "decode token: " + e.Reason
}

// Unwrap lets errors.Is match both [ErrDecode] and the parser cause.
func (e *DecodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDecode, e.Err}
	}
	return []error{ErrDecode}
}

// Claims is the decoded payload of an access token.
type Claims map[string]any

var unverified = jwt.NewParser(jwt.WithoutClaimsValidation())

// Decode parses the payload of a compact JWS without verifying its signature.
// It fails with a [*DecodeError] when the token is empty, does not have three
// dot-separated segments, or carries a payload that is not a JSON object.
// The same input always yields the same claims.
func Decode(token string) (Claims, error) {
	if token == "" {
		return nil, &DecodeError{Reason: "empty token"}
	}
	if strings.Count(token, ".") != 2 {
		return nil, &DecodeError{Reason: "expected three segments"}
	}
	mc := jwt.MapClaims{}
	if _, _, err := unverified.ParseUnverified(token, mc); err != nil {
		return nil, &DecodeError{Reason: "malformed token", Err: err}
	}
	return Claims(mc), nil
}

// Subject returns the "sub" claim.
func (c Claims) Subject() (string, bool) {
	return c.String("sub")
}

// String returns the named claim when it is a non-empty string.
func (c Claims) String(name string) (string, bool) {
	v, ok := c[name].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Roles collects role names from the "roles", "role", and "authorities"
// claims. Each may be a string, a list of strings, or a list of objects with
// an "authority" field (the Spring Security form).
func (c Claims) Roles() []string {
	var out []string
	for _, name := range []string{"roles", "role", "authorities"} {
		switch v := c[name].(type) {
		case string:
			for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
				out = append(out, part)
			}
		case []any:
			for _, item := range v {
				switch it := item.(type) {
				case string:
					out = append(out, it)
				case map[string]any:
					if a, ok := it["authority"].(string); ok && a != "" {
						out = append(out, a)
					}
				}
			}
		}
	}
	return out
}

// HasRole reports whether role is among [Claims.Roles].
func (c Claims) HasRole(role string) bool {
	for _, r := range c.Roles() {
		if r == role {
			return true
		}
	}
	return false
}

// ExpiresAt returns the "exp" claim. The value is advisory; the client never
// rejects a token locally because of it.
func (c Claims) ExpiresAt() (time.Time, bool) {
	exp, err := jwt.MapClaims(c).GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
