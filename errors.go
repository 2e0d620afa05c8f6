package goSession

import (
	"errors"

	"github.com/MrEthical07/goSession/identity"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/tokenstore"
)

var (
	// ErrStorageUnavailable is returned when the token store cannot be read or
	// written. It is never used to mean "no session".
	ErrStorageUnavailable = tokenstore.ErrStorageUnavailable
	// ErrDecode is matched by every [*DecodeError].
	ErrDecode = jwt.ErrDecode
	// ErrNetworkFailure is returned when the identity service could not be
	// reached during login, registration, or refresh. It is never retried.
	ErrNetworkFailure = identity.ErrNetworkFailure
	// ErrAuthRejected is returned when the identity service rejected the
	// stored credential even after the refresh-and-retry sequence.
	ErrAuthRejected = errors.New("authentication rejected")
	// ErrInvalidCredentials is returned when login is refused.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoRefreshToken is returned by a refresh attempt with nothing stored
	// under the refresh key.
	ErrNoRefreshToken = errors.New("no refresh token stored")
	// ErrClientNotReady is returned by methods on a nil or closed [Client].
	ErrClientNotReady = errors.New("session client not initialized")
	// ErrBuilderUsed is returned by a second call to [Builder.Build].
	ErrBuilderUsed = errors.New("builder already used")
)

// DecodeError reports why the stored access token could not be decoded.
type DecodeError = jwt.DecodeError
