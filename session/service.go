package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/tokenstore"
)

// Service derives session state from the access token in a [tokenstore.Store].
// It is safe for concurrent use.
type Service struct {
	store  tokenstore.Store
	logger *zap.Logger

	mu    sync.Mutex
	cache subjectCache
}

type subjectCache struct {
	token   string
	subject string
	ok      bool
	valid   bool
}

// Option customizes a [Service].
type Option func(*Service)

// WithLogger sets the logger used for warm-up and decode diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService returns a Service over store and warms the subject cache once.
// A missing or undecodable token at this point is logged and otherwise
// ignored.
func NewService(ctx context.Context, store tokenstore.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("session: token store required")
	}
	s := &Service{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.warm(ctx)
	return s, nil
}

func (s *Service) warm(ctx context.Context) {
	_, err := s.Decode(ctx)
	switch {
	case err == nil:
		s.Subject(ctx)
	case errors.Is(err, tokenstore.ErrStorageUnavailable):
		s.logger.Warn("session warm-up: token store unavailable", zap.Error(err))
	default:
		s.logger.Debug("session warm-up: no usable access token", zap.Error(err))
	}
}

// IsActive reports whether a non-empty access token is stored. It checks
// presence only; an expired or forged token still counts as active until the
// server rejects it.
func (s *Service) IsActive(ctx context.Context) (bool, error) {
	tok, ok, err := s.store.Read(ctx, tokenstore.AccessToken)
	if err != nil {
		return false, err
	}
	return ok && tok != "", nil
}

// AccessToken returns the stored access token. ok is false when none is
// stored or the stored value is empty.
func (s *Service) AccessToken(ctx context.Context) (string, bool, error) {
	tok, ok, err := s.store.Read(ctx, tokenstore.AccessToken)
	if err != nil {
		return "", false, err
	}
	if !ok || tok == "" {
		return "", false, nil
	}
	return tok, true, nil
}

// Decode returns the claims of the stored access token. It fails with a
// [*jwt.DecodeError] when no token is stored or the token is malformed, and
// with [tokenstore.ErrStorageUnavailable] when the store cannot be read.
func (s *Service) Decode(ctx context.Context) (jwt.Claims, error) {
	tok, ok, err := s.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &jwt.DecodeError{Reason: "no access token"}
	}
	return jwt.Decode(tok)
}

// Subject returns the "sub" claim of the stored access token. ok is false
// when there is no session, the token cannot be decoded, or the store fails.
//
// The result is cached against the token string. Any change to the stored
// token, including removal, is picked up on the next call.
func (s *Service) Subject(ctx context.Context) (string, bool) {
	tok, ok, err := s.AccessToken(ctx)
	if err != nil {
		s.logger.Warn("session subject: token store unavailable", zap.Error(err))
		return "", false
	}
	if !ok {
		s.mu.Lock()
		s.cache = subjectCache{}
		s.mu.Unlock()
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache.valid && s.cache.token == tok {
		return s.cache.subject, s.cache.ok
	}

	entry := subjectCache{token: tok, valid: true}
	claims, err := jwt.Decode(tok)
	if err != nil {
		s.logger.Debug("session subject: access token not decodable", zap.Error(err))
	} else {
		entry.subject, entry.ok = claims.Subject()
	}
	s.cache = entry
	return entry.subject, entry.ok
}
