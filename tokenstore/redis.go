package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const clearScanCount = 100

// Redis is a [Store] backed by Redis. Each token is a plain string key; the
// namespace scopes one client instance.
type Redis struct {
	redis     redis.UniversalClient
	prefix    string
	namespace string
}

// NewRedis creates a Redis-backed store. prefix sets the key namespace shared
// by all clients ("gs" when empty); namespace identifies this client instance.
func NewRedis(client redis.UniversalClient, prefix, namespace string) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	ns, err := normalizeNamespace(namespace)
	if err != nil {
		return nil, err
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "gs"
	}
	// Clear matches keys with SCAN; a glob in the prefix would reach other
	// clients' keys.
	if strings.ContainsAny(prefix, "*?[]\\") {
		return nil, ErrInvalidPrefix
	}
	return &Redis{
		redis:     client,
		prefix:    prefix,
		namespace: ns,
	}, nil
}

func (s *Redis) key(kind Kind) string {
	return s.prefix + ":" + s.namespace + ":" + string(kind)
}

func (s *Redis) pattern() string {
	return s.prefix + ":" + s.namespace + ":*"
}

// Read implements [Store].
//
//	Performance: 1 Redis GET.
func (s *Redis) Read(ctx context.Context, kind Kind) (string, bool, error) {
	if !kind.Valid() {
		return "", false, ErrInvalidKind
	}
	v, err := s.redis.Get(ctx, s.key(kind)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return v, true, nil
}

// Write implements [Store]. Tokens carry their own expiry, so keys are
// stored without a TTL.
//
//	Performance: 1 Redis SET.
func (s *Redis) Write(ctx context.Context, kind Kind, value string) error {
	if !kind.Valid() {
		return ErrInvalidKind
	}
	if err := s.redis.Set(ctx, s.key(kind), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// WritePair implements [PairWriter] with a single MULTI/EXEC.
func (s *Redis) WritePair(ctx context.Context, access, refresh string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(AccessToken), access, 0)
		pipe.Set(ctx, s.key(RefreshToken), refresh, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Clear implements [Store]. Every key under the namespace is removed, not
// only the two token keys.
//
// ATOMICITY NOTE: keys are discovered with SCAN and removed in batches. A key
// written under the namespace while Clear runs may survive. Token writes only
// happen on login and refresh, which are not expected to race a logout.
func (s *Redis) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, s.pattern(), clearScanCount).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		if len(keys) > 0 {
			if err := s.redis.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
