package auth

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

// RedisRevocationStore backs the denylist with a shared TTL-capable store so
// revocations survive restarts and are visible to every instance. Entries
// expire on their own at the token's original expiry; the set never needs
// compaction.
type RedisRevocationStore struct {
	client redis.UniversalClient
	prefix string
	logger Logger
}

// NewRedisRevocationStore wraps an existing redis client. The caller owns
// the client's lifecycle.
func NewRedisRevocationStore(client redis.UniversalClient) *RedisRevocationStore {
	return &RedisRevocationStore{
		client: client,
		prefix: "auth:revoked:",
		logger: defLogger{},
	}
}

// WithLogger overrides the logger used for store errors.
func (s *RedisRevocationStore) WithLogger(logger Logger) *RedisRevocationStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithKeyPrefix overrides the key namespace, e.g. to share a redis database
// with other subsystems.
func (s *RedisRevocationStore) WithKeyPrefix(prefix string) *RedisRevocationStore {
	if prefix != "" {
		s.prefix = prefix
	}
	return s
}

// Revoke adds the jti with a TTL equal to the token's remaining lifetime.
// Already-expired tokens are skipped; SET makes repeat calls idempotent.
func (s *RedisRevocationStore) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}

	if err := s.client.Set(ctx, s.prefix+jti, "1", ttl).Err(); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to write revocation entry").
			WithMetadata(map[string]any{"jti": jti})
	}

	return nil
}

// IsRevoked reports whether the jti is present in the denylist.
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+jti).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryOperation, "failed to read revocation entry").
			WithMetadata(map[string]any{"jti": jti})
	}
	return n > 0, nil
}

var _ RevocationStore = (*RedisRevocationStore)(nil)

// MemoryRevocationStore is a process-local RevocationStore for tests and
// single-instance deployments. It does not survive restarts and is not
// shared across processes; production multi-instance setups need the redis
// store.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocationStore returns an empty in-process store.
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		entries: map[string]time.Time{},
		now:     time.Now,
	}
}

// WithClock injects a custom clock (useful for tests).
func (s *MemoryRevocationStore) WithClock(clock func() time.Time) *MemoryRevocationStore {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Revoke records the jti until the given expiry.
func (s *MemoryRevocationStore) Revoke(_ context.Context, jti string, until time.Time) error {
	if !until.After(s.now()) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[jti] = until
	return nil
}

// IsRevoked reports whether the jti holds an unexpired entry, pruning
// expired ones as it goes.
func (s *MemoryRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.entries[jti]
	if !ok {
		return false, nil
	}

	if !until.After(s.now()) {
		delete(s.entries, jti)
		return false, nil
	}

	return true, nil
}

var _ RevocationStore = (*MemoryRevocationStore)(nil)
