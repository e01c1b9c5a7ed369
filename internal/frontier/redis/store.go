// Package redis implements the frontier set store on top of Redis sets.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// addIfAbsent adds ARGV[1] to KEYS[1] unless it is a member of any other key.
var addIfAbsent = redis.NewScript(`
for i = 2, #KEYS do
  if redis.call('SISMEMBER', KEYS[i], ARGV[1]) == 1 then
    return 0
  end
end
return redis.call('SADD', KEYS[1], ARGV[1])
`)

// Store issues set commands through one go-redis client. The client pools and
// pipelines connections, so a single Store is shared by every worker in a
// process without extra locking.
type Store struct {
	client *redis.Client
}

// New wraps an existing client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// NewFromURL parses a redis:// URL and opens a client. poolSize <= 0 keeps the
// go-redis default.
func NewFromURL(rawURL string, poolSize int) (*Store, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if poolSize > 0 {
		opts.PoolSize = poolSize
	}
	return New(redis.NewClient(opts)), nil
}

// Add runs SADD.
func (s *Store) Add(ctx context.Context, key, member string) (bool, error) {
	n, err := s.client.SAdd(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("sadd %s: %w", key, err)
	}
	return n == 1, nil
}

// PopRandom runs SPOP.
func (s *Store) PopRandom(ctx context.Context, key string) (string, bool, error) {
	member, err := s.client.SPop(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("spop %s: %w", key, err)
	}
	return member, true, nil
}

// IsMember runs SISMEMBER.
func (s *Store) IsMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("sismember %s: %w", key, err)
	}
	return ok, nil
}

// Count runs SCARD.
func (s *Store) Count(ctx context.Context, key string) (int64, error) {
	n, err := s.client.SCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("scard %s: %w", key, err)
	}
	return n, nil
}

// AddIfAbsent performs the membership checks and the SADD in one Lua script.
func (s *Store) AddIfAbsent(ctx context.Context, target string, others []string, member string) (bool, error) {
	keys := append([]string{target}, others...)
	n, err := addIfAbsent.Run(ctx, s.client, keys, member).Int64()
	if err != nil {
		return false, fmt.Errorf("add if absent %s: %w", target, err)
	}
	return n == 1, nil
}

// Ping runs PING.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
