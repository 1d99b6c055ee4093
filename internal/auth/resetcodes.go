package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mediflow/clinic/pkg/config"
)

const resetCodePrefix = "reset:"

// consumeScript deletes the key only when it holds the presented code
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisResetCodeStore keeps password reset codes in redis with a TTL
type RedisResetCodeStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisClient opens a client for the redis config section
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// NewRedisResetCodeStore creates a store whose codes live for ttl
func NewRedisResetCodeStore(client redis.UniversalClient, ttl time.Duration) *RedisResetCodeStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisResetCodeStore{client: client, ttl: ttl}
}

func resetKey(email string) string {
	return resetCodePrefix + strings.ToLower(strings.TrimSpace(email))
}

// Save stores code for email, replacing any earlier code
func (s *RedisResetCodeStore) Save(ctx context.Context, email, code string) error {
	if err := s.client.Set(ctx, resetKey(email), code, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store reset code: %w", err)
	}
	return nil
}

// Consume reports whether code is the live code for email and deletes it on a match
func (s *RedisResetCodeStore) Consume(ctx context.Context, email, code string) (bool, error) {
	if code == "" {
		return false, nil
	}
	deleted, err := consumeScript.Run(ctx, s.client, []string{resetKey(email)}, code).Int()
	if err != nil {
		return false, fmt.Errorf("failed to check reset code: %w", err)
	}
	return deleted == 1, nil
}

// Ping checks the redis connection
func (s *RedisResetCodeStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
