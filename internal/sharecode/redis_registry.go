package sharecode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrExhausted is returned when issuing a code keeps colliding with active
// codes past the retry bound.
var ErrExhausted = errors.New("share code space exhausted")

// RedisRegistry keeps the set of active share codes. A code maps to the list
// it grants access to; revoked codes are deleted and never reissued for the
// same list.
type RedisRegistry struct {
	client *redis.Client
	prefix string
}

// NewRedisRegistry connects to Redis and verifies the connection.
func NewRedisRegistry(redisURL string) (*RedisRegistry, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisRegistry{client: client, prefix: "sharecode:"}, nil
}

// NewRedisRegistryWithClient builds a registry from an existing client.
func NewRedisRegistryWithClient(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client, prefix: "sharecode:"}
}

func (r *RedisRegistry) key(code string) string {
	return r.prefix + code
}

// Claim reserves code for listID. It returns false when the code is already
// held by another list, which is the collision signal for the issue loop.
func (r *RedisRegistry) Claim(ctx context.Context, code, listID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(code), listID, 0).Result()
	if err != nil {
		return false, fmt.Errorf("claim share code: %w", err)
	}
	return ok, nil
}

// Resolve returns the list holding code, or "" when the code is unknown or
// has been revoked.
func (r *RedisRegistry) Resolve(ctx context.Context, code string) (string, error) {
	listID, err := r.client.Get(ctx, r.key(code)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve share code: %w", err)
	}
	return listID, nil
}

// Release revokes a code. Releasing an unknown code is a no-op.
func (r *RedisRegistry) Release(ctx context.Context, code string) error {
	if err := r.client.Del(ctx, r.key(code)).Err(); err != nil {
		return fmt.Errorf("release share code: %w", err)
	}
	return nil
}

// Issue generates and claims a fresh code for listID, retrying on collision
// up to MaxClaimAttempts before giving up with ErrExhausted.
func (r *RedisRegistry) Issue(ctx context.Context, listID string) (string, error) {
	for attempt := 0; attempt < MaxClaimAttempts; attempt++ {
		code := Generate()
		ok, err := r.Claim(ctx, code, listID)
		if err != nil {
			return "", err
		}
		if ok {
			return code, nil
		}
	}
	return "", ErrExhausted
}

// Close closes the Redis connection.
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

// Ping checks if Redis is reachable.
func (r *RedisRegistry) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
