package preferences

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Preferences stores small per-user flags. A zero ttl keeps the value until
// it is deleted.
type Preferences interface {
	Get(ctx context.Context, userID int64, key string) (string, bool, error)
	Set(ctx context.Context, userID int64, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, userID int64, keys ...string) error
}

// KV is the subset of a Redis client used by RedisPreferences
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type RedisPreferences struct {
	client KV
}

func NewRedisPreferences(client KV) *RedisPreferences {
	return &RedisPreferences{client: client}
}

func key(userID int64, name string) string {
	return fmt.Sprintf("prefs:%d:%s", userID, name)
}

func (p *RedisPreferences) Get(ctx context.Context, userID int64, name string) (string, bool, error) {
	v, err := p.client.Get(ctx, key(userID, name)).Result()
	if stderrors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (p *RedisPreferences) Set(ctx context.Context, userID int64, name, value string, ttl time.Duration) error {
	return p.client.Set(ctx, key(userID, name), value, ttl).Err()
}

func (p *RedisPreferences) Delete(ctx context.Context, userID int64, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = key(userID, name)
	}
	return p.client.Del(ctx, keys...).Err()
}
