package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"inphrone-backend/internal/features/user/models"
)

// ProfileCache keeps recently seen profiles so auth middleware does not hit
// postgres on every request.
type ProfileCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewProfileCache(client redis.Cmdable, ttl time.Duration) *ProfileCache {
	return &ProfileCache{client: client, ttl: ttl}
}

func (c *ProfileCache) key(id int64) string { return fmt.Sprintf("profile:id:%d", id) }

func (c *ProfileCache) Set(ctx context.Context, u *models.User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(u.ID), b, c.ttl).Err()
}

// Get returns (nil, nil) on a miss
func (c *ProfileCache) Get(ctx context.Context, id int64) (*models.User, error) {
	v, err := c.client.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := json.Unmarshal(v, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *ProfileCache) Invalidate(ctx context.Context, id int64) error {
	return c.client.Del(ctx, c.key(id)).Err()
}
