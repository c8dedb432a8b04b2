// internal/progress/redis.go
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "storesync:progress:"

// Redis - store współdzielony między instancjami serwisu.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// NewRedisFromURL parsuje redis://host:port/db
func NewRedisFromURL(url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	return NewRedis(redis.NewClient(opts), ttl), nil
}

func (r *Redis) Set(ctx context.Context, operationID string, s Snapshot) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, keyPrefix+operationID, data, r.ttl).Err()
}

func (r *Redis) Get(ctx context.Context, operationID string) (Snapshot, bool, error) {
	data, err := r.client.Get(ctx, keyPrefix+operationID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, false, fmt.Errorf("progress %s: %w", operationID, err)
	}
	return s, true, nil
}

func (r *Redis) Close() error { return r.client.Close() }
