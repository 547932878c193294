package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const presencePrefix = "presence:"

// RedisPresence stores online flags as expiring keys so a crashed process
// does not leave users online forever.
type RedisPresence struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPresence builds a presence store. ttl defaults to two minutes.
func NewRedisPresence(client *redis.Client, ttl time.Duration) *RedisPresence {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisPresence{client: client, ttl: ttl}
}

func (p *RedisPresence) SetOnline(ctx context.Context, userID string) error {
	return p.client.Set(ctx, presencePrefix+userID, time.Now().UTC().Format(time.RFC3339), p.ttl).Err()
}

func (p *RedisPresence) SetOffline(ctx context.Context, userID string) error {
	return p.client.Del(ctx, presencePrefix+userID).Err()
}

// LastSeen returns when the user was last marked online, or ok=false when
// no live entry exists.
func (p *RedisPresence) LastSeen(ctx context.Context, userID string) (time.Time, bool, error) {
	raw, err := p.client.Get(ctx, presencePrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, true, nil
	}
	return at, true, nil
}
