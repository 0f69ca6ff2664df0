package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/fypalloc/internal/metrics"
)

const (
	keyPrefix    = "fypalloc:lock:"
	retryDelay   = 20 * time.Millisecond
	maxRetryWait = 250 * time.Millisecond
)

// releaseScript deletes the key only while it still carries our token, so an
// expired lock re-acquired by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis locks keys across processes sharing one Redis. Locks expire after
// ttl if the holder dies.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(redisURL string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func (r *Redis) Lock(ctx context.Context, keys ...string) (func(), error) {
	start := time.Now()
	keys = normalize(keys)
	token := uuid.NewString()

	var held []string
	release := func() {
		// the caller's ctx may already be cancelled
		bg := context.Background()
		for i := len(held) - 1; i >= 0; i-- {
			if err := releaseScript.Run(bg, r.client, []string{held[i]}, token).Err(); err != nil {
				logger.Error.Printf("Failed to release lock %s: %v", held[i], err)
			}
		}
	}

	for _, key := range keys {
		full := keyPrefix + key
		if err := r.acquire(ctx, full, token); err != nil {
			release()
			return nil, err
		}
		held = append(held, full)
	}

	metrics.LockWaits.WithLabelValues("redis").Observe(time.Since(start).Seconds())
	var once sync.Once
	return func() { once.Do(release) }, nil
}

func (r *Redis) acquire(ctx context.Context, key, token string) error {
	wait := retryDelay
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return nil
		}

		logger.Debug.Printf("Lock %s busy, retrying in %s", key, wait)
		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to acquire lock %s: %w", key, ctx.Err())
		case <-time.After(wait):
		}
		if wait < maxRetryWait {
			wait *= 2
		}
	}
}

func (r *Redis) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
