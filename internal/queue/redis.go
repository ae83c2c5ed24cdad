package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	Queue     string
	BlockWait time.Duration
}

// Redis is a list-backed queue: LPUSH to publish, BRPOP to consume.
type Redis struct {
	client *redis.Client
	queue  string
	wait   time.Duration
}

func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return newRedis(client, cfg), nil
}

func newRedis(client *redis.Client, cfg RedisConfig) *Redis {
	queue := cfg.Queue
	if queue == "" {
		queue = "walletai:mentions"
	}
	wait := cfg.BlockWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &Redis{client: client, queue: queue, wait: wait}
}

func (q *Redis) Publish(ctx context.Context, tweetID string) error {
	if err := q.client.LPush(ctx, q.queue, tweetID).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Consume runs workers until ctx is done or one of them hits a redis error.
func (q *Redis) Consume(ctx context.Context, workers int, handler Handler) error {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := q.work(ctx, handler); err != nil {
				errOnce.Do(func() { firstErr = err })
				cancel()
			}
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func (q *Redis) work(ctx context.Context, handler Handler) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		values, err := q.client.BRPop(ctx, q.wait, q.queue).Result()
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				continue
			case ctx.Err() != nil:
				return nil
			default:
				return fmt.Errorf("redis consume: %w", err)
			}
		}
		if len(values) != 2 {
			continue
		}
		id := values[1]
		if err := handler(ctx, id); err != nil {
			// Push back to the consuming end so the id is retried next.
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requeueTimeout)
			if perr := q.client.RPush(rctx, q.queue, id).Err(); perr != nil {
				slog.Warn("queue: requeue failed", "tweet_id", id, "error", perr)
			}
			cancel()
		}
	}
}

func (q *Redis) Close() error {
	if q == nil || q.client == nil {
		return nil
	}
	return q.client.Close()
}
