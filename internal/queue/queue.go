// Package queue carries tweet ids from the mention sources (webhook, poller)
// to the workers that run the agent.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"walletai/internal/config"
)

var ErrClosed = errors.New("queue closed")

// Handler processes one tweet id. A non-nil error asks the backend to
// deliver the id again.
type Handler func(ctx context.Context, tweetID string) error

type Producer interface {
	Publish(ctx context.Context, tweetID string) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, workers int, handler Handler) error
	Close() error
}

type Queue interface {
	Producer
	Consumer
}

// New builds the backend selected by cfg.Type.
func New(cfg config.QueueConfig) (Queue, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemory(cfg.Size), nil
	case "redis":
		return NewRedis(RedisConfig{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Queue:    cfg.Name,
		})
	case "rabbitmq":
		return NewRabbitMQ(RabbitMQConfig{
			URL:      cfg.AMQPURL,
			Queue:    cfg.Name,
			Prefetch: 1,
			Durable:  true,
		})
	default:
		return nil, fmt.Errorf("unknown queue type %q", cfg.Type)
	}
}

const requeueTimeout = 5 * time.Second
