package queue

import (
	"context"
	"log/slog"
	"sync"
)

// Memory is a channel-backed queue. Failed ids are handed back to the
// channel when there is room.
type Memory struct {
	ch     chan string
	mu     sync.RWMutex
	closed bool
}

func NewMemory(size int) *Memory {
	if size <= 0 {
		size = 64
	}
	return &Memory{ch: make(chan string, size)}
}

func (q *Memory) Publish(ctx context.Context, tweetID string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- tweetID:
		return nil
	}
}

func (q *Memory) Consume(ctx context.Context, workers int, handler Handler) error {
	if workers <= 0 {
		workers = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case id, ok := <-q.ch:
					if !ok {
						return
					}
					if err := handler(ctx, id); err != nil {
						q.requeue(id, err)
					}
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (q *Memory) requeue(id string, cause error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}
	select {
	case q.ch <- id:
		slog.Debug("queue: requeued", "tweet_id", id, "error", cause)
	default:
		slog.Warn("queue: full, dropping failed mention", "tweet_id", id, "error", cause)
	}
}

// Close stops consumers once the buffered ids are drained.
func (q *Memory) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		close(q.ch)
		q.closed = true
	}
	return nil
}
