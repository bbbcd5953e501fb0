// Package queue carries newly ingested article ids to the summary worker over
// a Redis list.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrEmpty is returned by Pop when nothing arrived within the wait window.
var ErrEmpty = errors.New("queue: empty")

const defaultWait = 5 * time.Second

type Redis struct {
	client *redis.Client
	key    string
	wait   time.Duration
}

func NewRedis(addr, key string) *Redis {
	if key == "" {
		key = "summarize:queue"
	}
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		key:    key,
		wait:   defaultWait,
	}
}

func (q *Redis) Ping(ctx context.Context) error {
	if err := q.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Push appends an article id. Ids are consumed in push order.
func (q *Redis) Push(ctx context.Context, articleID string) error {
	if err := q.client.RPush(ctx, q.key, articleID).Err(); err != nil {
		return fmt.Errorf("redis push: %w", err)
	}
	return nil
}

// Pop blocks up to the wait window for the next id.
func (q *Redis) Pop(ctx context.Context) (string, error) {
	res, err := q.client.BLPop(ctx, q.wait, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrEmpty
	}
	if err != nil {
		return "", fmt.Errorf("redis pop: %w", err)
	}
	if len(res) < 2 {
		return "", ErrEmpty
	}
	return res[1], nil
}

func (q *Redis) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

func (q *Redis) Close() error {
	return q.client.Close()
}
