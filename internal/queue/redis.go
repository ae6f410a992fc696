package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisWait = 5 * time.Second

type redisLists interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BLMove(ctx context.Context, source, destination, srcpos, destpos string, timeout time.Duration) *redis.StringCmd
	LMove(ctx context.Context, source, destination, srcpos, destpos string) *redis.StringCmd
	LRem(ctx context.Context, key string, count int64, value interface{}) *redis.IntCmd
}

// RedisQueue is a reliable list queue: producers LPUSH onto name, consumers
// move the oldest entry into name:processing and LREM it on ack.
type RedisQueue struct {
	rdb        redisLists
	name       string
	processing string
	wait       time.Duration
}

func NewRedisQueue(rdb redis.Cmdable, name string) *RedisQueue {
	return newRedisQueue(rdb, name, defaultRedisWait)
}

func newRedisQueue(rdb redisLists, name string, wait time.Duration) *RedisQueue {
	return &RedisQueue{rdb: rdb, name: name, processing: name + ":processing", wait: wait}
}

func (q *RedisQueue) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode redis message: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.name, payload).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	return nil
}

func (q *RedisQueue) Receive(ctx context.Context, max int) ([]Delivery, error) {
	if max <= 0 {
		max = 1
	}
	first, err := q.rdb.BLMove(ctx, q.name, q.processing, "RIGHT", "LEFT", q.wait).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis blmove: %w", err)
	}
	out := []Delivery{redisDelivery(first)}
	for len(out) < max {
		body, err := q.rdb.LMove(ctx, q.name, q.processing, "RIGHT", "LEFT").Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("redis lmove: %w", err)
		}
		out = append(out, redisDelivery(body))
	}
	return out, nil
}

func (q *RedisQueue) Ack(ctx context.Context, d Delivery) error {
	if err := q.rdb.LRem(ctx, q.processing, 1, d.Receipt).Err(); err != nil {
		return fmt.Errorf("redis lrem: %w", err)
	}
	return nil
}

// Release re-enqueues the message with its attempt counter bumped.
func (q *RedisQueue) Release(ctx context.Context, d Delivery) error {
	msg, err := DecodeMessage([]byte(d.Body))
	if err != nil {
		return q.Ack(ctx, d)
	}
	msg.Attempt = d.Attempt
	if err := q.Send(ctx, msg); err != nil {
		return err
	}
	return q.Ack(ctx, d)
}

// Recover moves entries left in the processing list by a crashed worker back
// onto the queue. It returns how many were moved.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		_, err := q.rdb.LMove(ctx, q.processing, q.name, "LEFT", "RIGHT").Result()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("redis recover: %w", err)
		}
		n++
	}
}

func redisDelivery(body string) Delivery {
	attempt := 1
	if msg, err := DecodeMessage([]byte(body)); err == nil {
		attempt = msg.Attempt + 1
	}
	return Delivery{Body: body, Receipt: body, Attempt: attempt}
}

var _ Queue = (*RedisQueue)(nil)
