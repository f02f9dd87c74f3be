package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shift/internal/model"
	"shift/internal/workflow"

	"github.com/redis/go-redis/v9"
)

const (
	// JobsKey is the Redis list holding pending read requests.
	JobsKey = "queue:read"
	// EventsChannel carries JSON snapshots of every workflow transition.
	EventsChannel = "shift:events"

	popSlice = time.Second
)

// RedisQueue is a Queue and Publisher backed by Redis. Nothing is stored
// beyond the pending jobs list; events are fire-and-forget pub/sub.
type RedisQueue struct {
	rdb *redis.Client
}

// NewRedisQueue connects to Redis and checks the connection.
func NewRedisQueue(addr, password string, db int) (*RedisQueue, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisQueue{rdb: rdb}, nil
}

// Close cleans up the connection
func (q *RedisQueue) Close() error {
	return q.rdb.Close()
}

// Push appends req to the jobs list.
func (q *RedisQueue) Push(ctx context.Context, req model.ReadRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, JobsKey, data).Err()
}

// Pop waits for the oldest job (blocking) until ctx is done.
func (q *RedisQueue) Pop(ctx context.Context) (model.ReadRequest, error) {
	var result []string
	for {
		// BRPOP does not observe ctx cancellation, so block in short slices
		var err error
		result, err = q.rdb.BRPop(ctx, popSlice, JobsKey).Result()
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return model.ReadRequest{}, ctx.Err()
		}
		if !errors.Is(err, redis.Nil) {
			return model.ReadRequest{}, err
		}
	}

	var req model.ReadRequest
	if err := json.Unmarshal([]byte(result[1]), &req); err != nil {
		return model.ReadRequest{}, fmt.Errorf("%w: %w", ErrMalformedJob, err)
	}
	return req, nil
}

// Pending returns the number of jobs waiting.
func (q *RedisQueue) Pending(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, JobsKey).Result()
}

// Publish sends snap to EventsChannel.
func (q *RedisQueue) Publish(ctx context.Context, snap workflow.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return q.rdb.Publish(ctx, EventsChannel, data).Err()
}

// Events subscribes to EventsChannel. The returned channel is closed when ctx
// is done. Messages that fail to decode are skipped.
func (q *RedisQueue) Events(ctx context.Context) (<-chan workflow.Snapshot, error) {
	sub := q.rdb.Subscribe(ctx, EventsChannel)
	// Wait for the subscription to be confirmed so no event is missed
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", EventsChannel, err)
	}

	out := make(chan workflow.Snapshot)
	go func() {
		defer close(out)
		defer sub.Close()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var snap workflow.Snapshot
				if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
					continue
				}
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
