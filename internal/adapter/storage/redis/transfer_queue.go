package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"coin-bank/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

const transferQueueKey = "transfers:pending"

// TransferQueue implements ports.TransferQueue as a Redis list. Push
// appends the whole batch in one RPUSH so a batch is never split.
type TransferQueue struct {
	client goredis.UniversalClient
	key    string
}

// NewTransferQueue creates a Redis-backed transfer queue.
func NewTransferQueue(client goredis.UniversalClient) *TransferQueue {
	return &TransferQueue{client: client, key: transferQueueKey}
}

// Push enqueues reqs in order.
func (q *TransferQueue) Push(ctx context.Context, reqs []domain.TransferRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	values := make([]any, 0, len(reqs))
	for i := range reqs {
		b, err := json.Marshal(reqs[i])
		if err != nil {
			return fmt.Errorf("marshal transfer request: %w", err)
		}
		values = append(values, b)
	}
	if err := q.client.RPush(ctx, q.key, values...).Err(); err != nil {
		return fmt.Errorf("redis transfer push: %w", err)
	}
	return nil
}

// Pop waits up to timeout for the next request. It returns nil, nil when
// the queue stayed empty.
func (q *TransferQueue) Pop(ctx context.Context, timeout time.Duration) (*domain.TransferRequest, error) {
	res, err := q.client.BLPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis transfer pop: %w", err)
	}
	// res is [key, value]
	var req domain.TransferRequest
	if err := json.Unmarshal([]byte(res[1]), &req); err != nil {
		return nil, fmt.Errorf("unmarshal transfer request: %w", err)
	}
	return &req, nil
}

// Len reports how many requests are waiting.
func (q *TransferQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis transfer len: %w", err)
	}
	return n, nil
}
