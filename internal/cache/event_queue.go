package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/enrolment-backend/internal/config"
	"github.com/stemsi/enrolment-backend/internal/model"
)

// EventQueue buffers payment audit events in a Redis list for the persist worker.
type EventQueue struct {
	rdb   *redis.Client
	queue string
}

// NewEventQueue creates an EventQueue on the payment events list.
func NewEventQueue(rdb *redis.Client) *EventQueue {
	return &EventQueue{rdb: rdb, queue: config.WorkerKey.PersistPaymentEventsQueue}
}

// Publish appends an event to the queue.
func (q *EventQueue) Publish(ctx context.Context, event model.PaymentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode payment event: %w", err)
	}
	return q.rdb.RPush(ctx, q.queue, data).Err()
}

// Pop blocks up to timeout for the next event. It returns (nil, nil) when the
// queue stayed empty.
func (q *EventQueue) Pop(ctx context.Context, timeout time.Duration) (*model.PaymentEvent, error) {
	item, err := q.rdb.BLPop(ctx, timeout, q.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(item) < 2 {
		return nil, nil
	}

	var event model.PaymentEvent
	if err := json.Unmarshal([]byte(item[1]), &event); err != nil {
		return nil, fmt.Errorf("decode payment event: %w", err)
	}
	return &event, nil
}

// Requeue pushes events back to the head of the queue in their original order.
func (q *EventQueue) Requeue(ctx context.Context, events []model.PaymentEvent) error {
	if len(events) == 0 {
		return nil
	}
	pipe := q.rdb.Pipeline()
	for i := len(events) - 1; i >= 0; i-- {
		data, err := json.Marshal(events[i])
		if err != nil {
			return fmt.Errorf("encode payment event: %w", err)
		}
		pipe.LPush(ctx, q.queue, data)
	}
	_, err := pipe.Exec(ctx)
	return err
}
