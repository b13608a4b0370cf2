package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/enrolment-backend/internal/metrics"
	"github.com/stemsi/enrolment-backend/internal/model"
)

const (
	PaymentEventBatchSize    = 50
	PaymentEventBatchTimeout = 2 * time.Second
	PaymentEventPollTimeout  = 1 * time.Second
)

// EventSource is the queue the worker drains. cache.EventQueue implements it.
type EventSource interface {
	Pop(ctx context.Context, timeout time.Duration) (*model.PaymentEvent, error)
	Requeue(ctx context.Context, events []model.PaymentEvent) error
}

// EventSink persists a batch of events. repository.PaymentEventRepository implements it.
type EventSink interface {
	InsertBatch(ctx context.Context, events []model.PaymentEvent) (int64, error)
}

// PaymentEventWorker moves queued payment audit events into Postgres in batches.
type PaymentEventWorker struct {
	source EventSource
	sink   EventSink
	log    zerolog.Logger
}

func NewPaymentEventWorker(source EventSource, sink EventSink, log zerolog.Logger) *PaymentEventWorker {
	return &PaymentEventWorker{
		source: source,
		sink:   sink,
		log:    log.With().Str("component", "payment_event_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start blocks until ctx is cancelled, then flushes what it holds.
func (w *PaymentEventWorker) Start(ctx context.Context) {
	w.log.Info().Msg("PaymentEventWorker started")

	batch := make([]model.PaymentEvent, 0, PaymentEventBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= PaymentEventBatchSize || time.Since(lastFlush) >= PaymentEventBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.WithoutCancel(ctx), batch)
			return

		default:
			event, err := w.source.Pop(ctx, PaymentEventPollTimeout)
			if err != nil {
				if ctx.Err() == nil {
					w.log.Error().Err(err).Msg("Queue pop failed")
					w.backoff(ctx)
				}
				continue
			}
			if event == nil {
				continue
			}
			if event.CreatedAt.IsZero() {
				event.CreatedAt = time.Now().UTC()
			}
			batch = append(batch, *event)
		}
	}
}

func (w *PaymentEventWorker) backoff(ctx context.Context) {
	t := time.NewTimer(PaymentEventPollTimeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// flushSafe writes the batch; on failure the events go back to the queue so
// the next flush retries them.
func (w *PaymentEventWorker) flushSafe(ctx context.Context, batch []model.PaymentEvent) {
	if len(batch) == 0 {
		return
	}

	n, err := w.sink.InsertBatch(ctx, batch)
	if err != nil {
		w.log.Warn().Err(err).Int("size", len(batch)).Msg("Batch insert failed, requeueing")
		pending := make([]model.PaymentEvent, len(batch))
		copy(pending, batch)
		if err := w.source.Requeue(ctx, pending); err != nil {
			w.log.Error().Err(err).Int("size", len(batch)).Msg("Requeue failed, events dropped")
		}
		return
	}

	metrics.PaymentEventsPersisted.Add(float64(n))
	w.log.Debug().Int64("rows", n).Msg("Payment events persisted")
}
