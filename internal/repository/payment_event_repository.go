package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/enrolment-backend/internal/model"
)

// PaymentEventRepository persists the payment audit trail.
type PaymentEventRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentEventRepository creates a new PaymentEventRepository.
func NewPaymentEventRepository(pool *pgxpool.Pool) *PaymentEventRepository {
	return &PaymentEventRepository{pool: pool}
}

// InsertBatch writes events with a single COPY round trip.
func (r *PaymentEventRepository) InsertBatch(ctx context.Context, events []model.PaymentEvent) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}
	return r.pool.CopyFrom(ctx,
		pgx.Identifier{"payment_events"},
		[]string{"account_id", "order_id", "kind", "status", "amount", "currency", "detail", "created_at"},
		pgx.CopyFromSlice(len(events), func(i int) ([]interface{}, error) {
			e := events[i]
			var currency *string
			if e.Currency != "" {
				currency = &e.Currency
			}
			var detail []byte
			if len(e.Detail) > 0 {
				detail = e.Detail
			}
			return []interface{}{
				e.AccountID, e.OrderID, string(e.Kind), string(e.Status),
				e.Amount, currency, detail, e.CreatedAt,
			}, nil
		}),
	)
}

// ListByAccount returns an account's audit trail, oldest first.
func (r *PaymentEventRepository) ListByAccount(ctx context.Context, accountID int) ([]model.PaymentEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT account_id, order_id, kind, status, amount, COALESCE(currency, ''), detail, created_at
		 FROM payment_events WHERE account_id = $1 ORDER BY created_at, id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []model.PaymentEvent{}
	for rows.Next() {
		var e model.PaymentEvent
		if err := rows.Scan(&e.AccountID, &e.OrderID, &e.Kind, &e.Status, &e.Amount, &e.Currency, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
