package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/enrolment-backend/internal/model"
)

// DashboardRepository handles admin dashboard data access.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// GetRoleCounts retrieves the number of accounts per role.
func (r *DashboardRepository) GetRoleCounts(ctx context.Context) (map[model.Role]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT role, COUNT(*) FROM accounts GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.Role]int)
	for rows.Next() {
		var role model.Role
		var count int
		if err := rows.Scan(&role, &count); err != nil {
			return nil, err
		}
		counts[role] = count
	}
	return counts, rows.Err()
}

// GetPaymentStatusCounts retrieves the distribution of students by payment status.
func (r *DashboardRepository) GetPaymentStatusCounts(ctx context.Context) (map[model.PaymentStatus]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT payment_status, COUNT(*) FROM accounts
		 WHERE payment_status IS NOT NULL GROUP BY payment_status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.PaymentStatus]int)
	for rows.Next() {
		var status model.PaymentStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// DashboardRevenue is the settled registration fee total in one currency.
type DashboardRevenue struct {
	Currency string  `json:"currency"`
	Total    float64 `json:"total"`
	Payments int     `json:"payments"`
}

// GetRevenue sums completed registration payments per currency.
func (r *DashboardRepository) GetRevenue(ctx context.Context) ([]DashboardRevenue, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT payment_currency, COALESCE(SUM(payment_amount), 0)::float8, COUNT(*)
		 FROM accounts
		 WHERE payment_status = $1
		 GROUP BY payment_currency
		 ORDER BY payment_currency`,
		model.PaymentCompleted,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	revenue := []DashboardRevenue{}
	for rows.Next() {
		var rev DashboardRevenue
		if err := rows.Scan(&rev.Currency, &rev.Total, &rev.Payments); err != nil {
			return nil, err
		}
		revenue = append(revenue, rev)
	}
	return revenue, rows.Err()
}

// GetExamStatusCounts retrieves the distribution of exams by status.
func (r *DashboardRepository) GetExamStatusCounts(ctx context.Context) (map[model.ExamStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM exams GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.ExamStatus]int)
	for rows.Next() {
		var status model.ExamStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// DashboardUpcomingExam represents minimal data for upcoming scheduled exams.
type DashboardUpcomingExam struct {
	ID             uuid.UUID  `json:"id"`
	Title          string     `json:"title"`
	ScheduledStart *time.Time `json:"scheduled_start"`
	Duration       int        `json:"duration_minutes"`
}

// GetUpcomingExams retrieves the next N scheduled exams that are PUBLISHED.
func (r *DashboardRepository) GetUpcomingExams(ctx context.Context, limit int) ([]DashboardUpcomingExam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, scheduled_start, duration_minutes
		 FROM exams
		 WHERE status = $1 AND scheduled_start > NOW()
		 ORDER BY scheduled_start ASC LIMIT $2`,
		model.ExamStatusPublished, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exams := []DashboardUpcomingExam{}
	for rows.Next() {
		var e DashboardUpcomingExam
		if err := rows.Scan(&e.ID, &e.Title, &e.ScheduledStart, &e.Duration); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// DashboardRecentPayment is a recently settled registration fee.
type DashboardRecentPayment struct {
	AccountID   int       `json:"account_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	PaymentDate time.Time `json:"payment_date"`
}

// GetRecentPayments retrieves the last N completed registration payments.
func (r *DashboardRepository) GetRecentPayments(ctx context.Context, limit int) ([]DashboardRecentPayment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, first_name || ' ' || last_name, email,
		        COALESCE(payment_amount, 0)::float8, COALESCE(payment_currency, ''), payment_date
		 FROM accounts
		 WHERE payment_status = $1 AND payment_date IS NOT NULL
		 ORDER BY payment_date DESC LIMIT $2`,
		model.PaymentCompleted, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []DashboardRecentPayment{}
	for rows.Next() {
		var p DashboardRecentPayment
		if err := rows.Scan(&p.AccountID, &p.Name, &p.Email, &p.Amount, &p.Currency, &p.PaymentDate); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
