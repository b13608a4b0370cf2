package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/enrolment-backend/internal/gateway"
	"github.com/stemsi/enrolment-backend/internal/model"
	"github.com/stemsi/enrolment-backend/internal/notify"
)

// AccountStore is the persistence the account and payment flows need.
// repository.AccountRepository implements it.
type AccountStore interface {
	GetByID(ctx context.Context, id int) (*model.Account, error)
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	GetByOrderID(ctx context.Context, orderID string) (*model.Account, error)
	ExistsWithRole(ctx context.Context, role model.Role) (bool, error)
	ListPaginated(ctx context.Context, filter model.ListAccountsFilter, limit, offset int) ([]model.Account, int, error)
	Create(ctx context.Context, a *model.Account) error
	UpdateProfile(ctx context.Context, a *model.Account) error
	SetActive(ctx context.Context, id int, active bool) error

	AttachOrder(ctx context.Context, accountID int, orderID string, amount float64, currency string) error
	ClaimCapture(ctx context.Context, orderID string, staleAfter time.Duration) error
	ReleaseCapture(ctx context.Context, orderID string) error
	CompletePayment(ctx context.Context, orderID string, paidAt time.Time) error
	FailPayment(ctx context.Context, orderID string) error
}

// PaymentGateway creates and captures checkout orders. *gateway.Client implements it.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount float64, currency string) (*gateway.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*gateway.CaptureResult, error)
}

// RevocationStore is the token deny-list. cache.RevocationStore implements it.
type RevocationStore interface {
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	RevokeAccount(ctx context.Context, accountID int, at time.Time) error
	IsRevoked(ctx context.Context, jti string, accountID int, issuedAt time.Time) (bool, error)
}

// PaymentEventPublisher queues audit events. cache.EventQueue implements it.
type PaymentEventPublisher interface {
	Publish(ctx context.Context, event model.PaymentEvent) error
}

// ExamStore is exam persistence. repository.ExamRepository implements it.
type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListPaginated(ctx context.Context, filter model.ListExamsFilter, limit, offset int) ([]model.Exam, int, error)
	ListPublished(ctx context.Context) ([]model.Exam, error)
	Create(ctx context.Context, e *model.Exam) error
	Update(ctx context.Context, e *model.Exam) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// QuestionStore is question persistence. repository.QuestionRepository implements it.
type QuestionStore interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
	Create(ctx context.Context, q *model.Question) error
	ReplaceForExam(ctx context.Context, examID uuid.UUID, questions []model.Question) error
}

// PaperCache holds published papers. cache.PaperCache implements it.
type PaperCache interface {
	Get(ctx context.Context, examID string) (*model.ExamPaper, error)
	Set(ctx context.Context, paper *model.ExamPaper) error
	Delete(ctx context.Context, examID string) error
}

// Mailer sends receipts. notify.SendGridMailer and notify.LogMailer implement it.
type Mailer = notify.Mailer

// paginate normalizes page parameters into limit and offset.
func paginate(page, perPage int) (int, int, int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage, perPage, (page - 1) * perPage
}
