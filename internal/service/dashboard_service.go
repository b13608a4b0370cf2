package service

import (
	"context"

	"github.com/stemsi/enrolment-backend/internal/model"
	"github.com/stemsi/enrolment-backend/internal/repository"
	"golang.org/x/sync/errgroup"
)

// DashboardStore is the read model behind the admin dashboard.
type DashboardStore interface {
	GetRoleCounts(ctx context.Context) (map[model.Role]int, error)
	GetPaymentStatusCounts(ctx context.Context) (map[model.PaymentStatus]int, error)
	GetRevenue(ctx context.Context) ([]repository.DashboardRevenue, error)
	GetExamStatusCounts(ctx context.Context) (map[model.ExamStatus]int, error)
	GetUpcomingExams(ctx context.Context, limit int) ([]repository.DashboardUpcomingExam, error)
	GetRecentPayments(ctx context.Context, limit int) ([]repository.DashboardRecentPayment, error)
}

// DashboardData consolidates all metrics for the admin dashboard.
type DashboardData struct {
	TotalStudents       int                                 `json:"total_students"`
	TotalExams          int                                 `json:"total_exams"`
	RoleCounts          map[model.Role]int                  `json:"role_counts"`
	PaymentStatusCounts map[model.PaymentStatus]int         `json:"payment_status_counts"`
	Revenue             []repository.DashboardRevenue       `json:"revenue"`
	ExamStatusCounts    map[model.ExamStatus]int            `json:"exam_status_counts"`
	UpcomingExams       []repository.DashboardUpcomingExam  `json:"upcoming_exams"`
	RecentPayments      []repository.DashboardRecentPayment `json:"recent_payments"`
}

const dashboardListLimit = 5

// DashboardService handles admin dashboard business logic.
type DashboardService struct {
	repo DashboardStore
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(repo DashboardStore) *DashboardService {
	return &DashboardService{repo: repo}
}

// GetDashboardData fetches all dashboard metrics concurrently.
func (s *DashboardService) GetDashboardData(ctx context.Context) (*DashboardData, error) {
	data := &DashboardData{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		data.RoleCounts, err = s.repo.GetRoleCounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		data.PaymentStatusCounts, err = s.repo.GetPaymentStatusCounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		data.Revenue, err = s.repo.GetRevenue(gctx)
		return err
	})
	g.Go(func() (err error) {
		data.ExamStatusCounts, err = s.repo.GetExamStatusCounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		data.UpcomingExams, err = s.repo.GetUpcomingExams(gctx, dashboardListLimit)
		return err
	})
	g.Go(func() (err error) {
		data.RecentPayments, err = s.repo.GetRecentPayments(gctx, dashboardListLimit)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	data.TotalStudents = data.RoleCounts[model.RoleStudent]
	for _, n := range data.ExamStatusCounts {
		data.TotalExams += n
	}
	return data, nil
}
