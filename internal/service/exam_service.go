package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/enrolment-backend/internal/model"
	"github.com/stemsi/enrolment-backend/internal/repository"
	"github.com/stemsi/enrolment-backend/internal/response"
)

// ExamService handles exam business logic and the cached student paper.
type ExamService struct {
	exams     ExamStore
	questions QuestionStore
	accounts  AccountStore
	papers    PaperCache
	log       zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(exams ExamStore, questions QuestionStore, accounts AccountStore, papers PaperCache, log zerolog.Logger) *ExamService {
	return &ExamService{
		exams:     exams,
		questions: questions,
		accounts:  accounts,
		papers:    papers,
		log:       log.With().Str("component", "exam_service").Logger(),
	}
}

// GetByID retrieves an exam visible to the actor. Students and parents only
// see published exams.
func (s *ExamService) GetByID(ctx context.Context, actor *Claims, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canEditExams(actor) && exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotFound
	}
	return exam, nil
}

// List retrieves exams visible to the actor: published ones for students and
// parents, own exams for tutors, everything for staff.
func (s *ExamService) List(ctx context.Context, actor *Claims, status model.ExamStatus, page, perPage int) ([]model.Exam, *response.Pagination, error) {
	filter := model.ListExamsFilter{Status: status}
	switch {
	case actor == nil:
		return nil, nil, ErrUnauthenticated
	case !canEditExams(actor):
		filter.Status = model.ExamStatusPublished
	case actor.Role == model.RoleTutor:
		authorID := actor.UserID
		filter.AuthorID = &authorID
	}

	page, perPage, limit, offset := paginate(page, perPage)
	exams, total, err := s.exams.ListPaginated(ctx, filter, limit, offset)
	if err != nil {
		return nil, nil, fmt.Errorf("list exams: %w", err)
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	return exams, response.NewPagination(page, perPage, total), nil
}

// Create inserts a new exam as DRAFT authored by the actor.
func (s *ExamService) Create(ctx context.Context, actor *Claims, req model.CreateExamRequest) (*model.Exam, error) {
	if !canEditExams(actor) {
		return nil, ErrForbidden
	}
	exam := &model.Exam{
		Title:           req.Title,
		Description:     req.Description,
		AuthorID:        actor.UserID,
		DurationMinutes: req.DurationMinutes,
		ScheduledStart:  req.ScheduledStart,
		ScheduledEnd:    req.ScheduledEnd,
		Status:          model.ExamStatusDraft,
	}
	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}
	s.log.Info().Str("exam_id", exam.ID.String()).Int("author_id", actor.UserID).Msg("Exam created")
	return exam, nil
}

// Update modifies an existing draft exam.
func (s *ExamService) Update(ctx context.Context, actor *Claims, id uuid.UUID, req model.UpdateExamRequest) (*model.Exam, error) {
	exam, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.Title != "" {
		exam.Title = req.Title
	}
	if req.Description != nil {
		exam.Description = *req.Description
	}
	if req.DurationMinutes > 0 {
		exam.DurationMinutes = req.DurationMinutes
	}
	if req.ScheduledStart != nil {
		exam.ScheduledStart = req.ScheduledStart
	}
	if req.ScheduledEnd != nil {
		exam.ScheduledEnd = req.ScheduledEnd
	}
	if exam.ScheduledStart != nil && exam.ScheduledEnd != nil && !exam.ScheduledEnd.After(*exam.ScheduledStart) {
		return nil, newValidationError("scheduled_end", "scheduled_end must be after scheduled_start")
	}

	if err := s.exams.Update(ctx, exam); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrExamNotDraft
		}
		return nil, fmt.Errorf("update exam: %w", err)
	}
	return exam, nil
}

// Delete removes a draft exam and its questions.
func (s *ExamService) Delete(ctx context.Context, actor *Claims, id uuid.UUID) error {
	if _, err := s.editable(ctx, actor, id); err != nil {
		return err
	}
	if err := s.exams.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrExamNotFound
		}
		return fmt.Errorf("delete exam: %w", err)
	}
	s.log.Info().Str("exam_id", id.String()).Int("actor_id", actor.UserID).Msg("Exam deleted")
	return nil
}

// Publish warms the student paper and marks the exam PUBLISHED.
func (s *ExamService) Publish(ctx context.Context, actor *Claims, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if err := s.WarmPaper(ctx, exam); err != nil {
		return nil, err
	}
	if err := s.exams.UpdateStatus(ctx, id, model.ExamStatusPublished); err != nil {
		s.dropPaper(ctx, id)
		return nil, fmt.Errorf("update status: %w", err)
	}
	exam.Status = model.ExamStatusPublished

	s.log.Info().Str("exam_id", id.String()).Msg("Exam published")
	return exam, nil
}

// Archive withdraws a published exam and drops its cached paper.
func (s *ExamService) Archive(ctx context.Context, actor *Claims, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkExamAuthor(actor, exam); err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotPublished
	}

	if err := s.exams.UpdateStatus(ctx, id, model.ExamStatusArchived); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	s.dropPaper(ctx, id)
	exam.Status = model.ExamStatusArchived
	return exam, nil
}

// GetPaper returns the answer-free paper of a published exam. Students must
// have completed their registration payment.
func (s *ExamService) GetPaper(ctx context.Context, actor *Claims, id uuid.UUID) (*model.ExamPaper, error) {
	if err := AuthorizeRole(actor, model.RoleStudent); err != nil {
		return nil, err
	}
	account, err := s.accounts.GetByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	if account.PaymentStatus != model.PaymentCompleted {
		return nil, ErrPaymentRequired
	}

	// The exam row, not the cache, decides whether a paper may be served.
	exam, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotPublished
	}

	paper, err := s.papers.Get(ctx, id.String())
	if err != nil {
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Paper cache read failed, loading from database")
	}
	if paper != nil {
		return paper, nil
	}

	paper, err = s.buildPaper(ctx, exam)
	if err != nil {
		return nil, err
	}
	if err := s.papers.Set(ctx, paper); err != nil {
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Failed to cache paper")
	}
	return paper, nil
}

// WarmPaper builds the answer-free paper of an exam and caches it.
func (s *ExamService) WarmPaper(ctx context.Context, exam *model.Exam) error {
	paper, err := s.buildPaper(ctx, exam)
	if err != nil {
		return err
	}
	if err := s.papers.Set(ctx, paper); err != nil {
		return fmt.Errorf("cache paper: %w", err)
	}
	s.log.Debug().Str("exam_id", exam.ID.String()).Int("questions", len(paper.Questions)).Msg("Paper cached")
	return nil
}

// PrewarmPapers caches every published paper. Called once at startup.
func (s *ExamService) PrewarmPapers(ctx context.Context) error {
	exams, err := s.exams.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}

	warmed := 0
	for i := range exams {
		if err := s.WarmPaper(ctx, &exams[i]); err != nil {
			s.log.Warn().Err(err).Str("exam_id", exams[i].ID.String()).Msg("Failed to warm paper, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().Int("warmed", warmed).Int("total", len(exams)).Msg("Paper prewarming complete")
	return nil
}

func (s *ExamService) dropPaper(ctx context.Context, id uuid.UUID) {
	if err := s.papers.Delete(ctx, id.String()); err != nil {
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Failed to drop cached paper")
	}
}

func (s *ExamService) buildPaper(ctx context.Context, exam *model.Exam) (*model.ExamPaper, error) {
	questions, err := s.questions.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	paper := &model.ExamPaper{
		ExamID:    exam.ID,
		Title:     exam.Title,
		Duration:  exam.DurationMinutes,
		Questions: make([]model.QuestionForPaper, len(questions)),
	}
	for i := range questions {
		paper.Questions[i] = questions[i].ForPaper()
	}
	return paper, nil
}

func (s *ExamService) get(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}

// editable loads a draft exam the actor may change.
func (s *ExamService) editable(ctx context.Context, actor *Claims, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkExamAuthor(actor, exam); err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusDraft {
		return nil, ErrExamNotDraft
	}
	return exam, nil
}

func canEditExams(actor *Claims) bool {
	return AuthorizeRole(actor, model.RoleTutor, model.RoleAdmin, model.RoleSuperadmin) == nil
}

// checkExamAuthor lets staff edit any exam and tutors only their own.
func checkExamAuthor(actor *Claims, exam *model.Exam) error {
	if !canEditExams(actor) {
		return ErrForbidden
	}
	if actor.Role == model.RoleTutor && exam.AuthorID != actor.UserID {
		return ErrNotExamAuthor
	}
	return nil
}
