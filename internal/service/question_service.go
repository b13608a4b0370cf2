package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/stemsi/enrolment-backend/internal/model"
)

// QuestionService handles the question set of draft exams.
type QuestionService struct {
	questions QuestionStore
	exams     *ExamService
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questions QuestionStore, exams *ExamService) *QuestionService {
	return &QuestionService{questions: questions, exams: exams}
}

// ListByExam returns the full questions, answers included, for the exam's editors.
func (s *QuestionService) ListByExam(ctx context.Context, actor *Claims, examID uuid.UUID) ([]model.Question, error) {
	exam, err := s.exams.get(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err := checkExamAuthor(actor, exam); err != nil {
		return nil, err
	}
	questions, err := s.questions.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return questions, nil
}

// Add appends a question to a draft exam.
func (s *QuestionService) Add(ctx context.Context, actor *Claims, examID uuid.UUID, req model.QuestionRequest) (*model.Question, error) {
	if _, err := s.exams.editable(ctx, actor, examID); err != nil {
		return nil, err
	}
	q, err := buildQuestion(examID, req, "")
	if err != nil {
		return nil, err
	}
	if err := s.questions.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

// Replace swaps the whole question set of a draft exam.
func (s *QuestionService) Replace(ctx context.Context, actor *Claims, examID uuid.UUID, req model.ReplaceQuestionsRequest) ([]model.Question, error) {
	if _, err := s.exams.editable(ctx, actor, examID); err != nil {
		return nil, err
	}

	questions := make([]model.Question, 0, len(req.Questions))
	for i, r := range req.Questions {
		q, err := buildQuestion(examID, r, "questions["+strconv.Itoa(i)+"].")
		if err != nil {
			return nil, err
		}
		if q.OrderNum == 0 {
			q.OrderNum = i + 1
		}
		questions = append(questions, *q)
	}

	if err := s.questions.ReplaceForExam(ctx, examID, questions); err != nil {
		return nil, fmt.Errorf("replace questions: %w", err)
	}
	return questions, nil
}

// buildQuestion checks type-specific rules: multiple choice needs a non-empty
// JSON array of options and a correct option; essays carry no options.
func buildQuestion(examID uuid.UUID, req model.QuestionRequest, prefix string) (*model.Question, error) {
	options := req.Options
	switch req.QuestionType {
	case model.QuestionTypeMultipleChoice:
		var parsed []json.RawMessage
		if len(options) == 0 || json.Unmarshal(options, &parsed) != nil || len(parsed) < 2 {
			return nil, newValidationError(prefix+"options", "options must be a JSON array with at least two entries")
		}
		if req.CorrectOption == "" {
			return nil, newValidationError(prefix+"correct_option", "correct_option is required for multiple choice questions")
		}
	case model.QuestionTypeEssay:
		options = json.RawMessage(`[]`)
	default:
		return nil, newValidationError(prefix+"question_type", "question_type must be one of MULTIPLE_CHOICE ESSAY")
	}

	score := req.ScoreValue
	if score == 0 {
		score = 1
	}
	return &model.Question{
		ExamID:        examID,
		QuestionText:  req.QuestionText,
		QuestionType:  req.QuestionType,
		Options:       options,
		CorrectOption: req.CorrectOption,
		OrderNum:      req.OrderNum,
		ScoreValue:    score,
	}, nil
}
