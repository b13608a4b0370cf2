package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/enrolment-backend/internal/middleware"
	"github.com/stemsi/enrolment-backend/internal/model"
	"github.com/stemsi/enrolment-backend/internal/response"
	"github.com/stemsi/enrolment-backend/internal/service"
	"github.com/stemsi/enrolment-backend/internal/validator"
)

// QuestionHandler handles question management endpoints.
type QuestionHandler struct {
	questionService *service.QuestionService
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questionService: questionService}
}

// ListQuestions godoc
// GET /api/exams/:id/questions
// Lists all questions for an exam, answers included.
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	examID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	questions, err := h.questionService.ListByExam(c.Request.Context(), middleware.GetClaims(c), examID)
	if err != nil {
		failFromError(c, err)
		return
	}

	if questions == nil {
		questions = []model.Question{}
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// AddQuestion godoc
// POST /api/exams/:id/questions
// Adds a question to a draft exam.
func (h *QuestionHandler) AddQuestion(c *gin.Context) {
	examID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req model.QuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.Add(c.Request.Context(), middleware.GetClaims(c), examID, req)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"question": question})
}

// ReplaceQuestions godoc
// PUT /api/exams/:id/questions
// Replaces the whole question set of a draft exam in one transaction.
func (h *QuestionHandler) ReplaceQuestions(c *gin.Context) {
	examID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions, err := h.questionService.Replace(c.Request.Context(), middleware.GetClaims(c), examID, req)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}
