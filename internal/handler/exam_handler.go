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

// ExamHandler handles exam management and the student paper.
type ExamHandler struct {
	examService *service.ExamService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService) *ExamHandler {
	return &ExamHandler{examService: examService}
}

// ListExams godoc
// GET /api/exams?status=&page=&per_page=
// Students and parents see published exams; tutors see their own; staff see all.
func (h *ExamHandler) ListExams(c *gin.Context) {
	page, perPage := pageParams(c)
	status := model.ExamStatus(c.Query("status"))

	exams, pagination, err := h.examService.List(c.Request.Context(), middleware.GetClaims(c), status, page, perPage)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, pagination)
}

// GetExam godoc
// GET /api/exams/:id
func (h *ExamHandler) GetExam(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), middleware.GetClaims(c), id)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// CreateExam godoc
// POST /api/exams
// Creates a new draft exam.
func (h *ExamHandler) CreateExam(c *gin.Context) {
	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), middleware.GetClaims(c), req)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// UpdateExam godoc
// PUT /api/exams/:id
// Updates a draft exam.
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req model.UpdateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Update(c.Request.Context(), middleware.GetClaims(c), id, req)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// DeleteExam godoc
// DELETE /api/exams/:id
// Deletes a draft exam with its questions.
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.examService.Delete(c.Request.Context(), middleware.GetClaims(c), id); err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// PublishExam godoc
// POST /api/exams/:id/publish
// Caches the student paper, then marks the exam PUBLISHED.
func (h *ExamHandler) PublishExam(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	exam, err := h.examService.Publish(c.Request.Context(), middleware.GetClaims(c), id)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// ArchiveExam godoc
// POST /api/exams/:id/archive
func (h *ExamHandler) ArchiveExam(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	exam, err := h.examService.Archive(c.Request.Context(), middleware.GetClaims(c), id)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// GetPaper godoc
// GET /api/exams/:id/paper
// Returns the answer-free paper to a student whose registration fee is paid.
func (h *ExamHandler) GetPaper(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	paper, err := h.examService.GetPaper(c.Request.Context(), middleware.GetClaims(c), id)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}
