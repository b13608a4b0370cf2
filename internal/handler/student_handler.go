package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/enrolment-backend/internal/middleware"
	"github.com/stemsi/enrolment-backend/internal/model"
	"github.com/stemsi/enrolment-backend/internal/response"
	"github.com/stemsi/enrolment-backend/internal/service"
	"github.com/stemsi/enrolment-backend/internal/validator"
)

// StudentHandler handles self-registration, the registration-fee payment and
// student profiles.
type StudentHandler struct {
	registrationService *service.RegistrationService
	accountService      *service.AccountService
}

// NewStudentHandler creates a new StudentHandler.
func NewStudentHandler(registrationService *service.RegistrationService, accountService *service.AccountService) *StudentHandler {
	return &StudentHandler{
		registrationService: registrationService,
		accountService:      accountService,
	}
}

// Register godoc
// POST /api/student/register
// Creates a student account awaiting the registration fee.
func (h *StudentHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	account, err := h.registrationService.Register(c.Request.Context(), req)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, model.RegisterResponse{
		AccountID:     account.ID,
		Email:         account.Email,
		FirstName:     account.FirstName,
		LastName:      account.LastName,
		PaymentStatus: account.PaymentStatus,
	})
}

// CreateOrder godoc
// POST /api/student/create-order
// Opens a checkout order for the registration fee and returns the payer approval link.
func (h *StudentHandler) CreateOrder(c *gin.Context) {
	var req model.CreateOrderRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	order, err := h.registrationService.InitiatePayment(c.Request.Context(), req.AccountID, req.Amount, req.Currency)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, order)
}

// CapturePayment godoc
// POST /api/student/capture-payment
// Captures an approved order. Repeating the call for a completed order is harmless.
func (h *StudentHandler) CapturePayment(c *gin.Context) {
	var req model.CapturePaymentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.registrationService.FinalizePayment(c.Request.Context(), req.OrderID)
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotCompleted) && result != nil {
			_ = c.Error(err)
			response.FailWithFields(c, http.StatusBadRequest, response.ErrPaymentNotCompleted, map[string]string{
				"status":         string(result.Status),
				"gateway_status": result.GatewayStatus,
			})
			return
		}
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GetProfile godoc
// GET /api/student/profile/:id
// Returns a profile to its owner or to staff.
func (h *StudentHandler) GetProfile(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	account, err := h.accountService.GetForActor(c.Request.Context(), middleware.GetClaims(c), id)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": account})
}

// UpdateProfile godoc
// PUT /api/student/profile/:id
// Updates a profile on behalf of its owner or staff.
func (h *StudentHandler) UpdateProfile(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	var req model.UpdateProfileRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	account, err := h.accountService.UpdateProfile(c.Request.Context(), middleware.GetClaims(c), id, req)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": account})
}
