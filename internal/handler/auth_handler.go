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

// AuthHandler handles login, the caller's own profile and account administration.
type AuthHandler struct {
	authService    *service.AuthService
	accountService *service.AccountService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, accountService *service.AccountService) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		accountService: accountService,
	}
}

// Login godoc
// POST /api/auth/login
// Validates email + password for the requested role, returns a JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// Logout godoc
// POST /api/auth/logout
// Revokes the presented token.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusForbidden, response.ErrTokenRequired)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims); err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// GetProfile godoc
// GET /api/auth/profile
// Returns the account of the authenticated caller.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusForbidden, response.ErrTokenRequired)
		return
	}

	account, err := h.accountService.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": account})
}

// UpdateProfile godoc
// PUT /api/auth/profile
// Updates the caller's profile; a new password needs current_password.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusForbidden, response.ErrTokenRequired)
		return
	}

	var req model.UpdateProfileRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	account, err := h.accountService.UpdateProfile(c.Request.Context(), claims, claims.UserID, req)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": account})
}

// ListUsers godoc
// GET /api/auth/users?role=&page=&per_page=
// Lists accounts for administrators.
func (h *AuthHandler) ListUsers(c *gin.Context) {
	page, perPage := pageParams(c)
	filter := model.ListAccountsFilter{Role: model.Role(c.Query("role"))}

	accounts, pagination, err := h.accountService.List(c.Request.Context(), filter, page, perPage)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"users": accounts}, pagination)
}

// CreateUser godoc
// POST /api/auth/users
// Provisions an active account. Only superadmins may create staff.
func (h *AuthHandler) CreateUser(c *gin.Context) {
	var req model.CreateAccountRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	account, err := h.accountService.Create(c.Request.Context(), middleware.GetClaims(c), req)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"user": account})
}

// UpdateUserStatus godoc
// PATCH /api/auth/users/:id/status
// Activates or deactivates an account. Deactivation signs the account out everywhere.
func (h *AuthHandler) UpdateUserStatus(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	var req model.UpdateStatusRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	account, err := h.accountService.SetActive(c.Request.Context(), middleware.GetClaims(c), id, *req.IsActive)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": account})
}
