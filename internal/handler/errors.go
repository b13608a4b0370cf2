package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/enrolment-backend/internal/gateway"
	"github.com/stemsi/enrolment-backend/internal/response"
	"github.com/stemsi/enrolment-backend/internal/service"
)

// failFromError maps a service error onto the response envelope. Unknown
// errors become 500 and are attached to the context for the request logger.
func failFromError(c *gin.Context, err error) {
	_ = c.Error(err)

	var valErr *service.ValidationError
	if errors.As(err, &valErr) {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, valErr.Fields)
		return
	}

	var reqErr *gateway.RequestError
	if errors.As(err, &reqErr) {
		msg := "Payment processor error"
		if reqErr.Message != "" {
			msg += ": " + reqErr.Message
		}
		response.FailWithMessage(c, http.StatusBadGateway, response.ErrGateway, msg, reqErr.Fields())
		return
	}
	var authErr *gateway.AuthError
	if errors.As(err, &authErr) {
		fields := map[string]string{"operation": "authenticate"}
		if authErr.StatusCode != 0 {
			fields["remote_status"] = strconv.Itoa(authErr.StatusCode)
		}
		if authErr.DebugID != "" {
			fields["debug_id"] = authErr.DebugID
		}
		response.FailWithMessage(c, http.StatusBadGateway, response.ErrGateway, "Payment processor authentication failed", fields)
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidLogin):
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
	case errors.Is(err, service.ErrAccountInactive):
		response.Fail(c, http.StatusForbidden, response.ErrAccountInactive)
	case errors.Is(err, service.ErrUnauthenticated):
		response.Fail(c, http.StatusForbidden, response.ErrTokenRequired)
	case errors.Is(err, service.ErrTokenExpired):
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenExpired)
	case errors.Is(err, service.ErrTokenRevoked):
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRevoked)
	case errors.Is(err, service.ErrInvalidCredential):
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
	case errors.Is(err, service.ErrForbidden):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrCannotDeactivateSelf):
		response.FailWithMessage(c, http.StatusForbidden, response.ErrForbidden, "You cannot change the status of your own account.", nil)

	case errors.Is(err, service.ErrDuplicateEmail):
		response.FailWithFields(c, http.StatusConflict, response.ErrDuplicateEmail, map[string]string{"email": "email is already registered"})
	case errors.Is(err, service.ErrAccountNotFound), errors.Is(err, service.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrWrongPassword):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"current_password": "current password is incorrect"})

	case errors.Is(err, service.ErrOrderNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrOrderNotFound)
	case errors.Is(err, service.ErrInvalidPaymentState):
		response.Fail(c, http.StatusConflict, response.ErrInvalidPaymentState)
	case errors.Is(err, service.ErrCaptureInProgress):
		response.Fail(c, http.StatusConflict, response.ErrCaptureInProgress)
	case errors.Is(err, service.ErrPaymentNotCompleted):
		response.Fail(c, http.StatusBadRequest, response.ErrPaymentNotCompleted)
	case errors.Is(err, service.ErrPaymentRequired):
		response.Fail(c, http.StatusPaymentRequired, response.ErrPaymentRequired)

	case errors.Is(err, service.ErrNotExamAuthor):
		response.Fail(c, http.StatusForbidden, response.ErrNotExamAuthor)
	case errors.Is(err, service.ErrExamNotDraft):
		response.Fail(c, http.StatusConflict, response.ErrExamNotDraft)
	case errors.Is(err, service.ErrExamNotPublished):
		response.Fail(c, http.StatusConflict, response.ErrExamNotPublished)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoQuestions)

	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// intParam parses a positive integer path parameter, writing a 400 when it is malformed.
func intParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}

// uuidParam parses a UUID path parameter, writing a 400 when it is malformed.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))
	return page, perPage
}
