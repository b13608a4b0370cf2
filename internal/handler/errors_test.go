package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/enrolment-backend/internal/gateway"
	"github.com/stemsi/enrolment-backend/internal/response"
	"github.com/stemsi/enrolment-backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func failWith(t *testing.T, err error) (int, response.ErrorBody) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	failFromError(c, err)

	var env response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	assert.Len(t, c.Errors, 1)
	return w.Code, *env.Error
}

func TestFailFromError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   response.ErrCode
	}{
		{service.ErrInvalidLogin, http.StatusUnauthorized, response.ErrInvalidCredentials},
		{service.ErrAccountInactive, http.StatusForbidden, response.ErrAccountInactive},
		{service.ErrUnauthenticated, http.StatusForbidden, response.ErrTokenRequired},
		{service.ErrTokenExpired, http.StatusUnauthorized, response.ErrTokenExpired},
		{service.ErrTokenRevoked, http.StatusUnauthorized, response.ErrTokenRevoked},
		{service.ErrForbidden, http.StatusForbidden, response.ErrForbidden},
		{service.ErrDuplicateEmail, http.StatusConflict, response.ErrDuplicateEmail},
		{service.ErrAccountNotFound, http.StatusNotFound, response.ErrNotFound},
		{service.ErrExamNotFound, http.StatusNotFound, response.ErrNotFound},
		{service.ErrOrderNotFound, http.StatusNotFound, response.ErrOrderNotFound},
		{service.ErrInvalidPaymentState, http.StatusConflict, response.ErrInvalidPaymentState},
		{service.ErrCaptureInProgress, http.StatusConflict, response.ErrCaptureInProgress},
		{service.ErrPaymentRequired, http.StatusPaymentRequired, response.ErrPaymentRequired},
		{service.ErrExamNotDraft, http.StatusConflict, response.ErrExamNotDraft},
		{service.ErrNoQuestions, http.StatusUnprocessableEntity, response.ErrNoQuestions},
		{fmt.Errorf("load: %w", service.ErrExamNotFound), http.StatusNotFound, response.ErrNotFound},
		{errors.New("connection reset"), http.StatusInternalServerError, response.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.code)+"/"+tt.err.Error(), func(t *testing.T) {
			status, body := failWith(t, tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestFailFromValidationError(t *testing.T) {
	status, body := failWith(t, &service.ValidationError{Fields: map[string]string{"phone": "phone is invalid"}})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, response.ErrValidation, body.Code)
	assert.Equal(t, "phone is invalid", body.Fields["phone"])
}

func TestFailFromGatewayErrors(t *testing.T) {
	t.Run("request", func(t *testing.T) {
		err := fmt.Errorf("capture: %w", &gateway.RequestError{
			Op:         "capture order",
			StatusCode: http.StatusUnprocessableEntity,
			Name:       "UNPROCESSABLE_ENTITY",
			Message:    "The requested action could not be performed",
			DebugID:    "dbg-1",
			Details:    []gateway.ErrorDetail{{Issue: "INSTRUMENT_DECLINED"}},
		})
		status, body := failWith(t, err)

		assert.Equal(t, http.StatusBadGateway, status)
		assert.Equal(t, response.ErrGateway, body.Code)
		assert.Contains(t, body.Message, "could not be performed")
		assert.Equal(t, "422", body.Fields["remote_status"])
		assert.Equal(t, "INSTRUMENT_DECLINED", body.Fields["issue"])
		assert.Equal(t, "dbg-1", body.Fields["debug_id"])
	})

	t.Run("auth", func(t *testing.T) {
		status, body := failWith(t, &gateway.AuthError{StatusCode: http.StatusUnauthorized, Name: "invalid_client"})

		assert.Equal(t, http.StatusBadGateway, status)
		assert.Equal(t, response.ErrGateway, body.Code)
		assert.Equal(t, "authenticate", body.Fields["operation"])
		assert.Equal(t, "401", body.Fields["remote_status"])
	})
}

func TestIntParam(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-3"} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Params = gin.Params{{Key: "id", Value: raw}}

		_, ok := intParam(c, "id")
		assert.False(t, ok, raw)
		assert.Equal(t, http.StatusBadRequest, w.Code, raw)
	}

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	id, ok := intParam(c, "id")
	assert.True(t, ok)
	assert.Equal(t, 42, id)
}
