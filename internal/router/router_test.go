package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/enrolment-backend/internal/config"
	"github.com/stemsi/enrolment-backend/internal/gateway"
	"github.com/stemsi/enrolment-backend/internal/handler"
	"github.com/stemsi/enrolment-backend/internal/model"
	"github.com/stemsi/enrolment-backend/internal/response"
	"github.com/stemsi/enrolment-backend/internal/service"
	"github.com/stemsi/enrolment-backend/internal/service/servicetest"
	"github.com/stemsi/enrolment-backend/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sandbox imitates the PayPal orders API: every order is approved, and
// orders listed in declined fail their capture.
type sandbox struct {
	mu       sync.Mutex
	next     int
	declined map[string]bool
	captures map[string]int
}

func (s *sandbox) decline(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declined[orderID] = true
}

func (s *sandbox) captureCount(orderID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captures[orderID]
}

func (s *sandbox) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"sandbox-token","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("POST /v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			PurchaseUnits []struct {
				Amount struct {
					CurrencyCode string `json:"currency_code"`
					Value        string `json:"value"`
				} `json:"amount"`
			} `json:"purchase_units"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "2.50", body.PurchaseUnits[0].Amount.Value)
		assert.Equal(t, "USD", body.PurchaseUnits[0].Amount.CurrencyCode)

		s.mu.Lock()
		s.next++
		id := fmt.Sprintf("SANDBOX-%d", s.next)
		s.mu.Unlock()

		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":%q,"status":"CREATED","links":[{"href":"https://sandbox.paypal.test/checkoutnow?token=%s","rel":"approve","method":"GET"}]}`, id, id)
	})
	mux.HandleFunc("POST /v2/checkout/orders/{id}/capture", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		s.mu.Lock()
		s.captures[id]++
		declined := s.declined[id]
		s.mu.Unlock()

		status := "COMPLETED"
		if declined {
			status = "DECLINED"
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":%q,"status":"COMPLETED","purchase_units":[{"payments":{"captures":[{"id":"CAP-%s","status":%q}]}}]}`, id, id, status)
	})
	return mux
}

type testApp struct {
	router   *gin.Engine
	sandbox  *sandbox
	accounts *servicetest.Accounts
	auth     *service.AuthService
	mailer   *servicetest.Mailer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	validator.Setup()

	sb := &sandbox{declined: map[string]bool{}, captures: map[string]int{}}
	srv := httptest.NewServer(sb.handler(t))
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		GinMode:      gin.TestMode,
		JWTSecret:    "router-test-secret",
		JWTExpiry:    time.Hour,
		BcryptCost:   4,
		Registration: config.RegistrationFee{Amount: 2.50, Currency: "USD"},
	}
	log := zerolog.Nop()

	gw, err := gateway.New(gateway.Config{
		BaseURL:      srv.URL,
		ClientID:     "sandbox-client",
		ClientSecret: "sandbox-secret",
		Timeout:      2 * time.Second,
		ReturnURL:    "http://localhost:3000/payment/success",
		CancelURL:    "http://localhost:3000/payment/cancel",
	}, nil, log)
	require.NoError(t, err)

	accounts := servicetest.NewAccounts()
	exams := servicetest.NewExams()
	questions := servicetest.NewQuestions()
	mailer := &servicetest.Mailer{}

	authService := service.NewAuthService(cfg, accounts, servicetest.NewRevocations(), log)
	accountService := service.NewAccountService(accounts, authService, log)
	registrationService := service.NewRegistrationService(accounts, gw, authService, &servicetest.Publisher{}, mailer, cfg.Registration, log)
	examService := service.NewExamService(exams, questions, accounts, servicetest.NewPapers(), log)
	questionService := service.NewQuestionService(questions, examService)

	r := SetupRouter(authService, nil, &Handlers{
		Auth:     handler.NewAuthHandler(authService, accountService),
		Student:  handler.NewStudentHandler(registrationService, accountService),
		Exam:     handler.NewExamHandler(examService),
		Question: handler.NewQuestionHandler(questionService),
	}, cfg, log)

	return &testApp{router: r, sandbox: sb, accounts: accounts, auth: authService, mailer: mailer}
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, "/api"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	return w.Code, env
}

func registration(email string) map[string]interface{} {
	return map[string]interface{}{
		"first_name":     "Chidi",
		"last_name":      "Okafor",
		"email":          email,
		"password":       "enrol-me-2026",
		"phone":          "+2348031234567",
		"profile_photo":  "https://cdn.example.com/chidi.png",
		"marital_status": "Single",
		"dob":            "2005-09-14",
		"state":          "Enugu",
		"local_govt":     "Nsukka",
		"address":        "3 University Road",
		"nationality":    "Nigerian",
		"nin":            "98765432101",
		"department":     "Commercial",
		"gender":         "male",
		"privacy_policy": true,
	}
}

func (a *testApp) registerAndOrder(t *testing.T, email string) (int, string) {
	t.Helper()
	code, env := a.do(t, http.MethodPost, "/student/register", "", registration(email))
	require.Equal(t, http.StatusCreated, code, env.Error)
	var reg model.RegisterResponse
	require.NoError(t, json.Unmarshal(env.Data, &reg))
	assert.Equal(t, model.PaymentPending, reg.PaymentStatus)

	code, env = a.do(t, http.MethodPost, "/student/create-order", "", map[string]interface{}{
		"account_id": reg.AccountID, "amount": 2.50, "currency": "USD",
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	var order model.PaymentOrder
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, model.PaymentProcessing, order.Status)
	assert.Contains(t, order.ApprovalURL, order.OrderID)
	return reg.AccountID, order.OrderID
}

func TestRegistrationPaymentFlow(t *testing.T) {
	app := newTestApp(t)
	accountID, orderID := app.registerAndOrder(t, "chidi@example.com")

	code, env := app.do(t, http.MethodPost, "/student/capture-payment", "", map[string]string{"order_id": orderID})
	require.Equal(t, http.StatusOK, code, env.Error)
	var result model.PaymentResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, model.PaymentCompleted, result.Status)
	assert.Equal(t, accountID, result.AccountID)

	code, env = app.do(t, http.MethodPost, "/student/capture-payment", "", map[string]string{"order_id": orderID})
	assert.Equal(t, http.StatusOK, code, "a repeated capture returns the stored result")
	assert.Equal(t, 1, app.sandbox.captureCount(orderID))
	assert.Len(t, app.mailer.Receipts(), 1)

	stored, err := app.accounts.GetByID(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, stored.PaymentStatus)
}

func TestSevenCharacterPasswordFlow(t *testing.T) {
	app := newTestApp(t)
	body := registration("a@x.com")
	body["password"] = "secret1"

	code, env := app.do(t, http.MethodPost, "/student/register", "", body)
	require.Equal(t, http.StatusCreated, code, env.Error)
	var reg model.RegisterResponse
	require.NoError(t, json.Unmarshal(env.Data, &reg))

	code, env = app.do(t, http.MethodPost, "/student/create-order", "", map[string]interface{}{
		"account_id": reg.AccountID, "amount": 2.50, "currency": "USD",
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	var order model.PaymentOrder
	require.NoError(t, json.Unmarshal(env.Data, &order))

	code, env = app.do(t, http.MethodPost, "/student/capture-payment", "", map[string]string{"order_id": order.OrderID})
	require.Equal(t, http.StatusOK, code, env.Error)
	var result model.PaymentResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, model.PaymentCompleted, result.Status)

	code, env = app.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "a@x.com", "password": "secret1", "role": "student",
	})
	assert.Equal(t, http.StatusOK, code, env.Error)
}

func TestDeclinedCapture(t *testing.T) {
	app := newTestApp(t)
	_, orderID := app.registerAndOrder(t, "declined@example.com")
	app.sandbox.decline(orderID)

	code, env := app.do(t, http.MethodPost, "/student/capture-payment", "", map[string]string{"order_id": orderID})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, response.ErrPaymentNotCompleted, env.Error.Code)
	assert.Equal(t, "failed", env.Error.Fields["status"])
	assert.Equal(t, "DECLINED", env.Error.Fields["gateway_status"])
}

func TestRegistrationErrors(t *testing.T) {
	app := newTestApp(t)
	app.registerAndOrder(t, "dup@example.com")

	code, env := app.do(t, http.MethodPost, "/student/register", "", registration("DUP@example.com"))
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, response.ErrDuplicateEmail, env.Error.Code)

	bad := registration("bad@example.com")
	bad["dob"] = "14-09-2005"
	delete(bad, "nin")
	code, env = app.do(t, http.MethodPost, "/student/register", "", bad)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, response.ErrValidation, env.Error.Code)
	assert.Contains(t, env.Error.Fields, "dob")
	assert.Contains(t, env.Error.Fields, "nin")

	code, env = app.do(t, http.MethodPost, "/student/create-order", "", map[string]interface{}{"account_id": 9999})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, response.ErrNotFound, env.Error.Code)

	code, env = app.do(t, http.MethodPost, "/student/capture-payment", "", map[string]string{"order_id": "UNKNOWN"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, response.ErrOrderNotFound, env.Error.Code)
}

func TestCreateOrderTwiceIsRejected(t *testing.T) {
	app := newTestApp(t)
	accountID, _ := app.registerAndOrder(t, "twice@example.com")

	code, env := app.do(t, http.MethodPost, "/student/create-order", "", map[string]interface{}{"account_id": accountID})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, response.ErrInvalidPaymentState, env.Error.Code)
}

func TestLoginAndRoleGuard(t *testing.T) {
	app := newTestApp(t)
	accountID, _ := app.registerAndOrder(t, "guard@example.com")

	code, env := app.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "guard@example.com", "password": "enrol-me-2026", "role": "admin",
	})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, response.ErrInvalidCredentials, env.Error.Code)

	code, env = app.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "guard@example.com", "password": "enrol-me-2026", "role": "student",
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	var login model.LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &login))
	token := login.Token

	code, _ = app.do(t, http.MethodGet, fmt.Sprintf("/student/profile/%d", accountID), token, nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = app.do(t, http.MethodGet, fmt.Sprintf("/student/profile/%d", accountID+1), token, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, response.ErrForbidden, env.Error.Code)

	code, env = app.do(t, http.MethodGet, "/auth/users", token, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, response.ErrForbidden, env.Error.Code)

	code, env = app.do(t, http.MethodGet, "/auth/profile", "", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, response.ErrTokenRequired, env.Error.Code)

	code, _ = app.do(t, http.MethodPost, "/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = app.do(t, http.MethodGet, "/auth/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, response.ErrTokenRevoked, env.Error.Code)
}

func TestExamPaperNeedsPayment(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	hash, err := app.auth.HashSecret("tutor-pass-1")
	require.NoError(t, err)
	tutorAccount := &model.Account{Email: "tutor@example.com", PasswordHash: hash, Role: model.RoleTutor, IsActive: true, FirstName: "Tutor"}
	require.NoError(t, app.accounts.Create(ctx, tutorAccount))
	tutorToken, _, err := app.auth.IssueToken(tutorAccount.ID, tutorAccount.Email, tutorAccount.Role)
	require.NoError(t, err)

	code, env := app.do(t, http.MethodPost, "/exams", tutorToken, map[string]interface{}{
		"title": "Entrance English", "duration_minutes": 45,
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var created struct {
		Exam model.Exam `json:"exam"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	exam := created.Exam

	code, env = app.do(t, http.MethodPost, "/exams/"+exam.ID.String()+"/questions", tutorToken, map[string]interface{}{
		"question_text": "Pick the noun", "question_type": "MULTIPLE_CHOICE",
		"options": []string{"run", "table", "quickly"}, "correct_option": "table",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)

	code, env = app.do(t, http.MethodPost, "/exams/"+exam.ID.String()+"/publish", tutorToken, nil)
	require.Equal(t, http.StatusOK, code, env.Error)

	accountID, orderID := app.registerAndOrder(t, "reader@example.com")
	studentToken, _, err := app.auth.IssueToken(accountID, "reader@example.com", model.RoleStudent)
	require.NoError(t, err)

	code, env = app.do(t, http.MethodGet, "/exams/"+exam.ID.String()+"/paper", studentToken, nil)
	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.Equal(t, response.ErrPaymentRequired, env.Error.Code)

	code, _ = app.do(t, http.MethodPost, "/student/capture-payment", "", map[string]string{"order_id": orderID})
	require.Equal(t, http.StatusOK, code)

	code, env = app.do(t, http.MethodGet, "/exams/"+exam.ID.String()+"/paper", studentToken, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.NotContains(t, string(env.Data), "correct_option")

	code, env = app.do(t, http.MethodGet, "/exams/"+exam.ID.String()+"/paper", tutorToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, response.ErrForbidden, env.Error.Code)
}
