package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePayPal struct {
	t           *testing.T
	tokenCalls  atomic.Int32
	rejectOnce  atomic.Bool
	createBody  atomic.Value
	captureCode int
	captureBody string
}

func (f *fakePayPal) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		if !ok || id != "client" || secret != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"invalid_client","error_description":"Client Authentication failed"}`)
			return
		}
		assert.NoError(f.t, r.ParseForm())
		assert.Equal(f.t, "client_credentials", r.PostForm.Get("grant_type"))
		n := f.tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok-`+string(rune('0'+n))+`","token_type":"Bearer","expires_in":32400}`)
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		if f.rejectOnce.CompareAndSwap(true, false) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.True(f.t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer tok-"))
		assert.NotEmpty(f.t, r.Header.Get("PayPal-Request-Id"))
		body, _ := io.ReadAll(r.Body)
		f.createBody.Store(body)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"ORDER-1","status":"CREATED","links":[
			{"href":"https://example.test/orders/ORDER-1","rel":"self","method":"GET"},
			{"href":"https://example.test/checkoutnow?token=ORDER-1","rel":"approve","method":"GET"}]}`)
	})
	mux.HandleFunc("/v2/checkout/orders/ORDER-1/capture", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "capture-ORDER-1", r.Header.Get("PayPal-Request-Id"))
		w.WriteHeader(f.captureCode)
		_, _ = io.WriteString(w, f.captureBody)
	})
	return mux
}

func newTestClient(t *testing.T, fake *fakePayPal) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:      srv.URL + "/",
		ClientID:     "client",
		ClientSecret: "secret",
		Timeout:      2 * time.Second,
		ReturnURL:    "https://app.test/payment/success",
		CancelURL:    "https://app.test/payment/cancel",
		Description:  "Registration fee",
	}, nil, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{BaseURL: "http://localhost"}, nil, zerolog.Nop())
	assert.Error(t, err)

	_, err = New(Config{ClientID: "a", ClientSecret: "b"}, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestCreateOrder(t *testing.T) {
	fake := &fakePayPal{t: t}
	c := newTestClient(t, fake)

	order, err := c.CreateOrder(context.Background(), 2.5, "USD")
	require.NoError(t, err)

	assert.Equal(t, "ORDER-1", order.ID)
	assert.Equal(t, StatusCreated, order.Status)
	assert.Equal(t, "https://example.test/checkoutnow?token=ORDER-1", order.ApprovalURL())
	assert.NotEmpty(t, order.Raw)

	var sent struct {
		Intent        string `json:"intent"`
		PurchaseUnits []struct {
			Amount struct {
				CurrencyCode string `json:"currency_code"`
				Value        string `json:"value"`
			} `json:"amount"`
		} `json:"purchase_units"`
		ApplicationContext struct {
			ReturnURL string `json:"return_url"`
			CancelURL string `json:"cancel_url"`
		} `json:"application_context"`
	}
	require.NoError(t, json.Unmarshal(fake.createBody.Load().([]byte), &sent))
	assert.Equal(t, "CAPTURE", sent.Intent)
	require.Len(t, sent.PurchaseUnits, 1)
	assert.Equal(t, "USD", sent.PurchaseUnits[0].Amount.CurrencyCode)
	assert.Equal(t, "2.50", sent.PurchaseUnits[0].Amount.Value)
	assert.Equal(t, "https://app.test/payment/success", sent.ApplicationContext.ReturnURL)
	assert.Equal(t, "https://app.test/payment/cancel", sent.ApplicationContext.CancelURL)
}

func TestAccessTokenIsCached(t *testing.T) {
	fake := &fakePayPal{t: t}
	c := newTestClient(t, fake)

	_, err := c.CreateOrder(context.Background(), 2.5, "USD")
	require.NoError(t, err)
	_, err = c.CreateOrder(context.Background(), 2.5, "USD")
	require.NoError(t, err)

	assert.Equal(t, int32(1), fake.tokenCalls.Load())
}

func TestRejectedTokenIsRefreshedOnce(t *testing.T) {
	fake := &fakePayPal{t: t}
	c := newTestClient(t, fake)
	fake.rejectOnce.Store(true)

	order, err := c.CreateOrder(context.Background(), 2.5, "USD")
	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", order.ID)
	assert.Equal(t, int32(2), fake.tokenCalls.Load())
}

func TestAuthFailure(t *testing.T) {
	fake := &fakePayPal{t: t}
	c := newTestClient(t, fake)
	c.cfg.ClientSecret = "wrong"

	_, err := c.CreateOrder(context.Background(), 2.5, "USD")
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	assert.Equal(t, "invalid_client", authErr.Name)
	assert.True(t, IsGatewayError(err))
	assert.NotContains(t, err.Error(), "wrong")
}

func TestCaptureOrderCompleted(t *testing.T) {
	fake := &fakePayPal{
		t:           t,
		captureCode: http.StatusCreated,
		captureBody: `{"id":"ORDER-1","status":"COMPLETED","purchase_units":[{"payments":{"captures":[{"id":"CAP-9","status":"COMPLETED"}]}}]}`,
	}
	c := newTestClient(t, fake)

	result, err := c.CaptureOrder(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.True(t, result.Completed())
	assert.Equal(t, "CAP-9", result.CaptureID)
	assert.Equal(t, "ORDER-1", result.OrderID)
}

func TestCaptureOrderPendingCaptureIsNotCompleted(t *testing.T) {
	fake := &fakePayPal{
		t:           t,
		captureCode: http.StatusCreated,
		captureBody: `{"id":"ORDER-1","status":"COMPLETED","purchase_units":[{"payments":{"captures":[{"id":"CAP-9","status":"PENDING"}]}}]}`,
	}
	c := newTestClient(t, fake)

	result, err := c.CaptureOrder(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.False(t, result.Completed())
	assert.Equal(t, "PENDING", result.CaptureStatus)
}

func TestCaptureOrderUnprocessable(t *testing.T) {
	fake := &fakePayPal{
		t:           t,
		captureCode: http.StatusUnprocessableEntity,
		captureBody: `{"name":"UNPROCESSABLE_ENTITY","message":"The requested action could not be performed.","debug_id":"dbg-1","details":[{"issue":"INSTRUMENT_DECLINED"}]}`,
	}
	c := newTestClient(t, fake)

	_, err := c.CaptureOrder(context.Background(), "ORDER-1")
	require.Error(t, err)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "capture_order", reqErr.Op)
	assert.Equal(t, "UNPROCESSABLE_ENTITY", reqErr.Name)
	assert.Equal(t, "dbg-1", reqErr.DebugID)
	assert.True(t, reqErr.Rejected())
	assert.True(t, reqErr.HasIssue("INSTRUMENT_DECLINED"))
	assert.False(t, reqErr.HasIssue(IssueOrderAlreadyCaptured))

	fields := reqErr.Fields()
	assert.Equal(t, "422", fields["remote_status"])
	assert.Equal(t, "INSTRUMENT_DECLINED", fields["issue"])
}

func TestRequestErrorRejected(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusBadRequest, true},
		{http.StatusUnprocessableEntity, true},
		{http.StatusUnauthorized, false},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
		{0, false},
	}
	for _, tt := range tests {
		e := &RequestError{Op: "capture_order", StatusCode: tt.status}
		assert.Equal(t, tt.want, e.Rejected(), "status %d", tt.status)
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "2.50", FormatAmount(2.5))
	assert.Equal(t, "10.00", FormatAmount(10))
	assert.Equal(t, "0.99", FormatAmount(0.985000001))
}

func TestMemoryTokenCacheExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryTokenCache()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "tok", time.Minute))
	got, err := m.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", got)

	now = now.Add(time.Minute)
	got, err = m.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}
