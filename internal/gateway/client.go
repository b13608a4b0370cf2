package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/enrolment-backend/internal/metrics"
	"golang.org/x/sync/singleflight"
)

const maxResponseBytes = 1 << 20

// Config is the explicit configuration of a Client. It is built once at
// process start and never read from the environment by this package.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	ReturnURL    string
	CancelURL    string
	BrandName    string
	Description  string
}

// Client talks to the PayPal REST API: client-credentials auth plus order
// create and capture.
type Client struct {
	cfg    Config
	http   *http.Client
	tokens TokenCache
	group  singleflight.Group
	log    zerolog.Logger
}

// New validates cfg and builds a Client. A nil tokens cache keeps tokens in memory.
func New(cfg Config, tokens TokenCache, log zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("gateway: base URL is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("gateway: client id and secret are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if tokens == nil {
		tokens = NewMemoryTokenCache()
	}

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		tokens: tokens,
		log:    log.With().Str("component", "paypal").Logger(),
	}, nil
}

// call performs an authenticated JSON request. A 401 invalidates the cached
// token and the request is sent once more with a fresh one.
func (c *Client) call(ctx context.Context, op, method, path, requestID string, in, out interface{}) ([]byte, error) {
	started := time.Now()

	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return nil, &RequestError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
	}

	for attempt := 0; ; attempt++ {
		token, err := c.AccessToken(ctx)
		if err != nil {
			metrics.ObserveGateway(op, "auth_error", started)
			return nil, err
		}

		status, body, err := c.send(ctx, method, path, requestID, token, payload)
		if err != nil {
			metrics.ObserveGateway(op, "transport_error", started)
			c.log.Error().Err(err).Str("op", op).Msg("Gateway request failed")
			return nil, &RequestError{Op: op, Err: err}
		}

		if status == http.StatusUnauthorized && attempt == 0 {
			c.log.Warn().Str("op", op).Msg("Gateway rejected cached token, refreshing")
			if err := c.tokens.Delete(ctx); err != nil {
				c.log.Warn().Err(err).Msg("Failed to drop cached gateway token")
			}
			continue
		}

		if status < 200 || status >= 300 {
			reqErr := newRequestError(op, status, body)
			metrics.ObserveGateway(op, "http_"+statusClass(status), started)
			c.log.Error().
				Str("op", op).
				Int("status", status).
				Str("name", reqErr.Name).
				Str("debug_id", reqErr.DebugID).
				Msg("Gateway returned an error")
			return body, reqErr
		}

		if out != nil {
			if err := json.Unmarshal(body, out); err != nil {
				metrics.ObserveGateway(op, "decode_error", started)
				return body, &RequestError{Op: op, StatusCode: status, Body: body, Err: fmt.Errorf("decode response: %w", err)}
			}
		}
		metrics.ObserveGateway(op, "ok", started)
		return body, nil
	}
}

func (c *Client) send(ctx context.Context, method, path, requestID, token string, payload []byte) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", "return=representation")
	if requestID != "" {
		req.Header.Set("PayPal-Request-Id", requestID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func newRequestError(op string, status int, body []byte) *RequestError {
	e := &RequestError{Op: op, StatusCode: status, Body: body}
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil {
		e.Name = apiErr.Name
		e.Message = apiErr.Message
		e.DebugID = apiErr.DebugID
		e.Details = apiErr.Details
		if e.Name == "" {
			e.Name = apiErr.Error
		}
		if e.Message == "" {
			e.Message = apiErr.ErrorDescription
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

func statusClass(status int) string {
	return fmt.Sprintf("%dxx", status/100)
}
