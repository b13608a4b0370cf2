package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/stemsi/enrolment-backend/internal/metrics"
)

// tokenRefreshMargin is subtracted from expires_in so a cached token is never
// presented in its last minute of validity.
const tokenRefreshMargin = 60 * time.Second

// TokenCache stores the bearer token between calls. Get returns "" on a miss.
type TokenCache interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string, ttl time.Duration) error
	Delete(ctx context.Context) error
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// AccessToken returns a valid bearer token, requesting a new one with the
// client-credentials grant when the cache is empty. Concurrent misses share
// one grant request.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if token, err := c.tokens.Get(ctx); err == nil && token != "" {
		return token, nil
	} else if err != nil {
		c.log.Warn().Err(err).Msg("Gateway token cache unavailable, requesting a new token")
	}

	v, err, _ := c.group.Do("token", func() (interface{}, error) {
		return c.fetchToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", &AuthError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en_US")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveGateway("oauth_token", "transport_error", started)
		return "", &AuthError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.ObserveGateway("oauth_token", "transport_error", started)
		return "", &AuthError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		metrics.ObserveGateway("oauth_token", "http_"+statusClass(resp.StatusCode), started)
		authErr := &AuthError{StatusCode: resp.StatusCode}
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil {
			authErr.Name = apiErr.Error
			authErr.Message = apiErr.ErrorDescription
			authErr.DebugID = apiErr.DebugID
			if authErr.Name == "" {
				authErr.Name = apiErr.Name
			}
			if authErr.Message == "" {
				authErr.Message = apiErr.Message
			}
		}
		c.log.Error().Int("status", resp.StatusCode).Str("name", authErr.Name).Msg("Gateway authentication failed")
		return "", authErr
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil || tr.AccessToken == "" {
		metrics.ObserveGateway("oauth_token", "decode_error", started)
		if err == nil {
			err = fmt.Errorf("empty access token")
		}
		return "", &AuthError{StatusCode: resp.StatusCode, Err: err}
	}
	metrics.ObserveGateway("oauth_token", "ok", started)

	if ttl := time.Duration(tr.ExpiresIn)*time.Second - tokenRefreshMargin; ttl > 0 {
		if err := c.tokens.Set(ctx, tr.AccessToken, ttl); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache gateway token")
		}
	}
	return tr.AccessToken, nil
}

// MemoryTokenCache keeps the token in process memory.
type MemoryTokenCache struct {
	mu      sync.Mutex
	token   string
	expires time.Time
	now     func() time.Time
}

// NewMemoryTokenCache creates an empty MemoryTokenCache.
func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{now: time.Now}
}

func (m *MemoryTokenCache) Get(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" || !m.now().Before(m.expires) {
		return "", nil
	}
	return m.token, nil
}

func (m *MemoryTokenCache) Set(_ context.Context, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.expires = m.now().Add(ttl)
	return nil
}

func (m *MemoryTokenCache) Delete(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}
