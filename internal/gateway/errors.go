package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorDetail is one entry of the processor's "details" array.
type ErrorDetail struct {
	Field       string `json:"field,omitempty"`
	Value       string `json:"value,omitempty"`
	Issue       string `json:"issue,omitempty"`
	Description string `json:"description,omitempty"`
}

// apiError is the processor's error body. OAuth failures use error/error_description instead.
type apiError struct {
	Name             string        `json:"name"`
	Message          string        `json:"message"`
	DebugID          string        `json:"debug_id"`
	Details          []ErrorDetail `json:"details"`
	Error            string        `json:"error"`
	ErrorDescription string        `json:"error_description"`
}

// AuthError reports a failed client-credentials grant.
type AuthError struct {
	StatusCode int
	Name       string
	Message    string
	DebugID    string
	Err        error
}

func (e *AuthError) Error() string {
	var b strings.Builder
	b.WriteString("paypal auth failed")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Name != "" {
		fmt.Fprintf(&b, " %s", e.Name)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *AuthError) Unwrap() error { return e.Err }

// RequestError reports a failed order call: transport failure, timeout or a
// non-2xx answer. Body holds the raw response for diagnostics.
type RequestError struct {
	Op         string
	StatusCode int
	Name       string
	Message    string
	DebugID    string
	Details    []ErrorDetail
	Body       []byte
	Err        error
}

func (e *RequestError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "paypal %s failed", e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Name != "" {
		fmt.Fprintf(&b, " %s", e.Name)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	for _, d := range e.Details {
		if d.Issue != "" {
			fmt.Fprintf(&b, " [%s]", d.Issue)
		}
	}
	if e.DebugID != "" {
		fmt.Fprintf(&b, " (debug_id %s)", e.DebugID)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *RequestError) Unwrap() error { return e.Err }

// Rejected reports whether the processor definitively refused the request
// (a 4xx other than auth and throttling). Retrying the same call cannot succeed.
func (e *RequestError) Rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 &&
		e.StatusCode != http.StatusUnauthorized &&
		e.StatusCode != http.StatusTooManyRequests
}

// Fields returns the diagnostic attributes safe to expose to API clients.
func (e *RequestError) Fields() map[string]string {
	fields := map[string]string{"operation": e.Op}
	if e.StatusCode != 0 {
		fields["remote_status"] = fmt.Sprintf("%d", e.StatusCode)
	}
	if e.Name != "" {
		fields["remote_name"] = e.Name
	}
	if e.DebugID != "" {
		fields["debug_id"] = e.DebugID
	}
	if len(e.Details) > 0 && e.Details[0].Issue != "" {
		fields["issue"] = e.Details[0].Issue
	}
	return fields
}

// IsGatewayError reports whether err came from the processor client.
func IsGatewayError(err error) bool {
	var authErr *AuthError
	var reqErr *RequestError
	return errors.As(err, &authErr) || errors.As(err, &reqErr)
}

// HasIssue reports whether the processor listed issue among the error details.
func (e *RequestError) HasIssue(issue string) bool {
	for _, d := range e.Details {
		if d.Issue == issue {
			return true
		}
	}
	return false
}

// IssueOrderAlreadyCaptured is reported when a capture is repeated for an order
// whose funds were already taken.
const IssueOrderAlreadyCaptured = "ORDER_ALREADY_CAPTURED"
