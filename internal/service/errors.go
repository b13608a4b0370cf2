package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Auth errors.
var (
	// ErrInvalidCredential is returned for any token that fails verification.
	ErrInvalidCredential = errors.New("invalid session credential")
	ErrTokenExpired      = fmt.Errorf("%w: token expired", ErrInvalidCredential)
	ErrTokenRevoked      = fmt.Errorf("%w: token revoked", ErrInvalidCredential)

	ErrInvalidLogin    = errors.New("invalid email, password or role")
	ErrAccountInactive = errors.New("account is inactive")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("role not allowed")
)

// Account errors.
var (
	ErrDuplicateEmail       = errors.New("email already registered")
	ErrAccountNotFound      = errors.New("account not found")
	ErrWrongPassword        = errors.New("current password is incorrect")
	ErrCannotDeactivateSelf = errors.New("cannot change the status of your own account")
)

// Payment errors.
var (
	ErrOrderNotFound       = errors.New("payment order not found")
	ErrInvalidPaymentState = errors.New("payment is not in a state that allows this operation")
	ErrCaptureInProgress   = errors.New("capture already in progress for this order")
	ErrPaymentNotCompleted = errors.New("payment not completed")
	ErrPaymentRequired     = errors.New("registration fee not paid")
)

// Exam errors.
var (
	ErrExamNotFound     = errors.New("exam not found")
	ErrNotExamAuthor    = errors.New("not the author of this exam")
	ErrNoQuestions      = errors.New("exam has no questions, cannot publish")
	ErrExamNotDraft     = errors.New("exam status is not DRAFT")
	ErrExamNotPublished = errors.New("exam status is not PUBLISHED")
)

// ValidationError carries field-level messages keyed by JSON field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
