package model

import (
	"encoding/json"
	"time"
)

// PaymentStatus is the registration-fee state of a student account.
//
//	pending -> processing -> completed
//	pending | processing -> failed
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentPending:
		return next == PaymentProcessing || next == PaymentFailed
	case PaymentProcessing:
		return next == PaymentCompleted || next == PaymentFailed
	}
	return false
}

// CreateOrderRequest starts the registration-fee payment of an account.
// Amount and Currency default to the configured registration fee.
type CreateOrderRequest struct {
	AccountID int     `json:"account_id" binding:"required,min=1"`
	Amount    float64 `json:"amount" binding:"omitempty,gt=0"`
	Currency  string  `json:"currency" binding:"omitempty,len=3,alpha"`
}

// PaymentOrder is returned once a gateway order exists for an account.
type PaymentOrder struct {
	AccountID   int           `json:"account_id"`
	OrderID     string        `json:"order_id"`
	ApprovalURL string        `json:"approval_url"`
	Status      PaymentStatus `json:"status"`
	Amount      float64       `json:"amount"`
	Currency    string        `json:"currency"`
}

// CapturePaymentRequest finalizes a payer-approved order.
type CapturePaymentRequest struct {
	OrderID string `json:"order_id" binding:"required,max=64"`
}

// PaymentResult is the outcome of a capture.
type PaymentResult struct {
	AccountID     int           `json:"account_id"`
	OrderID       string        `json:"order_id"`
	Status        PaymentStatus `json:"status"`
	GatewayStatus string        `json:"gateway_status,omitempty"`
	PaymentDate   *time.Time    `json:"payment_date,omitempty"`
}

// PaymentEventKind names a step of the payment audit trail.
type PaymentEventKind string

const (
	EventOrderCreated     PaymentEventKind = "order_created"
	EventCaptureCompleted PaymentEventKind = "capture_completed"
	EventCaptureFailed    PaymentEventKind = "capture_failed"
	EventGatewayError     PaymentEventKind = "gateway_error"
)

// PaymentEvent is one audit record, queued in Redis and persisted in batches.
type PaymentEvent struct {
	AccountID int              `json:"account_id"`
	OrderID   string           `json:"order_id"`
	Kind      PaymentEventKind `json:"kind"`
	Status    PaymentStatus    `json:"status"`
	Amount    *float64         `json:"amount,omitempty"`
	Currency  string           `json:"currency,omitempty"`
	Detail    json.RawMessage  `json:"detail,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
