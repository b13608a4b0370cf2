package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/enrolment-backend/internal/config"
	"github.com/stemsi/enrolment-backend/internal/gateway"
	"github.com/stemsi/enrolment-backend/internal/metrics"
	"github.com/stemsi/enrolment-backend/internal/model"
	"github.com/stemsi/enrolment-backend/internal/notify"
	"github.com/stemsi/enrolment-backend/internal/repository"
	"github.com/stemsi/enrolment-backend/internal/validator"
)

const (
	// captureClaimTTL bounds how long a crashed capture blocks a retry.
	captureClaimTTL   = 2 * time.Minute
	sideEffectTimeout = 10 * time.Second
)

// RegistrationService orchestrates student self-registration and the
// registration-fee payment: order creation, capture and the persisted
// payment-state transitions.
type RegistrationService struct {
	accounts AccountStore
	gateway  PaymentGateway
	auth     *AuthService
	events   PaymentEventPublisher
	mailer   Mailer
	fee      config.RegistrationFee
	now      func() time.Time
	log      zerolog.Logger
}

// NewRegistrationService creates a new RegistrationService. events and mailer
// may be nil.
func NewRegistrationService(
	accounts AccountStore,
	gw PaymentGateway,
	auth *AuthService,
	events PaymentEventPublisher,
	mailer Mailer,
	fee config.RegistrationFee,
	log zerolog.Logger,
) *RegistrationService {
	return &RegistrationService{
		accounts: accounts,
		gateway:  gw,
		auth:     auth,
		events:   events,
		mailer:   mailer,
		fee:      fee,
		now:      time.Now,
		log:      log.With().Str("component", "registration_service").Logger(),
	}
}

// Register validates the request and persists a student awaiting payment.
func (s *RegistrationService) Register(ctx context.Context, req model.RegisterRequest) (*model.Account, error) {
	if fields := validator.Struct(req); fields != nil {
		return nil, &ValidationError{Fields: fields}
	}

	email := normalizeEmail(req.Email)
	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	dob, err := time.Parse(validator.DateLayout, req.DOB)
	if err != nil {
		return nil, newValidationError("dob", "dob must be a date in YYYY-MM-DD format")
	}

	hash, err := s.auth.HashSecret(req.Password)
	if err != nil {
		return nil, err
	}

	account := &model.Account{
		Email:         email,
		PasswordHash:  hash,
		Role:          model.RoleStudent,
		IsActive:      true,
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		Phone:         req.Phone,
		ProfilePhoto:  req.ProfilePhoto,
		MaritalStatus: req.MaritalStatus,
		DOB:           &dob,
		State:         req.State,
		LocalGovt:     req.LocalGovt,
		Address:       req.Address,
		Nationality:   req.Nationality,
		NIN:           req.NIN,
		Department:    req.Department,
		Gender:        req.Gender,
		PrivacyPolicy: req.PrivacyPolicy,
		PaymentStatus: model.PaymentPending,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	metrics.PaymentTransitions.WithLabelValues(string(model.PaymentPending)).Inc()
	s.log.Info().Int("account_id", account.ID).Str("event", "account_registered").Msg("Student registered")
	return account, nil
}

// InitiatePayment creates a gateway order for a pending account and moves it
// to processing. A zero amount or empty currency means the configured fee.
// On gateway failure the account stays pending.
func (s *RegistrationService) InitiatePayment(ctx context.Context, accountID int, amount float64, currency string) (*model.PaymentOrder, error) {
	if amount == 0 {
		amount = s.fee.Amount
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = s.fee.Currency
	}
	if math.Abs(amount-s.fee.Amount) > 0.005 {
		return nil, newValidationError("amount", "amount must equal the registration fee of "+gateway.FormatAmount(s.fee.Amount))
	}
	if currency != s.fee.Currency {
		return nil, newValidationError("currency", "currency must be "+s.fee.Currency)
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	if account.PaymentStatus != model.PaymentPending || account.PaymentOrderID != "" {
		return nil, ErrInvalidPaymentState
	}

	order, err := s.gateway.CreateOrder(ctx, amount, currency)
	if err != nil {
		s.publish(ctx, model.PaymentEvent{
			AccountID: accountID,
			Kind:      model.EventGatewayError,
			Status:    model.PaymentPending,
			Amount:    &amount,
			Currency:  currency,
			Detail:    errorDetail(err),
		})
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := s.accounts.AttachOrder(ctx, accountID, order.ID, amount, currency); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			s.log.Warn().Int("account_id", accountID).Str("order_id", order.ID).Msg("Order created for an account that left pending, discarding")
			return nil, ErrInvalidPaymentState
		}
		return nil, fmt.Errorf("attach order: %w", err)
	}

	metrics.PaymentTransitions.WithLabelValues(string(model.PaymentProcessing)).Inc()
	s.publish(ctx, model.PaymentEvent{
		AccountID: accountID,
		OrderID:   order.ID,
		Kind:      model.EventOrderCreated,
		Status:    model.PaymentProcessing,
		Amount:    &amount,
		Currency:  currency,
		Detail:    order.Raw,
	})
	s.log.Info().Int("account_id", accountID).Str("order_id", order.ID).Str("gateway_status", order.Status).Msg("Payment order created")

	return &model.PaymentOrder{
		AccountID:   accountID,
		OrderID:     order.ID,
		ApprovalURL: order.ApprovalURL(),
		Status:      model.PaymentProcessing,
		Amount:      amount,
		Currency:    currency,
	}, nil
}

// FinalizePayment captures an approved order at most once and records the
// outcome. Repeating it for a completed order returns the stored result
// without contacting the gateway.
func (s *RegistrationService) FinalizePayment(ctx context.Context, orderID string) (*model.PaymentResult, error) {
	account, err := s.accounts.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get account by order: %w", err)
	}

	if result, done, err := settled(account); done {
		return result, err
	}
	if account.PaymentStatus != model.PaymentProcessing {
		return nil, ErrInvalidPaymentState
	}

	if err := s.accounts.ClaimCapture(ctx, orderID, captureClaimTTL); err != nil {
		if !errors.Is(err, repository.ErrCaptureClaimed) {
			return nil, fmt.Errorf("claim capture: %w", err)
		}
		// Lost the race: the other request may already have finished.
		current, getErr := s.accounts.GetByOrderID(ctx, orderID)
		if getErr == nil {
			if result, done, err := settled(current); done {
				return result, err
			}
		}
		return nil, ErrCaptureInProgress
	}

	capture, err := s.gateway.CaptureOrder(ctx, orderID)
	if err != nil {
		var reqErr *gateway.RequestError
		switch {
		case errors.As(err, &reqErr) && reqErr.HasIssue(gateway.IssueOrderAlreadyCaptured):
			return s.complete(ctx, account, &gateway.CaptureResult{
				OrderID: orderID, Status: gateway.StatusCompleted, Raw: reqErr.Body,
			})
		case errors.As(err, &reqErr) && reqErr.Rejected():
			return s.fail(ctx, account, reqErr.Name, reqErr.Body)
		default:
			s.release(ctx, orderID)
			s.publish(ctx, model.PaymentEvent{
				AccountID: account.ID,
				OrderID:   orderID,
				Kind:      model.EventGatewayError,
				Status:    model.PaymentProcessing,
				Detail:    errorDetail(err),
			})
			return nil, fmt.Errorf("capture order: %w", err)
		}
	}

	if !capture.Completed() {
		status := capture.Status
		if capture.CaptureStatus != "" {
			status = capture.CaptureStatus
		}
		return s.fail(ctx, account, status, capture.Raw)
	}
	return s.complete(ctx, account, capture)
}

func (s *RegistrationService) complete(ctx context.Context, account *model.Account, capture *gateway.CaptureResult) (*model.PaymentResult, error) {
	orderID := account.PaymentOrderID
	paidAt := s.now().UTC()

	if err := s.accounts.CompletePayment(ctx, orderID, paidAt); err != nil {
		return nil, fmt.Errorf("complete payment: %w", err)
	}

	metrics.PaymentTransitions.WithLabelValues(string(model.PaymentCompleted)).Inc()
	s.publish(ctx, model.PaymentEvent{
		AccountID: account.ID,
		OrderID:   orderID,
		Kind:      model.EventCaptureCompleted,
		Status:    model.PaymentCompleted,
		Amount:    account.PaymentAmount,
		Currency:  account.PaymentCurrency,
		Detail:    capture.Raw,
	})
	s.log.Info().Int("account_id", account.ID).Str("order_id", orderID).Str("capture_id", capture.CaptureID).Msg("Payment completed")

	s.sendReceipt(ctx, account, paidAt)

	return &model.PaymentResult{
		AccountID:     account.ID,
		OrderID:       orderID,
		Status:        model.PaymentCompleted,
		GatewayStatus: capture.Status,
		PaymentDate:   &paidAt,
	}, nil
}

func (s *RegistrationService) fail(ctx context.Context, account *model.Account, gatewayStatus string, raw []byte) (*model.PaymentResult, error) {
	orderID := account.PaymentOrderID
	if err := s.accounts.FailPayment(ctx, orderID); err != nil {
		return nil, fmt.Errorf("fail payment: %w", err)
	}

	metrics.PaymentTransitions.WithLabelValues(string(model.PaymentFailed)).Inc()
	s.publish(ctx, model.PaymentEvent{
		AccountID: account.ID,
		OrderID:   orderID,
		Kind:      model.EventCaptureFailed,
		Status:    model.PaymentFailed,
		Amount:    account.PaymentAmount,
		Currency:  account.PaymentCurrency,
		Detail:    raw,
	})
	s.log.Warn().Int("account_id", account.ID).Str("order_id", orderID).Str("gateway_status", gatewayStatus).Msg("Payment not completed")

	return &model.PaymentResult{
		AccountID:     account.ID,
		OrderID:       orderID,
		Status:        model.PaymentFailed,
		GatewayStatus: gatewayStatus,
	}, ErrPaymentNotCompleted
}

// settled returns the stored outcome of an order that already reached a terminal state.
func settled(a *model.Account) (*model.PaymentResult, bool, error) {
	switch a.PaymentStatus {
	case model.PaymentCompleted:
		return &model.PaymentResult{
			AccountID:   a.ID,
			OrderID:     a.PaymentOrderID,
			Status:      model.PaymentCompleted,
			PaymentDate: a.PaymentDate,
		}, true, nil
	case model.PaymentFailed:
		return &model.PaymentResult{
			AccountID: a.ID,
			OrderID:   a.PaymentOrderID,
			Status:    model.PaymentFailed,
		}, true, ErrPaymentNotCompleted
	}
	return nil, false, nil
}

func (s *RegistrationService) release(ctx context.Context, orderID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if err := s.accounts.ReleaseCapture(ctx, orderID); err != nil {
		s.log.Error().Err(err).Str("order_id", orderID).Msg("Failed to release capture claim")
	}
}

func (s *RegistrationService) publish(ctx context.Context, event model.PaymentEvent) {
	if s.events == nil {
		return
	}
	event.CreatedAt = s.now().UTC()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Error().Err(err).Str("kind", string(event.Kind)).Str("order_id", event.OrderID).Msg("Failed to queue payment event")
	}
}

func (s *RegistrationService) sendReceipt(ctx context.Context, a *model.Account, paidAt time.Time) {
	if s.mailer == nil {
		return
	}
	amount := s.fee.Amount
	if a.PaymentAmount != nil {
		amount = *a.PaymentAmount
	}
	currency := a.PaymentCurrency
	if currency == "" {
		currency = s.fee.Currency
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	err := s.mailer.SendReceipt(ctx, notify.Receipt{
		To:       a.Email,
		Name:     a.FullName(),
		OrderID:  a.PaymentOrderID,
		Amount:   gateway.FormatAmount(amount),
		Currency: currency,
		PaidAt:   paidAt,
	})
	if err != nil {
		s.log.Error().Err(err).Int("account_id", a.ID).Msg("Failed to send payment receipt")
	}
}

// errorDetail renders a gateway error for the audit trail. It carries only
// what the error exposes, never credentials.
func errorDetail(err error) json.RawMessage {
	detail := map[string]interface{}{"error": err.Error()}
	var reqErr *gateway.RequestError
	if errors.As(err, &reqErr) {
		detail["status"] = reqErr.StatusCode
		detail["name"] = reqErr.Name
		detail["debug_id"] = reqErr.DebugID
	}
	var authErr *gateway.AuthError
	if errors.As(err, &authErr) {
		detail["status"] = authErr.StatusCode
		detail["name"] = authErr.Name
	}
	raw, _ := json.Marshal(detail)
	return raw
}
