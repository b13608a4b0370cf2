package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/enrolment-backend/internal/model"
	"github.com/stemsi/enrolment-backend/internal/repository"
	"github.com/stemsi/enrolment-backend/internal/response"
	"github.com/stemsi/enrolment-backend/internal/validator"
)

// AccountService handles account reads, admin provisioning and profile changes.
type AccountService struct {
	accounts AccountStore
	auth     *AuthService
	log      zerolog.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(accounts AccountStore, auth *AuthService, log zerolog.Logger) *AccountService {
	return &AccountService{
		accounts: accounts,
		auth:     auth,
		log:      log.With().Str("component", "account_service").Logger(),
	}
}

// GetByID retrieves an account.
func (s *AccountService) GetByID(ctx context.Context, id int) (*model.Account, error) {
	a, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// GetForActor retrieves an account the actor is allowed to see: their own, or any when staff.
func (s *AccountService) GetForActor(ctx context.Context, actor *Claims, id int) (*model.Account, error) {
	if err := canManage(actor, id); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// List retrieves a page of accounts.
func (s *AccountService) List(ctx context.Context, filter model.ListAccountsFilter, page, perPage int) ([]model.Account, *response.Pagination, error) {
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, nil, newValidationError("role", "role must be one of student tutor parent admin superadmin")
	}

	page, perPage, limit, offset := paginate(page, perPage)
	accounts, total, err := s.accounts.ListPaginated(ctx, filter, limit, offset)
	if err != nil {
		return nil, nil, fmt.Errorf("list accounts: %w", err)
	}
	if accounts == nil {
		accounts = []model.Account{}
	}
	return accounts, response.NewPagination(page, perPage, total), nil
}

// Create provisions an active account on behalf of a staff member. Only a
// superadmin may create staff accounts.
func (s *AccountService) Create(ctx context.Context, actor *Claims, req model.CreateAccountRequest) (*model.Account, error) {
	if err := AuthorizeRole(actor, model.RoleAdmin, model.RoleSuperadmin); err != nil {
		return nil, err
	}
	if req.Role.IsStaff() && actor.Role != model.RoleSuperadmin {
		return nil, ErrForbidden
	}
	if fields := validator.Struct(req); fields != nil {
		return nil, &ValidationError{Fields: fields}
	}

	hash, err := s.auth.HashSecret(req.Password)
	if err != nil {
		return nil, err
	}

	createdBy := actor.UserID
	account := &model.Account{
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		Role:         req.Role,
		IsActive:     true,
		CreatedBy:    &createdBy,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.log.Info().
		Int("account_id", account.ID).
		Str("role", string(account.Role)).
		Int("created_by", createdBy).
		Msg("Account provisioned")
	return account, nil
}

// UpdateProfile applies the non-empty fields of req in a single write. A
// password change by the owner requires the current password; staff resetting
// another account's password do not need it. Any password change revokes the
// account's existing sessions.
func (s *AccountService) UpdateProfile(ctx context.Context, actor *Claims, id int, req model.UpdateProfileRequest) (*model.Account, error) {
	if err := canManage(actor, id); err != nil {
		return nil, err
	}
	if fields := validator.Struct(req); fields != nil {
		return nil, &ValidationError{Fields: fields}
	}

	account, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.UserID != id && account.Role.IsStaff() && actor.Role != model.RoleSuperadmin {
		return nil, ErrForbidden
	}

	if req.Password != "" && actor.UserID == id && !s.auth.VerifySecret(account.PasswordHash, req.CurrentPassword) {
		return nil, ErrWrongPassword
	}

	applyProfile(account, req)
	if req.Password != "" {
		hash, err := s.auth.HashSecret(req.Password)
		if err != nil {
			return nil, err
		}
		account.PasswordHash = hash
	}
	if err := s.accounts.UpdateProfile(ctx, account); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	if req.Password != "" {
		// Same policy as cmd/reset-password: a new password ends every session.
		if err := s.auth.RevokeAccountSessions(ctx, id); err != nil {
			return nil, fmt.Errorf("revoke sessions: %w", err)
		}
		s.log.Info().Int("account_id", id).Int("actor_id", actor.UserID).Msg("Password changed")
	}

	return account, nil
}

// SetActive activates or deactivates an account. Deactivation revokes every
// token issued to the account so far.
func (s *AccountService) SetActive(ctx context.Context, actor *Claims, id int, active bool) (*model.Account, error) {
	if err := AuthorizeRole(actor, model.RoleAdmin, model.RoleSuperadmin); err != nil {
		return nil, err
	}
	if actor.UserID == id {
		return nil, ErrCannotDeactivateSelf
	}

	account, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account.Role.IsStaff() && actor.Role != model.RoleSuperadmin {
		return nil, ErrForbidden
	}

	if err := s.accounts.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("set active: %w", err)
	}
	account.IsActive = active

	if !active {
		if err := s.auth.RevokeAccountSessions(ctx, id); err != nil {
			return nil, fmt.Errorf("revoke sessions: %w", err)
		}
	}

	s.log.Info().Int("account_id", id).Bool("is_active", active).Int("actor_id", actor.UserID).Msg("Account status changed")
	return account, nil
}

// EnsureSuperadmin creates the first superadmin when none exists. It reports
// whether an account was created.
func (s *AccountService) EnsureSuperadmin(ctx context.Context, email, password string) (bool, error) {
	exists, err := s.accounts.ExistsWithRole(ctx, model.RoleSuperadmin)
	if err != nil {
		return false, fmt.Errorf("check superadmin: %w", err)
	}
	if exists {
		return false, nil
	}
	if len(password) < 8 {
		return false, newValidationError("password", "password must be at least 8 characters")
	}

	hash, err := s.auth.HashSecret(password)
	if err != nil {
		return false, err
	}
	account := &model.Account{
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		Role:         model.RoleSuperadmin,
		IsActive:     true,
		FirstName:    "Super",
		LastName:     "Admin",
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return false, ErrDuplicateEmail
		}
		return false, fmt.Errorf("create superadmin: %w", err)
	}

	s.log.Info().Int("account_id", account.ID).Str("email", account.Email).Msg("Superadmin seeded")
	return true, nil
}

func canManage(actor *Claims, targetID int) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	if actor.UserID == targetID || actor.Role.IsStaff() {
		return nil
	}
	return ErrForbidden
}

func applyProfile(a *model.Account, req model.UpdateProfileRequest) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&a.FirstName, req.FirstName)
	set(&a.LastName, req.LastName)
	set(&a.Phone, req.Phone)
	set(&a.ProfilePhoto, req.ProfilePhoto)
	set(&a.MaritalStatus, req.MaritalStatus)
	set(&a.State, req.State)
	set(&a.LocalGovt, req.LocalGovt)
	set(&a.Address, req.Address)
	set(&a.Nationality, req.Nationality)
}
