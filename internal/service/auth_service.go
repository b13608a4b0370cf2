package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/enrolment-backend/internal/config"
	"github.com/stemsi/enrolment-backend/internal/model"
	"github.com/stemsi/enrolment-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	// iat carries milliseconds so a login right after an account-wide
	// revocation is not caught by it.
	jwt.TimePrecision = time.Millisecond
}

// Claims extends JWT standard claims with the account identity.
type Claims struct {
	jwt.RegisteredClaims
	UserID int        `json:"user_id"`
	Email  string     `json:"email"`
	Role   model.Role `json:"role"`
}

// AuthService issues and verifies session tokens, hashes secrets and logs accounts in.
type AuthService struct {
	secret      []byte
	expiry      time.Duration
	bcryptCost  int
	accounts    AccountStore
	revocations RevocationStore
	now         func() time.Time
	log         zerolog.Logger
}

// NewAuthService creates a new AuthService. revocations may be nil, which
// disables logout and deactivation revocation.
func NewAuthService(cfg *config.Config, accounts AccountStore, revocations RevocationStore, log zerolog.Logger) *AuthService {
	return &AuthService{
		secret:      []byte(cfg.JWTSecret),
		expiry:      cfg.JWTExpiry,
		bcryptCost:  cfg.BcryptCost,
		accounts:    accounts,
		revocations: revocations,
		now:         time.Now,
		log:         log.With().Str("component", "auth_service").Logger(),
	}
}

// HashSecret hashes a password with the configured bcrypt cost.
func (s *AuthService) HashSecret(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

// VerifySecret reports whether plain matches the bcrypt hash.
func (s *AuthService) VerifySecret(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// IssueToken signs an HS256 session token for the account.
func (s *AuthService) IssueToken(accountID int, email string, role model.Role) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.Itoa(accountID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
		UserID: accountID,
		Email:  email,
		Role:   role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// VerifyToken checks signature, algorithm and expiry. It never consults the
// account store; revocation is checked separately by CheckRevocation.
func (s *AuthService) VerifyToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 || !claims.Role.Valid() {
		return nil, ErrInvalidCredential
	}
	return claims, nil
}

// CheckRevocation reports ErrTokenRevoked for logged-out tokens and tokens of
// deactivated accounts. An unreachable deny-list fails closed.
func (s *AuthService) CheckRevocation(ctx context.Context, claims *Claims) error {
	if s.revocations == nil {
		return nil
	}
	var issuedAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID, claims.UserID, issuedAt)
	if err != nil {
		s.log.Error().Err(err).Int("user_id", claims.UserID).Msg("Revocation check failed")
		return fmt.Errorf("%w: revocation check unavailable", ErrInvalidCredential)
	}
	if revoked {
		return ErrTokenRevoked
	}
	return nil
}

// AuthorizeRole succeeds when the claims carry one of the allowed roles.
func AuthorizeRole(claims *Claims, allowed ...model.Role) error {
	if claims == nil {
		return ErrUnauthenticated
	}
	for _, r := range allowed {
		if claims.Role == r {
			return nil
		}
	}
	return ErrForbidden
}

// Login checks credentials for the requested role and issues a session token.
// Unknown email, role mismatch and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	email := normalizeEmail(req.Email)

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidLogin
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	if account.Role != req.Role {
		return nil, ErrInvalidLogin
	}
	if !s.VerifySecret(account.PasswordHash, req.Password) {
		return nil, ErrInvalidLogin
	}
	if !account.IsActive {
		return nil, ErrAccountInactive
	}

	token, claims, err := s.IssueToken(account.ID, account.Email, account.Role)
	if err != nil {
		return nil, err
	}

	s.log.Info().Int("user_id", account.ID).Str("role", string(account.Role)).Msg("Login succeeded")
	return &model.LoginResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      account,
	}, nil
}

// Logout revokes the presented token until its natural expiry.
func (s *AuthService) Logout(ctx context.Context, claims *Claims) error {
	if s.revocations == nil {
		return nil
	}
	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := s.revocations.RevokeToken(ctx, claims.ID, expiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.log.Info().Int("user_id", claims.UserID).Msg("Logged out")
	return nil
}

// RevokeAccountSessions rejects every token of the account issued up to now.
func (s *AuthService) RevokeAccountSessions(ctx context.Context, accountID int) error {
	if s.revocations == nil {
		return nil
	}
	return s.revocations.RevokeAccount(ctx, accountID, s.now())
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
