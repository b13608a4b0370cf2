package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/enrolment-backend/internal/config"
)

// RevocationStore is a Redis deny-list for session tokens.
type RevocationStore struct {
	rdb        *redis.Client
	accountTTL time.Duration
}

// NewRevocationStore creates a RevocationStore. accountTTL bounds how long an
// account-wide revocation is kept; it only needs to outlive the longest token.
func NewRevocationStore(rdb *redis.Client, accountTTL time.Duration) *RevocationStore {
	return &RevocationStore{rdb: rdb, accountTTL: accountTTL}
}

// RevokeToken denies a single token until it would have expired anyway.
func (s *RevocationStore) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, config.CacheKey.RevokedTokenKey(jti), "1", ttl).Err()
}

// RevokeAccount denies every token of the account issued at or before at,
// compared in milliseconds.
func (s *RevocationStore) RevokeAccount(ctx context.Context, accountID int, at time.Time) error {
	return s.rdb.Set(ctx, config.CacheKey.RevokedAccountKey(accountID), at.UnixMilli(), s.accountTTL).Err()
}

// IsRevoked checks both the token and the account deny-list in one round trip.
func (s *RevocationStore) IsRevoked(ctx context.Context, jti string, accountID int, issuedAt time.Time) (bool, error) {
	pipe := s.rdb.Pipeline()
	tokenCmd := pipe.Exists(ctx, config.CacheKey.RevokedTokenKey(jti))
	accountCmd := pipe.Get(ctx, config.CacheKey.RevokedAccountKey(accountID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("check revocation: %w", err)
	}

	if tokenCmd.Val() > 0 {
		return true, nil
	}

	raw, err := accountCmd.Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check account revocation: %w", err)
	}
	revokedAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse account revocation: %w", err)
	}
	return issuedAt.UnixMilli() <= revokedAt, nil
}
