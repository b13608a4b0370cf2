package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// RevokedTokenKey returns the deny-list key for a single session token.
func (r *CacheKeyStruct) RevokedTokenKey(jti string) string {
	return fmt.Sprintf("auth:revoked:jti:%s", jti)
}

// RevokedAccountKey returns the key holding the instant before which every
// token of an account is rejected.
func (r *CacheKeyStruct) RevokedAccountKey(accountID int) string {
	return fmt.Sprintf("auth:revoked:account:%d", accountID)
}

// GatewayAccessTokenKey returns the cache key for the payment processor bearer token.
// The client id is part of the key so sandbox and live credentials never collide.
func (r *CacheKeyStruct) GatewayAccessTokenKey(clientID string) string {
	return fmt.Sprintf("gateway:paypal:%s:access_token", clientID)
}

// RateLimitKey returns the fixed-window counter key for a client on a route.
func (r *CacheKeyStruct) RateLimitKey(route, clientIP string, window int64) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", route, clientIP, window)
}

// ExamPaperKey returns the cache key for an exam's student-facing paper.
func (r *CacheKeyStruct) ExamPaperKey(examID string) string {
	return fmt.Sprintf("exam:%s:paper", examID)
}

var CacheKey = NewCacheKeyStruct()
