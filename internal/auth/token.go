package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// ErrSigningFailed indicates a session token could not be issued. This is
// fatal for the current operation: login/registration must surface it.
var ErrSigningFailed = errors.New("token signing failed")

// ErrInvalidToken covers malformed, tampered, mis-signed, and expired
// tokens. Callers degrade to anonymous; they never retry verification.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the signed session payload. The role claim is advisory: the
// persisted role wins during resolution, since a 7-day token can outlive
// a role change.
type Claims struct {
	Role domain.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// SubjectID returns the opaque user identifier the token was issued for.
func (c *Claims) SubjectID() string {
	return c.Subject
}

// TokenCodec signs and verifies session tokens with a symmetric secret.
// It never stores tokens; the cookie store owns them once issued.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenCodec builds a codec from the configured secret and TTL.
func NewTokenCodec(secret string, ttl time.Duration) *TokenCodec {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TokenCodec{secret: []byte(secret), ttl: ttl}
}

// TTL returns the fixed session lifetime.
func (tc *TokenCodec) TTL() time.Duration {
	return tc.ttl
}

// Sign issues a session token for the subject. Expiry is always
// issued-at plus the fixed TTL.
func (tc *TokenCodec) Sign(subjectID string, role domain.Role) (string, time.Time, error) {
	if len(tc.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("%w: no signing secret configured", ErrSigningFailed)
	}

	now := time.Now()
	expiresAt := now.Add(tc.ttl)
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tc.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	return tokenString, expiresAt, nil
}

// Verify checks signature integrity and expiry and returns the claims.
// Checking for an absent token is the caller's responsibility.
func (tc *TokenCodec) Verify(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tc.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
