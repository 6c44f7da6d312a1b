// Package auth issues and verifies the HS256 session tokens that bind each
// request to a user identity.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/marmos91/dittodrive/pkg/resource"
)

// ErrInvalidToken indicates a token that failed signature verification, is
// expired, or does not carry a usable identity.
var ErrInvalidToken = errors.New("invalid token")

// SessionClaims are the claims carried by a session token. The subject holds
// the numeric user id; the jti makes every token distinct.
type SessionClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies session tokens with a shared HS256 secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates an issuer. The secret must be non-empty; the ttl
// bounds every issued token's lifetime.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	return &TokenIssuer{secret: []byte(secret), ttl: ttl}, nil
}

// Issue signs a fresh token for the given identity.
func (i *TokenIssuer) Issue(id resource.UserID, username string) (string, error) {
	now := time.Now()

	claims := SessionClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(int64(id), 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Verify checks a token's signature and expiry and returns the identity and
// username it carries. Every failure mode collapses into ErrInvalidToken so
// the boundary cannot leak why a token was rejected.
func (i *TokenIssuer) Verify(tokenString string) (resource.UserID, string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return 0, "", ErrInvalidToken
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	return resource.UserID(id), claims.Username, nil
}
