// Package auth verifies the identity provider's bearer JWTs and carries the
// caller's claims through request contexts.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Roles carried in the role claim.
const (
	RoleUser  = "authenticated"
	RoleAdmin = "admin"
)

// MinSecretLength is the shortest HS256 secret accepted.
const MinSecretLength = 32

// Claims represents the identity provider's JWT claims.
// Subject is the stable user id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// UserID returns the subject.
func (c *Claims) UserID() string { return c.Subject }

// IsAdmin reports whether the caller holds the administrative role.
func (c *Claims) IsAdmin() bool { return c.Role == RoleAdmin }

// Verifier validates and issues HS256 tokens with a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a verifier for the given secret.
func NewVerifier(secret string) (*Verifier, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", MinSecretLength)
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// GenerateAccessToken creates a signed token for a user. The service itself
// never logs anyone in; this exists for operators and tests.
func (v *Verifier) GenerateAccessToken(userID, email, role string, ttl time.Duration) (string, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return "", fmt.Errorf("auth: user id must be a UUID: %w", err)
	}
	if role == "" {
		role = RoleUser
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
		Role:  role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// ValidateAccessToken parses and validates a token. The subject must be a UUID.
func (v *Verifier) ValidateAccessToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, errors.New("token subject is not a user id")
	}
	return claims, nil
}
