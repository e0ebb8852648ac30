package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/researchportal/pubportal/pkg/policy"
)

var (
	// ErrInvalidToken is returned for malformed, tampered or foreign tokens
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when the token is past its expiry
	ErrExpiredToken = errors.New("token has expired")
)

// Claims are the JWT claims of a session token
type Claims struct {
	UserID     int64       `json:"user_id"`
	Email      string      `json:"email"`
	Role       policy.Role `json:"role"`
	College    string      `json:"college"`
	Institute  string      `json:"institute"`
	Department string      `json:"department"`
	FacultyID  string      `json:"faculty_id,omitempty"`
	jwt.RegisteredClaims
}

// Actor rebuilds the policy actor from the claims
func (c *Claims) Actor() policy.Actor {
	return policy.Actor{
		UserID:     c.UserID,
		Role:       c.Role,
		College:    c.College,
		Institute:  c.Institute,
		Department: c.Department,
		FacultyID:  c.FacultyID,
		Email:      c.Email,
	}
}

// TokenManager signs and verifies session tokens
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a TokenManager signing with secret
func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL is the lifetime of issued tokens
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Issue signs a token for actor and returns it with its expiry
func (tm *TokenManager) Issue(actor policy.Actor) (string, time.Time, error) {
	if !actor.Role.Valid() {
		return "", time.Time{}, fmt.Errorf("cannot issue token for role %q", actor.Role)
	}

	now := tm.now()
	expiresAt := now.Add(tm.ttl)
	claims := Claims{
		UserID:     actor.UserID,
		Email:      actor.Email,
		Role:       actor.Role,
		College:    actor.College,
		Institute:  actor.Institute,
		Department: actor.Department,
		FacultyID:  actor.FacultyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tm.issuer,
			Subject:   strconv.FormatInt(actor.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a token
func (tm *TokenManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tm.issuer),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
