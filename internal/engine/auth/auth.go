// Package auth issues and verifies the optional bearer tokens that name the
// actor behind a request. Tokens identify; they never gate access.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"hypolab/internal/domain"
)

var (
	ErrDisabled     = errors.New("authentication is not configured")
	ErrInvalidToken = errors.New("invalid token")
	ErrInactiveUser = errors.New("user is inactive")
)

const DefaultTTL = 12 * time.Hour

// Principal is the identity carried by a verified token.
type Principal struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Service signs HS256 tokens with Secret. An empty secret disables it.
type Service struct {
	Secret string
	TTL    time.Duration
	Now    func() time.Time
}

func (s Service) Enabled() bool {
	return strings.TrimSpace(s.Secret) != ""
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Issue signs a token for u.
func (s Service) Issue(u domain.User) (string, time.Time, error) {
	if !s.Enabled() {
		return "", time.Time{}, ErrDisabled
	}
	if u.Status != "" && u.Status != "active" {
		return "", time.Time{}, ErrInactiveUser
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := s.now()
	exp := now.Add(ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Issuer:    "hypolab",
		},
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	})
	signed, err := tok.SignedString([]byte(s.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify parses token and returns its principal.
func (s Service) Verify(token string) (Principal, error) {
	if !s.Enabled() {
		return Principal{}, ErrDisabled
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	c := &claims{}
	parsed, err := parser.ParseWithClaims(token, c, func(t *jwt.Token) (any, error) {
		return []byte(s.Secret), nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || c.Subject == "" {
		return Principal{}, ErrInvalidToken
	}
	return Principal{UserID: c.Subject, Email: c.Email, Name: c.Name, Role: c.Role}, nil
}
