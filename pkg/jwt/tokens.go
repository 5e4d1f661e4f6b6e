// Package jwt issues and verifies the HS256 tokens handed to API clients.
package jwt

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types distinguish short-lived access tokens from refresh tokens.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

const issuer = "wayne-resource-management"

var (
	// ErrWrongTokenType is returned when a token of one type is presented where another is required.
	ErrWrongTokenType = errors.New("jwt: wrong token type")
	// ErrExpired is returned for well formed tokens past their expiry.
	ErrExpired = errors.New("jwt: token expired")
	// ErrInvalid covers every other verification failure.
	ErrInvalid = errors.New("jwt: token invalid")
)

// Claims is the token payload.
type Claims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"sid"`
	Role      string `json:"role,omitempty"`
	TokenType string `json:"typ"`
	jwtlib.RegisteredClaims
}

// Subject identifies who a token is issued to.
type Subject struct {
	UserID    string
	SessionID string
	Role      string
}

// Signer issues and verifies tokens with a shared secret.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner returns a Signer for secret.
func NewSigner(secret string) Signer {
	return Signer{secret: []byte(secret), now: time.Now}
}

// WithClock returns a copy of s that reads time from now.
func (s Signer) WithClock(now func() time.Time) Signer {
	s.now = now
	return s
}

// Issue signs a token of tokenType for sub that expires after ttl.
func (s Signer) Issue(sub Subject, tokenType string, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("jwt: empty signing secret")
	}
	now := s.now()
	claims := Claims{
		UserID:    sub.UserID,
		SessionID: sub.SessionID,
		Role:      sub.Role,
		TokenType: tokenType,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   sub.UserID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks the signature, issuer and expiry of token and requires tokenType.
func (s Signer) Verify(token, tokenType string) (*Claims, error) {
	parsed, err := jwtlib.ParseWithClaims(strings.TrimSpace(token), &Claims{}, func(*jwtlib.Token) (any, error) {
		return s.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}),
		jwtlib.WithIssuer(issuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return nil, ErrInvalid
	}
	if claims.TokenType != tokenType {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
