// Package auth issues and validates session tokens and talks to the login
// provider.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. User visits /auth/google/login → redirected to Google
//  2. Google calls back /auth/google/callback with a code
//  3. Server exchanges the code for the Google profile, upserts the user
//  4. Server issues a JWT, stores it in an HttpOnly "token" cookie
//  5. On API calls, RequireAuth reads the cookie, validates the JWT and puts
//     the user ID in the request context
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<user id>","iss":"mymume","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is written to and required in every token.
const Issuer = "mymume"

// DefaultTokenTTL is used when NewTokenService is given a zero TTL.
const DefaultTokenTTL = 7 * 24 * time.Hour

// TokenService handles JWT creation and validation with one HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. The secret should be at least 32
// bytes of random data in production, e.g. JWT_SECRET=$(openssl rand -hex 32).
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is how long issued tokens stay valid. The session cookie uses the same max age.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a token for userID with the service TTL.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, s.ttl)
}

// GenerateWithDuration creates a token with a custom expiry. Tests use it
// to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns the user ID from
// its "sub" claim.
//
// The jwt library checks the signature, expiry and issuer. Pinning the valid
// methods to HS256 stops algorithm confusion ("alg":"none" and friends).
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
