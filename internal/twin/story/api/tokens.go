package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	twinstore "github.com/storyspoiler/storycheck/internal/twin/store"
)

// TokenTTL is the lifetime of an issued access token.
const TokenTTL = time.Hour

// TokenIssuer signs and verifies HS256 access tokens against the twin's
// simulated clock, so /admin/time/advance can expire them.
type TokenIssuer struct {
	secret []byte
	clock  *twinstore.Clock
	ttl    time.Duration
}

// NewTokenIssuer creates an issuer. The secret must not be empty.
func NewTokenIssuer(secret string, clock *twinstore.Clock) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &TokenIssuer{secret: []byte(secret), clock: clock, ttl: TokenTTL}, nil
}

// Issue returns a signed token for username.
func (ti *TokenIssuer) Issue(username string) (string, error) {
	now := ti.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of raw and returns its subject.
func (ti *TokenIssuer) Verify(raw string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return ti.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.clock.Now),
	)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}
