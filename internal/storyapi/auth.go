package storyapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// AuthPath is the login endpoint.
const AuthPath = "/api/User/Authentication"

// Token is a bearer credential. Subject and ExpiresAt are read from the JWT
// claims without verifying the signature and are informational only.
type Token struct {
	Raw       string
	Subject   string
	ExpiresAt time.Time
}

type loginResponse struct {
	AccessToken *string `json:"accessToken"`
	Msg         string  `json:"msg"`
}

// Authenticator performs the login call on an unauthenticated client.
type Authenticator struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewAuthenticator creates an Authenticator for baseURL.
func NewAuthenticator(baseURL string, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		http:   newResty(baseURL, logger),
		logger: logger.Named("auth"),
	}
}

// Login posts creds to AuthPath and returns the accessToken. It never returns
// an empty token with a nil error.
func (a *Authenticator) Login(ctx context.Context, creds Credentials) (Token, error) {
	const op = "login"
	log := a.logger.With(zap.String("op", op))

	resp, err := a.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(creds).
		Post(AuthPath)
	if err != nil {
		log.Error("login request failed", zap.Error(err))
		return Token{}, &Error{Kind: KindAuth, Op: op, Err: err}
	}

	var body loginResponse
	decodeErr := json.Unmarshal(resp.Body(), &body)

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		log.Error("login rejected", zap.Int("status", resp.StatusCode()))
		return Token{}, &Error{Kind: KindAuth, Op: op, Status: resp.StatusCode(), Msg: body.Msg, Err: errors.New(http.StatusText(resp.StatusCode()))}
	}
	if decodeErr != nil {
		log.Error("login response is not JSON", zap.ByteString("body", resp.Body()))
		return Token{}, &Error{Kind: KindAuth, Op: op, Status: resp.StatusCode(), Err: decodeErr}
	}
	if body.AccessToken == nil || *body.AccessToken == "" {
		return Token{}, &Error{Kind: KindAuth, Op: op, Status: resp.StatusCode(), Err: errors.New("accessToken missing from response")}
	}

	tok := ParseToken(*body.AccessToken)
	log.Info("authenticated", zap.Time("expires_at", tok.ExpiresAt))
	return tok, nil
}

// Close releases idle connections held by the login client.
func (a *Authenticator) Close() {
	a.http.GetClient().CloseIdleConnections()
}

// ParseToken wraps raw in a Token, filling Subject and ExpiresAt when raw is a
// JWT. Opaque tokens are returned as-is.
func ParseToken(raw string) Token {
	tok := Token{Raw: raw}

	parsed, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return tok
	}
	if sub, err := parsed.Claims.GetSubject(); err == nil {
		tok.Subject = sub
	}
	if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
		tok.ExpiresAt = exp.Time
	}
	return tok
}
