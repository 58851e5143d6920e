package storyapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func signedToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestLoginReturnsToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := signedToken(t, "alice", exp)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, AuthPath, r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")

		var creds Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, Credentials{Username: "alice", Password: "pw"}, creds)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"accessToken": raw})
	}))
	defer srv.Close()

	auth := NewAuthenticator(srv.URL, nil)
	defer auth.Close()

	tok, err := auth.Login(context.Background(), Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, raw, tok.Raw)
	assert.Equal(t, "alice", tok.Subject)
	assert.True(t, tok.ExpiresAt.Equal(exp), "expires_at = %v, want %v", tok.ExpiresAt, exp)
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{name: "missing token field", status: 200, body: `{"username":"alice"}`, wantStatus: 200},
		{name: "empty token", status: 200, body: `{"accessToken":""}`, wantStatus: 200},
		{name: "null token", status: 200, body: `{"accessToken":null}`, wantStatus: 200},
		{name: "not json", status: 200, body: `<html>oops</html>`, wantStatus: 200},
		{name: "rejected", status: 401, body: `{"msg":"Invalid username or password!"}`, wantStatus: 401, wantMsg: "Invalid username or password!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			tok, err := NewAuthenticator(srv.URL, nil).Login(context.Background(), Credentials{Username: "alice", Password: "pw"})
			require.Error(t, err)
			assert.Empty(t, tok.Raw)
			assert.True(t, errors.Is(err, ErrAuth), "expected auth error, got %v", err)

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.wantStatus, apiErr.Status)
			assert.Equal(t, tt.wantMsg, apiErr.Msg)
		})
	}
}

func TestLoginTransportFailureIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewAuthenticator(url, nil).Login(context.Background(), Credentials{Username: "a", Password: "b"})
	require.Error(t, err)
	assert.Equal(t, KindAuth, KindOf(err))
}

func TestParseTokenOpaque(t *testing.T) {
	tok := ParseToken("not-a-jwt")
	assert.Equal(t, "not-a-jwt", tok.Raw)
	assert.Empty(t, tok.Subject)
	assert.True(t, tok.ExpiresAt.IsZero())
}

func TestLoginNeverLogsCredentials(t *testing.T) {
	const user, pass = "carol-login", "carol-pass"
	raw := signedToken(t, user, time.Now().Add(time.Hour))

	for _, status := range []int{http.StatusOK, http.StatusUnauthorized} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			if status == http.StatusOK {
				json.NewEncoder(w).Encode(map[string]string{"accessToken": raw})
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"msg": "Invalid username or password!"})
		}))

		core, logs := observer.New(zapcore.DebugLevel)
		auth := NewAuthenticator(srv.URL, zap.New(core))
		auth.Login(context.Background(), Credentials{Username: user, Password: pass})
		auth.Close()
		srv.Close()

		require.NotZero(t, logs.Len(), "status %d", status)
		for _, entry := range logs.All() {
			line := entry.Message
			for k, v := range entry.ContextMap() {
				line += " " + k + "=" + fmt.Sprint(v)
			}
			assert.NotContains(t, line, user, "status %d", status)
			assert.NotContains(t, line, pass, "status %d", status)
			assert.NotContains(t, line, raw, "status %d", status)
		}
	}
}
