package api

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	twinstore "github.com/storyspoiler/storycheck/internal/twin/store"
)

func TestTokenIssueAndVerify(t *testing.T) {
	clock := twinstore.NewClock()
	ti, err := NewTokenIssuer("secret", clock)
	if err != nil {
		t.Fatal(err)
	}

	raw, err := ti.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	sub, err := ti.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if sub != "alice" {
		t.Errorf("expected subject alice, got %q", sub)
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		t.Fatalf("ParseUnverified: %v", err)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != TokenTTL {
		t.Errorf("expected ttl %s, got %s", TokenTTL, got)
	}
}

func TestTokenExpiresOnSimulatedClock(t *testing.T) {
	clock := twinstore.NewClock()
	ti, _ := NewTokenIssuer("secret", clock)
	raw, _ := ti.Issue("alice")

	clock.Advance(TokenTTL + time.Minute)
	if _, err := ti.Verify(raw); err == nil {
		t.Error("expected expired token to fail verification")
	}
}

func TestTokenWrongSecretOrAlgorithm(t *testing.T) {
	clock := twinstore.NewClock()
	ti, _ := NewTokenIssuer("secret", clock)
	other, _ := NewTokenIssuer("other", clock)

	raw, _ := other.Issue("alice")
	if _, err := ti.Verify(raw); err == nil {
		t.Error("expected signature mismatch")
	}

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := ti.Verify(none); err == nil {
		t.Error("expected alg none rejected")
	}
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	if _, err := NewTokenIssuer("", twinstore.NewClock()); err == nil {
		t.Error("expected error for empty secret")
	}
}
