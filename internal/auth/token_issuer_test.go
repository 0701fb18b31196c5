package auth

import (
	"context"
	"testing"
	"time"
)

func newTestIssuer(secret string, clock func() time.Time) *TokenIssuer {
	return NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte(secret),
		Issuer:        "ripple-auth",
		Audience:      "ripple-api",
		TokenTTL:      time.Minute,
		Clock:         clock,
	})
}

func TestIssueAndValidateRoundTrip(t *testing.T) {
	issuer := newTestIssuer("secret", nil)

	token, expiresIn, err := issuer.IssueToken(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	if expiresIn != 60 {
		t.Fatalf("expected 60s expiry, got %d", expiresIn)
	}

	subject, err := issuer.ValidateToken(token)
	if err != nil {
		t.Fatalf("failed to validate token: %v", err)
	}
	if subject != "user-1" {
		t.Fatalf("expected subject user-1, got %s", subject)
	}
}

func TestIssueTokenRequiresSubject(t *testing.T) {
	issuer := newTestIssuer("secret", nil)
	if _, _, err := issuer.IssueToken(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty subject")
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := newTestIssuer("secret", nil)
	other := newTestIssuer("different-secret", nil)

	token, _, err := issuer.IssueToken(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	if _, err := other.ValidateToken(token); err == nil {
		t.Fatalf("expected validation to fail with wrong secret")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	issued := time.Now().UTC()
	issuer := newTestIssuer("secret", func() time.Time { return issued })

	token, _, err := issuer.IssueToken(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	late := newTestIssuer("secret", func() time.Time { return issued.Add(2 * time.Minute) })
	if _, err := late.ValidateToken(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}
