package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestManager() *Manager {
	return NewManager("test-secret-key", 15*time.Minute, 7*24*time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateAccessToken("alice", "USER")

	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.VerifyAccessToken(token)

	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if claims.Username != "alice" {
		t.Fatalf("subject mismatch: got %q", claims.Username)
	}

	if claims.Role != "USER" {
		t.Fatalf("role mismatch: got %q", claims.Role)
	}

	if claims.TokenType != "access" {
		t.Fatalf("token type mismatch: got %q", claims.TokenType)
	}
}

func TestExpiredTokenFails(t *testing.T) {
	// negative TTL backdates the expiry
	m := NewManager("test-secret-key", -1*time.Minute, 7*24*time.Hour)

	token, err := m.GenerateAccessToken("alice", "USER")

	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	_, err = m.VerifyAccessToken(token)

	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("want ErrTokenExpired, got %v", err)
	}
}

func TestWrongKeyFailsWithBadSignature(t *testing.T) {
	m := newTestManager()
	other := NewManager("a-different-secret", 15*time.Minute, 7*24*time.Hour)

	token, err := other.GenerateAccessToken("alice", "USER")

	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	_, err = m.VerifyAccessToken(token)

	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("want ErrBadSignature, got %v", err)
	}
}

func TestMalformedTokenFails(t *testing.T) {
	m := newTestManager()

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "empty", token: ""},
		{name: "truncated", token: "eyJhbGciOiJIUzI1NiJ9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.VerifyAccessToken(tt.token)

			if !errors.Is(err, ErrTokenMalformed) {
				t.Fatalf("want ErrTokenMalformed, got %v", err)
			}
		})
	}
}

func TestRefreshTokenRejectedAsAccessToken(t *testing.T) {
	m := newTestManager()

	raw, jti, _, err := m.GenerateRefreshToken("alice", "USER")

	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if jti == "" {
		t.Fatal("expected a jti")
	}

	_, err = m.VerifyAccessToken(raw)

	if !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("want ErrWrongTokenType, got %v", err)
	}

	if _, err := m.VerifyRefreshToken(raw); err != nil {
		t.Fatalf("refresh verify: %v", err)
	}
}

func TestIsValidChecksSubject(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateAccessToken("bob", "USER")

	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if !m.IsValid(token, "bob") {
		t.Fatal("token should be valid for its own subject")
	}

	if m.IsValid(token, "alice") {
		t.Fatal("token must not validate for another subject")
	}
}

func TestHashRefreshTokenIsDeterministic(t *testing.T) {
	m := newTestManager()
	other := NewManager("a-different-secret", time.Minute, time.Hour)

	h1 := m.HashRefreshToken("raw-token")
	h2 := m.HashRefreshToken("raw-token")

	if h1 != h2 {
		t.Fatal("hash must be deterministic for the same key")
	}

	if h1 == other.HashRefreshToken("raw-token") {
		t.Fatal("hash must depend on the key")
	}
}
