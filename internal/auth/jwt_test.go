package auth

import (
	"testing"
	"time"
)

func testConfig() *Config {
	return &Config{
		Secret:   []byte("test-secret"),
		Issuer:   "nexus-relay",
		Audience: "nexus-clients",
		TTL:      time.Hour,
	}
}

func TestTokenRoundTrip(t *testing.T) {
	cfg := testConfig()

	token, err := GenerateToken(cfg, "alice@example.com")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	claims, err := VerifyToken(cfg, token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if claims.Identity() != "alice@example.com" {
		t.Fatalf("unexpected identity: %q", claims.Identity())
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	cfg := testConfig()
	token, err := GenerateToken(cfg, "alice")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	other := testConfig()
	other.Secret = []byte("different-secret")
	if _, err := VerifyToken(other, token); err == nil {
		t.Fatalf("expected verification failure with wrong secret")
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	cfg := testConfig()
	cfg.Issuer = "someone-else"
	token, err := GenerateToken(cfg, "alice")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if _, err := VerifyToken(testConfig(), token); err == nil {
		t.Fatalf("expected verification failure with wrong issuer")
	}
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	cfg := testConfig()
	cfg.Audience = "other-app"
	token, err := GenerateToken(cfg, "alice")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if _, err := VerifyToken(testConfig(), token); err == nil {
		t.Fatalf("expected verification failure with wrong audience")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	cfg := testConfig()
	cfg.TTL = -time.Minute
	token, err := GenerateToken(cfg, "alice")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if _, err := VerifyToken(testConfig(), token); err == nil {
		t.Fatalf("expected verification failure for expired token")
	}
}

func TestVerifyRejectsEmptySubject(t *testing.T) {
	cfg := testConfig()
	token, err := GenerateToken(cfg, "")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if _, err := VerifyToken(cfg, token); err == nil {
		t.Fatalf("expected verification failure for empty subject")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	if _, err := VerifyToken(testConfig(), "not.a.token"); err == nil {
		t.Fatalf("expected verification failure for malformed token")
	}
}
