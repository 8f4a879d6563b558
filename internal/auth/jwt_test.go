package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func testJWTConfig() *JWTConfig {
	return &JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "pulsechat",
		Audience: "pulsechat-clients",
		TTL:      time.Hour,
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()

	token, err := GenerateToken(cfg, userID, "alice")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := ValidateToken(cfg, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("expected user id %s, got %s", userID, claims.UserID)
	}
	if claims.Username != "alice" {
		t.Fatalf("expected username alice, got %s", claims.Username)
	}
	if claims.Subject != userID.String() {
		t.Fatalf("expected subject %s, got %s", userID, claims.Subject)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	cfg := testJWTConfig()

	token, err := GenerateToken(cfg, uuid.New(), "alice")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	other := testJWTConfig()
	other.Secret = []byte("different-secret")
	if _, err := ValidateToken(other, token); err == nil {
		t.Fatalf("expected validation failure with wrong secret")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	cfg.TTL = -time.Minute

	token, err := GenerateToken(cfg, uuid.New(), "alice")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := ValidateToken(cfg, token); err == nil {
		t.Fatalf("expected validation failure for expired token")
	}
}

func TestValidateTokenRejectsWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	cfg.Issuer = "someone-else"

	token, err := GenerateToken(cfg, uuid.New(), "alice")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := ValidateToken(testJWTConfig(), token); err == nil {
		t.Fatalf("expected validation failure for wrong issuer")
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	if _, err := ValidateToken(testJWTConfig(), "not.a.token"); err == nil {
		t.Fatalf("expected validation failure for malformed token")
	}
}
