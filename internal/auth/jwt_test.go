package auth

import (
	"testing"
	"time"
)

func TestPairingTokenRoundTrip(t *testing.T) {
	a := NewAuthenticator("test-secret", time.Hour)

	token, expiresAt, err := a.GeneratePairingToken("client-1")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if time.Until(expiresAt) > time.Hour || time.Until(expiresAt) < 59*time.Minute {
		t.Errorf("Expected expiry about an hour out, got %v", expiresAt)
	}

	claims, err := a.ValidateToken(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims.ClientID != "client-1" {
		t.Errorf("Expected client-1, got %q", claims.ClientID)
	}
	if claims.Role != RoleUI {
		t.Errorf("Expected ui role, got %q", claims.Role)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	a := NewAuthenticator("secret-one", time.Hour)
	token, _, err := a.GeneratePairingToken("client-1")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	other := NewAuthenticator("secret-two", time.Hour)
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("Expected validation with wrong secret to fail")
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	a := NewAuthenticator("test-secret", time.Hour)
	if _, err := a.ValidateToken("not.a.token"); err == nil {
		t.Error("Expected garbage token to fail validation")
	}
}
