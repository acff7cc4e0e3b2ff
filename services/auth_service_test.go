package services

import (
	"errors"
	"testing"

	"github.com/wetdog/AQI-Catalonia-Challenge/config"
)

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()
	svc := NewAuthService(config.JWTConfig{
		Secret:       "test-secret-key",
		ExpiryHours:  24,
		OperatorUser: "operator",
	})
	hash, err := svc.HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	svc.operatorHash = hash
	return svc
}

func TestHashAndCheckPassword(t *testing.T) {
	svc := newTestAuthService(t)

	hash, err := svc.HashPassword("mypassword123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "" || hash == "mypassword123" {
		t.Fatalf("unexpected hash %q", hash)
	}
	if !svc.CheckPassword(hash, "mypassword123") {
		t.Error("CheckPassword should return true for correct password")
	}
	if svc.CheckPassword(hash, "wrongpassword") {
		t.Error("CheckPassword should return false for wrong password")
	}
}

func TestAuthenticate(t *testing.T) {
	svc := newTestAuthService(t)

	token, err := svc.Authenticate("operator", "s3cret-pass")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Username != "operator" {
		t.Errorf("Username = %q, want operator", claims.Username)
	}
	if claims.Role != RoleOperator {
		t.Errorf("Role = %q, want %q", claims.Role, RoleOperator)
	}

	tests := []struct {
		name, user, pass string
	}{
		{"wrong password", "operator", "nope"},
		{"wrong user", "admin", "s3cret-pass"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Authenticate(tt.user, tt.pass); !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("err = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestAuthenticateWithoutHash(t *testing.T) {
	svc := NewAuthService(config.JWTConfig{Secret: "s", ExpiryHours: 1, OperatorUser: "operator"})
	if _, err := svc.Authenticate("operator", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestTokenContainsClaims(t *testing.T) {
	svc := newTestAuthService(t)

	token, _ := svc.GenerateToken("ops", "admin")
	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Subject != "ops" {
		t.Errorf("Subject = %q", claims.Subject)
	}
	if claims.Role != "admin" {
		t.Errorf("Role = %q", claims.Role)
	}
	if claims.ExpiresAt == nil {
		t.Error("ExpiresAt should be set")
	}
	if claims.IssuedAt == nil {
		t.Error("IssuedAt should be set")
	}
}

func TestValidateTokenInvalid(t *testing.T) {
	svc := newTestAuthService(t)
	if _, err := svc.ValidateToken("invalid.token.string"); err == nil {
		t.Error("expected error for invalid token")
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	svc1 := NewAuthService(config.JWTConfig{Secret: "secret-1", ExpiryHours: 24})
	svc2 := NewAuthService(config.JWTConfig{Secret: "secret-2", ExpiryHours: 24})

	token, _ := svc1.GenerateToken("operator", RoleOperator)
	if _, err := svc2.ValidateToken(token); err == nil {
		t.Error("expected error when validating with wrong secret")
	}
}

func TestGenerateTokenWithoutSecret(t *testing.T) {
	svc := NewAuthService(config.JWTConfig{ExpiryHours: 24})
	if _, err := svc.GenerateToken("operator", RoleOperator); err == nil {
		t.Error("expected error without a signing secret")
	}
}
