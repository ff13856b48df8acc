package utils

import (
	"testing"

	"github.com/xelth-com/ordsyncgo/internal/config"
	"github.com/xelth-com/ordsyncgo/internal/models"
)

func TestPasswordHashing(t *testing.T) {
	password := "secret123"

	// Test Hashing
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	if hash == password {
		t.Error("Hash should not match plaintext password")
	}
	if len(hash) == 0 {
		t.Error("Hash should not be empty")
	}

	// Test Comparison (Success)
	if !CheckPasswordHash(password, hash) {
		t.Error("Password should match hash")
	}

	// Test Comparison (Failure)
	if CheckPasswordHash("wrongpassword", hash) {
		t.Error("Wrong password should not match hash")
	}
}

func TestJWT(t *testing.T) {
	// Setup Mock Config
	cfg := &config.Config{
		JWTSecret: "test-secret-key-12345",
	}

	user := &models.UserAuth{
		ID:    "uuid-1234",
		Email: "admin@example.com",
		Role:  "admin",
	}

	// Test Generation
	accessToken, refreshToken, err := GenerateTokens(user, cfg)
	if err != nil {
		t.Fatalf("Failed to generate tokens: %v", err)
	}
	if accessToken == "" || refreshToken == "" {
		t.Error("Tokens should not be empty")
	}

	// Test Validation (Success)
	claims, err := ValidateToken(accessToken, cfg.JWTSecret)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims["email"] != "admin@example.com" {
		t.Errorf("Expected email claim, got %v", claims["email"])
	}
	if claims["role"] != "admin" {
		t.Errorf("Expected role claim, got %v", claims["role"])
	}

	// Test Validation (Wrong Secret)
	if _, err := ValidateToken(accessToken, "other-secret"); err == nil {
		t.Error("Token signed with another secret should not validate")
	}

	// Test Validation (Garbage)
	if _, err := ValidateToken("not.a.token", cfg.JWTSecret); err == nil {
		t.Error("Malformed token should not validate")
	}
}
