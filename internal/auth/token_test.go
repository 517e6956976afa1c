package auth_test

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk-bot/internal/auth"
	"github.com/spec-kit/helpdesk-bot/internal/config"
	apperrors "github.com/spec-kit/helpdesk-bot/pkg/util"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", 60)

	token, expiresAt, err := tm.GenerateToken("operator")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatal("token already expired")
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Username != "operator" {
		t.Fatalf("username = %s", claims.Username)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, _, err := auth.NewTokenManager("secret-a", 60).GenerateToken("operator")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := auth.NewTokenManager("secret-b", 60).ParseToken(token); err == nil {
		t.Fatal("token verified under a different secret")
	}
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cfg := config.OperatorConfig{
		Username:     "operator",
		PasswordHash: string(hash),
	}
	tm := auth.NewTokenManager("test-secret", 60)

	token, err := auth.Login(cfg, tm, "operator", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := tm.ParseToken(token); err != nil {
		t.Fatalf("issued token invalid: %v", err)
	}

	if _, err := auth.Login(cfg, tm, "operator", "wrong"); !apperrors.IsCode(err, "UNAUTHORIZED") {
		t.Fatalf("bad password: err = %v", err)
	}
	if _, err := auth.Login(cfg, tm, "intruder", "hunter2"); !apperrors.IsCode(err, "UNAUTHORIZED") {
		t.Fatalf("bad username: err = %v", err)
	}

	// An account with no configured hash can never log in.
	if _, err := auth.Login(config.OperatorConfig{Username: "operator"}, tm, "operator", ""); !apperrors.IsCode(err, "UNAUTHORIZED") {
		t.Fatalf("empty hash: err = %v", err)
	}
}
