package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/taskhub/taskhub-api/internal/pkg/jwt"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenIssue(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-test-secret")
	t.Setenv("ENV", "test")
	id := uuid.New()

	out, err := run(t, "token", "issue", "--user", id.String(), "--role", "worker")
	if err != nil {
		t.Fatalf("token issue: %v", err)
	}

	claims, err := jwt.NewService("cli-test-secret", 0).ValidateAccessToken(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if claims.UserID != id || claims.Role != "worker" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokenIssueRejectsBadInput(t *testing.T) {
	t.Setenv("ENV", "test")

	if _, err := run(t, "token", "issue", "--user", "nope"); err == nil {
		t.Fatal("expected invalid user error")
	}
	if _, err := run(t, "token", "issue", "--user", uuid.NewString(), "--role", "root"); err == nil {
		t.Fatal("expected invalid role error")
	}
	if _, err := run(t, "token", "issue"); err == nil {
		t.Fatal("expected missing --user error")
	}
}

func TestTokenIssueDisabledInProduction(t *testing.T) {
	t.Setenv("ENV", "production")
	if _, err := run(t, "token", "issue", "--user", uuid.NewString()); err == nil {
		t.Fatal("expected production guard")
	}
}
