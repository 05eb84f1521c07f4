package identity

import (
	"context"
	"testing"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)

	ctx := context.Background()
	user, err := svc.Register(ctx, Credentials{Email: " Ama@Example.com ", Password: "s3cret-pass", DisplayName: "Ama"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "ama@example.com" {
		t.Fatalf("expected normalized email, got %s", user.Email)
	}

	authed, err := svc.Authenticate(ctx, Credentials{Email: "ama@example.com", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if authed.LastLogin == nil {
		t.Fatalf("expected last login to be recorded")
	}

	exists, err := svc.Exists(ctx, user.ID)
	if err != nil || !exists {
		t.Fatalf("expected user to exist, got %v %v", exists, err)
	}
	exists, err = svc.Exists(ctx, "nobody")
	if err != nil || exists {
		t.Fatalf("expected unknown principal, got %v %v", exists, err)
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Email: "kofi@example.com", Password: "long-enough"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Authenticate(ctx, Credentials{Email: "kofi@example.com", Password: "wrong-one"}); err != ErrInvalidCredentials {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Register(ctx, Credentials{Email: "kofi@example.com", Password: "long-enough"}); err != ErrUserExists {
		t.Fatalf("expected duplicate registration to fail, got %v", err)
	}
	if _, err := svc.Register(ctx, Credentials{Email: "yaw@example.com", Password: "short"}); err == nil {
		t.Fatalf("expected short password to be rejected")
	}
}
