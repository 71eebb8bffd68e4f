package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"mapin/internal/app/services/auth"
	domainauth "mapin/internal/domain/auth"
	domainuser "mapin/internal/domain/user"
	"mapin/internal/infra/security"
	"mapin/internal/infra/storage/memory"
)

func newService(t *testing.T) *auth.Service {
	t.Helper()
	return &auth.Service{
		Users:      memory.NewUserRepository(),
		Sessions:   memory.NewSessionStore(),
		Passwords:  security.BcryptHasher{Cost: 4},
		Tokens:     security.RandomTokenGenerator{},
		SessionTTL: time.Hour,
	}
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, auth.RegisterParams{
		Email:    "Alice@Example.com",
		Name:     "Alice",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatal(err)
	}
	if registered.Token == "" {
		t.Fatal("no session token issued")
	}
	if registered.User.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", registered.User.Email)
	}

	logged, err := svc.Login(ctx, auth.LoginParams{Email: "alice@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatal(err)
	}
	if logged.User.ID != registered.User.ID {
		t.Fatal("login resolved a different account")
	}

	if _, err := svc.Login(ctx, auth.LoginParams{Email: "alice@example.com", Password: "wrong"}); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, auth.LoginParams{Email: "nobody@example.com", Password: "whatever"}); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := newService(t)
	_, err := svc.Register(context.Background(), auth.RegisterParams{Email: "a@b.c", Name: "A", Password: "short"})
	if !errors.Is(err, auth.ErrPasswordTooShort) {
		t.Fatalf("got %v, want ErrPasswordTooShort", err)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, auth.RegisterParams{Email: "a@b.c", Name: "A", Password: "longenough"}); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Register(ctx, auth.RegisterParams{Email: "a@b.c", Name: "B", Password: "longenough"})
	if !errors.Is(err, domainuser.ErrEmailAlreadyUsed) {
		t.Fatalf("got %v, want ErrEmailAlreadyUsed", err)
	}
}

func TestResolveTokenAndLogout(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	registered, err := svc.Register(ctx, auth.RegisterParams{Email: "a@b.c", Name: "A", Password: "longenough"})
	if err != nil {
		t.Fatal(err)
	}

	resolved, err := svc.ResolveToken(ctx, registered.Token)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.User.ID != registered.User.ID {
		t.Fatal("token resolved to wrong user")
	}

	if err := svc.Logout(ctx, registered.Token); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ResolveToken(ctx, registered.Token); !errors.Is(err, domainauth.ErrSessionNotFound) {
		t.Fatalf("got %v, want ErrSessionNotFound", err)
	}
	// logging out twice is fine
	if err := svc.Logout(ctx, registered.Token); err != nil {
		t.Fatal(err)
	}
}

func TestResolveTokenExpiresStaleSessions(t *testing.T) {
	svc := newService(t)
	svc.SessionTTL = -time.Minute
	ctx := context.Background()
	registered, err := svc.Register(ctx, auth.RegisterParams{Email: "a@b.c", Name: "A", Password: "longenough"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ResolveToken(ctx, registered.Token); !errors.Is(err, domainauth.ErrSessionNotFound) {
		t.Fatalf("got %v, want ErrSessionNotFound for expired session", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	registered, err := svc.Register(ctx, auth.RegisterParams{Email: "a@b.c", Name: "A", Password: "longenough"})
	if err != nil {
		t.Fatal(err)
	}
	updated, err := svc.UpdateProfile(ctx, registered.User.ID, "Alice Updated", "photo.jpg", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != "Alice Updated" || updated.PhotoURL != "photo.jpg" || updated.Bio != "hello" {
		t.Fatalf("profile not updated: %+v", updated)
	}
	// blank fields leave existing values untouched
	kept, err := svc.UpdateProfile(ctx, registered.User.ID, "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if kept.Name != "Alice Updated" {
		t.Fatalf("blank update wiped name: %q", kept.Name)
	}
}
