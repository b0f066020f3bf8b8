package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"symbio/internal/apperr"
	"symbio/internal/model"
	"symbio/internal/store"
	"symbio/internal/store/storetest"
	"symbio/pkg/util"
)

const secret = "test-secret"

func newService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	st := storetest.NewSQLite(t)
	return NewService(st, secret, time.Hour, zap.NewNop()), st
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, " Alice@Example.com ", "correct-horse", model.RoleFreelancer)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q", u.Email)
	}
	if u.PasswordHash == "correct-horse" {
		t.Error("password stored in plain text")
	}

	token, logged, err := svc.Login(ctx, "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if logged.ID != u.ID {
		t.Errorf("logged in as %d, want %d", logged.ID, u.ID)
	}
	claims, err := util.ParseJWT(token, secret)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.UserID != u.ID || claims.Role != model.RoleFreelancer {
		t.Errorf("claims = %+v", claims)
	}

	if _, _, err := svc.Login(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("wrong password: got %v", err)
	}
	if _, _, err := svc.Login(ctx, "bob@example.com", "correct-horse"); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("unknown email: got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "taken@example.com", "password1", model.RoleClient); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		role     string
		want     error
	}{
		{"duplicate email", "TAKEN@example.com", "password1", model.RoleClient, apperr.ErrConflict},
		{"bad email", "not-an-email", "password1", model.RoleClient, apperr.ErrInvalidInput},
		{"short password", "new@example.com", "short", model.RoleClient, apperr.ErrInvalidInput},
		{"unknown role", "new@example.com", "password1", "ADMIN", apperr.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tt.email, tt.password, tt.role); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUpdateProfileKeepsScore(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	u, err := svc.Register(ctx, "f@example.com", "password1", model.RoleFreelancer)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.InTx(ctx, func(tx store.Tx) error {
		return tx.UpdateCredibilityScore(ctx, u.ID, 72.5)
	}); err != nil {
		t.Fatal(err)
	}

	p, err := svc.UpdateProfile(ctx, u.ID, ProfileInput{DisplayName: " Fay ", Skills: []string{"go", " ", "sql"}})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if p.DisplayName != "Fay" || len(p.Skills) != 2 || p.CredibilityScore != 72.5 {
		t.Errorf("profile = %+v", p)
	}

	got, err := svc.GetProfile(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CredibilityScore != 72.5 || got.Skills[1] != "sql" {
		t.Errorf("stored profile = %+v", got)
	}
	if _, err := svc.GetProfile(ctx, u.ID+100); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing profile: got %v", err)
	}
}
