package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"symbio/internal/apperr"
	"symbio/internal/store"
)

func TestTranslate(t *testing.T) {
	dbDown := errors.New("connection refused")
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"not found", fmt.Errorf("get: %w", store.ErrNotFound), apperr.ErrNotFound},
		{"duplicate", store.ErrDuplicate, apperr.ErrConflict},
		{"stale", store.ErrStale, apperr.ErrInvalidState},
		{"domain error passes through", apperr.Forbidden("Op", "nope"), apperr.ErrForbidden},
		{"infra error wrapped", dbDown, dbDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Translate("Op", tt.in)
			if !errors.Is(got, tt.want) {
				t.Fatalf("Translate(%v) = %v, want match for %v", tt.in, got, tt.want)
			}
		})
	}
	if Translate("Op", nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestObserveReturnsError(t *testing.T) {
	want := apperr.InvalidState("AcceptProposal", "proposal is ACCEPTED")
	got := Observe(context.Background(), "AcceptProposal", func(context.Context) error { return want })
	if got != want {
		t.Fatalf("Observe returned %v", got)
	}
	if Outcome(got) != "invalid_state" || Outcome(nil) != "ok" || Outcome(errors.New("x")) != "internal" {
		t.Fatal("unexpected outcome labels")
	}
}
