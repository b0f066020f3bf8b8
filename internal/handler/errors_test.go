package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"symbio/internal/apperr"
	"symbio/internal/payment"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.NotFound("op", "x"), http.StatusNotFound},
		{apperr.InvalidState("op", "x"), http.StatusConflict},
		{apperr.Conflict("op", "x"), http.StatusConflict},
		{apperr.Forbidden("op", "x"), http.StatusForbidden},
		{apperr.InvalidInput("op", "x"), http.StatusBadRequest},
		{apperr.Unauthenticated("op", "x"), http.StatusUnauthorized},
		{fmt.Errorf("PayMilestone: %w", payment.ErrUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusOf(tt.err); got != tt.want {
			t.Errorf("StatusOf(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
