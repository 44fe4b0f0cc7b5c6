package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesKindAndCode(t *testing.T) {
	inactive := Inactive("strategy", "alpha")
	if !errors.Is(inactive, ErrValidation) {
		t.Fatalf("inactive should be a validation error")
	}
	if !errors.Is(inactive, ErrInactive) {
		t.Fatalf("inactive should match ErrInactive")
	}
	if errors.Is(Validation("bad", nil), ErrInactive) {
		t.Fatalf("plain validation must not match ErrInactive")
	}
	wrapped := fmt.Errorf("append: %w", NotFound("strategy", "x"))
	if !errors.Is(wrapped, ErrNotFound) {
		t.Fatalf("wrapped not found lost its kind")
	}
}

func TestStatusAndCode(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{nil, http.StatusOK, ""},
		{Unauthenticated("x"), http.StatusUnauthorized, "UNAUTHENTICATED"},
		{Conflict("x", nil), http.StatusConflict, "CONFLICT"},
		{Inactive("subscription", 1), http.StatusUnprocessableEntity, "INACTIVE"},
		{errors.New("disk"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		if got := Status(tc.err); got != tc.status {
			t.Fatalf("err=%v status=%d want=%d", tc.err, got, tc.status)
		}
		if got := Code(tc.err); got != tc.code {
			t.Fatalf("err=%v code=%q want=%q", tc.err, got, tc.code)
		}
	}
}

func TestInternalKeepsStructuredErrors(t *testing.T) {
	nf := NotFound("data", 3)
	if Internal("get", nf) != nf {
		t.Fatalf("structured error should pass through")
	}
	if Internal("get", nil) != nil {
		t.Fatalf("nil should stay nil")
	}
	cause := errors.New("conn reset")
	err := Internal("get", cause)
	if !errors.Is(err, cause) || !errors.Is(err, ErrInternal) {
		t.Fatalf("internal err=%v", err)
	}
}
