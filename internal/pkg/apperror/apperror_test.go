package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:   http.StatusBadRequest,
		KindUnauthorized: http.StatusUnauthorized,
		KindForbidden:    http.StatusForbidden,
		KindNotFound:     http.StatusNotFound,
		KindConflict:     http.StatusConflict,
		KindInfra:        http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := Status(kind); got != want {
			t.Fatalf("kind %s: expected %d, got %d", kind, want, got)
		}
	}
}

func TestSentinelSurvivesCopies(t *testing.T) {
	sentinel := Validation("INSUFFICIENT_BALANCE", "Insufficient balance")

	withMsg := sentinel.WithMessage("need %s more", "10.00")
	if !errors.Is(withMsg, sentinel) {
		t.Fatalf("expected WithMessage copy to match sentinel")
	}

	wrapped := fmt.Errorf("withdraw: %w", sentinel.Wrap(errors.New("boom")))
	if !errors.Is(wrapped, sentinel) {
		t.Fatalf("expected wrapped copy to match sentinel")
	}
	if errors.Is(wrapped, Validation("OTHER", "x")) {
		t.Fatalf("different code must not match")
	}
}

func TestFromUntaggedBecomesInfra(t *testing.T) {
	err := From(errors.New("connection refused"))
	if err.Kind != KindInfra || err.Code != "INTERNAL_ERROR" {
		t.Fatalf("expected infra INTERNAL_ERROR, got %s %s", err.Kind, err.Code)
	}
	if From(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("ctx: %w", NotFound("ESCROW_NOT_FOUND", "Escrow not found"))
	if !IsKind(err, KindNotFound) {
		t.Fatalf("expected not found kind")
	}
	if IsKind(err, KindConflict) {
		t.Fatalf("unexpected conflict kind")
	}
}
