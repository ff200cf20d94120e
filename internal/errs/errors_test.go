package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestPredicatesMatchOnlyTheirType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
	}{
		{"validation", Validation("bad %s", "input"), IsValidation},
		{"not found", NotFound("team"), IsNotFound},
		{"forbidden", Forbidden("no"), IsForbidden},
		{"conflict", Conflict("dup"), IsConflict},
		{"capacity", CapacityExceeded(3), IsCapacityExceeded},
		{"invalid state", InvalidState("archived"), IsInvalidState},
	}

	preds := []func(error) bool{
		IsValidation, IsNotFound, IsForbidden, IsConflict, IsCapacityExceeded, IsInvalidState,
	}

	for i, tt := range tests {
		if !tt.pred(tt.err) {
			t.Errorf("%s: own predicate did not match", tt.name)
		}
		for j, other := range preds {
			if i != j && other(tt.err) {
				t.Errorf("%s: matched predicate %d", tt.name, j)
			}
		}
		if tt.pred(errors.New("plain")) {
			t.Errorf("%s: predicate matched a plain error", tt.name)
		}
	}
}

func TestPredicatesUnwrap(t *testing.T) {
	wrapped := fmt.Errorf("responding to request: %w", CapacityExceeded(7))
	if !IsCapacityExceeded(wrapped) {
		t.Error("expected predicate to see through wrapping")
	}
}

func TestErrorMessages(t *testing.T) {
	if got := NotFound("team").Error(); got != "team not found" {
		t.Errorf("NotFound message = %q", got)
	}
	if got := Validation("max_members must be at least %d", 1).Error(); got != "max_members must be at least 1" {
		t.Errorf("Validation message = %q", got)
	}
	if got := CapacityExceeded(5).Error(); got != "team 5 is at member capacity" {
		t.Errorf("CapacityExceeded message = %q", got)
	}
}

func TestCapacityExceededCarriesTeamID(t *testing.T) {
	var capErr *CapacityExceededError
	if !errors.As(CapacityExceeded(9), &capErr) || capErr.TeamID != 9 {
		t.Errorf("expected TeamID 9, got %+v", capErr)
	}
}
