package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(cause, ErrCodeInternal, "save user")

	if got := err.Error(); got != "save user: boom" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is should find the cause")
	}
	if Wrap(nil, ErrCodeInternal, "x") != nil {
		t.Errorf("Wrap(nil) should be nil")
	}
}

func TestPredicates(t *testing.T) {
	wrapped := fmt.Errorf("signup: %w", Conflict("email taken"))
	if !IsConflict(wrapped) {
		t.Errorf("IsConflict should see through wrapping")
	}
	if IsNotFound(wrapped) || IsValidation(wrapped) || IsTimeout(wrapped) {
		t.Errorf("unexpected predicate match")
	}
	if GetCode(errors.New("plain")) != "" {
		t.Errorf("plain errors have no code")
	}
	if GetField(ValidationField("password", "too short")) != "password" {
		t.Errorf("field not preserved")
	}
	if !IsValidation(Validation("bad")) {
		t.Errorf("Validation() should be a validation error")
	}
}
