package model

import "testing"

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Code: ErrNotFound, Message: "dish 'dish_123' not found"}
	want := "NOT_FOUND: dish 'dish_123' not found"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("order", "ord_abc")
	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Message != "order 'ord_abc' not found" {
		t.Errorf("Message = %q, want %q", err.Message, "order 'ord_abc' not found")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("Invalid request",
		FieldError{Field: "dish_id", Message: "required"},
		FieldError{Field: "table_number", Message: "must not be negative"},
	)
	if err.Code != ErrValidation {
		t.Errorf("Code = %q, want %q", err.Code, ErrValidation)
	}
	if len(err.Details) != 2 {
		t.Errorf("Details length = %d, want 2", len(err.Details))
	}
}

func TestNewConflictError(t *testing.T) {
	err := NewConflictError("nothing to undo")
	if err.Code != ErrConflict {
		t.Errorf("Code = %q, want %q", err.Code, ErrConflict)
	}
}

func TestInvalidTransitionError(t *testing.T) {
	err := &InvalidTransitionError{
		Entity: "Task",
		ID:     "ord_123",
		From:   "ACTIVE",
		To:     "ACTIVE",
	}
	want := "invalid Task state transition: ACTIVE → ACTIVE (entity ord_123)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
