package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	e := New(CategoryCompile, SeverityError, "failed to compile shader 'vs'")
	want := "compile (error): failed to compile shader 'vs'"
	if e.Error() != want {
		t.Fatalf("expected %q got %q", want, e.Error())
	}

	cause := stdErrors.New("boom")
	w := Wrap(cause, CategoryBackend, SeverityError, "backend operation failed")
	if !stdErrors.Is(w, cause) {
		t.Fatalf("wrapped error should unwrap to its cause")
	}
}

func TestCategoryHelpers(t *testing.T) {
	e := LinkFailed("undefined symbol main")
	if !IsCategory(e, CategoryLink) {
		t.Fatalf("expected link category")
	}
	if IsCategory(e, CategoryCompile) {
		t.Fatalf("did not expect compile category")
	}
	if got := GetCategory(stdErrors.New("plain")); got != CategoryInternal {
		t.Fatalf("plain errors should map to internal, got %s", got)
	}
}

// TestWrappedClassification verifies the helpers see through fmt.Errorf %w
// wrapping.
func TestWrappedClassification(t *testing.T) {
	e := CompileFailed("vs", "0:1: error: syntax")
	wrapped := fmt.Errorf("build pipeline: %w", e)

	if !IsCategory(wrapped, CategoryCompile) {
		t.Fatalf("expected compile category through the wrap")
	}
	if got := GetCategory(wrapped); got != CategoryCompile {
		t.Fatalf("expected compile category, got %s", got)
	}

	retryable := New(CategoryStorage, SeverityError, "database locked")
	retryable.Retryable = true
	if !IsRetryable(fmt.Errorf("append record: %w", retryable)) {
		t.Fatalf("expected retryable through the wrap")
	}
}

func TestReflectionUnsupportedIsWarning(t *testing.T) {
	e := ReflectionUnsupported()
	if e.Severity != SeverityWarning {
		t.Fatalf("unsupported reflection must be a warning, got %s", e.Severity)
	}
	if e.Retryable {
		t.Fatalf("unsupported reflection is not retryable")
	}
}

func TestWithContext(t *testing.T) {
	e := CompileFailed("ps", "0:1: error: syntax")
	if e.Context["log"] != "0:1: error: syntax" {
		t.Fatalf("expected compiler log in context, got %v", e.Context["log"])
	}
	e.WithContext("stage", "pixel")
	if e.Context["stage"] != "pixel" {
		t.Fatalf("expected stage context")
	}
}
