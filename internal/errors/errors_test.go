package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSpatialError_Error(t *testing.T) {
	err := New(ErrCategoryValidation, CodeInvalidDimensions, "point has 5 dimensions")
	expected := "[VALIDATION:INVALID_DIMENSIONS] point has 5 dimensions"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestSpatialError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCategoryTransport, CodeRequestFailed, "select failed", cause)
	expected := "[TRANSPORT:REQUEST_FAILED] select failed: connection refused"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestSpatialError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryIndex, CodeDecodeFailed, "bad json", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestSpatialError_Is(t *testing.T) {
	err1 := New(ErrCategoryTransport, CodeBadStatus, "first")
	err2 := New(ErrCategoryTransport, CodeBadStatus, "second")
	err3 := New(ErrCategoryTransport, CodeUnavailable, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryTransport, CodeUnavailable, true},
		{ErrCategoryTransport, CodeBadStatus, false},
		{ErrCategoryTransport, CodeRequestFailed, false},
		{ErrCategoryValidation, CodeInvalidDimensions, false},
		{ErrCategoryIndex, CodeEmptyStats, false},
		{ErrCategoryBenchmark, CodeWorkerFailed, false},
		{ErrCategoryStorage, CodeUploadFailed, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestGetCategoryAndCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(ErrCategoryIndex, CodeEmptyStats, "no documents"))
	if GetCategory(err) != ErrCategoryIndex {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryIndex)
	}
	if GetCode(err) != CodeEmptyStats {
		t.Errorf("got %q, want %q", GetCode(err), CodeEmptyStats)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" {
		t.Error("non-SpatialError should return empty category")
	}
	if GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-SpatialError should return empty code")
	}
}

func TestStatusCode(t *testing.T) {
	err := NewTransportError(CodeBadStatus, "select returned 500", nil).
		WithDetails(map[string]interface{}{"status": 500})
	if got := StatusCode(fmt.Errorf("outer: %w", err)); got != 500 {
		t.Errorf("got status %d, want 500", got)
	}
	if got := StatusCode(fmt.Errorf("plain")); got != 0 {
		t.Errorf("got status %d, want 0", got)
	}
}

func TestWithDetailsCopies(t *testing.T) {
	orig := New(ErrCategoryValidation, CodeMissingParameter, "core is required")
	detailed := orig.WithDetails(map[string]interface{}{"param": "core"})
	if orig.Details != nil {
		t.Error("WithDetails must not mutate the receiver")
	}
	if detailed.Details["param"] != "core" {
		t.Errorf("unexpected details: %v", detailed.Details)
	}
}

func TestStatusCodeThroughWrappingError(t *testing.T) {
	cause := NewTransportError(CodeBadStatus, "select returned 502", nil).
		WithDetails(map[string]interface{}{"status": 502})
	err := NewBenchmarkError(CodeWorkerFailed, "worker 0 failed", cause).
		WithDetails(map[string]interface{}{"worker": 0})
	if got := StatusCode(errors.Join(err, fmt.Errorf("other"))); got != 502 {
		t.Errorf("got status %d, want 502", got)
	}
}
