package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNewCarriesCodeAndMessage(t *testing.T) {
	err := New(CodeNotFound, "plan not found")
	if err.Code() != CodeNotFound {
		t.Fatalf("unexpected code %s", err.Code())
	}
	if err.Message() != "plan not found" {
		t.Fatalf("unexpected message %s", err.Message())
	}
	if err.Error() != "NOT_FOUND: plan not found" {
		t.Fatalf("unexpected error string %s", err.Error())
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := Wrap(CodeDependency, cause, "gateway request failed")
	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to survive errors.Is")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", err.Code())
	}
}

func TestAsUnwrapsThroughFmtErrorf(t *testing.T) {
	inner := New(CodeValidation, "bad input")
	wrapped := fmt.Errorf("handling request: %w", inner)
	typed := As(wrapped)
	if typed == nil {
		t.Fatalf("expected typed error through wrapping")
	}
	if typed.Code() != CodeValidation {
		t.Fatalf("unexpected code %s", typed.Code())
	}
	if As(stdErrors.New("plain")) != nil {
		t.Fatalf("plain error must not convert")
	}
}

func TestMetadataFor(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:    http.StatusBadRequest,
		CodeUnauthorized:  http.StatusUnauthorized,
		CodeNotFound:      http.StatusNotFound,
		CodeConflict:      http.StatusConflict,
		CodeStateConflict: http.StatusUnprocessableEntity,
		CodeInternal:      http.StatusInternalServerError,
		CodeDependency:    http.StatusServiceUnavailable,
	}
	for code, want := range cases {
		if got := MetadataFor(code).HTTPStatus; got != want {
			t.Fatalf("%s: expected %d, got %d", code, want, got)
		}
	}
	if MetadataFor(Code("BOGUS")).HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unknown code must fall back to internal")
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(New(CodeValidation, "bad input")) {
		t.Fatalf("validation errors are not retryable")
	}
	if !IsRetryable(New(CodeInternal, "boom")) {
		t.Fatalf("internal errors are retryable")
	}
	if !IsRetryable(stdErrors.New("untyped")) {
		t.Fatalf("untyped errors default to retryable")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(CodeValidation, "bad input").WithDetails(map[string]string{"field": "plan_id"})
	details, ok := err.Details().(map[string]string)
	if !ok || details["field"] != "plan_id" {
		t.Fatalf("unexpected details %v", err.Details())
	}
}
