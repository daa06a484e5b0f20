package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected", detailsOK: true},
		{code: CodeNetwork, status: http.StatusBadGateway, publicMsg: "remote server unreachable", retryable: true},
		{code: CodeStorage, status: http.StatusInternalServerError, publicMsg: "local storage failure", retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
	if wrapped.Error() != "CONFLICT: ctx: boom" {
		t.Fatalf("unexpected error string %q", wrapped.Error())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeForbidden, "no entry"))
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{name: "plain", err: stdErrors.New("dial tcp: refused"), want: ClassTransient},
		{name: "deadline", err: context.DeadlineExceeded, want: ClassTransient},
		{name: "unauthorized", err: New(CodeUnauthorized, "401"), want: ClassAuth},
		{name: "forbidden wrapped", err: fmt.Errorf("create order: %w", New(CodeForbidden, "403")), want: ClassAuth},
		{name: "validation", err: New(CodeValidation, "422"), want: ClassValidation},
		{name: "conflict", err: New(CodeConflict, "409"), want: ClassValidation},
		{name: "network", err: New(CodeNetwork, "timeout"), want: ClassTransient},
		{name: "dependency", err: New(CodeDependency, "503"), want: ClassTransient},
		{name: "storage", err: New(CodeStorage, "disk full"), want: ClassStorage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFromHTTPStatus(t *testing.T) {
	tests := map[int]Code{
		http.StatusUnauthorized:        CodeUnauthorized,
		http.StatusForbidden:           CodeForbidden,
		http.StatusBadRequest:          CodeValidation,
		http.StatusConflict:            CodeValidation,
		http.StatusUnprocessableEntity: CodeValidation,
		http.StatusNotFound:            CodeNotFound,
		http.StatusInternalServerError: CodeDependency,
		http.StatusBadGateway:          CodeDependency,
		http.StatusTooManyRequests:     CodeDependency,
	}
	for status, want := range tests {
		if got := FromHTTPStatus(status); got != want {
			t.Fatalf("FromHTTPStatus(%d) = %s, want %s", status, got, want)
		}
	}
}

func TestStorageWrapping(t *testing.T) {
	if Storage(nil, "x") != nil {
		t.Fatal("expected nil for nil error")
	}
	if err := Storage(context.Canceled, "x"); !stdErrors.Is(err, context.Canceled) || IsStorage(err) {
		t.Fatalf("context errors must pass through, got %v", err)
	}
	notFound := New(CodeNotFound, "missing")
	if err := Storage(notFound, "x"); As(err).Code() != CodeNotFound {
		t.Fatalf("coded errors must pass through, got %v", err)
	}
	if err := Storage(stdErrors.New("disk I/O error"), "write outbox"); !IsStorage(err) {
		t.Fatalf("expected storage class, got %v", err)
	}
}
