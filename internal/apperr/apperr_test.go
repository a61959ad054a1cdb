package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestHTTPStatus(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "plain error is internal",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			code:   CodeInternal,
		},
		{
			name:   "explicit code wins",
			err:    New("upstream down", goerrors.CategoryExternal, http.StatusServiceUnavailable, CodeUpstreamUnavailable),
			status: http.StatusServiceUnavailable,
			code:   CodeUpstreamUnavailable,
		},
		{
			name:   "category fallback for validation",
			err:    goerrors.New("bad", goerrors.CategoryValidation),
			status: http.StatusBadRequest,
			code:   CodeBadInput,
		},
		{
			name:   "category fallback for rate limit",
			err:    goerrors.New("slow down", goerrors.CategoryRateLimit),
			status: http.StatusTooManyRequests,
			code:   CodeRateLimited,
		},
		{
			name:   "wrapped rich error is found",
			err:    fmt.Errorf("dispatch: %w", New("rejected", goerrors.CategoryAuth, http.StatusInternalServerError, CodeCredentialsRejected)),
			status: http.StatusInternalServerError,
			code:   CodeCredentialsRejected,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HTTPStatus(tc.err); got != tc.status {
				t.Errorf("Expected status %d, got %d", tc.status, got)
			}
			if got := Code(tc.err); got != tc.code {
				t.Errorf("Expected code %q, got %q", tc.code, got)
			}
		})
	}
}

func TestPublicMessage_HidesUpstreamDetails(t *testing.T) {
	err := Wrap(errors.New("dial tcp 10.0.0.1:443: connection refused"), goerrors.CategoryExternal,
		"whatsapp: send failed", http.StatusServiceUnavailable, CodeUpstreamUnavailable)

	msg := PublicMessage(err)
	if msg != "WhatsApp service is currently unavailable" {
		t.Errorf("Expected generic upstream message, got %q", msg)
	}
}

func TestFieldErrors(t *testing.T) {
	err := goerrors.NewValidation("validation failed",
		goerrors.FieldError{Field: "nombre", Message: "nombre is required"},
		goerrors.FieldError{Field: "empresa", Message: "empresa is required"},
	)

	fields := FieldErrors(err)
	if len(fields) != 2 {
		t.Fatalf("Expected 2 field errors, got %d", len(fields))
	}
	if fields[0].Field != "nombre" {
		t.Errorf("Expected first field 'nombre', got %q", fields[0].Field)
	}

	if FieldErrors(errors.New("plain")) != nil {
		t.Error("Expected no field errors for plain error")
	}
}
