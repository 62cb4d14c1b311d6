package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected string
	}{
		{
			name:     "error with type and message",
			err:      &APIError{Type: ErrorTypeInvalidRequest, Message: "bad request"},
			expected: "invalid_request: bad request",
		},
		{
			name:     "error with type, code, and message",
			err:      &APIError{Type: ErrorTypeRateLimit, Code: ErrorCodeRateLimitExceeded, Message: "rate limited"},
			expected: "rate_limit (rate_limit_exceeded): rate limited",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected int
	}{
		{"invalid request", &APIError{Type: ErrorTypeInvalidRequest}, http.StatusBadRequest},
		{"authentication", &APIError{Type: ErrorTypeAuthentication}, http.StatusUnauthorized},
		{"not found", &APIError{Type: ErrorTypeNotFound}, http.StatusNotFound},
		{"rate limit", &APIError{Type: ErrorTypeRateLimit}, http.StatusTooManyRequests},
		{"overloaded", &APIError{Type: ErrorTypeOverloaded}, http.StatusServiceUnavailable},
		{"oracle unavailable", &APIError{Type: ErrorTypeOracleUnavailable}, http.StatusServiceUnavailable},
		{"server", &APIError{Type: ErrorTypeServer}, http.StatusInternalServerError},
		{"explicit status wins", &APIError{Type: ErrorTypeServer, StatusCode: http.StatusBadGateway}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.expected {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"marked", Transient(errors.New("boom")), true},
		{"wrapped marked", fmt.Errorf("call: %w", Transient(errors.New("boom"))), true},
		{"rate limit", ErrRateLimit("slow down"), true},
		{"overloaded", ErrOverloaded("busy"), true},
		{"server", ErrServer("oops"), true},
		{"auth", ErrAuthentication("bad key"), false},
		{"invalid", ErrInvalidRequest("bad prompt"), false},
		{"net timeout", fmt.Errorf("dial: %w", timeoutErr{}), true},
		{"context canceled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorTypeForStatus(t *testing.T) {
	tests := map[int]ErrorType{
		http.StatusTooManyRequests:     ErrorTypeRateLimit,
		http.StatusUnauthorized:        ErrorTypeAuthentication,
		http.StatusForbidden:           ErrorTypeAuthentication,
		http.StatusNotFound:            ErrorTypeNotFound,
		http.StatusServiceUnavailable:  ErrorTypeOverloaded,
		http.StatusInternalServerError: ErrorTypeServer,
		http.StatusBadRequest:          ErrorTypeInvalidRequest,
	}
	for status, want := range tests {
		if got := ErrorTypeForStatus(status); got != want {
			t.Errorf("ErrorTypeForStatus(%d) = %s, want %s", status, got, want)
		}
	}
}

func TestOracleUnavailableError(t *testing.T) {
	cause := ErrRateLimit("quota")
	err := fmt.Errorf("stage: %w", &OracleUnavailableError{Attempts: 5, Err: cause})

	if !IsOracleUnavailable(err) {
		t.Fatal("expected IsOracleUnavailable to be true")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable through Unwrap")
	}

	apiErr := AsAPIError(err)
	if apiErr.Type != ErrorTypeOracleUnavailable {
		t.Errorf("Type = %s, want %s", apiErr.Type, ErrorTypeOracleUnavailable)
	}
	if apiErr.HTTPStatusCode() != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", apiErr.HTTPStatusCode())
	}
}

func TestAsAPIError_Fallback(t *testing.T) {
	apiErr := AsAPIError(errors.New("disk on fire"))
	if apiErr.Type != ErrorTypeServer {
		t.Errorf("Type = %s, want server", apiErr.Type)
	}

	invalid := ErrInvalidRequest("empty")
	if got := AsAPIError(fmt.Errorf("wrap: %w", invalid)); got != invalid {
		t.Errorf("expected wrapped APIError to be returned as is")
	}
}
