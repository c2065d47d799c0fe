package llm

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"authentication", &AuthenticationError{}, false},
		{"invalid request", &InvalidRequestError{}, false},
		{"context length", &ContextLengthError{}, false},
		{"content filter", &ContentFilterError{}, false},
		{"configuration", &ConfigurationError{}, false},
		{"abort", &AbortError{}, false},
		{"rate limit", &RateLimitError{}, true},
		{"server", &ServerError{}, true},
		{"timeout", &TimeoutError{}, true},
		{"network", &NetworkError{}, true},
		{"provider retryable", &ProviderError{Retryable: true}, true},
		{"provider not retryable", &ProviderError{Retryable: false}, false},
		{"unknown", errors.New("mystery"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%T) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClientErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &NetworkError{ClientError{Message: "request failed", Cause: cause}}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
	if got := err.Error(); got != "request failed: root cause" {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestProviderErrorMessage(t *testing.T) {
	err := &RateLimitError{ProviderError{
		ClientError: ClientError{Message: "too many requests"},
		Provider:    "openai",
		StatusCode:  429,
		Retryable:   true,
	}}
	got := err.Error()
	want := "[openai] too many requests (status=429, retryable=true)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWrappedProviderError(t *testing.T) {
	inner := &ServerError{ProviderError{
		ClientError: ClientError{Message: "upstream 500"},
		Provider:    "anthropic",
		StatusCode:  500,
		Retryable:   true,
	}}
	wrapped := fmt.Errorf("completion failed: %w", inner)

	var se *ServerError
	if !errors.As(wrapped, &se) {
		t.Fatal("expected errors.As to recover ServerError through wrapping")
	}
	if se.StatusCode != 500 {
		t.Errorf("expected status 500, got %d", se.StatusCode)
	}
}
