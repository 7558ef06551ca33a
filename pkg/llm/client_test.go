package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, true},
		{"server error", &openai.APIError{HTTPStatusCode: http.StatusBadGateway}, true},
		{"bad request", &openai.APIError{HTTPStatusCode: http.StatusBadRequest}, false},
		{"auth failure", &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"transport timeout", timeoutErr{}, true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryable(tt.err))
		})
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := New()
	assert.Error(t, err)
}
