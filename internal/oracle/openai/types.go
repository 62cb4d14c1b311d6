package openai

import (
	"encoding/json"
	"strings"

	"github.com/tjfontaine/harassment-moderator/internal/core/domain"
)

// ChatCompletionRequest is the subset of the chat completions request the
// oracle sends.
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse represents a chat completion response.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice represents a completion choice.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ErrorResponse represents an OpenAI API error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// APIError contains error details.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// ToCanonical converts the upstream error to a domain error. The HTTP status
// decides the type unless the body names something more specific.
func (e *APIError) ToCanonical(status int) *domain.APIError {
	errType := domain.ErrorTypeForStatus(status)
	switch {
	case e.Code == "rate_limit_exceeded" || e.Type == "rate_limit_error":
		errType = domain.ErrorTypeRateLimit
	case e.Code == "invalid_api_key" || e.Type == "authentication_error":
		errType = domain.ErrorTypeAuthentication
	case strings.Contains(strings.ToLower(e.Message), "overloaded"):
		errType = domain.ErrorTypeOverloaded
	}
	apiErr := domain.NewAPIError(errType, e.Message).WithStatusCode(status)
	if e.Code != "" {
		apiErr.Code = domain.ErrorCode(e.Code)
	}
	return apiErr
}

// ParseErrorResponse attempts to parse an error response from JSON.
func ParseErrorResponse(data []byte) (*APIError, error) {
	var errResp ErrorResponse
	if err := json.Unmarshal(data, &errResp); err != nil {
		return nil, err
	}
	if errResp.Error == nil {
		return nil, nil
	}
	return errResp.Error, nil
}
