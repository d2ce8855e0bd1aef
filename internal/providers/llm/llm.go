package llm

import (
	"context"
	"errors"
	"strings"
)

// CompletionRequest is a free-form text completion.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int32
}

// ObjectRequest asks for a JSON object matching Schema.
type ObjectRequest struct {
	System string
	Prompt string
	Schema *Schema
}

type Provider interface {
	// Complete returns the raw text of a completion.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// GenerateObject decodes a schema-constrained completion into dst.
	GenerateObject(ctx context.Context, req ObjectRequest, dst any) error
	Name() string
	Close() error
}

// ProviderError is returned by every provider for upstream failures.
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + " error: " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Provider + " error: " + e.Message
}

func (e *ProviderError) Unwrap() error { return e.Err }

const (
	ErrCodeAPIKey       = "invalid_api_key"
	ErrCodeRateLimit    = "rate_limit_exceeded"
	ErrCodeServiceDown  = "service_unavailable"
	ErrCodeInvalidInput = "invalid_input"
	ErrCodeBadResponse  = "bad_response"
)

// IsRateLimit reports whether err is an upstream quota/rate-limit failure.
func IsRateLimit(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeRateLimit
	}
	return false
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota")
}

// upstreamError classifies an SDK error into a ProviderError.
func upstreamError(provider, msg string, err error) error {
	code := ErrCodeServiceDown
	if isRateLimitError(err) {
		code = ErrCodeRateLimit
	}
	return &ProviderError{Provider: provider, Code: code, Message: msg, Err: err}
}
