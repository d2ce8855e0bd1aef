package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	groqProvider       = "groq"
	groqDefaultBaseURL = "https://api.groq.com/openai/v1"
	groqDefaultModel   = "llama-3.1-8b-instant"
	groqRequestTimeout = 60 * time.Second
)

type GroqConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Groq talks to the OpenAI-compatible chat completions endpoint.
type Groq struct {
	client *openai.Client
	model  string
}

func NewGroq(cfg GroqConfig) (*Groq, error) {
	if cfg.APIKey == "" {
		return nil, &ProviderError{Provider: groqProvider, Code: ErrCodeAPIKey, Message: "GROQ_API_KEY is not set"}
	}
	if cfg.Model == "" {
		cfg.Model = groqDefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = groqDefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: groqRequestTimeout}
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	clientCfg.HTTPClient = cfg.HTTPClient

	return &Groq{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

func (g *Groq) Name() string { return groqProvider }

func (g *Groq) Close() error { return nil }

func (g *Groq) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return g.chat(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages(req.System, req.Prompt),
		Temperature: req.Temperature,
		MaxTokens:   int(req.MaxTokens),
	})
}

// GenerateObject uses JSON mode; the schema is embedded in the system prompt
// since the endpoint does not take one.
func (g *Groq) GenerateObject(ctx context.Context, req ObjectRequest, dst any) error {
	system := req.System
	if req.Schema != nil {
		system = strings.TrimSpace(system + "\n\nRespond only with a JSON object matching this JSON schema:\n" + req.Schema.JSON())
	}
	text, err := g.chat(ctx, openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: messages(system, req.Prompt),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return err
	}
	return decodeObject(groqProvider, text, dst)
}

func messages(system, prompt string) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	return append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})
}

func (g *Groq) chat(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyGroqError(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &ProviderError{Provider: groqProvider, Code: ErrCodeBadResponse, Message: "no completion returned"}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// classifyGroqError maps the client's API and request errors onto provider codes by HTTP status.
func classifyGroqError(err error) error {
	var (
		status int
		detail string
	)
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status, detail = apiErr.HTTPStatusCode, apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
		if reqErr.Err != nil {
			detail = reqErr.Err.Error()
		}
	default:
		return upstreamError(groqProvider, "chat request failed", err)
	}

	msg := fmt.Sprintf("status %d", status)
	if detail != "" {
		msg = fmt.Sprintf("status %d: %s", status, detail)
	}

	code := ErrCodeServiceDown
	switch {
	case status == http.StatusTooManyRequests:
		code = ErrCodeRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = ErrCodeAPIKey
	case status >= http.StatusBadRequest && status < http.StatusInternalServerError:
		code = ErrCodeInvalidInput
	}
	return &ProviderError{Provider: groqProvider, Code: code, Message: msg, Err: err}
}
