package llm

import (
	"context"
	"fmt"
	"strings"
)

// Config selects and configures one provider.
type Config struct {
	Provider string // gemini | vertex | groq

	GeminiAPIKey string
	GeminiModel  string

	VertexProject  string
	VertexLocation string
	VertexModel    string

	GroqAPIKey  string
	GroqModel   string
	GroqBaseURL string
}

func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", geminiProvider:
		return NewGemini(ctx, GeminiConfig{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel})
	case vertexProvider:
		if cfg.VertexProject == "" {
			return nil, &ProviderError{Provider: vertexProvider, Code: ErrCodeAPIKey, Message: "VERTEX_PROJECT is not set"}
		}
		return NewVertexGemini(ctx, cfg.VertexProject, cfg.VertexLocation, cfg.VertexModel)
	case groqProvider:
		return NewGroq(GroqConfig{APIKey: cfg.GroqAPIKey, Model: cfg.GroqModel, BaseURL: cfg.GroqBaseURL})
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
