package llm

import (
	"context"
	"net/http"

	"google.golang.org/genai"
)

const geminiProvider = "gemini"

type GeminiConfig struct {
	APIKey string
	Model  string

	// BaseURL and HTTPClient override the Gemini endpoint (tests, proxies).
	BaseURL    string
	HTTPClient *http.Client
}

// Gemini talks to the Gemini API through google.golang.org/genai.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, &ProviderError{Provider: geminiProvider, Code: ErrCodeAPIKey, Message: "GEMINI_API_KEY is not set"}
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.HTTPClient != nil {
		cc.HTTPClient = cfg.HTTPClient
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL, APIVersion: "v1beta"}
	}

	c, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, &ProviderError{Provider: geminiProvider, Code: ErrCodeAPIKey, Message: "failed to create Gemini client", Err: err}
	}
	return &Gemini{client: c, model: cfg.Model}, nil
}

func (g *Gemini) Name() string { return geminiProvider }

func (g *Gemini) Close() error { return nil }

func (g *Gemini) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = req.MaxTokens
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	return g.generate(ctx, req.Prompt, cfg)
}

func (g *Gemini) GenerateObject(ctx context.Context, req ObjectRequest, dst any) error {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
		ResponseSchema:   toGenaiSchema(req.Schema),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	text, err := g.generate(ctx, req.Prompt, cfg)
	if err != nil {
		return err
	}
	return decodeObject(geminiProvider, text, dst)
}

func (g *Gemini) generate(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", upstreamError(geminiProvider, "content generation failed", err)
	}
	if resp == nil {
		return "", &ProviderError{Provider: geminiProvider, Code: ErrCodeBadResponse, Message: "no response generated"}
	}
	text := resp.Text()
	if text == "" {
		return "", &ProviderError{Provider: geminiProvider, Code: ErrCodeBadResponse, Message: "empty response generated"}
	}
	return text, nil
}

func toGenaiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genaiType(s.Type),
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Minimum:     s.Minimum,
		Maximum:     s.Maximum,
		MinItems:    s.MinItems,
		MaxItems:    s.MaxItems,
		Items:       toGenaiSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = toGenaiSchema(v)
		}
	}
	return out
}

func genaiType(t SchemaType) genai.Type {
	switch t {
	case TypeObject:
		return genai.TypeObject
	case TypeArray:
		return genai.TypeArray
	case TypeInteger:
		return genai.TypeInteger
	case TypeNumber:
		return genai.TypeNumber
	case TypeBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}
