package llm

import (
	"context"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
)

const vertexProvider = "vertex"

// VertexGemini serves the same Gemini models through Vertex AI, for
// deployments that authenticate with a GCP service account instead of an API key.
type VertexGemini struct {
	client    *vertexgenai.Client
	modelName string
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, &ProviderError{Provider: vertexProvider, Code: ErrCodeAPIKey, Message: "failed to create Vertex AI client", Err: err}
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &VertexGemini{client: c, modelName: modelName}, nil
}

func (v *VertexGemini) Name() string { return vertexProvider }

func (v *VertexGemini) Close() error { return v.client.Close() }

// model returns a fresh handle; GenerativeModel carries per-request config.
func (v *VertexGemini) model(system string) *vertexgenai.GenerativeModel {
	m := v.client.GenerativeModel(v.modelName)
	if system != "" {
		m.SystemInstruction = &vertexgenai.Content{Parts: []vertexgenai.Part{vertexgenai.Text(system)}}
	}
	return m
}

func (v *VertexGemini) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	m := v.model(req.System)
	m.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		m.SetMaxOutputTokens(req.MaxTokens)
	}
	return v.generate(ctx, m, req.Prompt)
}

func (v *VertexGemini) GenerateObject(ctx context.Context, req ObjectRequest, dst any) error {
	m := v.model(req.System)
	m.SetTemperature(0)
	m.ResponseMIMEType = "application/json"
	m.ResponseSchema = toVertexSchema(req.Schema)

	text, err := v.generate(ctx, m, req.Prompt)
	if err != nil {
		return err
	}
	return decodeObject(vertexProvider, text, dst)
}

func (v *VertexGemini) generate(ctx context.Context, m *vertexgenai.GenerativeModel, prompt string) (string, error) {
	resp, err := m.GenerateContent(ctx, vertexgenai.Text(prompt))
	if err != nil {
		return "", upstreamError(vertexProvider, "content generation failed", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		break
	}
	if sb.Len() == 0 {
		return "", &ProviderError{Provider: vertexProvider, Code: ErrCodeBadResponse, Message: "empty response generated"}
	}
	return sb.String(), nil
}

func toVertexSchema(s *Schema) *vertexgenai.Schema {
	if s == nil {
		return nil
	}
	out := &vertexgenai.Schema{
		Type:        vertexType(s.Type),
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Items:       toVertexSchema(s.Items),
	}
	if s.Minimum != nil {
		out.Minimum = *s.Minimum
	}
	if s.Maximum != nil {
		out.Maximum = *s.Maximum
	}
	if s.MinItems != nil {
		out.MinItems = *s.MinItems
	}
	if s.MaxItems != nil {
		out.MaxItems = *s.MaxItems
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*vertexgenai.Schema, len(s.Properties))
		for k, p := range s.Properties {
			out.Properties[k] = toVertexSchema(p)
		}
	}
	return out
}

func vertexType(t SchemaType) vertexgenai.Type {
	switch t {
	case TypeObject:
		return vertexgenai.TypeObject
	case TypeArray:
		return vertexgenai.TypeArray
	case TypeInteger:
		return vertexgenai.TypeInteger
	case TypeNumber:
		return vertexgenai.TypeNumber
	case TypeBoolean:
		return vertexgenai.TypeBoolean
	default:
		return vertexgenai.TypeString
	}
}
