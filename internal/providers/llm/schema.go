package llm

import (
	"encoding/json"
	"strings"
)

type SchemaType string

const (
	TypeObject  SchemaType = "object"
	TypeArray   SchemaType = "array"
	TypeString  SchemaType = "string"
	TypeInteger SchemaType = "integer"
	TypeNumber  SchemaType = "number"
	TypeBoolean SchemaType = "boolean"
)

// Schema is a provider-neutral subset of JSON Schema. Each provider converts
// it to its SDK's schema type.
type Schema struct {
	Type        SchemaType         `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Minimum     *float64           `json:"minimum,omitempty"`
	Maximum     *float64           `json:"maximum,omitempty"`
	MinItems    *int64             `json:"minItems,omitempty"`
	MaxItems    *int64             `json:"maxItems,omitempty"`
}

// JSON renders the schema for prompt-embedded instructions.
func (s *Schema) JSON() string {
	b, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// decodeObject strips code fences and decodes a model reply into dst.
func decodeObject(provider, text string, dst any) error {
	raw := StripCodeFences(text)
	if raw == "" {
		return &ProviderError{Provider: provider, Code: ErrCodeBadResponse, Message: "empty structured response"}
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return &ProviderError{Provider: provider, Code: ErrCodeBadResponse, Message: "structured response is not valid JSON", Err: err}
	}
	return nil
}

// StripCodeFences removes markdown ```json / ``` wrappers anywhere in s.
func StripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func float(v float64) *float64 { return &v }

func count(v int64) *int64 { return &v }

// Bounded returns an integer schema limited to [min, max].
func Bounded(description string, min, max float64) *Schema {
	return &Schema{Type: TypeInteger, Description: description, Minimum: float(min), Maximum: float(max)}
}

// StringList returns an array-of-strings schema with at least minItems entries.
func StringList(description string, minItems int64) *Schema {
	s := &Schema{Type: TypeArray, Description: description, Items: &Schema{Type: TypeString}}
	if minItems > 0 {
		s.MinItems = count(minItems)
	}
	return s
}
