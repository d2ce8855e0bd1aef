package services

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/yoockh/intervyu/internal/models"
	"github.com/yoockh/intervyu/internal/providers/llm"
)

// FallbackQuestion is used when question generation returns nothing usable.
const FallbackQuestion = "Tell me about yourself."

// MaxQuestions caps a requested question count.
const MaxQuestions = 20

// ExtractResult is the tagged outcome of config extraction: either the
// model's answer was parsed (possibly with per-field defaults) or nothing
// usable came back and Config is all defaults.
type ExtractResult struct {
	Config models.InterviewConfig
	Parsed bool
	Reason string
}

func defaulted(reason string) ExtractResult {
	return ExtractResult{Config: models.DefaultInterviewConfig(), Reason: reason}
}

// ParseInterviewConfig resolves a model reply into an InterviewConfig.
// It never fails: anything it can't read falls back to the default.
func ParseInterviewConfig(raw string) ExtractResult {
	span, ok := firstBalanced(llm.StripCodeFences(raw), '{', '}')
	if !ok {
		return defaulted("no JSON object in response")
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(span), &fields); err != nil {
		return defaulted("invalid JSON object: " + err.Error())
	}

	cfg := models.DefaultInterviewConfig()
	if s := stringField(fields["role"]); s != "" {
		cfg.Role = s
	}
	if s := stringField(fields["level"]); s != "" {
		cfg.Level = s
	}
	cfg.TechStack = techStackField(fields["techstack"])
	if n, ok := countField(fields["amount"]); ok {
		cfg.QuestionCount = n
	}
	if k, ok := models.ParseInterviewKind(stringField(fields["type"])); ok {
		cfg.Kind = k
	}
	return ExtractResult{Config: cfg, Parsed: true}
}

func stringField(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// techStackField accepts a list or a single comma separated string.
func techStackField(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s := stringField(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		out = SplitTechStack(t)
	}
	return out
}

// SplitTechStack turns "Go, SQL ,  Redis" into [Go SQL Redis].
func SplitTechStack(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func countField(v any) (int, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	// range-check as a float; int() of an out-of-range value is undefined
	if math.IsNaN(f) || f < 1 {
		return 0, false
	}
	if f > MaxQuestions {
		return MaxQuestions, true
	}
	return int(f), true
}

// ParseQuestions reads a JSON array of questions. ok is false when the
// fallback question was substituted.
func ParseQuestions(raw string) (questions []string, ok bool) {
	text := llm.StripCodeFences(raw)

	var list []string
	if err := json.Unmarshal([]byte(text), &list); err != nil {
		span, found := firstBalanced(text, '[', ']')
		if !found || json.Unmarshal([]byte(span), &list) != nil {
			return []string{FallbackQuestion}, false
		}
	}

	out := make([]string, 0, len(list))
	for _, q := range list {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return []string{FallbackQuestion}, false
	}
	return out, true
}

// firstBalanced returns the first open...close span whose delimiters balance,
// ignoring delimiters inside JSON strings.
func firstBalanced(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// ConversationText is the extraction input: one "speaker: text" line per entry.
func ConversationText(t []models.TranscriptEntry) string {
	lines := make([]string, 0, len(t))
	for _, e := range t {
		lines = append(lines, string(e.Speaker)+": "+e.Text)
	}
	return strings.Join(lines, "\n")
}

// ScoringTranscript is the grading input: "- speaker: text\n" per entry.
func ScoringTranscript(t []models.TranscriptEntry) string {
	var sb strings.Builder
	for _, e := range t {
		sb.WriteString("- ")
		sb.WriteString(string(e.Speaker))
		sb.WriteString(": ")
		sb.WriteString(e.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}
