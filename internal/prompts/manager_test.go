package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerLoadsAllTemplates(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)
	assert.Equal(t, []string{ExtractConfig, GenerateQuestions, Interviewer, ScoreFeedback}, m.Names())
}

func TestRenderSubstitutesVars(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	tpl, err := m.Render(GenerateQuestions, map[string]string{
		"amount":    "3",
		"role":      "Backend Engineer",
		"level":     "Senior",
		"type":      "technical",
		"techstack": "Go, SQL",
	})
	require.NoError(t, err)
	assert.Contains(t, tpl.User, "Generate 3 interview questions.")
	assert.Contains(t, tpl.User, "Tech stack: Go, SQL")
	assert.NotContains(t, tpl.User, "{{")
	assert.Contains(t, tpl.System, "JSON array")
}

func TestRenderLeavesUnknownPlaceholders(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	tpl, err := m.Render(Interviewer, nil)
	require.NoError(t, err)
	assert.Contains(t, tpl.System, "{{questions}}")
	assert.Equal(t, "Interviewer", tpl.Name)
	assert.NotEmpty(t, tpl.FirstMessage)
}

func TestRenderUnknownTemplate(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	_, err = m.Render("missing", nil)
	assert.Error(t, err)
}

func TestScoreFeedbackIsStrict(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	tpl, err := m.Render(ScoreFeedback, map[string]string{"transcript": "- user: hi\n"})
	require.NoError(t, err)
	assert.Contains(t, tpl.User, "Don't be lenient")
	assert.Contains(t, tpl.User, "- user: hi")
	for _, c := range []string{"Communication Skills", "Technical Knowledge", "Problem-Solving", "Cultural & Role Fit", "Confidence & Clarity"} {
		assert.Contains(t, tpl.User, c)
	}
}
