package prompts

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var templateFS embed.FS

const (
	ExtractConfig     = "extract_config"
	GenerateQuestions = "generate_questions"
	ScoreFeedback     = "score_feedback"
	Interviewer       = "interviewer"
)

// Template is one prompt file. Persona fields are only set on the
// interviewer template.
type Template struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`

	Name         string `yaml:"name"`
	FirstMessage string `yaml:"first_message"`
	Voice        string `yaml:"voice"`
	Model        string `yaml:"model"`
}

type Manager struct {
	templates map[string]Template
}

func NewManager() (*Manager, error) {
	m := &Manager{templates: make(map[string]Template)}
	if err := m.load(); err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}
	return m, nil
}

// Render returns the named template with every {{Key}} replaced by vars[Key].
// Placeholders without a value are left as they are.
func (m *Manager) Render(name string, vars map[string]string) (Template, error) {
	t, ok := m.templates[name]
	if !ok {
		return Template{}, fmt.Errorf("template not found: %s", name)
	}
	if len(vars) == 0 {
		return t, nil
	}

	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	r := strings.NewReplacer(pairs...)

	t.System = r.Replace(t.System)
	t.User = r.Replace(t.User)
	t.FirstMessage = r.Replace(t.FirstMessage)
	return t, nil
}

func (m *Manager) Names() []string {
	out := make([]string, 0, len(m.templates))
	for name := range m.templates {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) load() error {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return fmt.Errorf("failed to read templates directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		data, err := templateFS.ReadFile("templates/" + entry.Name())
		if err != nil {
			return fmt.Errorf("failed to read template file %s: %w", entry.Name(), err)
		}

		var t Template
		if err := yaml.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("failed to parse template file %s: %w", entry.Name(), err)
		}
		t.System = strings.TrimSpace(t.System)
		t.User = strings.TrimSpace(t.User)

		m.templates[strings.TrimSuffix(entry.Name(), ".yaml")] = t
	}
	return nil
}
