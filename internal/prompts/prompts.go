// Package prompts хранит шаблоны запросов к модели для каждого шага генерации.
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"

	"storyline-server/pkg/ai"

	"gopkg.in/yaml.v3"
)

// Имена шагов генерации. Совпадают с ключами файла шаблонов.
const (
	StepConcept   = "concept"
	StepStoryMap  = "story_map"
	StepChoices   = "choices"
	StepNextScene = "next_scene"
)

var requiredSteps = []string{StepConcept, StepStoryMap, StepChoices, StepNextScene}

//go:embed templates.yaml
var defaultTemplates []byte

// Data - значения, подставляемые в шаблоны.
type Data struct {
	StoryType    string
	Author       string
	Title        string
	WritingStyle string
	NodeNum      int
	StoryMapJSON string
	SceneContent string
	HistoryJSON  string
	ChoiceText   string
}

type templateSpec struct {
	System      string   `yaml:"system"`
	User        string   `yaml:"user"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   *int     `yaml:"max_tokens"`
	TopP        *float64 `yaml:"top_p"`
}

type compiled struct {
	system *template.Template
	user   *template.Template
	opts   ai.Options
}

// Set - скомпилированный набор шаблонов.
type Set struct {
	steps map[string]compiled
}

// Default возвращает встроенный набор шаблонов.
func Default() (*Set, error) {
	return Parse(defaultTemplates)
}

// LoadFile читает набор шаблонов из YAML файла. Пустой путь означает встроенный набор.
func LoadFile(path string) (*Set, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse разбирает YAML и компилирует шаблоны. Все шаги обязательны.
func Parse(raw []byte) (*Set, error) {
	var specs map[string]templateSpec
	if err := yaml.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("failed to parse prompts: %w", err)
	}

	set := &Set{steps: make(map[string]compiled, len(specs))}
	for _, name := range requiredSteps {
		spec, ok := specs[name]
		if !ok {
			return nil, fmt.Errorf("prompt %q is missing", name)
		}
		if spec.User == "" {
			return nil, fmt.Errorf("prompt %q has empty user template", name)
		}
		sys, err := template.New(name + ".system").Option("missingkey=error").Parse(spec.System)
		if err != nil {
			return nil, fmt.Errorf("prompt %q system template: %w", name, err)
		}
		usr, err := template.New(name + ".user").Option("missingkey=error").Parse(spec.User)
		if err != nil {
			return nil, fmt.Errorf("prompt %q user template: %w", name, err)
		}
		set.steps[name] = compiled{
			system: sys,
			user:   usr,
			opts:   ai.Options{Temperature: spec.Temperature, MaxTokens: spec.MaxTokens, TopP: spec.TopP},
		}
	}
	return set, nil
}

// Render строит запрос для шага.
func (s *Set) Render(step string, data Data) (ai.Prompt, ai.Options, error) {
	c, ok := s.steps[step]
	if !ok {
		return ai.Prompt{}, ai.Options{}, fmt.Errorf("unknown prompt %q", step)
	}
	var sys, usr bytes.Buffer
	if err := c.system.Execute(&sys, data); err != nil {
		return ai.Prompt{}, ai.Options{}, fmt.Errorf("render %s system: %w", step, err)
	}
	if err := c.user.Execute(&usr, data); err != nil {
		return ai.Prompt{}, ai.Options{}, fmt.Errorf("render %s user: %w", step, err)
	}
	return ai.Prompt{Name: step, System: sys.String(), User: usr.String()}, c.opts, nil
}
