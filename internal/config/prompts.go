package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// defaultAssistantName is used when prompts.yaml leaves assistant.name empty.
const defaultAssistantName = "Pack"

// Persona names the assistant as it introduces itself.
type Persona struct {
	Name string `yaml:"name"`
}

// ChatPrompt is the system prompt for free-form chat. System may reference
// {{.AssistantName}}.
type ChatPrompt struct {
	System string `yaml:"system"`
}

// Prompts is the assistant prompt file.
type Prompts struct {
	Assistant Persona    `yaml:"assistant"`
	Chat      ChatPrompt `yaml:"chat"`
}

// promptVars are the placeholders available to every prompt template.
type promptVars struct {
	AssistantName string
}

// LoadPrompts reads and validates the prompt file at path.
func LoadPrompts(path string) (*Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	return ParsePrompts(data)
}

// ParsePrompts decodes prompt YAML and checks that the chat prompt renders.
func ParsePrompts(data []byte) (*Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	if strings.TrimSpace(p.Chat.System) == "" {
		return nil, errors.New("prompts: chat.system is required")
	}
	if p.Assistant.Name == "" {
		p.Assistant.Name = defaultAssistantName
	}
	if _, err := p.ChatSystem(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ChatSystem renders the chat system prompt for this persona.
func (p *Prompts) ChatSystem() (string, error) {
	return RenderPrompt(p.Chat.System, promptVars{AssistantName: p.Assistant.Name})
}

// RenderPrompt executes tmpl against data. Unknown map keys are errors so a
// typo in prompts.yaml fails at startup rather than being read aloud.
func RenderPrompt(tmpl string, data any) (string, error) {
	t, err := template.New("prompt").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse prompt template: %w", err)
	}

	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render prompt template: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}
