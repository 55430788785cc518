// Package sources implements the date-suggestion backends queried by the
// keydates orchestrator: hosted language models and Wikipedia.
package sources

import (
	"bytes"
	"fmt"
	"text/template"

	"datedriven/internal/keydates"
)

// DefaultPromptTemplate asks a model for a national event plus up to three
// item-specific events in the payload shape parsePayload understands.
const DefaultPromptTemplate = `Find calendar dates relevant to listing and promoting this collectible artwork.

Item: {{.Name}}
Subject/Theme: {{.Subject}}
{{- if .Context}}
Context: {{.Context}}
{{- end}}

Return JSON only, in this shape:
{
  "national_event": {"name": "event name", "date": "Month Day"},
  "key_event_1": {"name": "event name", "date": "Month Day"},
  "key_event_2": {"name": "event name", "date": "Month Day"},
  "key_event_3": {"name": "event name", "date": "Month Day"},
  "reasoning": "why these dates matter"
}

Focus on anniversaries, birthdays, cultural events, political events and art world dates.`

// Prompt renders the per-item request text shared by the model backends.
type Prompt struct {
	tmpl *template.Template
}

// NewPrompt parses text, falling back to DefaultPromptTemplate when empty.
func NewPrompt(text string) (*Prompt, error) {
	if text == "" {
		text = DefaultPromptTemplate
	}
	tmpl, err := template.New("prompt").Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return &Prompt{tmpl: tmpl}, nil
}

func (p *Prompt) Render(item keydates.Item) (string, error) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, item); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}
