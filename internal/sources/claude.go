package sources

import (
	"context"
	"errors"
	"net/http"

	"datedriven/internal/common/config"
	apperrors "datedriven/internal/common/errors"
	httpclient "datedriven/internal/common/http"
	"datedriven/internal/keydates"
)

const anthropicVersion = "2023-06-01"

// ClaudeSource queries the Anthropic Messages API.
type ClaudeSource struct {
	base
	prompt *Prompt
}

func NewClaudeSource(cfg config.SourceConfig, prompt *Prompt, client *httpclient.Client) *ClaudeSource {
	return &ClaudeSource{base: newBase("claude", cfg, client), prompt: prompt}
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (s *ClaudeSource) Query(ctx context.Context, item keydates.Item) ([]keydates.Candidate, error) {
	text, err := s.prompt.Render(item)
	if err != nil {
		return nil, err
	}
	reply, err := s.complete(ctx, text)
	if err != nil {
		return nil, err
	}
	return parsePayload(s.id, reply)
}

// complete sends one user message and returns the first text block.
func (s *ClaudeSource) complete(ctx context.Context, text string) (string, error) {
	if err := s.requireKey(); err != nil {
		return "", err
	}
	req := claudeRequest{
		Model:     s.cfg.Model,
		MaxTokens: s.cfg.MaxTokens,
		Messages:  []claudeMessage{{Role: "user", Content: text}},
	}
	headers := map[string]string{
		"x-api-key":         s.cfg.APIKey,
		"anthropic-version": anthropicVersion,
	}

	var resp claudeResponse
	if err := s.http.DoJSON(ctx, http.MethodPost, s.cfg.BaseURL, headers, req, &resp); err != nil {
		return "", s.classify(err)
	}
	for _, block := range resp.Content {
		if block.Type == "" || block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", apperrors.NewSourceMalformedResponseError(s.id, errors.New("response has no text content"))
}
