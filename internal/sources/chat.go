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

// ChatCompletionsSource speaks the OpenAI chat-completions protocol, which xAI's
// Grok endpoint also implements.
type ChatCompletionsSource struct {
	base
	prompt      *Prompt
	temperature float64
}

func NewOpenAISource(cfg config.SourceConfig, prompt *Prompt, client *httpclient.Client) *ChatCompletionsSource {
	return &ChatCompletionsSource{base: newBase("openai", cfg, client), prompt: prompt, temperature: 0.3}
}

func NewGrokSource(cfg config.SourceConfig, prompt *Prompt, client *httpclient.Client) *ChatCompletionsSource {
	return &ChatCompletionsSource{base: newBase("grok", cfg, client), prompt: prompt, temperature: 0.3}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (s *ChatCompletionsSource) Query(ctx context.Context, item keydates.Item) ([]keydates.Candidate, error) {
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

// complete sends one user message and returns the first choice.
func (s *ChatCompletionsSource) complete(ctx context.Context, text string) (string, error) {
	if err := s.requireKey(); err != nil {
		return "", err
	}
	req := chatRequest{
		Model:       s.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: text}},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.temperature,
	}
	headers := map[string]string{"Authorization": "Bearer " + s.cfg.APIKey}

	var resp chatResponse
	if err := s.http.DoJSON(ctx, http.MethodPost, s.cfg.BaseURL, headers, req, &resp); err != nil {
		return "", s.classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.NewSourceMalformedResponseError(s.id, errors.New("response has no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}
