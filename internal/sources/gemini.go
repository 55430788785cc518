package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"datedriven/internal/common/config"
	apperrors "datedriven/internal/common/errors"
	httpclient "datedriven/internal/common/http"
	"datedriven/internal/keydates"
)

// GeminiSource queries Google's generateContent endpoint.
type GeminiSource struct {
	base
	prompt *Prompt
}

func NewGeminiSource(cfg config.SourceConfig, prompt *Prompt, client *httpclient.Client) *GeminiSource {
	return &GeminiSource{base: newBase("gemini", cfg, client), prompt: prompt}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (s *GeminiSource) endpoint() string {
	return fmt.Sprintf("%s/%s:generateContent", strings.TrimRight(s.cfg.BaseURL, "/"), url.PathEscape(s.cfg.Model))
}

func (s *GeminiSource) Query(ctx context.Context, item keydates.Item) ([]keydates.Candidate, error) {
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

// complete sends one prompt and returns the first candidate's first part.
func (s *GeminiSource) complete(ctx context.Context, text string) (string, error) {
	if err := s.requireKey(); err != nil {
		return "", err
	}
	var req geminiRequest
	req.Contents = []geminiContent{{Parts: []geminiPart{{Text: text}}}}
	req.GenerationConfig.MaxOutputTokens = s.cfg.MaxTokens

	var resp geminiResponse
	// Key goes in a header so it never appears in logged request URLs.
	headers := map[string]string{"x-goog-api-key": s.cfg.APIKey}
	if err := s.http.DoJSON(ctx, http.MethodPost, s.endpoint(), headers, req, &resp); err != nil {
		return "", s.classify(err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", apperrors.NewSourceMalformedResponseError(s.id, errors.New("response has no candidates"))
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
