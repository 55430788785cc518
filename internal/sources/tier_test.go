package sources

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "datedriven/internal/common/errors"
	"datedriven/internal/keydates"
	"datedriven/internal/pricing"
)

var tierQuery = pricing.TierQuery{
	ItemID:    "ali",
	ItemName:  "Shepard Fairey Muhammad Ali Signed Print",
	Subject:   "Muhammad Ali",
	Event:     keydates.RankedDate{Label: "Muhammad Ali Death Anniversary", Date: keydates.MonthDay{Month: time.June, Day: 3}},
	EventDate: time.Date(2026, time.June, 3, 0, 0, 0, 0, time.UTC),
}

func TestTierClassifier_Claude(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req claudeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "EVENT: Muhammad Ali Death Anniversary")
		assert.Contains(t, req.Messages[0].Content, "EVENT DATE: June 3, 2026")

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": "```json\n{\"tier\": \"major\", \"confidence\": 0.85, \"reasoning\": \"10th death anniversary\"}\n```"}},
		})
	}))
	defer srv.Close()

	c := &TierClassifier{backend: NewClaudeSource(sourceConfig(srv.URL), testPrompt(t), nil)}
	vote, err := c.ClassifyTier(context.Background(), tierQuery)
	require.NoError(t, err)
	assert.Equal(t, "claude", c.ID())
	assert.Equal(t, pricing.TierVote{Source: "claude", Tier: pricing.TierMajor, Confidence: 0.85, Reasoning: "10th death anniversary"}, vote)
}

func TestTierClassifier_ChatCompletions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": `Sure: {"tier": "PEAK"}`}},
			},
		})
	}))
	defer srv.Close()

	c := &TierClassifier{backend: NewOpenAISource(sourceConfig(srv.URL), testPrompt(t), nil)}
	vote, err := c.ClassifyTier(context.Background(), tierQuery)
	require.NoError(t, err)
	assert.Equal(t, pricing.TierPeak, vote.Tier)
	assert.Equal(t, defaultTierConfidence, vote.Confidence)
}

func TestTierClassifier_MissingKey(t *testing.T) {
	cfg := sourceConfig("http://127.0.0.1:0")
	cfg.APIKey = ""
	c := &TierClassifier{backend: NewGeminiSource(cfg, testPrompt(t), nil)}
	_, err := c.ClassifyTier(context.Background(), tierQuery)
	assert.True(t, errors.Is(err, apperrors.ErrSourceNotConfigured))
}

func TestParseTierVote(t *testing.T) {
	vote, err := parseTierVote("gemini", `{"tier": "minor", "confidence": 4, "reasoning": null}`)
	require.NoError(t, err)
	assert.Equal(t, pricing.TierMinor, vote.Tier)
	assert.Equal(t, 1.0, vote.Confidence)
	assert.Empty(t, vote.Reasoning)

	for _, reply := range []string{
		"not json at all",
		`{"confidence": 0.5}`,
		`{"tier": "LEGENDARY"}`,
		`{"tier": 3}`,
	} {
		_, err := parseTierVote("gemini", reply)
		assert.True(t, errors.Is(err, apperrors.ErrSourceMalformedResponse), reply)
	}
}
