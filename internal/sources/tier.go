package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	apperrors "datedriven/internal/common/errors"
	"datedriven/internal/common/validation"
	"datedriven/internal/pricing"
)

// tierPromptTemplate asks a model to grade how much an event should move the
// price of an item.
const tierPromptTemplate = `You are a pricing analyst for collectibles. Classify this event's significance for selling this item.

ITEM: {{.ItemName}}
{{- if .Subject}}
SUBJECT: {{.Subject}}
{{- end}}
EVENT: {{.EventName}}
EVENT DATE: {{.EventDate}}

TIERS:
- MINOR: loosely related awareness days, minor mentions, tangential connections
- MEDIUM: artist or subject birthdays, release anniversaries, related cultural events
- MAJOR: death anniversaries, significant milestones (25th, 40th), documentary releases
- PEAK: once-in-a-lifetime events (50th anniversaries), major auction sales, viral cultural moments

Respond with ONLY a JSON object:
{"tier": "MINOR|MEDIUM|MAJOR|PEAK", "confidence": 0.0-1.0, "reasoning": "brief explanation"}`

var tierPrompt = template.Must(template.New("tier").Parse(tierPromptTemplate))

var tierPayloadSchema = validation.MustCompile(`{
  "type": "object",
  "properties": {
    "tier": {"type": "string"},
    "confidence": {"type": ["number", "null"]},
    "reasoning": {"type": ["string", "null"]}
  },
  "required": ["tier"]
}`)

// defaultTierConfidence is assumed when a model omits its confidence.
const defaultTierConfidence = 0.7

type completer interface {
	ID() string
	complete(ctx context.Context, text string) (string, error)
}

// TierClassifier grades events for the pricing tier vote through one model
// backend.
type TierClassifier struct {
	backend completer
}

func (c *TierClassifier) ID() string { return c.backend.ID() }

func (c *TierClassifier) ClassifyTier(ctx context.Context, q pricing.TierQuery) (pricing.TierVote, error) {
	var buf bytes.Buffer
	err := tierPrompt.Execute(&buf, map[string]string{
		"ItemName":  q.ItemName,
		"Subject":   q.Subject,
		"EventName": q.Event.Label,
		"EventDate": q.EventDate.Format("January 2, 2006"),
	})
	if err != nil {
		return pricing.TierVote{}, fmt.Errorf("render tier prompt: %w", err)
	}

	reply, err := c.backend.complete(ctx, buf.String())
	if err != nil {
		return pricing.TierVote{}, err
	}
	return parseTierVote(c.ID(), reply)
}

type tierPayload struct {
	Tier       string   `json:"tier"`
	Confidence *float64 `json:"confidence"`
	Reasoning  *string  `json:"reasoning"`
}

func parseTierVote(source, text string) (pricing.TierVote, error) {
	doc := []byte(extractJSON(text))
	if !json.Valid(doc) {
		return pricing.TierVote{}, apperrors.NewSourceMalformedResponseError(source, errors.New("reply is not valid JSON"))
	}
	res, err := tierPayloadSchema.ValidateJSON(doc)
	if err != nil {
		return pricing.TierVote{}, apperrors.NewSourceMalformedResponseError(source, err)
	}
	if !res.Valid {
		return pricing.TierVote{}, apperrors.NewSourceMalformedResponseError(source,
			fmt.Errorf("schema: %s", strings.Join(res.GetErrorMessages(), "; ")))
	}

	var p tierPayload
	if err := json.Unmarshal(doc, &p); err != nil {
		return pricing.TierVote{}, apperrors.NewSourceMalformedResponseError(source, err)
	}
	tier, err := pricing.ParseTier(p.Tier)
	if err != nil {
		return pricing.TierVote{}, apperrors.NewSourceMalformedResponseError(source, err)
	}

	vote := pricing.TierVote{Source: source, Tier: tier, Confidence: defaultTierConfidence}
	if p.Confidence != nil {
		vote.Confidence = clamp01(*p.Confidence)
	}
	if p.Reasoning != nil {
		vote.Reasoning = strings.TrimSpace(*p.Reasoning)
	}
	return vote, nil
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
