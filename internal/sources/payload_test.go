package sources

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "datedriven/internal/common/errors"
	"datedriven/internal/keydates"
)

const aliReply = `{
  "national_event": {"name": "Black History Month", "date": "February 1"},
  "key_event_1": {"name": "Ali Birthday", "date": "January 17"},
  "key_event_2": {"name": "Rumble in the Jungle", "date": "Oct 30"},
  "key_event_3": null,
  "reasoning": "Ali's birthday drives searches."
}`

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "Here you go:\n```json\n{\"a\":1}\n```\nEnjoy", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around object", `Sure! {"a":1} Hope that helps.`, `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.in))
		})
	}
}

func TestParsePayload(t *testing.T) {
	cands, err := parsePayload("claude", "```json\n"+aliReply+"\n```")
	require.NoError(t, err)
	require.Len(t, cands, 3)

	assert.Equal(t, keydates.Candidate{
		Label:    "Black History Month",
		Date:     keydates.MonthDay{Month: time.February, Day: 1},
		Source:   "claude",
		Category: keydates.CategoryNational,
	}, cands[0])
	assert.Equal(t, "Ali Birthday", cands[1].Label)
	assert.Equal(t, keydates.CategoryKey, cands[1].Category)
	assert.Equal(t, keydates.MonthDay{Month: time.October, Day: 30}, cands[2].Date)
}

func TestParsePayload_SkipsUnparseableDates(t *testing.T) {
	cands, err := parsePayload("grok", `{
		"national_event": {"name": "Spring", "date": "sometime in spring"},
		"key_event_1": {"name": "Earth Day", "date": "04/22"}
	}`)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "Earth Day", cands[0].Label)
}

func TestParsePayload_EmptyObjectIsNotAnError(t *testing.T) {
	cands, err := parsePayload("openai", `{"reasoning": "nothing relevant"}`)
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestParsePayload_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not json", "I could not find any dates."},
		{"truncated", `{"national_event": {"name": "X", "date": "May 1"`},
		{"array", `[{"name": "X", "date": "May 1"}]`},
		{"wrong field type", `{"key_event_1": {"name": 42, "date": "May 1"}}`},
		{"missing date", `{"key_event_1": {"name": "Ali Birthday"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parsePayload("gemini", tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrSourceMalformedResponse), err.Error())
		})
	}
}

func TestPrompt_Render(t *testing.T) {
	p, err := NewPrompt("")
	require.NoError(t, err)

	out, err := p.Render(keydates.Item{Name: "Ali Print", Subject: "Muhammad Ali", Context: "American boxer"})
	require.NoError(t, err)
	assert.Contains(t, out, "Item: Ali Print")
	assert.Contains(t, out, "Subject/Theme: Muhammad Ali")
	assert.Contains(t, out, "Context: American boxer")

	out, err = p.Render(keydates.Item{Name: "Ali Print", Subject: "Muhammad Ali"})
	require.NoError(t, err)
	assert.NotContains(t, out, "Context:")

	_, err = NewPrompt("{{.Broken")
	assert.Error(t, err)
}
