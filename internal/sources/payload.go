package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apperrors "datedriven/internal/common/errors"
	"datedriven/internal/common/validation"
	"datedriven/internal/keydates"
)

// eventPayloadSchema accepts the model answer shape. Unknown keys such as
// "reasoning" are allowed; listed events may be null.
var eventPayloadSchema = validation.MustCompile(`{
  "type": "object",
  "definitions": {
    "event": {
      "type": ["object", "null"],
      "properties": {
        "name": {"type": "string"},
        "date": {"type": "string"}
      },
      "required": ["name", "date"]
    }
  },
  "properties": {
    "national_event": {"$ref": "#/definitions/event"},
    "key_event_1": {"$ref": "#/definitions/event"},
    "key_event_2": {"$ref": "#/definitions/event"},
    "key_event_3": {"$ref": "#/definitions/event"},
    "key_event_4": {"$ref": "#/definitions/event"},
    "key_event_5": {"$ref": "#/definitions/event"},
    "reasoning": {"type": ["string", "null"]}
  }
}`)

var payloadSlots = []string{
	"national_event",
	"key_event_1",
	"key_event_2",
	"key_event_3",
	"key_event_4",
	"key_event_5",
}

type payloadEvent struct {
	Name string `json:"name"`
	Date string `json:"date"`
}

// extractJSON pulls the JSON document out of a model reply, tolerating fenced
// code blocks and prose around the object.
func extractJSON(text string) string {
	s := strings.TrimSpace(text)
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	} else if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
		if i, j := strings.Index(s, "{"), strings.LastIndex(s, "}"); i >= 0 && j > i {
			s = s[i : j+1]
		}
	}
	return s
}

// parsePayload converts a model reply into candidates. The reply must be a JSON
// object matching eventPayloadSchema, otherwise a MalformedResponse error is
// returned. Individual events with unparseable dates are skipped.
func parsePayload(source, text string) ([]keydates.Candidate, error) {
	doc := []byte(extractJSON(text))
	if !json.Valid(doc) {
		return nil, apperrors.NewSourceMalformedResponseError(source, errors.New("reply is not valid JSON"))
	}

	res, err := eventPayloadSchema.ValidateJSON(doc)
	if err != nil {
		return nil, apperrors.NewSourceMalformedResponseError(source, err)
	}
	if !res.Valid {
		return nil, apperrors.NewSourceMalformedResponseError(source,
			fmt.Errorf("schema: %s", strings.Join(res.GetErrorMessages(), "; ")))
	}

	var slots map[string]json.RawMessage
	if err := json.Unmarshal(doc, &slots); err != nil {
		return nil, apperrors.NewSourceMalformedResponseError(source, err)
	}

	var out []keydates.Candidate
	for _, slot := range payloadSlots {
		msg, ok := slots[slot]
		if !ok {
			continue
		}
		var ev *payloadEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			return nil, apperrors.NewSourceMalformedResponseError(source, err)
		}
		if ev == nil || strings.TrimSpace(ev.Name) == "" {
			continue
		}
		date, err := keydates.ParseMonthDay(ev.Date)
		if err != nil {
			continue
		}
		out = append(out, keydates.Candidate{
			Label:    strings.TrimSpace(ev.Name),
			Date:     date,
			Source:   source,
			Category: keydates.ParseCategory(slot),
		})
	}
	return out, nil
}
