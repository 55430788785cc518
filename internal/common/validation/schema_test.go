package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventSchema = `{
  "type": "object",
  "properties": {
    "event": {
      "type": "object",
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "date": {"type": "string"}
      },
      "required": ["name", "date"]
    }
  },
  "required": ["event"]
}`

func TestSchema_ValidateJSON(t *testing.T) {
	s := MustCompile(eventSchema)

	tests := []struct {
		name       string
		doc        string
		valid      bool
		errorField string
	}{
		{name: "valid", doc: `{"event":{"name":"Birthday","date":"January 17"}}`, valid: true},
		{name: "missing event", doc: `{}`, valid: false, errorField: "(root)"},
		{name: "wrong type", doc: `{"event":{"name":3,"date":"January 17"}}`, valid: false, errorField: "event.name"},
		{name: "missing date", doc: `{"event":{"name":"Birthday"}}`, valid: false, errorField: "event"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.ValidateJSON([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid)
			if !tt.valid {
				assert.NotEmpty(t, res.GetErrorMessages())
				assert.True(t, res.HasErrors(tt.errorField), "errors: %v", res.GetErrorMessages())
			}
		})
	}
}

func TestSchema_ValidateValue(t *testing.T) {
	s := MustCompile(eventSchema)
	res, err := s.ValidateValue(map[string]interface{}{
		"event": map[string]interface{}{"name": "Boxing Day", "date": "December 26"},
	})
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile(`{"type": 12}`)
	assert.Error(t, err)
}

func TestSchema_MalformedDocument(t *testing.T) {
	s := MustCompile(eventSchema)
	_, err := s.ValidateJSON([]byte(`{not json`))
	assert.Error(t, err)
}
