package gemini

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitscope/gitscope/internal/domain/entities"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"json fence",
			"```json\n{\"summary\": \"x\"}\n```",
			`{"summary": "x"}`,
		},
		{
			"bare fence",
			"```\n{\"summary\": \"x\"}\n```",
			`{"summary": "x"}`,
		},
		{
			"no fence",
			`{"summary": "x"}`,
			`{"summary": "x"}`,
		},
		{
			"surrounding whitespace",
			"  \n{\"a\":1}\n  ",
			`{"a":1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestAssistantWithoutKeyReportsPerCall(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	a, err := NewAssistant(context.Background(), entities.GeminiConfig{}, nil)
	require.NoError(t, err, "missing key must not fail construction")

	_, err = a.Suggest(context.Background(), " M main.go")
	assert.ErrorIs(t, err, ErrNoAPIKey)

	_, err = a.Chat(context.Background(), "what changed?", "", "")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestResponseTextEmptyCases(t *testing.T) {
	assert.Equal(t, "", responseText(nil))
}
