package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no fences",
			input:    "SELECT * FROM players",
			expected: "SELECT * FROM players",
		},
		{
			name:     "sql fence",
			input:    "```sql\nSELECT * FROM players\n```",
			expected: "SELECT * FROM players",
		},
		{
			name:     "bare fence",
			input:    "```\nSELECT 1\n```",
			expected: "SELECT 1",
		},
		{
			name:     "fence with surrounding text",
			input:    "Here is the query:\n```sql\nSELECT name FROM Team\n```\n",
			expected: "Here is the query:\n\nSELECT name FROM Team",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripCodeFences(tt.input))
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{
			name:     "plain object",
			input:    `{"sql": "SELECT 1"}`,
			expected: `{"sql": "SELECT 1"}`,
		},
		{
			name:     "fenced object",
			input:    "```json\n{\"sql\": \"SELECT 1\"}\n```",
			expected: `{"sql": "SELECT 1"}`,
		},
		{
			name:     "object with commentary",
			input:    "Sure! Here you go: {\"path_indices\": [0], \"sql\": \"SELECT 1\"} Hope that helps.",
			expected: `{"path_indices": [0], "sql": "SELECT 1"}`,
		},
		{
			name:     "trailing comma repaired",
			input:    `{"path_indices": [0, 1,], "sql": "SELECT 1",}`,
			expected: `{"path_indices": [0, 1], "sql": "SELECT 1"}`,
		},
		{
			name:     "braces inside strings",
			input:    `{"sql": "SELECT '{' FROM t"}`,
			expected: `{"sql": "SELECT '{' FROM t"}`,
		},
		{
			name:    "no json at all",
			input:   "I cannot answer that.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseJSONResponse(t *testing.T) {
	type sqlResponse struct {
		PathIndices []int  `json:"path_indices"`
		Reasoning   string `json:"reasoning"`
		SQL         string `json:"sql"`
	}

	resp, err := ParseJSONResponse[sqlResponse]("```json\n{\"path_indices\": [1], \"reasoning\": \"single join\", \"sql\": \"SELECT 1\",}\n```")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, resp.PathIndices)
	assert.Equal(t, "single join", resp.Reasoning)
	assert.Equal(t, "SELECT 1", resp.SQL)

	_, err = ParseJSONResponse[sqlResponse]("not json")
	require.Error(t, err)
}

func TestNewClientValidation(t *testing.T) {
	logger := testLogger()

	_, err := NewClient(&Config{Model: "gpt-4o"}, logger)
	require.Error(t, err)

	_, err = NewClient(&Config{Endpoint: "https://api.openai.com/v1"}, logger)
	require.Error(t, err)

	c, err := NewClient(&Config{Endpoint: "https://api.openai.com/v1", Model: "gpt-4o"}, logger)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", c.GetModel())
}

func TestNewAnthropicClientValidation(t *testing.T) {
	logger := testLogger()

	_, err := NewAnthropicClient(&Config{Model: "claude-sonnet-4-20250514"}, logger)
	require.Error(t, err)

	c, err := NewAnthropicClient(&Config{Model: "claude-sonnet-4-20250514", APIKey: "sk-test"}, logger)
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-20250514", c.GetModel())
}

func TestNewFromProvider(t *testing.T) {
	logger := testLogger()
	cfg := &Config{Endpoint: "https://api.openai.com/v1", Model: "gpt-4o", APIKey: "sk-test"}

	c, err := NewFromProvider("openai", cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &Client{}, c)

	c, err = NewFromProvider("anthropic", cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, c)

	_, err = NewFromProvider("bard", cfg, logger)
	require.Error(t, err)
}
