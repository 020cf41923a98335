package transform

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n0madic/go-agentquery/internal/backend"
	"github.com/n0madic/go-agentquery/internal/types"
)

func selection(model string) backend.Selection {
	return backend.Selection{Kind: backend.KindHTTPProvider, Model: model, Temperature: 0.7}
}

func TestBuildRequestStripsProvider(t *testing.T) {
	msgs := []types.ChatMessage{{Role: "user", Content: "hi"}}
	req := BuildRequest(selection("openai/gpt-4o"), msgs, Params{Stream: true, Tools: []string{"read_file"}})
	assert.Equal(t, "gpt-4o", req.Model)
	assert.True(t, req.Stream)
	assert.Equal(t, 0.7, req.Temperature)
	assert.Zero(t, req.MaxTokens)
	assert.Nil(t, req.Thinking)
	assert.Equal(t, []string{"read_file"}, req.Tools)

	body, err := json.Marshal(req)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "max_tokens")
	assert.NotContains(t, string(body), "thinking")
}

func TestBuildRequestThinkingOnlyForClaude(t *testing.T) {
	claude := BuildRequest(selection("anthropic/claude-sonnet-4-5"), nil, Params{Thinking: true})
	require.NotNil(t, claude.Thinking)
	assert.Equal(t, "enabled", claude.Thinking.Type)
	assert.Equal(t, 16000, claude.Thinking.BudgetTokens)

	gpt := BuildRequest(selection("openai/gpt-5"), nil, Params{Thinking: true})
	assert.Nil(t, gpt.Thinking)
}

func TestCLIPayloadKeepsFullModel(t *testing.T) {
	sel := selection("opencode/big-pickle")
	sel.MaxTokens = 100
	body, err := CLIPayload(sel, []types.ChatMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "opencode/big-pickle", decoded["model"])
	assert.Equal(t, true, decoded["stream"])
	assert.Equal(t, float64(100), decoded["max_tokens"])
	assert.Contains(t, string(body), "\n  \"messages\"")
}

func TestCLIArgs(t *testing.T) {
	tests := []struct {
		name     string
		sel      backend.Selection
		thinking bool
		want     []string
	}{
		{
			name: "defaults",
			sel:  selection("opencode/big-pickle"),
			want: []string{"run", "--format", "json", "-m", "opencode/big-pickle"},
		},
		{
			name:     "all flags",
			sel:      backend.Selection{Model: "anthropic/claude", Temperature: 0.25, MaxTokens: 2048},
			thinking: true,
			want: []string{"run", "--format", "json", "-m", "anthropic/claude",
				"--temperature", "0.25", "--max-tokens", "2048", "--thinking"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CLIArgs(tt.sel, tt.thinking))
		})
	}
}
