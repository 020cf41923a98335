package transform

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/n0madic/go-agentquery/internal/backend"
	"github.com/n0madic/go-agentquery/internal/types"
)

// DefaultTemperature is the CLI's own default; it is not passed explicitly.
const DefaultTemperature = 0.7

// thinkingBudget is the token budget requested when thinking is enabled.
const thinkingBudget = 16000

// Params are the per-call request flags that do not live in a Selection.
type Params struct {
	Stream   bool
	Thinking bool
	Tools    []string
}

// BuildRequest builds the HTTP request body. The model is sent without its
// provider segment.
func BuildRequest(sel backend.Selection, messages []types.ChatMessage, p Params) *types.ChatCompletionRequest {
	req := &types.ChatCompletionRequest{
		Model:       sel.ModelName(),
		Messages:    messages,
		Stream:      p.Stream,
		Temperature: sel.Temperature,
		MaxTokens:   sel.MaxTokens,
		Tools:       p.Tools,
	}
	if p.Thinking && strings.Contains(strings.ToLower(sel.Model), "claude") {
		req.Thinking = &types.ThinkingConfig{Type: "enabled", BudgetTokens: thinkingBudget}
	}
	return req
}

// CLIPayload serializes the request file fed to the CLI. It carries the
// full model id and always asks for streaming.
func CLIPayload(sel backend.Selection, messages []types.ChatMessage) ([]byte, error) {
	req := &types.ChatCompletionRequest{
		Model:       sel.Model,
		Messages:    messages,
		Stream:      true,
		Temperature: sel.Temperature,
		MaxTokens:   sel.MaxTokens,
	}
	return json.MarshalIndent(req, "", "  ")
}

// CLIArgs builds the argument list of a CLI run.
func CLIArgs(sel backend.Selection, thinking bool) []string {
	args := []string{"run", "--format", "json", "-m", sel.Model}
	if sel.Temperature != DefaultTemperature {
		args = append(args, "--temperature", strconv.FormatFloat(sel.Temperature, 'f', -1, 64))
	}
	if sel.MaxTokens > 0 {
		args = append(args, "--max-tokens", strconv.Itoa(sel.MaxTokens))
	}
	if thinking {
		args = append(args, "--thinking")
	}
	return args
}
