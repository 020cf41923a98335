package models

import "strings"

// GatewayProvider is the provider id of the hosted gateway.
const GatewayProvider = "opencode"

// Model describes one selectable model.
type Model struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Provider    string  `json:"provider"`
	Free        bool    `json:"free,omitempty"`
	InputPrice  float64 `json:"input_price,omitempty"`  // USD per 1M tokens
	OutputPrice float64 `json:"output_price,omitempty"` // USD per 1M tokens
	Source      string  `json:"source,omitempty"`       // free, zen, popular, cli, local
}

// FreeModels are served by the gateway without a key.
func FreeModels() []Model {
	return []Model{
		{ID: "opencode/gpt-5-nano", Name: "GPT-5 Nano (Free)", Provider: GatewayProvider, Free: true, Source: "free"},
		{ID: "opencode/glm-4.7-free", Name: "GLM 4.7 Free", Provider: GatewayProvider, Free: true, Source: "free"},
		{ID: "opencode/kimi-k2.5-free", Name: "Kimi K2.5 Free", Provider: GatewayProvider, Free: true, Source: "free"},
		{ID: "opencode/minimax-m2.1-free", Name: "MiniMax M2.1 Free", Provider: GatewayProvider, Free: true, Source: "free"},
		{ID: "opencode/big-pickle", Name: "Big Pickle (Free)", Provider: GatewayProvider, Free: true, Source: "free"},
	}
}

// ZenModels are paid gateway models, listed only when a gateway key exists.
func ZenModels() []Model {
	zen := func(id, name string, in, out float64) Model {
		return Model{ID: GatewayProvider + "/" + id, Name: name, Provider: GatewayProvider, InputPrice: in, OutputPrice: out, Source: "zen"}
	}
	return []Model{
		zen("gpt-5.2", "GPT 5.2", 1.75, 14),
		zen("gpt-5.2-codex", "GPT 5.2 Codex", 1.75, 14),
		zen("gpt-5.1", "GPT 5.1", 1.07, 8.5),
		zen("gpt-5.1-codex", "GPT 5.1 Codex", 1.07, 8.5),
		zen("gpt-5", "GPT 5", 1.07, 8.5),
		zen("gpt-5-codex", "GPT 5 Codex", 1.07, 8.5),
		zen("claude-sonnet-4-5", "Claude Sonnet 4.5", 3, 15),
		zen("claude-sonnet-4", "Claude Sonnet 4", 3, 15),
		zen("claude-haiku-4-5", "Claude Haiku 4.5", 1, 5),
		zen("claude-opus-4-6", "Claude Opus 4.6", 5, 25),
		zen("claude-opus-4-5", "Claude Opus 4.5", 5, 25),
		zen("gemini-3-pro", "Gemini 3 Pro", 2, 12),
		zen("gemini-3-flash", "Gemini 3 Flash", 0.5, 3),
		zen("minimax-m2.1", "MiniMax M2.1", 0.3, 1.2),
		zen("glm-4.7", "GLM 4.7", 0.6, 2.2),
		zen("kimi-k2.5", "Kimi K2.5", 0.6, 3),
		zen("qwen3-coder", "Qwen3 Coder 480B", 0.45, 1.5),
	}
}

// PopularModels are common provider-direct models.
func PopularModels() []Model {
	return []Model{
		{ID: "anthropic/claude-sonnet-4", Name: "Claude Sonnet 4", Provider: "anthropic", Source: "popular"},
		{ID: "anthropic/claude-opus-4", Name: "Claude Opus 4", Provider: "anthropic", Source: "popular"},
		{ID: "openai/gpt-5", Name: "GPT-5", Provider: "openai", Source: "popular"},
		{ID: "openai/gpt-5-mini", Name: "GPT-5 Mini", Provider: "openai", Source: "popular"},
		{ID: "google/gemini-3-pro", Name: "Gemini 3 Pro", Provider: "google", Source: "popular"},
	}
}

// LocalModel returns the catalog entry for a self-hosted model.
func LocalModel(name string) Model {
	return Model{ID: "local/" + name, Name: "Local: " + name, Provider: "local", Source: "local"}
}

// Lookup finds id among the static lists.
func Lookup(id string) (Model, bool) {
	for _, list := range [][]Model{FreeModels(), ZenModels(), PopularModels()} {
		for _, m := range list {
			if m.ID == id {
				return m, true
			}
		}
	}
	return Model{}, false
}

// IsFree reports whether id is one of the free gateway models.
func IsFree(id string) bool {
	m, ok := Lookup(id)
	return ok && m.Free
}

// SplitID splits "provider/model" into its segments. An id without a slash
// has an empty provider.
func SplitID(id string) (provider, name string) {
	id = strings.TrimSpace(id)
	if i := strings.Index(id, "/"); i >= 0 {
		return id[:i], id[i+1:]
	}
	return "", id
}

// Merge appends each list to the result, keeping the first entry per id.
func Merge(lists ...[]Model) []Model {
	seen := make(map[string]bool)
	var out []Model
	for _, list := range lists {
		for _, m := range list {
			if m.ID == "" || seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			out = append(out, m)
		}
	}
	return out
}
