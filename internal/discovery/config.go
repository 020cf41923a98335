// Package discovery locates the CLI backend and its on-disk configuration.
package discovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrNoConfig is returned when no opencode.json could be read.
var ErrNoConfig = errors.New("no opencode config found")

// OpencodeConfig is the subset of opencode.json the query service reads.
// MCP servers, agents and tool toggles are passed through untouched.
type OpencodeConfig struct {
	Schema     string                     `json:"$schema,omitempty"`
	Model      string                     `json:"model,omitempty"`
	SmallModel string                     `json:"small_model,omitempty"`
	Provider   map[string]ProviderConfig  `json:"provider,omitempty"`
	MCP        map[string]json.RawMessage `json:"mcp,omitempty"`
	Tools      map[string]bool            `json:"tools,omitempty"`
	Agent      map[string]json.RawMessage `json:"agent,omitempty"`
}

// ProviderConfig declares one provider in opencode.json.
type ProviderConfig struct {
	NPM     string                     `json:"npm,omitempty"`
	Name    string                     `json:"name,omitempty"`
	Options ProviderOptions            `json:"options"`
	Models  map[string]json.RawMessage `json:"models,omitempty"`
}

// ProviderOptions are the connection options of a provider.
type ProviderOptions struct {
	APIKey  string            `json:"apiKey,omitempty"`
	BaseURL string            `json:"baseURL,omitempty"`
	Timeout json.RawMessage   `json:"timeout,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// envRef matches "{env:NAME}" placeholders.
var envRef = regexp.MustCompile(`\{env:([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv substitutes {env:NAME} placeholders with environment values.
func expandEnv(s string) string {
	if !strings.Contains(s, "{env:") {
		return s
	}
	return envRef.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(envRef.FindStringSubmatch(m)[1])
	})
}

// GlobalConfigPath returns ~/.config/opencode/opencode.json.
func GlobalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "opencode", "opencode.json")
}

// ConfigCandidates lists config locations in lookup order: the explicitly
// configured file, the project file in the working directory, then the
// global file.
func ConfigCandidates(explicit string) []string {
	var out []string
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		out = append(out, explicit)
	}
	if wd, err := os.Getwd(); err == nil {
		out = append(out, filepath.Join(wd, "opencode.json"))
	}
	if g := GlobalConfigPath(); g != "" {
		out = append(out, g)
	}
	return out
}

// LoadConfig returns the first config of paths that can be read and parsed,
// together with its path.
func LoadConfig(paths ...string) (*OpencodeConfig, string, error) {
	var lastErr error
	for _, p := range paths {
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		var cfg OpencodeConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			lastErr = fmt.Errorf("parse %s: %w", p, err)
			continue
		}
		for id, pc := range cfg.Provider {
			pc.Options.APIKey = expandEnv(pc.Options.APIKey)
			pc.Options.BaseURL = expandEnv(pc.Options.BaseURL)
			cfg.Provider[id] = pc
		}
		return &cfg, p, nil
	}
	if lastErr != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNoConfig, lastErr)
	}
	return nil, "", ErrNoConfig
}
