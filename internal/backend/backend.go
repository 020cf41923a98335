// Package backend decides which backend, model and credentials serve a query.
package backend

import (
	"strings"

	"github.com/n0madic/go-agentquery/internal/config"
	"github.com/n0madic/go-agentquery/internal/discovery"
	"github.com/n0madic/go-agentquery/internal/models"
)

// Kind identifies the backend family of a selection.
type Kind string

const (
	KindCLI          Kind = "cli"
	KindHTTPProvider Kind = "http-provider"
	KindHTTPLocal    Kind = "http-local"
)

// GatewayBaseURL is the hosted gateway serving the free and zen models.
const GatewayBaseURL = "https://opencode.ai/zen/v1"

// LocalProvider is the provider id used for self-hosted models.
const LocalProvider = "local"

// wellKnownBaseURLs are used when a configured provider declares no baseURL.
var wellKnownBaseURLs = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
	"deepseek":   "https://api.deepseek.com/v1",
	"groq":       "https://api.groq.com/openai/v1",
	"mistral":    "https://api.mistral.ai/v1",
}

// gatewayProviders are routed through the gateway even when configured.
var gatewayProviders = map[string]bool{
	models.GatewayProvider: true,
	"deepseek":             true,
}

// Selection is the immutable outcome of one resolution.
type Selection struct {
	Kind        Kind
	Provider    string
	Model       string // full id, "provider/name" where a provider is known
	Temperature float64
	MaxTokens   int // 0 means unset
	Credentials string
	BaseURL     string
	Endpoint    string
}

// ModelName returns the model id without its provider segment, the form
// HTTP APIs expect.
func (s Selection) ModelName() string {
	if _, name := models.SplitID(s.Model); name != "" {
		return name
	}
	return s.Model
}

// ForCLI returns the CLI view of the selection: same model and sampling
// parameters, no credentials or endpoint.
func (s Selection) ForCLI() Selection {
	return Selection{
		Kind:        KindCLI,
		Provider:    s.Provider,
		Model:       s.Model,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
	}
}

// IsGateway reports whether the selection targets the hosted gateway.
func (s Selection) IsGateway() bool {
	return s.Kind == KindHTTPProvider && s.BaseURL == GatewayBaseURL
}

// DefaultModel picks the model used when the caller names none: the free
// model when free models are preferred, then the config default, then the
// hard-coded free fallback.
func DefaultModel(s config.Settings, cfg *discovery.OpencodeConfig) string {
	fallback := strings.TrimSpace(s.FreeModel)
	if fallback == "" {
		fallback = config.Defaults().FreeModel
	}
	if s.UseFreeModels {
		return fallback
	}
	if cfg != nil && strings.TrimSpace(cfg.Model) != "" {
		return strings.TrimSpace(cfg.Model)
	}
	return fallback
}

// RequestedModel returns the effective model id for a call: the explicit
// override, then the settings model unless it is "auto", then DefaultModel.
func RequestedModel(override string, s config.Settings, cfg *discovery.OpencodeConfig) string {
	if m := strings.TrimSpace(override); m != "" && m != config.AutoModel {
		return m
	}
	if m := strings.TrimSpace(s.Model); m != "" && m != config.AutoModel {
		return m
	}
	return DefaultModel(s, cfg)
}

// Resolve computes the backend selection for requested. It never fails:
// unknown providers and missing config degrade to the gateway.
func Resolve(requested string, s config.Settings, d *discovery.Discovered) Selection {
	var cfg *discovery.OpencodeConfig
	if d != nil {
		cfg = d.Config
	}

	sel := Selection{Temperature: s.Temperature, MaxTokens: s.MaxTokens}

	if s.LocalModel.Enabled {
		return local(sel, s.LocalModel.BaseURL, s.LocalModel.Model)
	}

	model := RequestedModel(requested, s, cfg)
	provider, name := models.SplitID(model)

	if provider == LocalProvider {
		return local(sel, s.LocalModel.BaseURL, name)
	}

	if provider == "" || gatewayProviders[provider] {
		return gateway(sel, model, s, d)
	}

	pc, ok := d.Provider(provider)
	if !ok {
		return gateway(sel, model, s, d)
	}

	key := ""
	if d != nil {
		key = d.Credentials.APIKey(provider)
	}
	if key == "" {
		key = strings.TrimSpace(pc.Options.APIKey)
	}
	base := strings.TrimRight(strings.TrimSpace(pc.Options.BaseURL), "/")
	if base == "" {
		base = wellKnownBaseURLs[provider]
	}
	if base == "" {
		return gateway(sel, model, s, d)
	}

	sel.Kind = KindHTTPProvider
	sel.Provider = provider
	sel.Model = model
	sel.Credentials = key
	sel.BaseURL = base
	sel.Endpoint = base + "/chat/completions"
	return sel
}

// GatewayKey returns the gateway API key: settings first, then auth.json.
func GatewayKey(s config.Settings, d *discovery.Discovered) string {
	if k := strings.TrimSpace(s.GatewayAPIKey); k != "" {
		return k
	}
	if d != nil {
		return d.Credentials.APIKey(models.GatewayProvider)
	}
	return ""
}

func gateway(sel Selection, model string, s config.Settings, d *discovery.Discovered) Selection {
	provider, name := models.SplitID(model)
	if provider == "" {
		model = models.GatewayProvider + "/" + name
	}
	sel.Kind = KindHTTPProvider
	sel.Provider = models.GatewayProvider
	sel.Model = model
	sel.Credentials = GatewayKey(s, d)
	sel.BaseURL = GatewayBaseURL
	sel.Endpoint = GatewayBaseURL + "/chat/completions"
	return sel
}

func local(sel Selection, baseURL, name string) Selection {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = config.Defaults().LocalModel.BaseURL
	}
	sel.Kind = KindHTTPLocal
	sel.Provider = LocalProvider
	sel.Model = LocalProvider + "/" + name
	sel.BaseURL = base + "/v1"
	sel.Endpoint = base + "/v1/chat/completions"
	return sel
}
