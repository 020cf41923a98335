package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// AutoModel asks the resolver to pick the default model.
const AutoModel = "auto"

// Settings are the user-tunable backend toggles consumed by the query service.
type Settings struct {
	Model                  string        `mapstructure:"model"`
	UseFreeModels          bool          `mapstructure:"use_free_models"`
	FreeModel              string        `mapstructure:"free_model"`
	Temperature            float64       `mapstructure:"temperature"`
	MaxTokens              int           `mapstructure:"max_tokens"`
	CLITimeout             time.Duration `mapstructure:"cli_timeout"`
	TempDir                string        `mapstructure:"temp_dir"`
	DisableAPIFallback     bool          `mapstructure:"disable_api_fallback"`
	OpencodePath           string        `mapstructure:"opencode_path"`
	OpencodeConfigPath     string        `mapstructure:"opencode_config_path"`
	AutoLoadOpencodeConfig bool          `mapstructure:"auto_load_opencode_config"`
	GatewayAPIKey          string        `mapstructure:"gateway_api_key"`
	LocalModel             LocalModel    `mapstructure:"local_model"`
	StrategyBackoff        time.Duration `mapstructure:"strategy_backoff"`
	Logging                LoggingConfig `mapstructure:"logging"`
}

// LocalModel points at a self-hosted chat-completions server.
type LocalModel struct {
	Enabled  bool   `mapstructure:"enabled"`
	Provider string `mapstructure:"provider"` // ollama, lmstudio, custom
	BaseURL  string `mapstructure:"base_url"`
	Model    string `mapstructure:"model"`
}

// LoggingConfig controls logger behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		Model:                  AutoModel,
		UseFreeModels:          true,
		FreeModel:              "opencode/big-pickle",
		Temperature:            0.7,
		CLITimeout:             5 * time.Minute,
		AutoLoadOpencodeConfig: true,
		LocalModel: LocalModel{
			Provider: "ollama",
			BaseURL:  "http://localhost:11434",
			Model:    "llama2",
		},
		StrategyBackoff: 100 * time.Millisecond,
		Logging:         LoggingConfig{Level: "info", Format: "console"},
	}
}

// Store gives read access to the current settings and persists updates.
type Store interface {
	Settings() Settings
	Update(func(*Settings)) error
}

// HomeDir returns the settings directory.
func HomeDir() string {
	if d := os.Getenv("AGENTQUERY_HOME"); d != "" {
		return d
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "agentquery")
}

// FileStore keeps settings in a YAML file managed by viper. Environment
// variables (prefix AGENTQUERY_, dots replaced with underscores) override
// file values.
type FileStore struct {
	mu       sync.RWMutex
	v        *viper.Viper
	path     string
	settings Settings
}

// Load reads settings from path, or from settings.yaml in HomeDir when path
// is empty. A missing file yields defaults.
func Load(path string) (*FileStore, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	v.SetEnvPrefix("AGENTQUERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	target := path
	if path == "" {
		target = filepath.Join(HomeDir(), "settings.yaml")
	}
	v.SetConfigFile(target)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	s.normalize()

	return &FileStore{v: v, path: target, settings: s}, nil
}

// Path returns the file updates are written to.
func (fs *FileStore) Path() string { return fs.path }

// Settings returns a copy of the current settings.
func (fs *FileStore) Settings() Settings {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.settings
}

// Update applies fn to a copy of the settings and persists the result.
func (fs *FileStore) Update(fn func(*Settings)) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	next := fs.settings
	fn(&next)
	next.normalize()

	setValues(fs.v, next)
	if err := os.MkdirAll(filepath.Dir(fs.path), 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	if err := fs.v.WriteConfigAs(fs.path); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	fs.settings = next
	return nil
}

// MemoryStore is a Store without persistence.
type MemoryStore struct {
	mu sync.RWMutex
	s  Settings
}

// NewMemoryStore returns a store seeded with s.
func NewMemoryStore(s Settings) *MemoryStore {
	s.normalize()
	return &MemoryStore{s: s}
}

func (m *MemoryStore) Settings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s
}

func (m *MemoryStore) Update(fn func(*Settings)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.s
	fn(&next)
	next.normalize()
	m.s = next
	return nil
}

func (s *Settings) normalize() {
	d := Defaults()
	s.Model = strings.TrimSpace(s.Model)
	if s.Model == "" {
		s.Model = AutoModel
	}
	if s.CLITimeout <= 0 {
		s.CLITimeout = d.CLITimeout
	}
	if s.StrategyBackoff < 0 {
		s.StrategyBackoff = d.StrategyBackoff
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		s.Temperature = d.Temperature
	}
	if s.MaxTokens < 0 {
		s.MaxTokens = 0
	}
	s.LocalModel.BaseURL = strings.TrimRight(strings.TrimSpace(s.LocalModel.BaseURL), "/")
}

func setDefaults(v *viper.Viper, s Settings) {
	for key, val := range flatten(s) {
		v.SetDefault(key, val)
	}
}

func setValues(v *viper.Viper, s Settings) {
	for key, val := range flatten(s) {
		v.Set(key, val)
	}
}

// flatten maps settings to viper keys. Durations are stored in their string
// form so the file stays readable.
func flatten(s Settings) map[string]any {
	return map[string]any{
		"model":                     s.Model,
		"use_free_models":           s.UseFreeModels,
		"free_model":                s.FreeModel,
		"temperature":               s.Temperature,
		"max_tokens":                s.MaxTokens,
		"cli_timeout":               s.CLITimeout.String(),
		"temp_dir":                  s.TempDir,
		"disable_api_fallback":      s.DisableAPIFallback,
		"opencode_path":             s.OpencodePath,
		"opencode_config_path":      s.OpencodeConfigPath,
		"auto_load_opencode_config": s.AutoLoadOpencodeConfig,
		"gateway_api_key":           s.GatewayAPIKey,
		"local_model.enabled":       s.LocalModel.Enabled,
		"local_model.provider":      s.LocalModel.Provider,
		"local_model.base_url":      s.LocalModel.BaseURL,
		"local_model.model":         s.LocalModel.Model,
		"strategy_backoff":          s.StrategyBackoff.String(),
		"logging.level":             s.Logging.Level,
		"logging.format":            s.Logging.Format,
	}
}
