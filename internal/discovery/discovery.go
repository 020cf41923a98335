package discovery

import (
	"errors"

	"go.uber.org/zap"

	"github.com/n0madic/go-agentquery/internal/auth"
	"github.com/n0madic/go-agentquery/internal/config"
)

// Discovered is what was found on this machine for one initialization.
type Discovered struct {
	ExecutablePath string
	Config         *OpencodeConfig
	ConfigPath     string
	Credentials    auth.Credentials
}

// HasExecutable reports whether a CLI binary was located.
func (d *Discovered) HasExecutable() bool {
	return d != nil && d.ExecutablePath != ""
}

// Provider returns the named provider declaration, if any.
func (d *Discovered) Provider(id string) (ProviderConfig, bool) {
	if d == nil || d.Config == nil {
		return ProviderConfig{}, false
	}
	pc, ok := d.Config.Provider[id]
	return pc, ok
}

// Discover locates the executable, config and credentials. Missing pieces
// are not errors: each is logged and left empty.
func Discover(s config.Settings, logger *zap.Logger) *Discovered {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Discovered{ExecutablePath: FindExecutable(s.OpencodePath)}
	if d.ExecutablePath == "" {
		logger.Info("discovery.executable.missing")
	} else {
		logger.Debug("discovery.executable", zap.String("path", d.ExecutablePath))
	}

	if s.AutoLoadOpencodeConfig || s.OpencodeConfigPath != "" {
		cfg, path, err := LoadConfig(ConfigCandidates(s.OpencodeConfigPath)...)
		switch {
		case err == nil:
			d.Config, d.ConfigPath = cfg, path
			logger.Debug("discovery.config", zap.String("path", path), zap.Int("providers", len(cfg.Provider)))
		case errors.Is(err, ErrNoConfig):
			logger.Debug("discovery.config.missing", zap.Error(err))
		default:
			logger.Warn("discovery.config.error", zap.Error(err))
		}
	}

	creds, err := auth.ReadAuthFile()
	if err != nil {
		logger.Debug("discovery.auth.missing", zap.Error(err))
		creds = auth.Credentials{}
	}
	d.Credentials = creds
	return d
}
