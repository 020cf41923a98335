package config

import (
	"os"
	"testing"
)

// setenv sets an env var for the duration of a test, restoring the original on cleanup.
func setenv(t *testing.T, key, value string) {
	t.Helper()
	original, had := os.LookupEnv(key)
	os.Setenv(key, value) //nolint:errcheck
	t.Cleanup(func() {
		if had {
			os.Setenv(key, original) //nolint:errcheck
		} else {
			os.Unsetenv(key) //nolint:errcheck
		}
	})
}

// TestDefaultFromEnvDefaults checks that DefaultFromEnv returns expected defaults
// when no environment variables are set.
func TestDefaultFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"AGENTQUERY_HOST",
		"AGENTQUERY_PORT",
		"AGENTQUERY_VERBOSE",
		"AGENTQUERY_ACCESS_TOKEN",
		"AGENTQUERY_DISABLE_METRICS",
	} {
		setenv(t, key, "")
	}

	cfg := DefaultFromEnv()

	if cfg.Host != "127.0.0.1" {
		t.Errorf("Host: got %q, want %q", cfg.Host, "127.0.0.1")
	}
	if cfg.Port != 8000 {
		t.Errorf("Port: got %d, want 8000", cfg.Port)
	}
	if cfg.Verbose {
		t.Error("Verbose should be false by default")
	}
	if cfg.AccessToken != "" {
		t.Errorf("AccessToken: got %q, want empty", cfg.AccessToken)
	}
	if !cfg.Metrics {
		t.Error("Metrics should be enabled by default")
	}
}

// TestDefaultFromEnvOverrides verifies that environment variables override defaults.
func TestDefaultFromEnvOverrides(t *testing.T) {
	setenv(t, "AGENTQUERY_HOST", " 0.0.0.0 ")
	setenv(t, "AGENTQUERY_PORT", "9100")
	setenv(t, "AGENTQUERY_VERBOSE", "yes")
	setenv(t, "AGENTQUERY_ACCESS_TOKEN", " secret-token ")
	setenv(t, "AGENTQUERY_DISABLE_METRICS", "1")

	cfg := DefaultFromEnv()

	if cfg.Host != "0.0.0.0" {
		t.Errorf("Host: got %q, want %q", cfg.Host, "0.0.0.0")
	}
	if cfg.Port != 9100 {
		t.Errorf("Port: got %d, want 9100", cfg.Port)
	}
	if !cfg.Verbose {
		t.Error("Verbose should be true when env is 'yes'")
	}
	if cfg.AccessToken != "secret-token" {
		t.Errorf("AccessToken: got %q, want %q", cfg.AccessToken, "secret-token")
	}
	if cfg.Metrics {
		t.Error("Metrics should be disabled when AGENTQUERY_DISABLE_METRICS=1")
	}
}

// TestDefaultFromEnvInvalidPort keeps the default for unparsable ports.
func TestDefaultFromEnvInvalidPort(t *testing.T) {
	setenv(t, "AGENTQUERY_PORT", "eighty")
	if got := DefaultFromEnv().Port; got != 8000 {
		t.Errorf("Port: got %d, want 8000", got)
	}
}

// TestEnvBoolVariants checks all accepted truthy values for boolean env vars.
func TestEnvBoolVariants(t *testing.T) {
	truthy := []string{"1", "true", "yes", "on", "TRUE", "YES", "ON"}
	for _, val := range truthy {
		t.Run(val, func(t *testing.T) {
			setenv(t, "AGENTQUERY_VERBOSE", val)
			if !DefaultFromEnv().Verbose {
				t.Errorf("expected Verbose=true for env value %q", val)
			}
		})
	}

	falsy := []string{"0", "false", "no", "off", ""}
	for _, val := range falsy {
		t.Run("false_"+val, func(t *testing.T) {
			setenv(t, "AGENTQUERY_VERBOSE", val)
			if DefaultFromEnv().Verbose {
				t.Errorf("expected Verbose=false for env value %q", val)
			}
		})
	}
}
