package config

import (
	"os"
	"strconv"
	"strings"
)

// ServerConfig holds the settings of the OpenAI-compatible HTTP front.
type ServerConfig struct {
	Host        string
	Port        int
	Verbose     bool
	AccessToken string
	Metrics     bool
}

// DefaultFromEnv creates a ServerConfig with defaults from environment variables.
func DefaultFromEnv() *ServerConfig {
	return &ServerConfig{
		Host:        envOrDefault("AGENTQUERY_HOST", "127.0.0.1"),
		Port:        envInt("AGENTQUERY_PORT", 8000),
		Verbose:     envBool("AGENTQUERY_VERBOSE"),
		AccessToken: strings.TrimSpace(os.Getenv("AGENTQUERY_ACCESS_TOKEN")),
		Metrics:     !envBool("AGENTQUERY_DISABLE_METRICS"),
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}
