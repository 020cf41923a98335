package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ProviderAuth is one entry of the CLI's auth.json. API-key entries carry
// Key (or APIKey in older files); OAuth entries carry Access/Refresh tokens.
type ProviderAuth struct {
	Type    string `json:"type,omitempty"`
	Key     string `json:"key,omitempty"`
	APIKey  string `json:"apiKey,omitempty"`
	Access  string `json:"access,omitempty"`
	Refresh string `json:"refresh,omitempty"`
	Expires int64  `json:"expires,omitempty"` // unix milliseconds
}

// Credentials maps provider ids to their stored auth.
type Credentials map[string]ProviderAuth

// Secret returns the usable secret of the entry: an API key when present,
// otherwise an unexpired OAuth access token.
func (p ProviderAuth) Secret(now time.Time) string {
	for _, v := range []string{p.APIKey, p.Key} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	access := strings.TrimSpace(p.Access)
	if access == "" || accessExpired(access, p.Expires, now) {
		return ""
	}
	return access
}

// APIKey returns the secret stored for provider, or "".
func (c Credentials) APIKey(provider string) string {
	if c == nil {
		return ""
	}
	entry, ok := c[provider]
	if !ok {
		return ""
	}
	return entry.Secret(time.Now())
}

// accessExpired checks the stored expiry, falling back to the exp claim
// when the token is a JWT.
func accessExpired(access string, expiresMs int64, now time.Time) bool {
	if expiresMs > 0 {
		return !now.Before(time.UnixMilli(expiresMs))
	}
	claims, err := parseTokenClaims(access)
	if err != nil {
		return false
	}
	if exp, ok := claims.expiry(); ok {
		return !now.Before(exp)
	}
	return false
}

// CandidatePaths lists the auth.json locations in lookup order.
func CandidatePaths() []string {
	home, _ := os.UserHomeDir()
	var paths []string
	if d := os.Getenv("XDG_DATA_HOME"); d != "" {
		paths = append(paths, filepath.Join(d, "opencode", "auth.json"))
	}
	return append(paths,
		filepath.Join(home, ".local", "share", "opencode", "auth.json"),
		filepath.Join(home, ".config", "opencode", "auth.json"),
	)
}

// ReadAuthFile searches known locations for auth.json.
func ReadAuthFile() (Credentials, error) {
	return ReadAuthFileFrom(CandidatePaths()...)
}

// ReadAuthFileFrom returns the first readable, well-formed file of paths.
func ReadAuthFileFrom(paths ...string) (Credentials, error) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		var creds Credentials
		if err := json.Unmarshal(data, &creds); err != nil {
			continue
		}
		return creds, nil
	}
	return nil, ErrNoCredentials
}
