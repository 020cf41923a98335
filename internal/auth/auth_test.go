package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestReadAuthFileFromSkipsUnreadableAndInvalid(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.json")
	invalid := filepath.Join(dir, "invalid.json")
	valid := filepath.Join(dir, "auth.json")
	writeFile(t, invalid, "{not json")
	writeFile(t, valid, `{"opencode":{"type":"api","key":"zen-key"},"openai":{"apiKey":"sk-legacy"}}`)

	creds, err := ReadAuthFileFrom("", missing, invalid, valid)
	if err != nil {
		t.Fatalf("ReadAuthFileFrom failed: %v", err)
	}
	if got := creds.APIKey("opencode"); got != "zen-key" {
		t.Errorf("opencode key: got %q, want %q", got, "zen-key")
	}
	if got := creds.APIKey("openai"); got != "sk-legacy" {
		t.Errorf("openai key: got %q, want %q", got, "sk-legacy")
	}
	if got := creds.APIKey("unknown"); got != "" {
		t.Errorf("unknown provider: got %q, want empty", got)
	}
}

func TestReadAuthFileFromNoCandidates(t *testing.T) {
	_, err := ReadAuthFileFrom(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestReadAuthFileUsesXDGDataHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)
	t.Setenv("HOME", t.TempDir())
	writeFile(t, filepath.Join(dir, "opencode", "auth.json"), `{"deepseek":{"type":"api","key":"ds"}}`)

	creds, err := ReadAuthFile()
	if err != nil {
		t.Fatalf("ReadAuthFile failed: %v", err)
	}
	if got := creds.APIKey("deepseek"); got != "ds" {
		t.Errorf("deepseek key: got %q, want %q", got, "ds")
	}
}

func TestSecretPrefersAPIKeyThenAccessToken(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		auth ProviderAuth
		want string
	}{
		{"api key wins", ProviderAuth{APIKey: "a", Key: "b", Access: "c"}, "a"},
		{"key", ProviderAuth{Key: " b "}, "b"},
		{"oauth valid", ProviderAuth{Type: "oauth", Access: "tok", Expires: now.Add(time.Hour).UnixMilli()}, "tok"},
		{"oauth expired", ProviderAuth{Type: "oauth", Access: "tok", Expires: now.Add(-time.Minute).UnixMilli()}, ""},
		{"jwt expired", ProviderAuth{Access: makeJWT(map[string]any{"exp": float64(now.Add(-time.Hour).Unix())})}, ""},
		{"opaque without expiry", ProviderAuth{Access: "opaque"}, "opaque"},
		{"empty", ProviderAuth{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.auth.Secret(now); got != tc.want {
				t.Errorf("Secret: got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBearerClientSetsAuthorization(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	resp, err := BearerClient(context.Background(), srv.Client(), "secret").Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if got != "Bearer secret" {
		t.Errorf("Authorization: got %q, want %q", got, "Bearer secret")
	}

	base := srv.Client()
	if c := BearerClient(context.Background(), base, ""); c != base {
		t.Error("empty key should return the base client")
	}
}
