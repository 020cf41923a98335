package models

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeModelsCommand(t *testing.T, fn func(args []string) ([]byte, error)) *atomic.Int32 {
	t.Helper()
	var calls atomic.Int32
	orig := runModelsCommand
	runModelsCommand = func(_ context.Context, _ string, args ...string) ([]byte, error) {
		calls.Add(1)
		return fn(args)
	}
	t.Cleanup(func() { runModelsCommand = orig })
	return &calls
}

func TestParseCLIModelsJSON(t *testing.T) {
	out := []byte(`[
		{"id":"anthropic/claude-sonnet-4-5","name":"Claude Sonnet 4.5","provider":"anthropic"},
		{"name":"gpt-4o","provider":"openai"},
		{"id":"deepseek/deepseek-chat"},
		"openrouter/qwen/qwen3",
		{"id":"anthropic/claude-sonnet-4-5"}
	]`)
	got := ParseCLIModels(out)
	require.Len(t, got, 4)
	assert.Equal(t, "Claude Sonnet 4.5", got[0].Name)
	assert.Equal(t, "openai/gpt-4o", got[1].ID)
	assert.Equal(t, "deepseek", got[2].Provider)
	assert.Equal(t, "deepseek/deepseek-chat", got[2].Name)
	assert.Equal(t, "openrouter", got[3].Provider)
	for _, m := range got {
		assert.Equal(t, "cli", m.Source)
	}
}

func TestParseCLIModelsText(t *testing.T) {
	out := []byte("Available models:\n  anthropic/claude-haiku-4-5  (default)\n\nopenai/gpt-5\nnot a model\n")
	got := ParseCLIModels(out)
	require.Len(t, got, 2)
	assert.Equal(t, "anthropic/claude-haiku-4-5", got[0].ID)
	assert.Equal(t, "openai", got[1].Provider)
}

func TestRegistryFallsBackToPlainModelsCommand(t *testing.T) {
	var seen []string
	fakeModelsCommand(t, func(args []string) ([]byte, error) {
		seen = append(seen, strings.Join(args, " "))
		if len(args) > 1 {
			return nil, errors.New("unknown flag --format")
		}
		return []byte("openai/gpt-5\n"), nil
	})

	r := NewRegistry("/bin/opencode", nil)
	got := r.GetModels(context.Background())
	require.Len(t, got, 1)
	assert.Equal(t, []string{"models --format json", "models"}, seen)
}

func TestRegistryCachesWithinTTL(t *testing.T) {
	calls := fakeModelsCommand(t, func([]string) ([]byte, error) {
		return []byte(`[{"id":"openai/gpt-5"}]`), nil
	})

	r := NewRegistry("/bin/opencode", nil)
	r.GetModels(context.Background())
	r.GetModels(context.Background())
	assert.Equal(t, int32(1), calls.Load())
}

func TestRegistryFailedFetchNotRetriedInline(t *testing.T) {
	calls := fakeModelsCommand(t, func([]string) ([]byte, error) {
		return nil, errors.New("boom")
	})

	r := NewRegistry("/bin/opencode", nil)
	assert.Empty(t, r.GetModels(context.Background()))
	assert.Empty(t, r.GetModels(context.Background()))
	// one fetch = two command attempts (json, then plain)
	assert.Equal(t, int32(2), calls.Load())

	_, err := r.Refresh(context.Background())
	assert.Error(t, err)
}

func TestRegistryStaleRefreshesInBackground(t *testing.T) {
	calls := fakeModelsCommand(t, func([]string) ([]byte, error) {
		return []byte(`["openai/gpt-5"]`), nil
	})

	r := NewRegistry("/bin/opencode", nil)
	r.GetModels(context.Background())
	r.mu.Lock()
	r.lastFetch = time.Now().Add(-2 * cacheTTL)
	r.mu.Unlock()

	got := r.GetModels(context.Background())
	require.Len(t, got, 1)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 10*time.Millisecond)
}

func TestRegistryWithoutExecutable(t *testing.T) {
	calls := fakeModelsCommand(t, func([]string) ([]byte, error) { return nil, nil })
	var nilReg *Registry
	assert.Nil(t, nilReg.GetModels(context.Background()))
	assert.Nil(t, NewRegistry("", nil).GetModels(context.Background()))
	assert.Equal(t, int32(0), calls.Load())
}

func TestCatalogComposition(t *testing.T) {
	fakeModelsCommand(t, func([]string) ([]byte, error) {
		return []byte(`[{"id":"opencode/big-pickle"},{"id":"xai/grok-4"}]`), nil
	})
	r := NewRegistry("/bin/opencode", nil)

	without := Catalog(context.Background(), CatalogOptions{Registry: r})
	ids := map[string]string{}
	for _, m := range without {
		ids[m.ID] = m.Source
	}
	assert.Equal(t, "free", ids["opencode/big-pickle"])
	assert.Equal(t, "cli", ids["xai/grok-4"])
	assert.Equal(t, "popular", ids["openai/gpt-5"])
	_, hasZen := ids["opencode/gpt-5.2"]
	assert.False(t, hasZen)

	with := Catalog(context.Background(), CatalogOptions{IncludeZen: true, LocalModel: "qwen"})
	last := with[len(with)-1]
	assert.Equal(t, "local/qwen", last.ID)
	found := false
	for _, m := range with {
		if m.ID == "opencode/gpt-5.2" {
			found = true
		}
	}
	assert.True(t, found)
}
