package models

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// cacheTTL is how long the CLI model list is served before a background refresh.
const cacheTTL = 5 * time.Minute

// listTimeout bounds one `models` invocation.
const listTimeout = 30 * time.Second

// runModelsCommand is a function variable so tests can fake the CLI.
var runModelsCommand = func(ctx context.Context, executable string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, executable, args...).Output()
}

var modelIDPattern = regexp.MustCompile(`(\S+/\S+)`)

// Registry caches the model list reported by the CLI.
type Registry struct {
	mu         sync.RWMutex
	fetchMu    sync.Mutex // prevents concurrent fetches
	executable string
	logger     *zap.Logger
	models     []Model
	lastFetch  time.Time
}

// NewRegistry returns a registry that lists models through executable. An
// empty executable yields a registry that never reports models.
func NewRegistry(executable string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{executable: executable, logger: logger}
}

// GetModels returns the cached list. The first call blocks on a fetch; a
// stale cache is returned immediately and refreshed in the background.
func (r *Registry) GetModels(ctx context.Context) []Model {
	if r == nil || r.executable == "" {
		return nil
	}
	r.mu.RLock()
	age := time.Since(r.lastFetch)
	fetched := !r.lastFetch.IsZero()
	cached := r.models
	r.mu.RUnlock()

	if !fetched {
		r.fetchMu.Lock()
		r.mu.RLock()
		fetched = !r.lastFetch.IsZero()
		r.mu.RUnlock()
		if !fetched {
			if err := r.doFetch(ctx); err != nil {
				r.logger.Warn("models.fetch_failed", zap.Error(err))
			}
		}
		r.fetchMu.Unlock()
		r.mu.RLock()
		cached = r.models
		r.mu.RUnlock()
		return cached
	}

	if age >= cacheTTL {
		go func() {
			r.fetchMu.Lock()
			defer r.fetchMu.Unlock()
			if err := r.doFetch(context.Background()); err != nil {
				r.logger.Warn("models.refresh_failed", zap.Error(err))
			}
		}()
	}
	return cached
}

// Refresh forces a synchronous fetch.
func (r *Registry) Refresh(ctx context.Context) ([]Model, error) {
	if r == nil || r.executable == "" {
		return nil, nil
	}
	r.fetchMu.Lock()
	defer r.fetchMu.Unlock()
	err := r.doFetch(ctx)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.models, err
}

// doFetch runs the CLI and stores the result. A failed fetch still records
// the attempt time so callers are not blocked on every call. Caller must
// hold fetchMu.
func (r *Registry) doFetch(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	out, err := runModelsCommand(ctx, r.executable, "models", "--format", "json")
	if err != nil || strings.TrimSpace(string(out)) == "" {
		out, err = runModelsCommand(ctx, r.executable, "models")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFetch = time.Now()
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	r.models = ParseCLIModels(out)
	r.logger.Debug("models.fetched", zap.Int("count", len(r.models)))
	return nil
}

// ParseCLIModels decodes `models` output: a JSON array of objects, or plain
// text with one "provider/model" id per line.
func ParseCLIModels(out []byte) []Model {
	res := gjson.ParseBytes(out)
	if res.IsArray() {
		var list []Model
		res.ForEach(func(_, item gjson.Result) bool {
			if item.Type == gjson.String {
				list = append(list, modelFromID(item.String()))
				return true
			}
			id := item.Get("id").String()
			name := item.Get("name").String()
			provider := item.Get("provider").String()
			if id == "" && name != "" {
				id = provider + "/" + name
			}
			if id == "" {
				return true
			}
			if name == "" {
				name = id
			}
			if provider == "" {
				provider, _ = SplitID(id)
			}
			if provider == "" {
				provider = "unknown"
			}
			list = append(list, Model{ID: id, Name: name, Provider: provider, Source: "cli"})
			return true
		})
		return Merge(list)
	}

	var list []Model
	for _, line := range strings.Split(string(out), "\n") {
		if m := modelIDPattern.FindStringSubmatch(line); m != nil {
			list = append(list, modelFromID(m[1]))
		}
	}
	return Merge(list)
}

func modelFromID(id string) Model {
	provider, _ := SplitID(id)
	return Model{ID: id, Name: id, Provider: provider, Source: "cli"}
}

// CatalogOptions selects the sources merged by Catalog.
type CatalogOptions struct {
	IncludeZen bool
	Registry   *Registry
	LocalModel string // non-empty when local mode is enabled
}

// Catalog merges free, zen, CLI-reported, popular and local models,
// keeping the first entry per id.
func Catalog(ctx context.Context, opts CatalogOptions) []Model {
	lists := [][]Model{FreeModels()}
	if opts.IncludeZen {
		lists = append(lists, ZenModels())
	}
	lists = append(lists, opts.Registry.GetModels(ctx), PopularModels())
	if opts.LocalModel != "" {
		lists = append(lists, []Model{LocalModel(opts.LocalModel)})
	}
	return Merge(lists...)
}
