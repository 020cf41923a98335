// Package agent is the single entry point for running queries. It owns the
// discovery state and the cancellation handle of the call in flight.
package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/n0madic/go-agentquery/internal/backend"
	"github.com/n0madic/go-agentquery/internal/config"
	"github.com/n0madic/go-agentquery/internal/discovery"
	"github.com/n0madic/go-agentquery/internal/models"
	"github.com/n0madic/go-agentquery/internal/observability"
	"github.com/n0madic/go-agentquery/internal/orchestrator"
	"github.com/n0madic/go-agentquery/internal/runner"
	"github.com/n0madic/go-agentquery/internal/stream"
	"github.com/n0madic/go-agentquery/internal/transform"
	"github.com/n0madic/go-agentquery/internal/types"
	"github.com/n0madic/go-agentquery/internal/upstream"
)

// ErrNotInitialized is reported by queries issued before Initialize.
var ErrNotInitialized = errors.New("service not initialized")

// eventBuffer is the capacity of a query's event channel.
const eventBuffer = 32

// terminalGrace bounds how long a cancelled call waits for its reader to
// take the terminal event before dropping it.
var terminalGrace = time.Second

// Service runs queries against the resolved backend. At most one query is
// owned at a time: a new Query supersedes the previous one.
type Service struct {
	store   config.Store
	logger  *zap.Logger
	metrics *observability.Metrics
	runner  *runner.Runner
	client  *upstream.Client

	// OnAttempt, when set before queries start, receives every fallback
	// attempt.
	OnAttempt func(orchestrator.Attempt)

	mu         sync.Mutex
	ready      bool
	discovered *discovery.Discovered
	registry   *models.Registry
	active     *call
	seq        uint64
}

// call is the cancellation handle of one query.
type call struct {
	id     uint64
	cancel context.CancelFunc
}

// New creates an uninitialized service reading settings from store.
func New(store config.Store, logger *zap.Logger, metrics *observability.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		logger:  logger,
		metrics: metrics,
		runner:  runner.New(logger.Named("runner"), metrics),
		client:  upstream.NewClient(logger.Named("upstream")),
	}
}

// Initialize discovers the CLI executable, its config and credentials. It
// may be called again to pick up changes on disk.
func (s *Service) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	settings := s.store.Settings()
	d := discovery.Discover(settings, s.logger.Named("discovery"))
	reg := models.NewRegistry(d.ExecutablePath, s.logger.Named("models"))

	s.mu.Lock()
	s.discovered = d
	s.registry = reg
	s.ready = true
	s.mu.Unlock()

	sel := backend.Resolve("", settings, d)
	s.logger.Info("agent.initialized",
		zap.String("executable", d.ExecutablePath),
		zap.String("config", d.ConfigPath),
		zap.String("model", sel.Model),
		zap.String("backend", string(sel.Kind)),
	)
	return nil
}

// IsReady reports whether Initialize has completed.
func (s *Service) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// ExecutablePath returns the discovered CLI path, or "" when none.
func (s *Service) ExecutablePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discovered == nil {
		return ""
	}
	return s.discovered.ExecutablePath
}

func (s *Service) snapshot() (config.Settings, *discovery.Discovered) {
	s.mu.Lock()
	d := s.discovered
	s.mu.Unlock()
	return s.store.Settings(), d
}

// Selection resolves the backend a query without a model override would
// use right now.
func (s *Service) Selection() backend.Selection {
	settings, d := s.snapshot()
	return backend.Resolve("", settings, d)
}

// ActiveModel returns the full id of the model queries currently target.
func (s *Service) ActiveModel() string {
	return s.Selection().Model
}

// ActiveProvider returns the provider id of the current selection.
func (s *Service) ActiveProvider() string {
	return s.Selection().Provider
}

// HasValidConfig reports whether queries have a usable backend without
// further setup: local mode, free models with no config of their own, or a
// selection that carries credentials.
func (s *Service) HasValidConfig() bool {
	settings, d := s.snapshot()
	if settings.LocalModel.Enabled {
		return true
	}
	if settings.UseFreeModels && (d == nil || d.Config == nil) {
		return true
	}
	return backend.Resolve("", settings, d).Credentials != ""
}

// SwitchModel persists id as the selected model and re-resolves the
// backend.
func (s *Service) SwitchModel(id string) error {
	id = strings.TrimSpace(id)
	if err := s.store.Update(func(st *config.Settings) { st.Model = id }); err != nil {
		return err
	}
	sel := s.Selection()
	s.logger.Info("agent.model_switched",
		zap.String("requested", id),
		zap.String("model", sel.Model),
		zap.String("provider", sel.Provider),
		zap.String("backend", string(sel.Kind)),
	)
	return nil
}

// AvailableModels lists the models a caller may pick from. Zen models are
// included when a gateway key is known.
func (s *Service) AvailableModels(ctx context.Context) []models.Model {
	settings, d := s.snapshot()
	s.mu.Lock()
	reg := s.registry
	s.mu.Unlock()

	opts := models.CatalogOptions{
		IncludeZen: backend.GatewayKey(settings, d) != "",
		Registry:   reg,
	}
	if settings.LocalModel.Enabled {
		opts.LocalModel = settings.LocalModel.Model
	}
	return models.Catalog(ctx, opts)
}

// Stop cancels the query in flight, if any.
func (s *Service) Stop() {
	s.mu.Lock()
	c := s.active
	s.active = nil
	s.mu.Unlock()
	if c != nil {
		s.logger.Debug("agent.stop", zap.Uint64("call", c.id))
		c.cancel()
	}
}

// Query starts a query and returns its events. The channel yields text and
// thinking events followed by exactly one done or error event, then closes.
// Callers must drain it; after Stop or supersession a reader that stops
// reading loses the terminal event instead of pinning the call.
func (s *Service) Query(ctx context.Context, prompt string, opts types.QueryOptions) <-chan stream.Event {
	out := make(chan stream.Event, eventBuffer)

	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		out <- stream.Error(ErrNotInitialized.Error())
		close(out)
		return out
	}
	if s.active != nil {
		s.logger.Debug("agent.supersede", zap.Uint64("call", s.active.id))
		s.active.cancel()
	}
	s.seq++
	callCtx, cancel := context.WithCancel(ctx)
	c := &call{id: s.seq, cancel: cancel}
	s.active = c
	d := s.discovered
	s.mu.Unlock()

	go s.run(callCtx, c, prompt, opts, s.store.Settings(), d, out)
	return out
}

// release clears the active handle if it still belongs to c.
func (s *Service) release(c *call) {
	s.mu.Lock()
	if s.active == c {
		s.active = nil
	}
	s.mu.Unlock()
	c.cancel()
}

func (s *Service) run(ctx context.Context, c *call, prompt string, opts types.QueryOptions, settings config.Settings, d *discovery.Discovered, out chan<- stream.Event) {
	defer close(out)
	defer s.release(c)

	start := time.Now()
	s.metrics.IncActive()
	defer s.metrics.DecActive()

	sel := resolveForCall(opts, settings, d)
	log := s.logger.With(zap.Uint64("call", c.id), zap.String("model", sel.Model), zap.String("backend", string(sel.Kind)))

	emit := func(ev stream.Event) {
		s.metrics.RecordEvent(string(ev.Type))
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	}
	finish := func(ev stream.Event, outcome string) {
		s.metrics.RecordEvent(string(ev.Type))
		s.metrics.RecordQuery(outcome, string(sel.Kind), time.Since(start))
		if ctx.Err() == nil {
			out <- ev
			return
		}
		t := time.NewTimer(terminalGrace)
		defer t.Stop()
		select {
		case out <- ev:
		case <-t.C:
			log.Debug("agent.terminal_dropped", zap.String("type", string(ev.Type)))
		}
	}

	strategies, err := s.plan(sel, opts, prompt, settings, d, log)
	if err != nil {
		log.Warn("agent.plan_failed", zap.Error(err))
		finish(stream.Error(err.Error()), "error")
		return
	}

	orch := orchestrator.New(settings.StrategyBackoff, log.Named("orchestrator"), s.metrics)
	orch.OnAttempt = s.OnAttempt
	err = orch.Run(ctx, strategies, emit)

	switch {
	case errors.Is(err, orchestrator.ErrCancelled) || (err != nil && ctx.Err() != nil):
		log.Info("agent.cancelled")
		finish(stream.Error(orchestrator.ErrCancelled.Error()), "cancelled")
	case err != nil:
		log.Warn("agent.failed", zap.Error(err))
		finish(stream.Error(err.Error()), "error")
	default:
		log.Debug("agent.done", zap.Duration("elapsed", time.Since(start)))
		finish(stream.Done(), "done")
	}
}

// resolveForCall applies per-call overrides on top of the resolved backend.
func resolveForCall(opts types.QueryOptions, settings config.Settings, d *discovery.Discovered) backend.Selection {
	sel := backend.Resolve(opts.Model, settings, d)
	if opts.Temperature != nil {
		sel.Temperature = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		sel.MaxTokens = opts.MaxTokens
	}
	return sel
}

func (s *Service) plan(sel backend.Selection, opts types.QueryOptions, prompt string, settings config.Settings, d *discovery.Discovered, log *zap.Logger) ([]orchestrator.Strategy, error) {
	msgs := transform.BuildMessages(prompt, opts)
	cliSel := sel.ForCLI()
	payload, err := transform.CLIPayload(cliSel, msgs)
	if err != nil {
		return nil, err
	}
	exe := ""
	if d != nil {
		exe = d.ExecutablePath
	}
	return orchestrator.Plan(orchestrator.PlanInput{
		Executable:  exe,
		Selection:   sel,
		DisableHTTP: settings.DisableAPIFallback,
		CLIArgs:     transform.CLIArgs(cliSel, opts.Thinking),
		CLIPayload:  payload,
		TempDir:     runner.TempDir(settings.TempDir),
		Timeout:     settings.CLITimeout,
		HTTPRequest: transform.BuildRequest(sel, msgs, transform.Params{
			Stream:   !opts.NoStream,
			Thinking: opts.Thinking,
			Tools:    opts.Tools,
		}),
		Runner: s.runner,
		Client: s.client,
		Logger: log.Named("cli"),
	})
}
