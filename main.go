package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/n0madic/go-agentquery/internal/agent"
	"github.com/n0madic/go-agentquery/internal/config"
	"github.com/n0madic/go-agentquery/internal/logging"
	"github.com/n0madic/go-agentquery/internal/observability"
	"github.com/n0madic/go-agentquery/internal/orchestrator"
	"github.com/n0madic/go-agentquery/internal/server"
	"github.com/n0madic/go-agentquery/internal/stream"
	"github.com/n0madic/go-agentquery/internal/types"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	SettingsPath string
	LogLevel     string
	LogFormat    string
}

// app is the wiring shared by the commands.
type app struct {
	store   *config.FileStore
	logger  *zap.Logger
	metrics *observability.Metrics
	service *agent.Service
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "go-agentquery",
		Short:         "Run prompts through the opencode CLI with HTTP fallback",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.SettingsPath, "config", "", "Path to settings.yaml (default: ~/.config/agentquery/settings.yaml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Log level (debug|info|warn|error), overrides settings")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "Log format (console|json), overrides settings")

	cmd.AddCommand(newQueryCmd(opts))
	cmd.AddCommand(newModelsCmd(opts))
	cmd.AddCommand(newInfoCmd(opts))
	cmd.AddCommand(newUseCmd(opts))
	cmd.AddCommand(newServeCmd(opts))

	return cmd
}

// setup loads settings, builds the logger and initializes the service.
func setup(ctx context.Context, opts *globalOptions) (*app, error) {
	store, err := config.Load(opts.SettingsPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	s := store.Settings()

	level, format := s.Logging.Level, s.Logging.Format
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		format = opts.LogFormat
	}
	logger, err := logging.NewLogger(level, format)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics()
	svc := agent.New(store, logger, metrics)
	if err := svc.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return &app{store: store, logger: logger, metrics: metrics, service: svc}, nil
}

// errCancelled marks a query stopped by the user.
var errCancelled = errors.New("query cancelled")

func exitCode(err error) int {
	if errors.Is(err, errCancelled) {
		return 130
	}
	return 1
}

func newQueryCmd(opts *globalOptions) *cobra.Command {
	var (
		model       string
		system      string
		temperature float64
		maxTokens   int
		thinking    bool
		noStream    bool
		jsonOut     bool
		attachPaths []string
	)

	cmd := &cobra.Command{
		Use:   "query \"<prompt>\"",
		Short: "Send a prompt and stream the response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.TrimSpace(strings.Join(args, " "))
			if prompt == "" {
				return fmt.Errorf("prompt cannot be empty")
			}

			a, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.logger.Sync() //nolint:errcheck

			qopts := types.QueryOptions{
				Model:        model,
				SystemPrompt: system,
				MaxTokens:    maxTokens,
				Thinking:     thinking,
				NoStream:     noStream,
			}
			if cmd.Flags().Changed("temperature") {
				qopts.Temperature = &temperature
			}
			for _, p := range attachPaths {
				att, err := readAttachment(p)
				if err != nil {
					return err
				}
				qopts.Attachments = append(qopts.Attachments, att)
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				<-sigCh
				a.service.Stop()
			}()

			r := newRenderer(cmd.OutOrStdout(), jsonOut)
			var failure stream.Event
			for ev := range a.service.Query(cmd.Context(), prompt, qopts) {
				r.Render(ev)
				if ev.Type == stream.EventError {
					failure = ev
				}
			}
			r.Finish()

			switch {
			case failure.Type == "":
				return nil
			case failure.Error == orchestrator.ErrCancelled.Error():
				return errCancelled
			default:
				return errors.New(failure.Error)
			}
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Model id (provider/model), overrides settings")
	cmd.Flags().StringVar(&system, "system", "", "System prompt")
	cmd.Flags().Float64Var(&temperature, "temperature", 0.7, "Sampling temperature")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Maximum response tokens (0 = backend default)")
	cmd.Flags().BoolVar(&thinking, "thinking", false, "Request extended thinking")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "Use a non-streaming HTTP request when falling back")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print events as JSON lines")
	cmd.Flags().StringSliceVarP(&attachPaths, "attach", "a", nil, "Files to attach (repeatable or comma-separated)")

	return cmd
}

func newModelsCmd(opts *globalOptions) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List available models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			list := a.service.AvailableModels(cmd.Context())
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}
			printModels(cmd.OutOrStdout(), list, a.service.ActiveModel())
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func newInfoCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show discovered executable, config and active backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printInfo(cmd.OutOrStdout(), a)
			return nil
		},
	}
}

func newUseCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "use <model>",
		Short: "Persist the model used by default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if err := a.service.SwitchModel(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n",
				labelStyle.Render("model:"), a.service.ActiveModel(), a.service.ActiveProvider())
			return nil
		},
	}
}

func newServeCmd(opts *globalOptions) *cobra.Command {
	cfg := config.DefaultFromEnv()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an OpenAI-compatible API backed by the query service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.logger.Sync() //nolint:errcheck

			srv := server.New(cfg, a.service, a.logger.Named("server"), a.metrics)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				fmt.Fprintln(os.Stderr, "\nShutting down...")
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx) //nolint:errcheck
			}()

			a.logger.Info("server.start",
				zap.String("addr", srv.Addr()),
				zap.Bool("auth", cfg.AccessToken != ""),
				zap.Bool("metrics", cfg.Metrics),
				zap.String("model", a.service.ActiveModel()),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.Host, "host", cfg.Host, "Bind host")
	cmd.Flags().IntVar(&cfg.Port, "port", cfg.Port, "Listen port")
	cmd.Flags().BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Log every request")
	cmd.Flags().StringVar(&cfg.AccessToken, "access-token", cfg.AccessToken, "Require this bearer token on /v1 routes")
	cmd.Flags().BoolVar(&cfg.Metrics, "metrics", cfg.Metrics, "Serve Prometheus metrics on /metrics")

	return cmd
}
