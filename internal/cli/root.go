// Package cli wires configuration, transport, tokenizer and persistence into
// the chat command and its helpers.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/petasbytes/budgetchat/internal/config"
	"github.com/petasbytes/budgetchat/internal/logging"
	"github.com/petasbytes/budgetchat/internal/metrics"
	"github.com/petasbytes/budgetchat/internal/provider"
	"github.com/petasbytes/budgetchat/internal/runner"
	"github.com/petasbytes/budgetchat/internal/telemetry"
	"github.com/petasbytes/budgetchat/internal/tokenizer"
	"github.com/petasbytes/budgetchat/memory"
)

// App holds the process-level dependencies commands run against. Zero fields
// fall back to the real process streams, the OS filesystem and a default
// HTTP client.
type App struct {
	In         io.Reader
	Out        io.Writer
	Err        io.Writer
	Fs         afero.Fs
	HTTPClient *http.Client
}

func (a *App) defaults() {
	if a.In == nil {
		a.In = os.Stdin
	}
	if a.Out == nil {
		a.Out = os.Stdout
	}
	if a.Err == nil {
		a.Err = os.Stderr
	}
	if a.Fs == nil {
		a.Fs = afero.NewOsFs()
	}
	if a.HTTPClient == nil {
		a.HTTPClient = &http.Client{}
	}
}

// Execute runs the chat command with SIGINT/SIGTERM cancelling its context
// and returns the process exit code.
func Execute() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := NewRootCmd(App{}).ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

// NewRootCmd builds the command tree.
func NewRootCmd(app App) *cobra.Command {
	app.defaults()

	var configFile string
	root := &cobra.Command{
		Use:   "chat",
		Short: "Conversational agent with a token-budgeted context window",
		Long: `chat holds a conversation with an LLM, keeping the history it sends within a
token budget. The system message is always kept; the oldest turns after it are
dropped first. History is persisted as JSON between sessions.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, configFile)
			if err != nil {
				return err
			}
			return runChat(cmd.Context(), app, cfg)
		},
	}
	root.SetIn(app.In)
	root.SetOut(app.Out)
	root.SetErr(app.Err)

	pf := root.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "YAML config file (default .budgetchat.yaml in the working or home directory)")
	pf.String("provider", "openai", "Completion provider: openai or anthropic")
	pf.String("base-url", "", "Base URL of the provider API (openai default "+config.DefaultBaseURL+")")
	pf.StringP("model", "m", config.DefaultModel, "Model name")
	pf.Float64P("temperature", "t", 0.1, "Sampling temperature")
	pf.Int("max-tokens", 1024, "Maximum tokens to generate per reply")
	pf.Int("token-limit", config.DefaultTokenLimit, "Token budget for the history sent with each request")
	pf.String("encoding", tokenizer.DefaultEncoding, "Token encoding used to measure the budget ('heuristic' counts runes)")
	pf.String("history-file", config.DefaultHistoryFile, "Where conversation history is persisted")
	pf.Bool("stream", true, "Stream replies as they are generated")
	pf.Duration("timeout", 5*time.Minute, "Timeout for each completion request")
	pf.String("log-level", "warn", "Log level: debug, info, warn or error")
	pf.Bool("observe", false, "Write local JSONL turn events")
	pf.String("events-dir", ".agent", "Directory for JSONL events")
	pf.String("metrics-addr", "", "Serve Prometheus metrics on this address (host:port)")

	root.AddCommand(
		newHistoryCmd(app, &configFile),
		newResetCmd(app, &configFile),
		newCountCmd(app, &configFile),
	)
	return root
}

func loadConfig(cmd *cobra.Command, configFile string) (config.Config, error) {
	return config.Load(config.Options{ConfigFile: configFile, Flags: cmd.Flags()})
}

func runChat(ctx context.Context, app App, cfg config.Config) error {
	if err := cfg.RequireCredentials(); err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, app.Err)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	counter, err := tokenizer.ForEncoding(cfg.Encoding)
	if err != nil {
		return err
	}
	completer, err := provider.New(cfg, app.HTTPClient)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder()
	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr, recorder, logger)
		defer stop()
	}

	r := runner.New(runner.Deps{
		Completer: completer,
		Counter:   counter,
		Store:     memory.NewStore(app.Fs, cfg.HistoryFile),
		Config:    cfg,
		Logger:    logger,
		Emitter:   telemetry.NewEmitter(app.Fs, cfg.Observe, cfg.EventsDir, logger),
		Recorder:  recorder,
		In:        app.In,
		Out:       app.Out,
		Labels:    labelsFor(app.Out),
	})
	return r.Run(ctx)
}

// serveMetrics exposes /metrics until the returned stop func is called.
func serveMetrics(addr string, rec *metrics.Recorder, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
}

func printf(w io.Writer, format string, a ...any) {
	_, _ = fmt.Fprintf(w, format, a...)
}
