package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/simcoach/simcoach/internal/api"
	"github.com/simcoach/simcoach/internal/config"
	"github.com/simcoach/simcoach/internal/credential"
	"github.com/simcoach/simcoach/internal/log"
	"github.com/simcoach/simcoach/internal/observability"
	"github.com/simcoach/simcoach/internal/rest"
	"github.com/simcoach/simcoach/internal/training"
)

// sendRate throttles message sends in the training REPL so a held-down
// enter key cannot flood the backend.
var sendRate = rate.Limit(1)

// Runtime bundles everything a command needs: configuration, logger,
// credential store and the API client. Commands build it on demand and
// must call Close when done.
type Runtime struct {
	Config *config.Config
	Logger log.Logger
	Creds  *credential.Store
	API    *api.Client

	tracerShutdown func(context.Context) error
}

// newRuntime wires the full stack from configuration.
func newRuntime(ctx context.Context) (*Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})

	creds, err := credential.New(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("opening credential store: %w", err)
	}

	tracer, tracerShutdown, err := observability.Setup(ctx, observability.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: cfg.Telemetry.Environment,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}

	transport, err := rest.New(rest.Config{
		APIRoot: cfg.APIRoot(),
		Tokens:  creds,
		Logger:  logger,
		Timeout: cfg.RequestTimeout,
		Tracer:  tracer,
	})
	if err != nil {
		return nil, fmt.Errorf("creating http client: %w", err)
	}

	client, err := api.New(transport, logger)
	if err != nil {
		return nil, fmt.Errorf("creating api client: %w", err)
	}

	return &Runtime{
		Config:         cfg,
		Logger:         logger,
		Creds:          creds,
		API:            client,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Engine builds a training lifecycle engine on top of the runtime's API
// client, seeded with the configured fallback scenario.
func (r *Runtime) Engine() (*training.Engine, error) {
	return training.NewEngine(training.Config{
		API:    r.API,
		Logger: r.Logger,
		Fallback: training.Scenario{
			Title:        r.Config.Scenario.Title,
			SystemPrompt: r.Config.Scenario.SystemPrompt,
			Greeting:     r.Config.Scenario.Greeting,
		},
		RateLimiter: rate.NewLimiter(sendRate, 3),
	})
}

// Claims returns the decoded claims of the stored token. It fails with
// credential.ErrNoToken when signed out.
func (r *Runtime) Claims() (*credential.Claims, error) {
	return r.Creds.Claims()
}

// RequireAuth fails unless a non-expired token is stored.
func (r *Runtime) RequireAuth() error {
	if !r.Creds.Authenticated(time.Now()) {
		return fmt.Errorf("not signed in or session expired, run %q first", "simcoach login")
	}
	return nil
}

// Close flushes pending telemetry.
func (r *Runtime) Close(ctx context.Context) {
	if r.tracerShutdown == nil {
		return
	}
	flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.tracerShutdown(flushCtx); err != nil {
		r.Logger.Warn("telemetry shutdown error", "error", err)
	}
}
