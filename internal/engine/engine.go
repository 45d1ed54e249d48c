// Package engine is the command surface of the remote session engine.
//
// An Engine owns one session.Registry and the components that borrow from
// it: the command executor, the file manager and the monitor sampler. Every
// command takes a typed request keyed by server id and returns a typed
// response. Dispatch exposes the same commands by name for JSON transports.
package engine

import (
	"context"
	"time"

	"github.com/rileyhilliard/myssh/internal/config"
	"github.com/rileyhilliard/myssh/internal/exec"
	"github.com/rileyhilliard/myssh/internal/files"
	"github.com/rileyhilliard/myssh/internal/logger"
	"github.com/rileyhilliard/myssh/internal/metrics"
	"github.com/rileyhilliard/myssh/internal/monitor"
	"github.com/rileyhilliard/myssh/internal/monitor/parsers"
	"github.com/rileyhilliard/myssh/internal/secrets"
	"github.com/rileyhilliard/myssh/internal/session"
	"github.com/rileyhilliard/myssh/internal/store"
	"github.com/rileyhilliard/myssh/pkg/sshutil"
)

// Options configures an Engine.
type Options struct {
	// Config supplies timeouts and limits. Nil means config.DefaultConfig().
	Config *config.Config

	// Dialer establishes transports. Required.
	Dialer sshutil.Dialer

	Logger logger.Logger

	// Store and Secrets back the profile commands. Both optional; profile
	// commands fail with CONFIG when either is missing.
	Store   *store.Store
	Secrets *secrets.Resolver

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Engine wires the registry, executor, file manager and sampler together.
type Engine struct {
	cfg *config.Config
	log logger.Logger

	reg     *session.Registry
	exec    *exec.Executor
	files   *files.Manager
	sampler *monitor.Sampler

	store   *store.Store
	secrets *secrets.Resolver
	metrics *metrics.Metrics

	commands map[string]handler
}

// New builds an Engine. The registry starts empty.
func New(opts Options) *Engine {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Noop()
	}

	reg := session.New(session.OptionsFromConfig(cfg, opts.Dialer, log))
	ex := exec.New(reg, exec.Options{
		DefaultTimeout: cfg.Exec.DefaultTimeout,
		MaxOutputBytes: cfg.Exec.MaxOutputBytes,
		Logger:         log,
	})

	e := &Engine{
		cfg:  cfg,
		log:  logger.With(log, "engine"),
		reg:  reg,
		exec: ex,
		files: files.New(reg, files.Options{
			ChunkSize: cfg.Files.ChunkSize,
			Logger:    log,
		}),
		sampler: monitor.NewSampler(reg, ex, monitor.Options{
			Battery:        parsers.Battery,
			SampleWindow:   cfg.Monitor.SampleWindow,
			CommandTimeout: cfg.Monitor.CommandTimeout,
			Concurrency:    cfg.Monitor.Concurrency,
			Logger:         log,
		}),
		store:   opts.Store,
		secrets: opts.Secrets,
		metrics: opts.Metrics,
	}
	if e.metrics != nil {
		e.metrics.Watch(reg)
	}
	e.commands = e.commandTable()
	return e
}

// Start launches the keepalive loop and returns immediately. The loop stops
// when ctx is done or Close is called.
func (e *Engine) Start(ctx context.Context) {
	e.reg.Start(ctx)
}

// Close disconnects every session.
func (e *Engine) Close() {
	e.reg.Close()
}

// Registry exposes the session registry.
func (e *Engine) Registry() *session.Registry {
	return e.reg
}

func (e *Engine) timeout(ms int64) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
