package cli

import (
	"github.com/rileyhilliard/myssh/internal/config"
	"github.com/rileyhilliard/myssh/internal/engine"
	"github.com/rileyhilliard/myssh/internal/logger"
	"github.com/rileyhilliard/myssh/internal/metrics"
	"github.com/rileyhilliard/myssh/internal/secrets"
	"github.com/rileyhilliard/myssh/internal/store"
	"github.com/rileyhilliard/myssh/pkg/sshutil"
)

// newDialer builds the transport dialer from config. Tests replace it with
// the in-memory mock.
var newDialer = func(c *config.Config, log logger.Logger) sshutil.Dialer {
	d := sshutil.NewSSHDialer(c.SSH.ConnectTimeout)
	d.StrictHostKeyChecking = c.SSH.StrictHostKeyChecking
	d.KnownHostsPath = c.SSH.KnownHosts
	d.UseSSHConfig = c.SSH.UseSSHConfig
	d.Logger = log
	return d
}

// app is one process's engine plus the profile store behind it.
type app struct {
	eng   *engine.Engine
	store *store.Store
	log   logger.Logger
}

type appOptions struct {
	// Logger overrides the CLI logger (serve uses zap).
	Logger  logger.Logger
	Metrics *metrics.Metrics
}

// cliLogger is silent unless --verbose.
func cliLogger() logger.Logger {
	if verbose {
		return logger.NewEnvLogger("[myssh]")
	}
	return logger.Noop()
}

// openApp opens the profile store and secret key under the data dir and
// builds an engine over them.
func openApp(opts appOptions) (*app, error) {
	log := opts.Logger
	if log == nil {
		log = cliLogger()
	}

	st, err := store.Open(cfg.DatabasePath(), log)
	if err != nil {
		return nil, err
	}
	sec, err := secrets.New(cfg.Secrets.Key, cfg.Store.DataDir)
	if err != nil {
		st.Close()
		return nil, err
	}

	eng := engine.New(engine.Options{
		Config:  cfg,
		Dialer:  newDialer(cfg, log),
		Logger:  log,
		Store:   st,
		Secrets: sec,
		Metrics: opts.Metrics,
	})
	return &app{eng: eng, store: st, log: log}, nil
}

// Close disconnects every session, then closes the store.
func (a *app) Close() {
	a.eng.Close()
	if err := a.store.Close(); err != nil {
		a.log.Warn("closing store: %v", err)
	}
}
