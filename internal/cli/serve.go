package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rileyhilliard/myssh/internal/api"
	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/logger"
	"github.com/rileyhilliard/myssh/internal/metrics"
	"github.com/spf13/cobra"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the command surface over HTTP",
	Long: `Run the engine as a long-lived process. Sessions persist between requests
and are kept alive in the background.

  POST /api/v1/commands/{name}   run a command with a JSON body
  GET  /api/v1/commands          list command names
  GET  /api/v1/sessions          list sessions
  GET  /metrics                  Prometheus metrics
  GET  /health                   liveness

Examples:
  myssh serve
  myssh serve --listen 0.0.0.0:7420
  MYSSH_LOG_FORMAT=json myssh serve`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.Server.Listen
		if serveListen != "" {
			addr = serveListen
		}

		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		log, zl, err := logger.NewZap(logger.ZapConfig{Level: level, Format: cfg.Log.Format})
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, "Failed to set up logging", "Check log.level and log.format")
		}
		defer func() { _ = zl.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		m := metrics.New()
		a, err := openApp(appOptions{Logger: log, Metrics: m})
		if err != nil {
			return err
		}
		defer a.Close()
		a.eng.Start(ctx)

		if cfgPath != "" {
			log.Info("config loaded from %s", cfgPath)
		}
		return api.New(a.eng, m, log).ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (default from server.listen)")
	rootCmd.AddCommand(serveCmd)
}
