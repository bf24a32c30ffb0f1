package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kairo-hq/guardrails/pkg/cli"
	"kairo-hq/guardrails/pkg/config"
	"kairo-hq/guardrails/pkg/guardrail/manager"
	"kairo-hq/guardrails/pkg/telemetry/health"
	"kairo-hq/guardrails/pkg/telemetry/logging"
	"kairo-hq/guardrails/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load rules and serve health and metrics endpoints",
	Long: `Load the configured rules, keep them current and serve the operations
endpoints until SIGINT or SIGTERM.

Rules reload when files change (rules.watch), on rules.reload_schedule, and
on SIGHUP. A reload that fails keeps the previous rules active. SIGHUP also
re-reads the config file and applies telemetry.logging.level.

Examples:
  # Start with a config file
  kairo run --config /etc/kairo/config.yaml

  # Override listen address
  kairo run --listen 0.0.0.0:9090

  # Validate config and rules without serving
  kairo run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "load config and rules without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	loaded := config.GetConfig()
	if loaded == nil {
		return fmt.Errorf("configuration not loaded")
	}
	cfg := *loaded
	applyRulesOverride(&cfg)
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	logger, err := newLogger(&cfg, false)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	eng, err := newEngine(ctx, &cfg, logger, engineOptions{withTelemetry: true})
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := eng.Close(shutdownCtx); err != nil {
			logger.Error("Shutdown failed", "error", err)
		}
	}()

	status := eng.manager.Status()
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Rules loaded (%d rules from %s, version %s)\n",
		status.RuleCount, status.Source, shortVersion(status.RuleVersion))

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	if err := eng.manager.Start(ctx, manager.StartOptionsFromConfig(&cfg.Rules)); err != nil {
		return cli.NewCommandError("run", err)
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	ln, err := net.Listen("tcp", cfg.Server.ListenAddress)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	srv := &http.Server{
		Handler:      newOpsHandler(eng, &cfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	logger.Info("Operations server listening", "address", ln.Addr().String())
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Listening on %s\n", ln.Addr())
	if cfg.Telemetry.Health.Enabled {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Readiness endpoint: http://%s%s\n", ln.Addr(), cfg.Telemetry.Health.ReadinessPath)
	}
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Metrics endpoint: http://%s%s\n", ln.Addr(), cfg.Telemetry.Metrics.Path)
	}

	for {
		select {
		case err := <-errChan:
			return cli.NewCommandError("run", err)
		case <-hup:
			logger.Info("Received SIGHUP, reloading")
			reloadLogLevel(logger)
			// Failures are logged by the manager and leave the current rules active.
			_ = eng.manager.Reload(ctx)
		case <-ctx.Done():
			logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return cli.NewCommandError("run", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Server stopped")
			return nil
		}
	}
}

// reloadLogLevel re-reads the config file and applies its log level. Other
// settings need a restart. Flags given on the command line keep precedence.
func reloadLogLevel(logger *slog.Logger) {
	if cfgFile == "" || runFlags.logLevel != "" || verbose {
		return
	}
	if err := config.ReloadConfig(cfgFile); err != nil {
		logger.Error("Config reload failed, keeping current settings", "path", cfgFile, "error", err)
		return
	}
	name := config.GetConfig().Telemetry.Logging.Level
	level, err := logging.ParseLevel(name)
	if err != nil {
		logger.Error("Config reload failed, keeping current settings", "path", cfgFile, "error", err)
		return
	}
	if level != logLevel.Level() {
		logger.Info("Log level changed", "from", logLevel.Level().String(), "to", level.String())
		logLevel.Set(level)
	}
}

// newOpsHandler serves the health, version and metrics endpoints.
func newOpsHandler(eng *engine, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()
	holder := eng.manager.Holder()

	if cfg.Telemetry.Health.Enabled {
		checker := health.New(cfg.Telemetry.Health.CheckTimeout)
		checker.RegisterCheck("rules", health.RulesCheck(holder))
		if eng.redis != nil {
			checker.RegisterOptionalCheck("redis", health.RedisCheck(eng.redis))
		}
		ruleVersion := func() string {
			if reg := holder.Current(); reg != nil {
				return reg.Version()
			}
			return ""
		}
		checker.Mount(mux, &cfg.Telemetry.Health, health.VersionHandler(Version, GitCommit, BuildDate, ruleVersion))
	}

	if cfg.Telemetry.Metrics.Enabled && eng.collector != nil {
		mux.Handle(cfg.Telemetry.Metrics.Path, eng.collector.Handler())
	}

	return tracing.HTTPMiddleware(mux)
}
