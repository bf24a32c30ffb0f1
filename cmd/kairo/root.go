package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"kairo-hq/guardrails/pkg/cli"
	"kairo-hq/guardrails/pkg/config"
	"kairo-hq/guardrails/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile   string
	envFile   string
	rulesPath string
	verbose   bool

	// logLevel backs every logger built by newLogger. "kairo run" changes it
	// when SIGHUP brings a new telemetry.logging.level.
	logLevel = new(slog.LevelVar)
)

var rootCmd = &cobra.Command{
	Use:   "kairo",
	Short: "Kairo - guardrail compliance checks for AI tutors",
	Long: `Kairo evaluates a student's input and an AI tutor's output against a set
of guardrail rules and returns one action: allow, warn or block.

Rules come from the built-in set, a file or directory, or a Git repository,
and can be reloaded without a restart.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadEnvFile,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) || exitErr.Err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	return cli.ExitCode(err)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults plus KAIRO_* environment when empty)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading configuration (default .env if present)")
	rootCmd.PersistentFlags().StringVarP(&rulesPath, "rules", "r", "", "rule file or directory; overrides rules.source")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadEnvFile loads dotenv variables without overriding the real environment.
func loadEnvFile(cmd *cobra.Command, args []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file %q: %w", envFile, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// loadConfig reads the configuration and applies the --rules override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, err
	}
	applyRulesOverride(cfg)
	return cfg, nil
}

func applyRulesOverride(cfg *config.Config) {
	if rulesPath == "" {
		return
	}
	cfg.Rules.Source = "file"
	cfg.Rules.Path = rulesPath
}

// newLogger builds the command logger. One-shot commands pass quiet so that
// routine load messages stay out of their output unless --verbose is set.
func newLogger(cfg *config.Config, quiet bool) (*slog.Logger, error) {
	lc := logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
		Writer:    os.Stderr,
		LevelVar:  logLevel,
	}
	switch {
	case verbose:
		lc.Level = "debug"
	case quiet:
		lc.Level = "warn"
	}
	return logging.New(lc)
}
