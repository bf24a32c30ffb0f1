package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"kairo-hq/guardrails/pkg/cli"
	"kairo-hq/guardrails/pkg/config"
	"kairo-hq/guardrails/pkg/guardrail"
	"kairo-hq/guardrails/pkg/guardrail/registry"
	"kairo-hq/guardrails/pkg/guardrail/source"
	"kairo-hq/guardrails/pkg/telemetry/logging"
)

var lintFlags struct {
	strict       bool
	capabilities []string
	format       string
}

var lintCmd = &cobra.Command{
	Use:   "lint [path...]",
	Short: "Validate rule files",
	Long: `Validate rule definition files without loading them into a running engine.

Each file is parsed and compiled on its own, then every file under a
directory is compiled together to catch duplicate rule ids. With --strict,
external rules must name a capability configured under "verifiers" or passed
with --capability.

Examples:
  # Lint a directory
  kairo lint rules/

  # Lint the configured rule path, requiring known capabilities
  kairo lint --config config.yaml --strict

  # JSON output for CI
  kairo lint rules/ --format json`,
	RunE: lintRules,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().BoolVar(&lintFlags.strict, "strict", false, "require external capabilities to be registered")
	lintCmd.Flags().StringSliceVar(&lintFlags.capabilities, "capability", nil, "capability name accepted in strict mode (repeatable)")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
}

// LintResult is the validation result for one file or directory.
type LintResult struct {
	Path  string `json:"path"`
	Valid bool   `json:"valid"`
	Rules int    `json:"rules"`
	Error string `json:"error,omitempty"`
}

type lintReport struct {
	Results []LintResult `json:"results"`
	Invalid int          `json:"invalid"`
}

func lintRules(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(lintFlags.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	paths := args
	if len(paths) == 0 {
		if cfg.Rules.Source != "file" || cfg.Rules.Path == "" {
			return fmt.Errorf("no rule paths given and rules.source is not \"file\"")
		}
		paths = []string{cfg.Rules.Path}
	}

	var opts []registry.LoadOption
	if lintFlags.strict {
		opts = append(opts, registry.WithCapabilities(capabilityNames(cfg, lintFlags.capabilities)...))
	}

	ctx := cmd.Context()
	logger := logging.Discard()
	var report lintReport
	for _, path := range paths {
		report.Results = append(report.Results, lintPath(ctx, path, cfg.Rules.MaxFileSize, logger, opts)...)
	}
	for _, r := range report.Results {
		if !r.Valid {
			report.Invalid++
		}
	}

	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if report.Invalid > 0 {
		return cli.NewExitError(cli.ExitError, fmt.Errorf("%d of %d rule checks failed", report.Invalid, len(report.Results)))
	}
	return nil
}

func capabilityNames(cfg *config.Config, extra []string) []string {
	names := make([]string, 0, len(cfg.Verifiers)+len(extra))
	for name := range cfg.Verifiers {
		names = append(names, name)
	}
	return append(names, extra...)
}

// lintPath compiles every file under path on its own and, when they all
// pass, compiles them together.
func lintPath(ctx context.Context, path string, maxFileSize int64, logger *slog.Logger, opts []registry.LoadOption) []LintResult {
	files, err := source.NewFileSource(path, maxFileSize, logger).Files()
	if err != nil {
		return []LintResult{{Path: path, Error: err.Error()}}
	}
	if len(files) == 0 {
		return []LintResult{{Path: path, Error: "no rule files found"}}
	}

	results := make([]LintResult, 0, len(files)+1)
	var all []guardrail.Rule
	failed := false
	for _, file := range files {
		rules, err := source.NewFileSource(file, maxFileSize, logger).Load(ctx)
		if err == nil {
			_, err = registry.Load(rules, opts...)
		}
		res := LintResult{Path: file, Rules: len(rules), Valid: err == nil}
		if err != nil {
			res.Error = err.Error()
			failed = true
		}
		results = append(results, res)
		all = append(all, rules...)
	}

	if len(files) > 1 && !failed {
		res := LintResult{Path: path, Rules: len(all), Valid: true}
		if _, err := registry.Load(all, opts...); err != nil {
			res.Valid = false
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results
}

// RenderText implements cli.TextRenderer.
func (r lintReport) RenderText(w io.Writer) error {
	for _, res := range r.Results {
		if res.Valid {
			fmt.Fprintf(w, "✓ %s (%d rules)\n", res.Path, res.Rules)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n  %s\n", res.Path, res.Error)
	}
	_, err := fmt.Fprintf(w, "\n%d checked, %d failed\n", len(r.Results), r.Invalid)
	return err
}
