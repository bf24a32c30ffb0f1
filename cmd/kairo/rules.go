package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kairo-hq/guardrails/pkg/cli"
	"kairo-hq/guardrails/pkg/guardrail"
	"kairo-hq/guardrails/pkg/guardrail/registry"
)

var rulesFlags struct {
	format string
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect the active rules",
	Long: `Inspect the rules that the configured source loads.

Examples:
  # List the built-in rules
  kairo rules list

  # Show one rule from a directory as YAML
  kairo rules show no-direct-answer-bare --rules ./rules`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules in evaluation order",
	Args:  cobra.NoArgs,
	RunE:  listRules,
}

var rulesShowCmd = &cobra.Command{
	Use:   "show <rule-id>",
	Short: "Show one rule definition",
	Args:  cobra.ExactArgs(1),
	RunE:  showRule,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd, rulesShowCmd)

	rulesCmd.PersistentFlags().StringVar(&rulesFlags.format, "format", "text", "output format: text, json")
}

func openEngine(cmd *cobra.Command) (*engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg, true)
	if err != nil {
		return nil, err
	}
	return newEngine(cmd.Context(), cfg, logger, engineOptions{})
}

func listRules(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(rulesFlags.format)
	if err != nil {
		return err
	}
	eng, err := openEngine(cmd)
	if err != nil {
		return cli.NewCommandError("rules list", err)
	}
	defer eng.Close(cmd.Context())

	rules, err := eng.checker.ListRules()
	if err != nil {
		return cli.NewCommandError("rules list", err)
	}
	list := ruleList{
		Version: eng.manager.Holder().Current().Version(),
		Rules:   rules,
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), list)
}

func showRule(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(rulesFlags.format)
	if err != nil {
		return err
	}
	eng, err := openEngine(cmd)
	if err != nil {
		return cli.NewCommandError("rules show", err)
	}
	defer eng.Close(cmd.Context())

	rule, err := eng.checker.Rule(args[0])
	if err != nil {
		return cli.NewCommandError("rules show", err)
	}
	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), rule)
	}

	data, err := registry.MarshalDocument([]guardrail.Rule{rule})
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

type ruleList struct {
	Version string           `json:"version"`
	Rules   []guardrail.Rule `json:"rules"`
}

// RenderText implements cli.TextRenderer.
func (l ruleList) RenderText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tCHECK\tTARGET\tSEVERITY\tACTION")
	for _, r := range l.Rules {
		action := string(r.ActionOverride)
		if action == "" {
			action = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Category, r.Kind, r.Target, r.Severity, action)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d rules, version %s\n", len(l.Rules), shortVersion(l.Version))
	return err
}
