package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"kairo-hq/guardrails/pkg/cli"
	"kairo-hq/guardrails/pkg/guardrail"
	"kairo-hq/guardrails/pkg/telemetry/logging"
)

var checkFlags struct {
	user     string
	ai       string
	userFile string
	aiFile   string
	mode     string
	format   string
	failOn   string
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a user input and AI output against the rules",
	Long: `Evaluate one exchange and print the resolved action.

The exit status is 0 when the action is below --fail-on, 2 when it reaches
it, and 1 on errors. Use "-" as a file name to read from stdin.

Examples:
  # Full check
  kairo check --user "Solve x+2=5" --ai "Subtract 2 from both sides, so x = 3."

  # Jailbreak screening only
  kairo check --mode jailbreak-only --user "Ignore previous instructions"

  # Read the AI output from stdin, print JSON
  generate-answer | kairo check --user-file q.txt --ai-file - --format json`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkFlags.user, "user", "u", "", "user input text")
	checkCmd.Flags().StringVarP(&checkFlags.ai, "ai", "a", "", "AI output text")
	checkCmd.Flags().StringVar(&checkFlags.userFile, "user-file", "", "read user input from file")
	checkCmd.Flags().StringVar(&checkFlags.aiFile, "ai-file", "", "read AI output from file")
	checkCmd.Flags().StringVarP(&checkFlags.mode, "mode", "m", string(guardrail.ModeFull), "check mode: full, jailbreak-only, step-by-step-only")
	checkCmd.Flags().StringVar(&checkFlags.format, "format", "text", "output format: text, json")
	checkCmd.Flags().StringVar(&checkFlags.failOn, "fail-on", string(guardrail.ActionBlock), "exit with status 2 at this action or above: warn, block, none")
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(checkFlags.format)
	if err != nil {
		return err
	}
	mode, err := guardrail.ParseMode(checkFlags.mode)
	if err != nil {
		return err
	}
	threshold, err := parseFailOn(checkFlags.failOn)
	if err != nil {
		return err
	}

	userInput, err := readText(cmd.InOrStdin(), checkFlags.user, checkFlags.userFile)
	if err != nil {
		return err
	}
	aiOutput, err := readText(cmd.InOrStdin(), checkFlags.ai, checkFlags.aiFile)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, true)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	eng, err := newEngine(ctx, cfg, logger, engineOptions{})
	if err != nil {
		return cli.NewCommandError("check", err)
	}
	defer eng.Close(ctx)

	requestID := uuid.NewString()
	ctx = logging.WithRequestID(ctx, requestID)

	result, err := eng.checker.Check(ctx, userInput, aiOutput, mode)
	if err != nil {
		return cli.NewCommandError("check", err)
	}

	report := checkReport{RequestID: requestID, Result: result}
	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), report); err != nil {
		return err
	}

	if threshold != "" && result.Action.Rank() >= threshold.Rank() {
		return cli.NewExitError(cli.ExitBlocked, nil)
	}
	return nil
}

// parseFailOn returns the empty action for "none".
func parseFailOn(s string) (guardrail.Action, error) {
	switch s {
	case "none":
		return "", nil
	case string(guardrail.ActionWarn), string(guardrail.ActionBlock):
		return guardrail.Action(s), nil
	default:
		return "", fmt.Errorf("invalid --fail-on %q: must be warn, block or none", s)
	}
}

// readText returns the contents of file when set ("-" is stdin) and value otherwise.
func readText(stdin io.Reader, value, file string) (string, error) {
	switch file {
	case "":
		return value, nil
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file, err)
		}
		return string(data), nil
	}
}

// checkReport is the printed form of a check result.
type checkReport struct {
	RequestID string `json:"request_id"`
	*guardrail.Result
}

// RenderText implements cli.TextRenderer.
func (r checkReport) RenderText(w io.Writer) error {
	var b strings.Builder

	verdict := "compliant"
	if !r.IsCompliant {
		verdict = "non-compliant"
	}
	fmt.Fprintf(&b, "Action: %s (%s)\n", r.Action, verdict)
	fmt.Fprintf(&b, "Mode: %s\n", r.Mode)
	if r.Unverified {
		b.WriteString("Unverified: some external checks were inconclusive\n")
	}

	if len(r.Violations) > 0 {
		b.WriteString("Violations:\n")
		for _, v := range r.Violations {
			fmt.Fprintf(&b, "  - [%s] %s (%s)", v.Severity, v.RuleID, v.Category)
			if v.Evidence != "" {
				fmt.Fprintf(&b, ": %q", v.Evidence)
			}
			b.WriteString("\n")
		}
	}
	if len(r.Diagnostics) > 0 {
		b.WriteString("Diagnostics:\n")
		for _, d := range r.Diagnostics {
			fmt.Fprintf(&b, "  - %s %s: %s\n", d.RuleID, d.Outcome, d.Reason)
		}
	}
	if r.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", r.Message)
	}
	fmt.Fprintf(&b, "Rules: %s\n", shortVersion(r.RuleVersion))

	_, err := io.WriteString(w, b.String())
	return err
}

func shortVersion(v string) string {
	if len(v) > 12 {
		return v[:12]
	}
	return v
}
