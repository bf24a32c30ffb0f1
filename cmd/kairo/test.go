package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"kairo-hq/guardrails/pkg/cli"
	"kairo-hq/guardrails/pkg/guardrail"
	"kairo-hq/guardrails/pkg/guardrail/verify"
)

var testFlags struct {
	testsFile string
	format    string
	failFast  bool
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run rule test cases",
	Long: `Run a suite of exchanges against the rules and compare the outcome with
the expected action, compliance and violated rule ids.

External verifiers are never called. The suite declares a fixed verdict per
capability instead; capabilities it does not declare are inconclusive.

Test Suite Format (YAML):
  verifiers:
    seda: invalid        # valid, invalid, error or timeout
  tests:
    - name: "bare answer is blocked"
      mode: full         # optional, default full
      user_input: "What is 6 times 7?"
      ai_output: "42"
      expect:
        action: block
        compliant: false              # optional
        unverified: false             # optional
        violations: [no-direct-answer-bare]  # optional, exact set

Examples:
  # Test the built-in rules
  kairo test --tests rules_test.yaml

  # Test a rule directory, JSON output
  kairo test --rules ./rules --tests rules_test.yaml --format json`,
	RunE: runTests,
}

func init() {
	rootCmd.AddCommand(testCmd)

	testCmd.Flags().StringVarP(&testFlags.testsFile, "tests", "t", "", "test suite file")
	testCmd.Flags().StringVar(&testFlags.format, "format", "text", "output format: text, json")
	testCmd.Flags().BoolVar(&testFlags.failFast, "fail-fast", false, "stop at the first failing case")

	// Mark required flags - panic if this fails as it's a programming error
	if err := testCmd.MarkFlagRequired("tests"); err != nil {
		panic(fmt.Sprintf("failed to mark tests flag as required: %v", err))
	}
}

// TestSuite is the on-disk test file.
type TestSuite struct {
	Verifiers map[string]string `yaml:"verifiers"`
	Tests     []TestCase        `yaml:"tests"`
}

// TestCase is one exchange and its expected outcome.
type TestCase struct {
	Name      string      `yaml:"name"`
	Mode      string      `yaml:"mode"`
	UserInput string      `yaml:"user_input"`
	AIOutput  string      `yaml:"ai_output"`
	Expect    Expectation `yaml:"expect"`
}

// Expectation lists the checked parts of a result. Nil fields are not checked.
type Expectation struct {
	Action     guardrail.Action `yaml:"action"`
	Compliant  *bool            `yaml:"compliant"`
	Unverified *bool            `yaml:"unverified"`
	Violations []string         `yaml:"violations"`
}

// TestResult is the outcome of one test case.
type TestResult struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Failures []string      `json:"failures,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

type testReport struct {
	Results []TestResult `json:"results"`
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
}

func loadTestSuite(path string) (*TestSuite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var suite TestSuite
	if err := dec.Decode(&suite); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for i, tc := range suite.Tests {
		if tc.Name == "" {
			return nil, fmt.Errorf("test %d: name is required", i+1)
		}
		if tc.Expect.Action != "" && !tc.Expect.Action.Valid() {
			return nil, fmt.Errorf("test %q: unknown expected action %q", tc.Name, tc.Expect.Action)
		}
	}
	return &suite, nil
}

// stubVerifiers maps the suite's fixed verdicts onto verifiers.
func stubVerifiers(verdicts map[string]string) (*verify.Set, error) {
	set := verify.NewSet()
	for name, verdict := range verdicts {
		var v verify.Func
		switch verdict {
		case "valid", "invalid":
			valid := verdict == "valid"
			v = func(context.Context, string) (verify.Verdict, error) {
				return verify.Verdict{Valid: valid, Source: "test-suite"}, nil
			}
		case "error":
			v = func(context.Context, string) (verify.Verdict, error) {
				return verify.Verdict{}, errors.New("stub verifier error")
			}
		case "timeout":
			v = func(ctx context.Context, _ string) (verify.Verdict, error) {
				<-ctx.Done()
				return verify.Verdict{}, ctx.Err()
			}
		default:
			return nil, fmt.Errorf("verifier %q: unknown verdict %q: must be valid, invalid, error or timeout", name, verdict)
		}
		set.Register(name, v)
	}
	return set, nil
}

func runTests(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(testFlags.format)
	if err != nil {
		return err
	}

	suite, err := loadTestSuite(testFlags.testsFile)
	if err != nil {
		return cli.NewCommandError("test", fmt.Errorf("failed to load test cases: %w", err))
	}
	if len(suite.Tests) == 0 {
		return fmt.Errorf("no test cases found in %s", testFlags.testsFile)
	}
	verifiers, err := stubVerifiers(suite.Verifiers)
	if err != nil {
		return cli.NewCommandError("test", err)
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
	eng, err := newEngine(ctx, cfg, logger, engineOptions{verifiers: verifiers})
	if err != nil {
		return cli.NewCommandError("test", err)
	}
	defer eng.Close(ctx)

	var report testReport
	for _, tc := range suite.Tests {
		res := runTestCase(ctx, eng, tc)
		report.Results = append(report.Results, res)
		if res.Passed {
			report.Passed++
			continue
		}
		report.Failed++
		if testFlags.failFast {
			break
		}
	}

	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if report.Failed > 0 {
		return cli.NewExitError(cli.ExitTestFailure, fmt.Errorf("%d of %d tests failed", report.Failed, len(report.Results)))
	}
	return nil
}

func runTestCase(ctx context.Context, eng *engine, tc TestCase) TestResult {
	res := TestResult{Name: tc.Name}

	modeName := tc.Mode
	if modeName == "" {
		modeName = string(guardrail.ModeFull)
	}
	mode, err := guardrail.ParseMode(modeName)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	start := time.Now()
	result, err := eng.checker.Check(ctx, tc.UserInput, tc.AIOutput, mode)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.Failures = compareExpectation(tc.Expect, result)
	res.Passed = len(res.Failures) == 0
	return res
}

func compareExpectation(want Expectation, got *guardrail.Result) []string {
	var failures []string
	if want.Action != "" && got.Action != want.Action {
		failures = append(failures, fmt.Sprintf("action = %s, want %s", got.Action, want.Action))
	}
	if want.Compliant != nil && got.IsCompliant != *want.Compliant {
		failures = append(failures, fmt.Sprintf("compliant = %t, want %t", got.IsCompliant, *want.Compliant))
	}
	if want.Unverified != nil && got.Unverified != *want.Unverified {
		failures = append(failures, fmt.Sprintf("unverified = %t, want %t", got.Unverified, *want.Unverified))
	}
	if want.Violations != nil {
		gotIDs := make([]string, 0, len(got.Violations))
		for _, v := range got.Violations {
			gotIDs = append(gotIDs, v.RuleID)
		}
		wantIDs := slices.Clone(want.Violations)
		sort.Strings(gotIDs)
		sort.Strings(wantIDs)
		if !slices.Equal(gotIDs, wantIDs) {
			failures = append(failures, fmt.Sprintf("violations = [%s], want [%s]",
				strings.Join(gotIDs, ", "), strings.Join(wantIDs, ", ")))
		}
	}
	return failures
}

// RenderText implements cli.TextRenderer.
func (r testReport) RenderText(w io.Writer) error {
	for _, res := range r.Results {
		if res.Passed {
			fmt.Fprintf(w, "✓ %s (%.1fms)\n", res.Name, res.Duration.Seconds()*1000)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", res.Name)
		if res.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", res.Error)
		}
		for _, f := range res.Failures {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
	_, err := fmt.Fprintf(w, "\n%d passed, %d failed\n", r.Passed, r.Failed)
	return err
}
