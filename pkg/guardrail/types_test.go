package guardrail

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestSeverityRank(t *testing.T) {
	order := []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Errorf("%s.Rank() = %d, want less than %s.Rank() = %d",
				order[i-1], order[i-1].Rank(), order[i], order[i].Rank())
		}
	}

	if Severity("severe").Valid() {
		t.Error("Severity(\"severe\").Valid() = true, want false")
	}
}

func TestActionRank(t *testing.T) {
	if !(ActionAllow.Rank() < ActionWarn.Rank() && ActionWarn.Rank() < ActionBlock.Rank()) {
		t.Errorf("action ranks not ordered: allow=%d warn=%d block=%d",
			ActionAllow.Rank(), ActionWarn.Rank(), ActionBlock.Rank())
	}
	if Action("deny").Valid() {
		t.Error("Action(\"deny\").Valid() = true, want false")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"full", ModeFull, false},
		{"", ModeFull, false},
		{"jailbreak-only", ModeJailbreakOnly, false},
		{"step-by-step-only", ModeStepByStepOnly, false},
		{"partial", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestModeCategories(t *testing.T) {
	if got := ModeFull.Categories(); got != nil {
		t.Errorf("ModeFull.Categories() = %v, want nil", got)
	}

	got := ModeJailbreakOnly.Categories()
	if len(got) != 1 || got[0] != CategoryJailbreakDetection {
		t.Errorf("ModeJailbreakOnly.Categories() = %v, want [jailbreak-detection]", got)
	}

	got = ModeStepByStepOnly.Categories()
	if len(got) != 2 {
		t.Errorf("ModeStepByStepOnly.Categories() = %v, want 2 categories", got)
	}
}

func TestTargetCovers(t *testing.T) {
	tests := []struct {
		rule  Target
		text  Target
		wants bool
	}{
		{TargetBoth, TargetUserInput, true},
		{TargetBoth, TargetAIOutput, true},
		{TargetUserInput, TargetUserInput, true},
		{TargetUserInput, TargetAIOutput, false},
		{TargetAIOutput, TargetUserInput, false},
	}

	for _, tt := range tests {
		if got := tt.rule.Covers(tt.text); got != tt.wants {
			t.Errorf("%s.Covers(%s) = %v, want %v", tt.rule, tt.text, got, tt.wants)
		}
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"config", &ConfigError{RuleID: "r1", Message: "bad"}, KindConfigError},
		{"wrapped config", fmt.Errorf("load: %w", &ConfigError{RuleID: "r1", Message: "bad"}), KindConfigError},
		{"input", &InputError{Cause: ErrNoInput}, KindInputError},
		{"not ready", fmt.Errorf("check: %w", ErrNotReady), KindNotReady},
		{"timeout", &EvaluationTimeout{RuleID: "r2", Timeout: time.Second}, KindEvaluationTimeout},
		{"internal", &InternalEvaluationError{RuleID: "r3", Cause: ErrMalformedText}, KindInternalEvaluationError},
		{"plain", errors.New("boom"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfigErrorMessage(t *testing.T) {
	err := &ConfigError{RuleID: "jb-1", Field: "pattern.expression", Message: "pattern does not compile"}
	want := `rule "jb-1" field pattern.expression: pattern does not compile`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	var inputErr *InputError
	if !errors.As(&InputError{Cause: ErrNoInput}, &inputErr) || !errors.Is(inputErr, ErrNoInput) {
		t.Error("InputError does not unwrap to ErrNoInput")
	}
}
