package guardrail

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind is the machine-readable classification of a guardrail error.
type ErrorKind string

const (
	KindConfigError             ErrorKind = "config_error"
	KindInputError              ErrorKind = "input_error"
	KindNotReady                ErrorKind = "not_ready"
	KindEvaluationTimeout       ErrorKind = "evaluation_timeout"
	KindInternalEvaluationError ErrorKind = "internal_evaluation_error"
)

// Common sentinel errors
var (
	// ErrNoInput indicates both evaluation targets were empty.
	ErrNoInput = errors.New("nothing to evaluate: user input and ai output are both empty")

	// ErrNotReady indicates no rule table has been loaded yet.
	ErrNotReady = errors.New("guardrail rules not loaded")

	// ErrMalformedText indicates the text is not valid UTF-8.
	ErrMalformedText = errors.New("text is not valid UTF-8")
)

// ConfigError indicates a malformed rule definition. It is fatal at load time.
type ConfigError struct {
	RuleID  string
	Field   string
	Message string
	Cause   error
}

// Error returns the error message.
func (e *ConfigError) Error() string {
	var loc string
	switch {
	case e.RuleID != "" && e.Field != "":
		loc = fmt.Sprintf("rule %q field %s", e.RuleID, e.Field)
	case e.RuleID != "":
		loc = fmt.Sprintf("rule %q", e.RuleID)
	default:
		loc = "rule definitions"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", loc, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", loc, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Kind returns KindConfigError.
func (e *ConfigError) Kind() ErrorKind { return KindConfigError }

// InputError indicates a check request that cannot be evaluated.
type InputError struct {
	Cause error
}

// Error returns the error message.
func (e *InputError) Error() string {
	return fmt.Sprintf("invalid check input: %v", e.Cause)
}

// Unwrap returns the underlying cause.
func (e *InputError) Unwrap() error {
	return e.Cause
}

// Kind returns KindInputError.
func (e *InputError) Kind() ErrorKind { return KindInputError }

// EvaluationTimeout indicates an external verification exceeded its bound.
type EvaluationTimeout struct {
	RuleID  string
	Timeout time.Duration
}

// Error returns the error message.
func (e *EvaluationTimeout) Error() string {
	return fmt.Sprintf("rule %s: verification timeout after %v", e.RuleID, e.Timeout)
}

// Kind returns KindEvaluationTimeout.
func (e *EvaluationTimeout) Kind() ErrorKind { return KindEvaluationTimeout }

// InternalEvaluationError indicates an evaluator failed on unexpected input.
type InternalEvaluationError struct {
	RuleID string
	Cause  error
}

// Error returns the error message.
func (e *InternalEvaluationError) Error() string {
	return fmt.Sprintf("rule %s: evaluation failed: %v", e.RuleID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *InternalEvaluationError) Unwrap() error {
	return e.Cause
}

// Kind returns KindInternalEvaluationError.
func (e *InternalEvaluationError) Kind() ErrorKind { return KindInternalEvaluationError }

// KindOf returns the machine-readable kind of err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	if errors.Is(err, ErrNotReady) {
		return KindNotReady
	}
	var k interface{ Kind() ErrorKind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return ""
}
