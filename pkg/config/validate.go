package config

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "rules.path").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateRules(&cfg.Rules)...)
	errs = append(errs, validateChecker(&cfg.Checker)...)
	errs = append(errs, validateVerifiers(cfg.Verifiers, &cfg.Redis)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateRules(cfg *RulesConfig) []FieldError {
	var errs []FieldError

	switch cfg.Source {
	case "builtin":
	case "file":
		if cfg.Path == "" {
			errs = append(errs, FieldError{Field: "rules.path", Message: "path is required when source is 'file'"})
		}
	case "git":
		errs = append(errs, validateGit(&cfg.Git)...)
	default:
		errs = append(errs, FieldError{
			Field:   "rules.source",
			Message: fmt.Sprintf("invalid source %q: must be 'builtin', 'file', or 'git'", cfg.Source),
		})
	}

	if cfg.Watch && cfg.Source != "file" {
		errs = append(errs, FieldError{Field: "rules.watch", Message: "watch is only supported when source is 'file'"})
	}
	if cfg.WatchDebounce < 0 {
		errs = append(errs, FieldError{Field: "rules.watch_debounce", Message: "debounce cannot be negative"})
	}
	if cfg.MaxFileSize <= 0 {
		errs = append(errs, FieldError{Field: "rules.max_file_size", Message: "max file size must be positive"})
	}

	if cfg.ReloadSchedule != "" {
		if _, err := cron.ParseStandard(cfg.ReloadSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "rules.reload_schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.ReloadSchedule, err),
			})
		}
	}

	return errs
}

func validateGit(cfg *GitRulesConfig) []FieldError {
	var errs []FieldError

	if cfg.Repository == "" {
		errs = append(errs, FieldError{Field: "rules.git.repository", Message: "repository is required when source is 'git'"})
	}
	if cfg.Clone.Depth < 0 {
		errs = append(errs, FieldError{Field: "rules.git.clone.depth", Message: "depth cannot be negative"})
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{Field: "rules.git.timeout", Message: "timeout must be positive"})
	}

	switch cfg.Auth.Type {
	case "none":
	case "token":
		if cfg.Auth.Token == "" {
			errs = append(errs, FieldError{Field: "rules.git.auth.token", Message: "token is required when auth type is 'token'"})
		}
	case "ssh":
		if cfg.Auth.SSHKeyPath == "" {
			errs = append(errs, FieldError{Field: "rules.git.auth.ssh_key_path", Message: "ssh key path is required when auth type is 'ssh'"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "rules.git.auth.type",
			Message: fmt.Sprintf("invalid auth type %q: must be 'token', 'ssh', or 'none'", cfg.Auth.Type),
		})
	}

	return errs
}

func validateChecker(cfg *CheckerConfig) []FieldError {
	var errs []FieldError

	switch cfg.VerifierFailureMode {
	case "fail-open", "fail-closed":
	default:
		errs = append(errs, FieldError{
			Field:   "checker.verifier_failure_mode",
			Message: fmt.Sprintf("invalid mode %q: must be 'fail-open' or 'fail-closed'", cfg.VerifierFailureMode),
		})
	}
	if cfg.ExternalTimeout <= 0 {
		errs = append(errs, FieldError{Field: "checker.external_timeout", Message: "timeout must be positive"})
	}
	if cfg.MaxInputBytes < 0 {
		errs = append(errs, FieldError{Field: "checker.max_input_bytes", Message: "cannot be negative"})
	}

	return errs
}

func validateVerifiers(verifiers map[string]VerifierConfig, redis *RedisConfig) []FieldError {
	var errs []FieldError

	names := make([]string, 0, len(verifiers))
	for name := range verifiers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v := verifiers[name]
		field := "verifiers." + name

		if v.Endpoint == "" {
			errs = append(errs, FieldError{Field: field + ".endpoint", Message: "endpoint is required"})
		} else if u, err := url.Parse(v.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   field + ".endpoint",
				Message: fmt.Sprintf("invalid endpoint %q: must be an http or https URL", v.Endpoint),
			})
		}
		if v.Timeout <= 0 {
			errs = append(errs, FieldError{Field: field + ".timeout", Message: "timeout must be positive"})
		}
		if v.Cache.Enabled {
			if redis.Address == "" {
				errs = append(errs, FieldError{Field: field + ".cache.enabled", Message: "caching requires redis.address"})
			}
			if v.Cache.TTL <= 0 {
				errs = append(errs, FieldError{Field: field + ".cache.ttl", Message: "ttl must be positive"})
			}
		}
	}

	if redis.DB < 0 {
		errs = append(errs, FieldError{Field: "redis.db", Message: "db cannot be negative"})
	}

	return errs
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}
	if cfg.ReadTimeout <= 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "timeout must be positive"})
	}
	if cfg.WriteTimeout <= 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "timeout must be positive"})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text', or 'console'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "metrics path must start with '/'"})
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	switch cfg.Tracing.Sampler {
	case "always", "never", "ratio", "parent_ratio":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', 'ratio', or 'parent_ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	if cfg.Health.Enabled {
		paths := map[string]string{
			"telemetry.health.liveness_path":  cfg.Health.LivenessPath,
			"telemetry.health.readiness_path": cfg.Health.ReadinessPath,
			"telemetry.health.version_path":   cfg.Health.VersionPath,
		}
		fields := make([]string, 0, len(paths))
		for f := range paths {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			if !strings.HasPrefix(paths[f], "/") {
				errs = append(errs, FieldError{Field: f, Message: "path must start with '/'"})
			}
		}
		if cfg.Health.CheckTimeout <= 0 {
			errs = append(errs, FieldError{Field: "telemetry.health.check_timeout", Message: "timeout must be positive"})
		}
	}

	return errs
}
