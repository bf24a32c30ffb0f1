package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix starts every environment override.
const EnvPrefix = "KAIRO_"

// LoadConfig reads, defaults and validates the YAML file at path. Environment
// overrides are not applied.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML on top of the defaults. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	ApplyDefaults(cfg)
	expandSecrets(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides is LoadConfig followed by KAIRO_SECTION_FIELD
// environment overrides (KAIRO_RULES_PATH, KAIRO_CHECKER_EXTERNAL_TIMEOUT, ...),
// which take precedence over the file. Validation runs last and also reports
// overrides that failed to parse. An empty path starts from the defaults.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if cfg, err = Parse(data); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	envErrs := applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		var verr ValidationError
		if errors.As(err, &verr) {
			verr.Errors = append(envErrs, verr.Errors...)
			err = verr
		}
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if len(envErrs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %w", ValidationError{Errors: envErrs})
	}

	return cfg, nil
}

// expandSecrets expands ${VAR} references in fields that usually hold secrets.
func expandSecrets(cfg *Config) {
	cfg.Rules.Git.Auth.Token = os.ExpandEnv(cfg.Rules.Git.Auth.Token)
	cfg.Rules.Git.Auth.SSHKeyPassphrase = os.ExpandEnv(cfg.Rules.Git.Auth.SSHKeyPassphrase)
	cfg.Redis.Password = os.ExpandEnv(cfg.Redis.Password)

	for name, v := range cfg.Verifiers {
		for k, val := range v.Headers {
			v.Headers[k] = os.ExpandEnv(val)
		}
		cfg.Verifiers[name] = v
	}
}

// applyEnvOverrides applies KAIRO_* variables. A variable that does not parse
// as its field's type is reported rather than ignored.
func applyEnvOverrides(cfg *Config) []FieldError {
	var e envSet

	override(&e, &cfg.Rules.Source, "RULES_SOURCE", parseString)
	override(&e, &cfg.Rules.Path, "RULES_PATH", parseString)
	override(&e, &cfg.Rules.Watch, "RULES_WATCH", strconv.ParseBool)
	override(&e, &cfg.Rules.WatchDebounce, "RULES_WATCH_DEBOUNCE", time.ParseDuration)
	override(&e, &cfg.Rules.ReloadSchedule, "RULES_RELOAD_SCHEDULE", parseString)
	override(&e, &cfg.Rules.Git.Repository, "RULES_GIT_REPOSITORY", parseString)
	override(&e, &cfg.Rules.Git.Branch, "RULES_GIT_BRANCH", parseString)
	override(&e, &cfg.Rules.Git.Path, "RULES_GIT_PATH", parseString)
	override(&e, &cfg.Rules.Git.Auth.Type, "RULES_GIT_AUTH_TYPE", parseString)
	override(&e, &cfg.Rules.Git.Auth.Token, "RULES_GIT_AUTH_TOKEN", parseString)
	override(&e, &cfg.Rules.Git.Auth.SSHKeyPath, "RULES_GIT_AUTH_SSH_KEY_PATH", parseString)

	override(&e, &cfg.Checker.ExternalTimeout, "CHECKER_EXTERNAL_TIMEOUT", time.ParseDuration)
	override(&e, &cfg.Checker.VerifierFailureMode, "CHECKER_VERIFIER_FAILURE_MODE", parseString)
	override(&e, &cfg.Checker.MaxInputBytes, "CHECKER_MAX_INPUT_BYTES", strconv.Atoi)

	// Only verifiers named in the file can be overridden:
	// KAIRO_VERIFIERS_<NAME>_ENDPOINT with dashes in NAME written as underscores.
	for name, v := range cfg.Verifiers {
		key := "VERIFIERS_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_"
		override(&e, &v.Endpoint, key+"ENDPOINT", parseString)
		override(&e, &v.Timeout, key+"TIMEOUT", time.ParseDuration)
		cfg.Verifiers[name] = v
	}

	override(&e, &cfg.Redis.Address, "REDIS_ADDRESS", parseString)
	override(&e, &cfg.Redis.Password, "REDIS_PASSWORD", parseString)
	override(&e, &cfg.Redis.DB, "REDIS_DB", strconv.Atoi)

	override(&e, &cfg.Server.ListenAddress, "SERVER_LISTEN_ADDRESS", parseString)

	override(&e, &cfg.Telemetry.Logging.Level, "TELEMETRY_LOGGING_LEVEL", parseString)
	override(&e, &cfg.Telemetry.Logging.Format, "TELEMETRY_LOGGING_FORMAT", parseString)
	override(&e, &cfg.Telemetry.Metrics.Enabled, "TELEMETRY_METRICS_ENABLED", strconv.ParseBool)
	override(&e, &cfg.Telemetry.Metrics.Path, "TELEMETRY_METRICS_PATH", parseString)
	override(&e, &cfg.Telemetry.Tracing.Enabled, "TELEMETRY_TRACING_ENABLED", strconv.ParseBool)
	override(&e, &cfg.Telemetry.Tracing.Endpoint, "TELEMETRY_TRACING_ENDPOINT", parseString)
	override(&e, &cfg.Telemetry.Tracing.SampleRatio, "TELEMETRY_TRACING_SAMPLE_RATIO", parseFloat)

	return e.errs
}

type envSet struct {
	errs []FieldError
}

// override sets *dst from EnvPrefix+key when the variable is non-empty.
func override[T any](e *envSet, dst *T, key string, parse func(string) (T, error)) {
	raw := os.Getenv(EnvPrefix + key)
	if raw == "" {
		return
	}
	v, err := parse(raw)
	if err != nil {
		e.errs = append(e.errs, FieldError{
			Field:   EnvPrefix + key,
			Message: fmt.Sprintf("cannot parse %q: %v", raw, err),
		})
		return
	}
	*dst = v
}

func parseString(s string) (string, error) { return s, nil }

func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }
