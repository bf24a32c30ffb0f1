package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kairo.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}
	if cfg.Rules.Source != DefaultRulesSource {
		t.Errorf("Rules.Source = %q, want %q", cfg.Rules.Source, DefaultRulesSource)
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("metrics should be enabled by default")
	}
	if !cfg.Telemetry.Health.Enabled {
		t.Error("health should be enabled by default")
	}
	if !cfg.Telemetry.Tracing.OTLP.Insecure {
		t.Error("OTLP insecure should default to true")
	}
	if cfg.Checker.ExternalTimeout != DefaultExternalTimeout {
		t.Errorf("Checker.ExternalTimeout = %v, want %v", cfg.Checker.ExternalTimeout, DefaultExternalTimeout)
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
rules:
  source: file
  path: ./rules
  watch: true
checker:
  external_timeout: 500ms
  verifier_failure_mode: fail-closed
verifiers:
  seda:
    endpoint: https://verify.example.com/v1
telemetry:
  metrics:
    enabled: false
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Rules.Source != "file" || cfg.Rules.Path != "./rules" || !cfg.Rules.Watch {
		t.Errorf("Rules = %+v", cfg.Rules)
	}
	if cfg.Checker.ExternalTimeout != 500*time.Millisecond {
		t.Errorf("ExternalTimeout = %v, want 500ms", cfg.Checker.ExternalTimeout)
	}
	if cfg.Checker.VerifierFailureMode != "fail-closed" {
		t.Errorf("VerifierFailureMode = %q", cfg.Checker.VerifierFailureMode)
	}
	seda, ok := cfg.Verifiers["seda"]
	if !ok {
		t.Fatal("verifier seda missing")
	}
	if seda.Timeout != DefaultVerifierTimeout {
		t.Errorf("seda.Timeout = %v, want default %v", seda.Timeout, DefaultVerifierTimeout)
	}
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("metrics should be disabled by the file")
	}
	if !cfg.Telemetry.Health.Enabled {
		t.Error("health should keep its default")
	}
	if cfg.Rules.WatchDebounce != DefaultWatchDebounce {
		t.Errorf("WatchDebounce = %v, want %v", cfg.Rules.WatchDebounce, DefaultWatchDebounce)
	}
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) error = %v", err)
	}
	if cfg.Rules.Source != DefaultRulesSource {
		t.Errorf("Rules.Source = %q", cfg.Rules.Source)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("rules:\n  sauce: file\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if !strings.Contains(err.Error(), "sauce") {
		t.Errorf("error %q should name the unknown field", err)
	}
}

func TestParseExpandsSecrets(t *testing.T) {
	t.Setenv("TEST_SEDA_TOKEN", "s3cret")
	t.Setenv("TEST_REDIS_PASSWORD", "hunter2")

	cfg, err := Parse([]byte(`
verifiers:
  seda:
    endpoint: https://verify.example.com
    headers:
      Authorization: Bearer ${TEST_SEDA_TOKEN}
redis:
  password: ${TEST_REDIS_PASSWORD}
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := cfg.Verifiers["seda"].Headers["Authorization"]; got != "Bearer s3cret" {
		t.Errorf("Authorization header = %q", got)
	}
	if cfg.Redis.Password != "hunter2" {
		t.Errorf("Redis.Password = %q", cfg.Redis.Password)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := writeConfig(t, "rules:\n  source: builtin\n")
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Rules.Source != "builtin" {
			t.Errorf("Rules.Source = %q", cfg.Rules.Source)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("error = %v, want os.ErrNotExist", err)
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		path := writeConfig(t, "rules:\n  source: file\n")
		_, err := LoadConfig(path)
		var verr ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("error = %v, want ValidationError", err)
		}
		if verr.Errors[0].Field != "rules.path" {
			t.Errorf("field = %q, want rules.path", verr.Errors[0].Field)
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, "rules: [\n")
		if _, err := LoadConfig(path); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
rules:
  source: file
verifiers:
  seda-prod:
    endpoint: https://verify.example.com
`)

	t.Setenv("KAIRO_RULES_PATH", "/etc/kairo/rules")
	t.Setenv("KAIRO_RULES_WATCH", "true")
	t.Setenv("KAIRO_CHECKER_EXTERNAL_TIMEOUT", "750ms")
	t.Setenv("KAIRO_CHECKER_MAX_INPUT_BYTES", "2048")
	t.Setenv("KAIRO_VERIFIERS_SEDA_PROD_ENDPOINT", "https://override.example.com")
	t.Setenv("KAIRO_TELEMETRY_LOGGING_LEVEL", "debug")
	t.Setenv("KAIRO_TELEMETRY_TRACING_SAMPLE_RATIO", "0.5")
	t.Setenv("KAIRO_TELEMETRY_METRICS_ENABLED", "false")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}

	if cfg.Rules.Path != "/etc/kairo/rules" {
		t.Errorf("Rules.Path = %q", cfg.Rules.Path)
	}
	if !cfg.Rules.Watch {
		t.Error("Rules.Watch should be true")
	}
	if cfg.Checker.ExternalTimeout != 750*time.Millisecond {
		t.Errorf("ExternalTimeout = %v", cfg.Checker.ExternalTimeout)
	}
	if cfg.Checker.MaxInputBytes != 2048 {
		t.Errorf("MaxInputBytes = %d", cfg.Checker.MaxInputBytes)
	}
	if got := cfg.Verifiers["seda-prod"].Endpoint; got != "https://override.example.com" {
		t.Errorf("seda-prod endpoint = %q", got)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Telemetry.Logging.Level)
	}
	if cfg.Telemetry.Tracing.SampleRatio != 0.5 {
		t.Errorf("SampleRatio = %v", cfg.Telemetry.Tracing.SampleRatio)
	}
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("Metrics.Enabled should be false")
	}
}

func TestLoadConfigWithEnvOverridesRejectsMalformedValues(t *testing.T) {
	tests := []struct {
		key, value string
		alsoBad    bool
	}{
		{key: "KAIRO_TELEMETRY_METRICS_ENABLED", value: "not-a-bool"},
		{key: "KAIRO_CHECKER_EXTERNAL_TIMEOUT", value: "soon"},
		{key: "KAIRO_REDIS_DB", value: "zero"},
		// Reported alongside ordinary validation errors.
		{key: "KAIRO_TELEMETRY_TRACING_SAMPLE_RATIO", value: "half", alsoBad: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if tt.alsoBad {
				t.Setenv("KAIRO_RULES_SOURCE", "bogus")
			}

			_, err := LoadConfigWithEnvOverrides("")
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.key {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v do not name %s", verr.Errors, tt.key)
			}
			if tt.alsoBad && len(verr.Errors) < 2 {
				t.Errorf("got %d errors, want the override and rules.source", len(verr.Errors))
			}
		})
	}
}

func TestLoadConfigWithEnvOverridesNoFile(t *testing.T) {
	t.Setenv("KAIRO_RULES_SOURCE", "bogus")

	_, err := LoadConfigWithEnvOverrides("")
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
}
