package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantField string
	}{
		{
			name:   "defaults",
			modify: func(*Config) {},
		},
		{
			name:      "unknown rule source",
			modify:    func(c *Config) { c.Rules.Source = "s3" },
			wantField: "rules.source",
		},
		{
			name:      "file source without path",
			modify:    func(c *Config) { c.Rules.Source = "file" },
			wantField: "rules.path",
		},
		{
			name: "watch without file source",
			modify: func(c *Config) {
				c.Rules.Watch = true
			},
			wantField: "rules.watch",
		},
		{
			name:      "invalid cron",
			modify:    func(c *Config) { c.Rules.ReloadSchedule = "every tuesday" },
			wantField: "rules.reload_schedule",
		},
		{
			name:   "cron descriptor",
			modify: func(c *Config) { c.Rules.ReloadSchedule = "@every 5m" },
		},
		{
			name:      "git without repository",
			modify:    func(c *Config) { c.Rules.Source = "git" },
			wantField: "rules.git.repository",
		},
		{
			name: "git token auth without token",
			modify: func(c *Config) {
				c.Rules.Source = "git"
				c.Rules.Git.Repository = "https://example.com/rules.git"
				c.Rules.Git.Auth.Type = "token"
			},
			wantField: "rules.git.auth.token",
		},
		{
			name: "git ssh auth without key",
			modify: func(c *Config) {
				c.Rules.Source = "git"
				c.Rules.Git.Repository = "git@example.com:rules.git"
				c.Rules.Git.Auth.Type = "ssh"
			},
			wantField: "rules.git.auth.ssh_key_path",
		},
		{
			name:      "unknown failure mode",
			modify:    func(c *Config) { c.Checker.VerifierFailureMode = "fail-sometimes" },
			wantField: "checker.verifier_failure_mode",
		},
		{
			name:      "negative input limit",
			modify:    func(c *Config) { c.Checker.MaxInputBytes = -1 },
			wantField: "checker.max_input_bytes",
		},
		{
			name: "verifier without endpoint",
			modify: func(c *Config) {
				c.Verifiers = map[string]VerifierConfig{"seda": {Timeout: time.Second}}
			},
			wantField: "verifiers.seda.endpoint",
		},
		{
			name: "verifier with non-http endpoint",
			modify: func(c *Config) {
				c.Verifiers = map[string]VerifierConfig{"seda": {Endpoint: "ftp://example.com", Timeout: time.Second}}
			},
			wantField: "verifiers.seda.endpoint",
		},
		{
			name: "verifier cache without redis",
			modify: func(c *Config) {
				c.Verifiers = map[string]VerifierConfig{"seda": {
					Endpoint: "https://example.com",
					Timeout:  time.Second,
					Cache:    VerifierCacheConfig{Enabled: true, TTL: time.Minute},
				}}
			},
			wantField: "verifiers.seda.cache.enabled",
		},
		{
			name:      "listen address without port",
			modify:    func(c *Config) { c.Server.ListenAddress = "localhost" },
			wantField: "server.listen_address",
		},
		{
			name:      "logging level",
			modify:    func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			wantField: "telemetry.logging.level",
		},
		{
			name:      "logging format",
			modify:    func(c *Config) { c.Telemetry.Logging.Format = "xml" },
			wantField: "telemetry.logging.format",
		},
		{
			name:      "metrics path",
			modify:    func(c *Config) { c.Telemetry.Metrics.Path = "metrics" },
			wantField: "telemetry.metrics.path",
		},
		{
			name:      "tracing without endpoint",
			modify:    func(c *Config) { c.Telemetry.Tracing.Enabled = true },
			wantField: "telemetry.tracing.endpoint",
		},
		{
			name:      "sample ratio out of range",
			modify:    func(c *Config) { c.Telemetry.Tracing.SampleRatio = 1.5 },
			wantField: "telemetry.tracing.sample_ratio",
		},
		{
			name:      "unknown sampler",
			modify:    func(c *Config) { c.Telemetry.Tracing.Sampler = "sometimes" },
			wantField: "telemetry.tracing.sampler",
		},
		{
			name:      "health path",
			modify:    func(c *Config) { c.Telemetry.Health.ReadinessPath = "ready" },
			wantField: "telemetry.health.readiness_path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := Validate(cfg)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v do not include field %q", verr.Errors, tt.wantField)
			}
		})
	}
}

func TestValidationErrorCollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Rules.Source = "nowhere"
	cfg.Checker.VerifierFailureMode = "maybe"
	cfg.Telemetry.Logging.Level = "loud"

	err := Validate(cfg)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(verr.Errors) != 3 {
		t.Fatalf("got %d errors, want 3: %v", len(verr.Errors), verr.Errors)
	}
	if !strings.Contains(err.Error(), "3 errors") {
		t.Errorf("message %q should count the errors", err.Error())
	}
}
