package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default values for configuration fields.
const (
	// Rules defaults
	DefaultRulesSource      = "builtin"
	DefaultRulesMaxFileSize = int64(1 << 20)
	DefaultWatchDebounce    = 100 * time.Millisecond
	DefaultGitBranch        = "main"
	DefaultGitAuthType      = "none"
	DefaultGitCloneDepth    = 1
	DefaultGitTimeout       = 30 * time.Second

	// Checker defaults
	DefaultExternalTimeout     = 2 * time.Second
	DefaultVerifierFailureMode = "fail-open"
	DefaultMaxInputBytes       = 1 << 20

	// Verifier defaults
	DefaultVerifierTimeout  = 2 * time.Second
	DefaultVerifierCacheTTL = time.Hour

	// Redis defaults
	DefaultRedisMaxRetries = 3
	DefaultRedisKeyPrefix  = "kairo:verdict:"

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:9090"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	// Telemetry defaults
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultMetricsEnabled     = true
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "kairo"
	DefaultMetricsSubsystem   = "guardrails"
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingServiceName = "kairo-guardrails"
	DefaultOTLPInsecure       = true
	DefaultOTLPTimeout        = 10 * time.Second
	DefaultHealthEnabled      = true
	DefaultLivenessPath       = "/healthz"
	DefaultReadinessPath      = "/readyz"
	DefaultVersionPath        = "/version"
	DefaultHealthCheckTimeout = 5 * time.Second
)

// DefaultCheckDurationBuckets are tuned for in-process checks (50µs to 5s); the
// upper buckets cover external verification.
var DefaultCheckDurationBuckets = []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.25, 1, 5}

// Default returns a configuration with every default applied. Loading a file
// decodes into this value, so fields missing from the file keep their defaults
// (including booleans that default to true).
func Default() *Config {
	cfg := &Config{
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
			Tracing: TracingConfig{OTLP: OTLPConfig{Insecure: DefaultOTLPInsecure}},
			Health:  HealthConfig{Enabled: DefaultHealthEnabled},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	// Rules defaults
	if cfg.Rules.Source == "" {
		cfg.Rules.Source = DefaultRulesSource
	}
	if cfg.Rules.MaxFileSize == 0 {
		cfg.Rules.MaxFileSize = DefaultRulesMaxFileSize
	}
	if cfg.Rules.WatchDebounce == 0 {
		cfg.Rules.WatchDebounce = DefaultWatchDebounce
	}
	if cfg.Rules.Git.Branch == "" {
		cfg.Rules.Git.Branch = DefaultGitBranch
	}
	if cfg.Rules.Git.Auth.Type == "" {
		cfg.Rules.Git.Auth.Type = DefaultGitAuthType
	}
	if cfg.Rules.Git.Clone.Depth == 0 {
		cfg.Rules.Git.Clone.Depth = DefaultGitCloneDepth
	}
	if cfg.Rules.Git.Clone.LocalPath == "" {
		cfg.Rules.Git.Clone.LocalPath = filepath.Join(os.TempDir(), "kairo-rules")
	}
	if cfg.Rules.Git.Timeout == 0 {
		cfg.Rules.Git.Timeout = DefaultGitTimeout
	}

	// Checker defaults
	if cfg.Checker.ExternalTimeout == 0 {
		cfg.Checker.ExternalTimeout = DefaultExternalTimeout
	}
	if cfg.Checker.VerifierFailureMode == "" {
		cfg.Checker.VerifierFailureMode = DefaultVerifierFailureMode
	}
	if cfg.Checker.MaxInputBytes == 0 {
		cfg.Checker.MaxInputBytes = DefaultMaxInputBytes
	}

	// Verifier defaults - applied to each verifier
	for name, v := range cfg.Verifiers {
		if v.Timeout == 0 {
			v.Timeout = DefaultVerifierTimeout
		}
		if v.Cache.TTL == 0 {
			v.Cache.TTL = DefaultVerifierCacheTTL
		}
		cfg.Verifiers[name] = v
	}

	// Redis defaults
	if cfg.Redis.MaxRetries == 0 {
		cfg.Redis.MaxRetries = DefaultRedisMaxRetries
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Metrics.CheckDurationBuckets) == 0 {
		cfg.Metrics.CheckDurationBuckets = append([]float64(nil), DefaultCheckDurationBuckets...)
	}

	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Tracing.OTLP.Timeout == 0 {
		cfg.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}

	if cfg.Health.LivenessPath == "" {
		cfg.Health.LivenessPath = DefaultLivenessPath
	}
	if cfg.Health.ReadinessPath == "" {
		cfg.Health.ReadinessPath = DefaultReadinessPath
	}
	if cfg.Health.VersionPath == "" {
		cfg.Health.VersionPath = DefaultVersionPath
	}
	if cfg.Health.CheckTimeout == 0 {
		cfg.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
