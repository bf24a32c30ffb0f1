package config

import "time"

// Config is the root configuration structure for the Kairo guardrail engine.
type Config struct {
	// Rules selects where rule definitions come from and how they are reloaded.
	Rules RulesConfig `yaml:"rules"`

	// Checker contains compliance check settings.
	Checker CheckerConfig `yaml:"checker"`

	// Verifiers maps capability names to remote verification services.
	// External rules name a capability in their "external.capability" field.
	Verifiers map[string]VerifierConfig `yaml:"verifiers"`

	// Redis configures the verdict cache shared by verifiers with caching enabled.
	Redis RedisConfig `yaml:"redis"`

	// Server configures the operations HTTP server started by "kairo run".
	Server ServerConfig `yaml:"server"`

	// Telemetry contains configuration for logging, metrics, tracing and health.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// RulesConfig selects the rule source.
type RulesConfig struct {
	// Source is one of "builtin", "file" or "git".
	// Default: "builtin"
	Source string `yaml:"source"`

	// Path is a rule file or a directory of rule files when Source is "file".
	// Files ending in .yaml, .yml or .json are loaded in lexical order.
	Path string `yaml:"path"`

	// MaxFileSize rejects rule files larger than this many bytes.
	// Default: 1048576 (1MB)
	MaxFileSize int64 `yaml:"max_file_size"`

	// Watch reloads rules when files under Path change.
	// Default: false
	Watch bool `yaml:"watch"`

	// WatchDebounce coalesces bursts of file events into one reload.
	// Default: 100ms
	WatchDebounce time.Duration `yaml:"watch_debounce"`

	// ReloadSchedule is a cron expression for periodic reloads (for example
	// "@every 5m" or "*/10 * * * *"). Empty disables scheduled reloads.
	ReloadSchedule string `yaml:"reload_schedule"`

	// Git configures the repository when Source is "git".
	Git GitRulesConfig `yaml:"git"`
}

// GitRulesConfig configures Git-based rule loading.
type GitRulesConfig struct {
	// Repository URL (HTTPS or SSH).
	// Example: "https://github.com/school/guardrail-rules.git"
	Repository string `yaml:"repository"`

	// Branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path within the repository to a rule file or directory.
	// Default: "" (repository root)
	Path string `yaml:"path"`

	// Auth configures Git authentication.
	Auth GitAuthConfig `yaml:"auth"`

	// Clone configures repository cloning.
	Clone GitCloneConfig `yaml:"clone"`

	// Timeout for clone and pull operations.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`
}

// GitAuthConfig configures Git authentication.
type GitAuthConfig struct {
	// Type: "token", "ssh", "none"
	// Default: "none"
	Type string `yaml:"type"`

	// Token for HTTPS authentication. "${VAR}" references are expanded.
	Token string `yaml:"token"`

	// SSHKeyPath for SSH authentication.
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKeyPassphrase for encrypted SSH keys. "${VAR}" references are expanded.
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// GitCloneConfig configures repository cloning.
type GitCloneConfig struct {
	// Depth for shallow clones (0 = full clone).
	// Default: 1
	Depth int `yaml:"depth"`

	// LocalPath where the repository is cloned.
	// Default: "<tmp>/kairo-rules"
	LocalPath string `yaml:"local_path"`

	// CleanOnStart removes the local clone before the first clone.
	// Default: false
	CleanOnStart bool `yaml:"clean_on_start"`
}

// CheckerConfig contains compliance check settings.
type CheckerConfig struct {
	// ExternalTimeout bounds each external verification unless the rule sets its own.
	// Default: 2s
	ExternalTimeout time.Duration `yaml:"external_timeout"`

	// VerifierFailureMode is "fail-open" or "fail-closed". In fail-closed mode an
	// unreachable verifier for a critical rule blocks the check.
	// Default: "fail-open"
	VerifierFailureMode string `yaml:"verifier_failure_mode"`

	// MaxInputBytes rejects user input or AI output above this size. 0 disables
	// the limit.
	// Default: 1048576 (1MB)
	MaxInputBytes int `yaml:"max_input_bytes"`
}

// VerifierConfig configures one HTTP verification capability.
type VerifierConfig struct {
	// Endpoint receives POST {"evidence_hash": "..."}.
	Endpoint string `yaml:"endpoint"`

	// Timeout for the HTTP round trip.
	// Default: 2s
	Timeout time.Duration `yaml:"timeout"`

	// Headers are sent with every request. "${VAR}" references are expanded.
	Headers map[string]string `yaml:"headers"`

	// Cache stores verdicts in Redis keyed by evidence hash.
	Cache VerifierCacheConfig `yaml:"cache"`
}

// VerifierCacheConfig configures verdict caching for a verifier.
type VerifierCacheConfig struct {
	// Enabled turns on caching. Requires redis.address.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// TTL of cached verdicts.
	// Default: 1h
	TTL time.Duration `yaml:"ttl"`
}

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	// Address in host:port form. Empty disables Redis.
	Address string `yaml:"address"`

	// Password for AUTH. "${VAR}" references are expanded.
	Password string `yaml:"password"`

	// DB number.
	// Default: 0
	DB int `yaml:"db"`

	// MaxRetries for the initial connection ping.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// KeyPrefix is prepended to every cache key.
	// Default: "kairo:verdict:"
	KeyPrefix string `yaml:"key_prefix"`
}

// ServerConfig configures the operations HTTP server.
type ServerConfig struct {
	// ListenAddress for health and metrics endpoints.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout for HTTP requests.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout for HTTP responses.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "kairo"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "guardrails"
	Subsystem string `yaml:"subsystem"`

	// CheckDurationBuckets defines histogram buckets for check duration (seconds).
	CheckDurationBuckets []float64 `yaml:"check_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio", "parent_ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "kairo-guardrails"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for the OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// Enabled controls whether health check endpoints are served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/healthz"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/readyz"
	ReadinessPath string `yaml:"readiness_path"`

	// VersionPath is the path for the version information endpoint.
	// Default: "/version"
	VersionPath string `yaml:"version_path"`

	// CheckTimeout is the timeout for individual component health checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
