// Package config provides configuration management for the Kairo guardrail engine.
//
// Configuration is read from a YAML file, completed with defaults, overridden from
// the environment and validated:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("kairo.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention KAIRO_SECTION_FIELD:
//
//   - KAIRO_RULES_SOURCE overrides rules.source
//   - KAIRO_CHECKER_VERIFIER_FAILURE_MODE overrides checker.verifier_failure_mode
//   - KAIRO_VERIFIERS_SEDA_ENDPOINT overrides verifiers.seda.endpoint
//   - KAIRO_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// Validation collects every problem into a ValidationError of FieldErrors, each
// naming the dotted path of the offending field.
//
// # Example
//
//	rules:
//	  source: file
//	  path: ./rules
//	  watch: true
//	checker:
//	  external_timeout: 2s
//	  verifier_failure_mode: fail-closed
//	verifiers:
//	  seda:
//	    endpoint: https://verify.example.com/v1/verify
//	    headers:
//	      Authorization: Bearer ${SEDA_TOKEN}
//	    cache:
//	      enabled: true
//	      ttl: 1h
//	redis:
//	  address: localhost:6379
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
package config
