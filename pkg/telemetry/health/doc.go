// Package health serves liveness, readiness and version endpoints for the
// operations server.
//
// "kairo run" registers RulesCheck as a required check, so the process
// reports not_ready (503) until the first rule registry is published. When a
// verdict cache is configured RedisCheck is registered as optional: an
// unreachable Redis reports degraded (200) because verifiers fall through to
// the remote service.
package health
