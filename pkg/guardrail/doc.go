// Package guardrail defines the shared data model of the compliance engine: rules,
// violations, results, the severity and action orders, and the error taxonomy.
//
// # Orders
//
// Severities are totally ordered low < medium < high < critical and actions are ordered
// allow < warn < block. Both expose Rank so that resolution can be written as a reduction
// instead of string comparisons.
//
// # Errors
//
// Only ConfigError (at load) and InputError (per check) stop a result from being produced.
// EvaluationTimeout and InternalEvaluationError are recorded in the result's diagnostics.
// Use KindOf to obtain the machine-readable kind of any returned error.
//
// The subpackages build on this model:
//
//	registry   - validated, immutable rule tables and the atomically swapped holder
//	evaluator  - one strategy per check kind
//	verify     - external verification capabilities and verdict caching
//	checker    - orchestration, aggregation and action resolution
//	source     - file, memory and git rule sources
//	manager    - loading, hot reload and scheduled reload
package guardrail
