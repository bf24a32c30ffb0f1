// Package registry loads, validates and indexes guardrail rule definitions.
//
// A Registry is built once by Load and never mutated. Patterns are compiled and
// keyword phrases normalized during Load, so a malformed definition is reported as a
// *guardrail.ConfigError before the engine becomes ready rather than on a request.
//
// Hot reload is done by building a new Registry and publishing it through a Holder:
//
//	reg, err := registry.Load(rules)
//	if err != nil {
//	    return err // names the offending rule id
//	}
//	holder.Swap(reg)
//
// Checks that started before the swap finish with the registry they loaded.
package registry
