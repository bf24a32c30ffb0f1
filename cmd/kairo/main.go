// Kairo checks conversations between students and AI tutors against
// guardrail rules: jailbreak attempts in the user input, and bare answers or
// missing step-by-step work in the AI output.
//
// Usage:
//
//	# Check one exchange
//	kairo check --user "What is 2+2?" --ai "First, add 2 and 2 to get 4."
//
//	# Check with rules from a directory
//	kairo check --rules ./rules --user-file question.txt --ai-file answer.txt
//
//	# List the active rules
//	kairo rules list
//
//	# Validate rule files
//	kairo lint rules/
//
//	# Run a rule test suite
//	kairo test --tests rules_test.yaml
//
//	# Serve health, readiness and metrics while hot-reloading rules
//	kairo run --config /etc/kairo/config.yaml
package main

import "os"

func main() {
	os.Exit(Execute())
}
