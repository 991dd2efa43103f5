// Package verifier composes the policy parser and evaluator into the single
// entry point a host actually calls: parse, evaluate, map truthiness to an
// allow/deny decision (spec §4.3).
package verifier

import (
	"errors"

	"github.com/agent-safe/splcap/internal/policy"
)

// ErrSealed is returned when Verify is called against an Env with Sealed set.
// The facade enforces this gate; the evaluator itself never consults it
// (spec §4.3, §9).
var ErrSealed = errors.New("token is sealed and cannot be attenuated")

// Result is the outcome of evaluating a policy against an environment.
type Result struct {
	Allow bool
	// Obligations is reserved for future policy outputs; always empty in v0.1
	// (spec §4.3).
	Obligations []string
}

// Verify evaluates ast under env and reports ALLOW/DENY. If env.Sealed is
// true it refuses outright without ever invoking the evaluator.
func Verify(ast policy.Value, env *policy.Env) (Result, error) {
	if env.Sealed {
		return Result{}, ErrSealed
	}
	result, err := policy.EvalPolicy(ast, env)
	if err != nil {
		return Result{}, err
	}
	return Result{Allow: result.Truthy(), Obligations: nil}, nil
}
