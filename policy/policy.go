// Package policy decides whether a refined plan is good enough to stop.
//
// A policy is a CEL expression over three integer variables:
//
//	violations  number of violations of the current best plan
//	iteration   1-based refinement iteration
//	score       meetings completed before the first broken rule
//
// The default policy accepts a plan with no violations.
package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/zero-day-ai/itinerary/planerr"
)

// Default accepts a plan without violations.
const Default = "violations == 0"

// Input is the state a policy is evaluated against.
type Input struct {
	Violations int
	Iteration  int
	Score      int
}

// Policy is a compiled acceptance expression. It is safe for concurrent use.
type Policy struct {
	expr string
	prg  cel.Program
}

// Compile parses and type-checks expr. An empty expr compiles Default. The
// expression must evaluate to a bool.
func Compile(expr string) (*Policy, error) {
	if expr == "" {
		expr = Default
	}

	env, err := cel.NewEnv(
		cel.Variable("violations", cel.IntType),
		cel.Variable("iteration", cel.IntType),
		cel.Variable("score", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create policy environment: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, planerr.New("compile_policy", planerr.CodeInvalidInput, "invalid policy expression").
			WithCause(iss.Err()).
			WithDetails(map[string]any{"expression": expr})
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, planerr.Newf("compile_policy", planerr.CodeInvalidInput,
			"policy must evaluate to bool, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build policy program: %w", err)
	}
	return &Policy{expr: expr, prg: prg}, nil
}

// MustCompile is Compile that panics on error.
func MustCompile(expr string) *Policy {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the source expression.
func (p *Policy) String() string {
	return p.expr
}

// Accept evaluates the policy. An evaluation error is returned alongside
// false so callers can log it; it never counts as acceptance.
func (p *Policy) Accept(in Input) (bool, error) {
	out, _, err := p.prg.Eval(map[string]any{
		"violations": int64(in.Violations),
		"iteration":  int64(in.Iteration),
		"score":      int64(in.Score),
	})
	if err != nil {
		return false, fmt.Errorf("evaluate policy %q: %w", p.expr, err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("evaluate policy %q: result %v is not a bool", p.expr, out.Value())
	}
	return ok, nil
}
