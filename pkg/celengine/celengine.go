package celengine

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// Program is a compiled CEL expression that can be evaluated many times.
type Program struct {
	expr string
	prg  cel.Program
	out  *cel.Type
}

// Compile type-checks expr against vars and expects it to produce out.
func Compile(expr string, vars map[string]*cel.Type, out *cel.Type) (*Program, error) {
	if expr == "" {
		return nil, fmt.Errorf("expression must not be empty")
	}

	opts := make([]cel.EnvOption, 0, len(vars))
	for name, t := range vars {
		opts = append(opts, cel.Variable(name, t))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}
	if out != nil && !ast.OutputType().IsExactType(out) && !ast.OutputType().IsExactType(types.DynType) {
		return nil, fmt.Errorf("expression must return %s, got %s", out, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Program{expr: expr, prg: prg, out: out}, nil
}

func (p *Program) String() string {
	return p.expr
}

// EvalInt evaluates the program and returns an integer result.
func (p *Program) EvalInt(attrs map[string]any) (int64, error) {
	val, err := p.eval(attrs)
	if err != nil {
		return 0, err
	}

	switch v := val.(type) {
	case int64:
		return v, nil
	case uint64:
		return int64(v), nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("expected int from expression, got %T (%v)", val, val)
	}
}

// EvalBool evaluates the program and returns a boolean result.
func (p *Program) EvalBool(attrs map[string]any) (bool, error) {
	val, err := p.eval(attrs)
	if err != nil {
		return false, err
	}

	b, ok := val.(bool)
	if !ok {
		return false, fmt.Errorf("expected bool from expression, got %T (%v)", val, val)
	}
	return b, nil
}

func (p *Program) eval(attrs map[string]any) (any, error) {
	if attrs == nil {
		attrs = map[string]any{}
	}
	out, _, err := p.prg.Eval(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression: %w", err)
	}
	return out.Value(), nil
}
