package ingest

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/shopspring/decimal"

	"sage/internal/core/apperror"
)

// Expressions compiles and evaluates rule predicates written in CEL.
// The only variable is `value`, the coerced cell. Programs are cached by
// source text.
type Expressions struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

func NewExpressions() (*Expressions, error) {
	env, err := cel.NewEnv(cel.Variable("value", cel.DynType))
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	return &Expressions{env: env, programs: map[string]cel.Program{}}, nil
}

// MustExpressions panics if the CEL environment cannot be built.
func MustExpressions() *Expressions {
	e, err := NewExpressions()
	if err != nil {
		panic(err)
	}
	return e
}

// Check compiles src and requires a boolean result type.
func (e *Expressions) Check(src string) error {
	_, err := e.program(src)
	return err
}

// Eval reports whether value satisfies src.
func (e *Expressions) Eval(src string, value any) (bool, error) {
	prg, err := e.program(src)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]any{"value": celValue(value)})
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression returned %T, want bool", out.Value())
	}
	return b, nil
}

func (e *Expressions) program(src string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[src]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, iss := e.env.Compile(src)
	if iss != nil && iss.Err() != nil {
		return nil, apperror.NewValidation("invalid custom_expression: " + iss.Err().Error()).
			WithDetail("field", "custom_expression")
	}
	if t := ast.OutputType().String(); t != "bool" && t != "dyn" {
		return nil, apperror.NewValidation("custom_expression must evaluate to bool, got " + t).
			WithDetail("field", "custom_expression")
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, apperror.NewValidation("invalid custom_expression: " + err.Error()).
			WithDetail("field", "custom_expression")
	}

	e.mu.Lock()
	e.programs[src] = prg
	e.mu.Unlock()
	return prg, nil
}

// celValue maps coerced cells onto CEL-native values.
func celValue(v any) any {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.InexactFloat64()
	case int:
		return int64(x)
	case time.Time:
		return x
	}
	return v
}
