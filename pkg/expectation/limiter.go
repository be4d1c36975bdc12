package expectation

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Limiter caps how many times an expectation may match. Exactly one of Times
// or Expr must be set. It is consulted with the expectation's match count
// before that count is incremented; once it answers false the expectation
// is exhausted and removed from the stack.
type Limiter struct {
	// Times allows the expectation to match this many times.
	Times *int `json:"times,omitempty" yaml:"times,omitempty"`

	// Expr is an expr-lang boolean expression over `count`, the number of
	// times the expectation has already matched.
	Expr string `json:"expr,omitempty" yaml:"expr,omitempty"`

	program *vm.Program
}

// Times returns a limiter allowing n matches.
func Times(n int) *Limiter {
	return &Limiter{Times: &n}
}

// Once returns a limiter allowing a single match.
func Once() *Limiter {
	return Times(1)
}

// compile validates the limiter and prepares its expression.
func (l *Limiter) compile() error {
	switch {
	case l.Times != nil && l.Expr != "":
		return fmt.Errorf("%w: times and expr are mutually exclusive", ErrInvalidLimiter)
	case l.Times != nil:
		if *l.Times < 0 {
			return fmt.Errorf("%w: times must not be negative", ErrInvalidLimiter)
		}
		return nil
	case l.Expr != "":
		program, err := expr.Compile(l.Expr, expr.Env(map[string]interface{}{"count": 0}), expr.AsBool())
		if err != nil {
			return fmt.Errorf("%w: invalid expression %q: %w", ErrInvalidLimiter, l.Expr, err)
		}
		l.program = program
		return nil
	default:
		return fmt.Errorf("%w: one of times or expr is required", ErrInvalidLimiter)
	}
}

// Validate reports whether the limiter is well formed.
func (l *Limiter) Validate() error {
	c := *l
	return c.compile()
}

// allow reports whether an expectation that has matched count times may
// match again. A runtime expression error counts as exhausted.
func (l *Limiter) allow(count int) bool {
	if l.Times != nil {
		return count < *l.Times
	}
	if l.program == nil {
		return false
	}
	out, err := expr.Run(l.program, map[string]interface{}{"count": count})
	if err != nil {
		return false
	}
	b, ok := out.(bool)
	return ok && b
}
