package expr

import "strings"

// Evaluator evaluates breakpoint Condition expressions against a fixed
// Registers/Memory pair, keeping the $N value-history the teacher's
// debugger/expressions.go offers across repeated evaluations on the same
// Evaluator. The history lives only as long as the Evaluator; the agent
// builds a new one for each condition check, so $N never reaches back to
// an earlier stop.
type Evaluator struct {
	Regs Registers
	Mem  Memory

	values []int64
}

// NewEvaluator creates an evaluator bound to regs/mem. mem may be nil if
// the expression language's memory-dereference syntax is never used.
func NewEvaluator(regs Registers, mem Memory) *Evaluator {
	return &Evaluator{Regs: regs, Mem: mem}
}

// Eval evaluates expr and appends the result to the value history.
func (e *Evaluator) Eval(expression string) (int64, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return 0, errEmpty
	}
	toks, err := newLexer(expression).tokenizeAll()
	if err != nil {
		return 0, err
	}
	v, err := newParser(toks, e.Regs, e.Mem, e).parse()
	if err != nil {
		return 0, err
	}
	e.values = append(e.values, v)
	return v, nil
}

// EvalCondition evaluates expression as a breakpoint Condition: empty
// always holds (spec §4.F "Condition: empty means unconditional"),
// otherwise non-zero is true.
func (e *Evaluator) EvalCondition(expression string) (bool, error) {
	if strings.TrimSpace(expression) == "" {
		return true, nil
	}
	v, err := e.Eval(expression)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (e *Evaluator) history(n int) (int64, error) {
	if n < 1 || n > len(e.values) {
		return 0, errNoSuchValue(n)
	}
	return e.values[n-1], nil
}

var errEmpty = emptyExprError{}

type emptyExprError struct{}

func (emptyExprError) Error() string { return "expr: empty expression" }

type errNoSuchValue int

func (n errNoSuchValue) Error() string {
	return "expr: value reference out of range"
}
