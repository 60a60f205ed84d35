package evaluator

import (
	"fmt"

	"github.com/spektr-org/spektr-olap/schema"
	"github.com/spektr-org/spektr-olap/tuple"
)

// CellSource returns the stored value of a cell. A nil value means the cell
// is empty. aggregations holds the tuple lists pushed with PushAggregation;
// the value must then cover every tuple of every list.
type CellSource interface {
	CellValue(coordinate []*schema.Member, aggregations []tuple.List) (any, error)
}

// CellSourceFunc adapts a function to CellSource.
type CellSourceFunc func(coordinate []*schema.Member, aggregations []tuple.List) (any, error)

func (f CellSourceFunc) CellValue(coordinate []*schema.Member, aggregations []tuple.List) (any, error) {
	return f(coordinate, aggregations)
}

// Calc is a compiled scalar expression.
type Calc interface {
	Evaluate(ev *Evaluator) (any, error)
}

// CalcFunc adapts a function to Calc.
type CalcFunc func(ev *Evaluator) (any, error)

func (f CalcFunc) Evaluate(ev *Evaluator) (any, error) { return f(ev) }

// ListCalc is a compiled set expression.
type ListCalc interface {
	EvaluateList(ev *Evaluator) (tuple.List, error)
}

// ListCalcFunc adapts a function to ListCalc.
type ListCalcFunc func(ev *Evaluator) (tuple.List, error)

func (f ListCalcFunc) EvaluateList(ev *Evaluator) (tuple.List, error) { return f(ev) }

// Current evaluates the cell at the evaluator's current coordinate.
func Current() Calc {
	return CalcFunc(func(ev *Evaluator) (any, error) { return ev.EvaluateCurrent() })
}

// Constant always returns v.
func Constant(v any) Calc {
	return CalcFunc(func(*Evaluator) (any, error) { return v, nil })
}

// ConstantList always returns l.
func ConstantList(l tuple.List) ListCalc {
	return ListCalcFunc(func(*Evaluator) (tuple.List, error) { return l, nil })
}

// At evaluates calc with the given members set on a savepoint that is
// restored afterwards.
func At(calc Calc, members ...*schema.Member) Calc {
	return CalcFunc(func(ev *Evaluator) (v any, err error) {
		sp := ev.Savepoint()
		defer func() {
			if rerr := ev.Restore(sp); err == nil {
				err = rerr
			}
		}()
		ev.SetContextMembers(members, true)
		return calc.Evaluate(ev)
	})
}

// ParameterSource resolves the parameters visible to a query.
type ParameterSource interface {
	ParameterCalc(name string) (Calc, bool)
}

// Parameter returns the expression reading the named query parameter.
func (ev *Evaluator) Parameter(name string) (Calc, bool) {
	if ev.query.params == nil {
		return nil, false
	}
	return ev.query.params.ParameterCalc(name)
}

// ParameterRef reads the named query parameter when evaluated. It fails if
// the query has no such parameter.
func ParameterRef(name string) Calc {
	return CalcFunc(func(ev *Evaluator) (any, error) {
		c, ok := ev.Parameter(name)
		if !ok {
			return nil, fmt.Errorf("parameter %s is not defined", name)
		}
		return c.Evaluate(ev)
	})
}

// Number converts a cell value to float64. Non-numeric values report false.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
