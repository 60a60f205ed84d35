package param

import (
	"fmt"

	"github.com/spektr-org/spektr-olap/evaluator"
	"github.com/spektr-org/spektr-olap/tuple"
)

// Calc reads the parameter as a scalar expression.
func Calc(p *Parameter) evaluator.Calc {
	return evaluator.CalcFunc(func(ev *evaluator.Evaluator) (any, error) {
		return p.Value(ev)
	})
}

// ListCalc reads a set parameter as a set expression. A null value is an
// error since a set expression always yields a list.
func ListCalc(p *Parameter) evaluator.ListCalc {
	return evaluator.ListCalcFunc(func(ev *evaluator.Evaluator) (tuple.List, error) {
		v, err := p.Value(ev)
		if err != nil {
			return nil, err
		}
		switch l := v.(type) {
		case tuple.List:
			return l, nil
		case nil:
			return nil, fmt.Errorf("parameter %s is null", p.Name())
		}
		return nil, fmt.Errorf("parameter %s is %s, not a set", p.Name(), p.Type())
	})
}

// ParameterCalc resolves name through the registry chain, which makes a
// Registry an evaluator.ParameterSource.
func (r *Registry) ParameterCalc(name string) (evaluator.Calc, bool) {
	p, ok := r.Lookup(name)
	if !ok {
		return nil, false
	}
	return Calc(p), true
}
