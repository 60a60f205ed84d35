package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/spektr-org/spektr-olap/evaluator"
	"github.com/spektr-org/spektr-olap/param"
	"github.com/spektr-org/spektr-olap/scenario"
	"github.com/spektr-org/spektr-olap/schema"
	"github.com/spektr-org/spektr-olap/tuple"
)

// ============================================================================
// EXECUTOR — Axis grid evaluation
// ============================================================================
// Entry point: Execute(ctx, cube, source, query, opts...)
//
// Pipeline:
//   1. Bind statement parameters, build the query evaluator, register
//      named sets
//   2. Apply the slicer as the base context; a compound slicer becomes an
//      aggregation context (PushAggregation)
//   3. Resolve the row and column axes (SetEvaluator)
//   4. For every (row, column) pair: savepoint, set members, evaluate the
//      cell (through the scenario when one is active), restore
//   5. Return Result
// ============================================================================

// Axis keys under which Execute binds its set evaluators.
const (
	RowsAxis    = "rows"
	ColumnsAxis = "columns"
)

// Query describes one grid evaluation.
type Query struct {
	Rows      evaluator.ListCalc            // required
	Columns   evaluator.ListCalc            // optional; nil gives a single column
	NamedSets map[string]evaluator.ListCalc // resolved once, referenced with evaluator.NamedSet
	Slicer    []*schema.Member              // base context of every cell
	Aggregate []evaluator.ListCalc          // compound slicer; cells cover every tuple
	Cell      evaluator.Calc                // defaults to the cached raw cell

	// Parameters binds statement parameters, read with
	// evaluator.ParameterRef. A name already defined in an outer scope keeps
	// its type and shadows the outer value for this query only.
	Parameters map[string]any
}

// cellCacheName is the expression cache entry of the default cell calc.
const cellCacheName = "cell"

// Execute evaluates q against source and returns the cell grid.
//
// Options:
//   - WithScenario(s) — cells include the writebacks of s
//   - WithCacheSize(n), WithLogger(l), WithMetrics(r)
func Execute(ctx context.Context, cube *schema.Cube, source evaluator.CellSource, q Query, opts ...Option) (*Result, error) {
	return execute(ctx, cube, source, q, nil, applyOptions(opts))
}

// execute runs q. Statement parameters are bound in a registry under parent,
// which may be nil.
func execute(ctx context.Context, cube *schema.Cube, source evaluator.CellSource, q Query, parent *param.Registry, cfg *config) (*Result, error) {
	if q.Rows == nil {
		return nil, fmt.Errorf("query has no row axis")
	}
	start := time.Now()

	stmt, err := bindParameters(parent, q.Parameters, cfg.Logger)
	if err != nil {
		return nil, err
	}
	ev, err := evaluator.New(cube, source, append(cfg.evaluatorOptions(), evaluator.WithParameters(stmt))...)
	if err != nil {
		return nil, err
	}
	for name, calc := range q.NamedSets {
		if err := ev.DefineNamedSet(name, calc); err != nil {
			return nil, err
		}
	}
	ev.SetContextMembers(q.Slicer, true)
	if len(q.Aggregate) > 0 {
		lists := make([]tuple.List, 0, len(q.Aggregate))
		for i, calc := range q.Aggregate {
			l, err := calc.EvaluateList(ev)
			if err != nil {
				return nil, fmt.Errorf("slicer set %d: %w", i, err)
			}
			lists = append(lists, l)
		}
		ev = ev.PushAggregation(lists...)
	}

	cell := q.Cell
	if cell == nil {
		d := evaluator.NewExpCacheDescriptor(cellCacheName, evaluator.Current(), cube.Hierarchies()...)
		cell = evaluator.CalcFunc(func(ev *evaluator.Evaluator) (any, error) { return ev.EvaluateCached(d) })
	}
	result := &Result{}
	if cfg.Scenario != nil {
		cell = scenario.Calc(cfg.Scenario, cell, scenario.WithLogger(cfg.Logger), scenario.WithMetrics(cfg.Metrics))
		result.Scenario = cfg.Scenario.ID().String()
	}

	rows, err := resolveAxis(ev, RowsAxis, q.Rows)
	if err != nil {
		return nil, err
	}
	result.Rows = rows.List()

	if q.Columns != nil {
		columns, err := resolveAxis(ev, ColumnsAxis, q.Columns)
		if err != nil {
			return nil, err
		}
		result.Columns = columns.List()
	}

	result.Cells = make([][]any, 0, result.Rows.Len())
	for rows.Next() {
		rowTuple, _ := rows.Tuple()
		line := make([]any, result.ColumnCount())
		for c := range line {
			var colTuple []*schema.Member
			if result.Columns != nil {
				colTuple = result.Columns.Tuple(c)
			}
			v, err := evaluateCell(ctx, ev, cell, rowTuple, colTuple)
			if err != nil {
				return nil, err
			}
			line[c] = v
		}
		result.Cells = append(result.Cells, line)
	}

	cfg.Logger.WithFields(logrus.Fields{
		"cube":     cube.Name(),
		"rows":     result.Rows.Len(),
		"columns":  result.ColumnCount(),
		"scenario": result.Scenario,
		"elapsed":  time.Since(start).String(),
	}).Info("query executed")
	return result, nil
}

// bindParameters creates the statement registry and assigns values to it.
func bindParameters(parent *param.Registry, values map[string]any, logger *logrus.Logger) (*param.Registry, error) {
	stmt, err := param.NewRegistry(param.Statement, parent, param.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	for name, raw := range values {
		v, err := param.Convert(raw)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		var p *param.Parameter
		if outer, ok := stmt.Lookup(name); ok {
			p, err = param.New(outer.Name(), param.Statement, outer.Type(), outer.Default(), param.WithHierarchy(outer.Hierarchy()))
		} else {
			p, err = inferParameter(name, v)
		}
		if err != nil {
			return nil, err
		}
		if err := p.SetValue(v); err != nil {
			return nil, err
		}
		if err := stmt.Define(p); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

// inferParameter declares a statement parameter typed after its value.
func inferParameter(name string, v any) (*param.Parameter, error) {
	def := evaluator.Constant(nil)
	switch x := v.(type) {
	case string:
		return param.New(name, param.Statement, param.String, def)
	case float64:
		return param.New(name, param.Statement, param.Numeric, def)
	case *schema.Member:
		return param.New(name, param.Statement, param.Member, def, param.WithHierarchy(x.Hierarchy()))
	case tuple.List:
		return param.New(name, param.Statement, param.Set, def)
	}
	return nil, fmt.Errorf("parameter %s: cannot infer a type from a null value", name)
}

// resolveAxis binds calc to key and resolves it against the slicer context.
func resolveAxis(ev *evaluator.Evaluator, key string, calc evaluator.ListCalc) (*evaluator.SetCursor, error) {
	se, _ := ev.SetEvaluator(key, calc, true)
	c, err := se.Evaluate()
	if err != nil {
		return nil, fmt.Errorf("axis %s: %w", key, err)
	}
	return c, nil
}

func evaluateCell(ctx context.Context, ev *evaluator.Evaluator, cell evaluator.Calc, row, col []*schema.Member) (v any, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sp := ev.Savepoint()
	defer func() {
		if rerr := ev.Restore(sp); rerr != nil && err == nil {
			v, err = nil, rerr
		}
	}()
	ev.SetContextMembers(row, true)
	ev.SetContextMembers(col, true)
	v, err = cell.Evaluate(ev)
	if err != nil {
		return nil, fmt.Errorf("cell %s: %w", tupleLabel(append(row[:len(row):len(row)], col...)), err)
	}
	return v, nil
}

func tupleLabel(t []*schema.Member) string {
	names := make([]string, len(t))
	for i, m := range t {
		names[i] = m.UniqueName()
	}
	if len(names) == 1 {
		return names[0]
	}
	return "(" + strings.Join(names, ", ") + ")"
}
