package scenario

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/spektr-org/spektr-olap/evaluator"
	"github.com/spektr-org/spektr-olap/metrics"
)

// ============================================================================
// ALLOCATION ENGINE
// ============================================================================
// For each edit in recorded order the evaluated cell is classified:
//
//	EQUAL  the cell takes the new value
//	BELOW  the edit is inside this aggregate, its offset is summed in
//	ABOVE  the edit covers this cell, which gets its share per policy
//	NONE   no effect
//
// EQUAL and the allocation policies recompute from the edit; the increments
// build on the value left by earlier edits. When no edit applies the raw
// value is returned as is.
// ============================================================================

type calcOptions struct {
	logger  *logrus.Logger
	metrics metrics.Recorder
}

// Option configures the allocation calc.
type Option func(*calcOptions)

// WithLogger overrides the evaluator's logger.
func WithLogger(l *logrus.Logger) Option {
	return func(o *calcOptions) { o.logger = l }
}

// WithMetrics overrides the evaluator's metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(o *calcOptions) { o.metrics = r }
}

type allocationCalc struct {
	scenario *Scenario
	raw      evaluator.Calc
	opts     calcOptions
}

// Calc wraps raw so that cells are evaluated under scenario s. raw reads the
// stored value at the current coordinate; evaluator.Current() is the usual
// choice.
func Calc(s *Scenario, raw evaluator.Calc, opts ...Option) evaluator.Calc {
	c := &allocationCalc{scenario: s, raw: raw}
	for _, opt := range opts {
		opt(&c.opts)
	}
	return c
}

func (c *allocationCalc) Evaluate(ev *evaluator.Evaluator) (result any, err error) {
	logger, rec := c.opts.logger, c.opts.metrics
	if logger == nil {
		logger = ev.Logger()
	}
	if rec == nil {
		rec = ev.Metrics()
	}

	sp := ev.Savepoint()
	defer func() {
		if rerr := ev.Restore(sp); rerr != nil && err == nil {
			result, err = nil, rerr
		}
	}()

	v0, err := c.raw.Evaluate(ev)
	if err != nil {
		return nil, err
	}
	d, _ := evaluator.Number(v0)

	cells := c.scenario.Cells()
	changes := 0
	for _, w := range cells {
		rel := w.RelationTo(ev.Coordinate())
		switch rel {
		case None:
			continue
		case Equal:
			d = w.NewValue()
		case Below:
			d += w.Offset()
		case Above:
			cur, err := c.raw.Evaluate(ev)
			if err != nil {
				return nil, err
			}
			raw, _ := evaluator.Number(cur)
			weight, err := w.share(ev)
			if err != nil {
				return nil, err
			}
			d, err = Allocate(w.Policy(), d, w.PreviousValue(), w.NewValue(), raw, weight)
			if err != nil {
				return nil, fmt.Errorf("allocate %s: %w", w, err)
			}
		}
		rec.Relation(rel.String())
		changes++
	}
	rec.AllocationPass(changes)

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		logger.WithFields(logrus.Fields{
			"scenario":   c.scenario.Name(),
			"coordinate": fmt.Sprint(ev.Coordinate()),
			"writebacks": len(cells),
			"changes":    changes,
		}).Debug("allocation pass")
	}

	if changes == 0 {
		return v0, nil
	}
	return d, nil
}
