package scenario

import (
	"errors"
	"fmt"
	"time"

	"github.com/spektr-org/spektr-olap/evaluator"
	"github.com/spektr-org/spektr-olap/schema"
)

// ErrWeightNotPersistable is returned when a writeback whose weight is an
// arbitrary expression is saved. Only ConstantWeight survives a store.
var ErrWeightNotPersistable = errors.New("weight expression is not persistable")

// ErrWeightNotNumeric is returned when a weight expression evaluates to an
// empty or non-numeric value.
var ErrWeightNotNumeric = errors.New("weight is not numeric")

// WritebackCell is one recorded edit. Its previous value is the value the
// cell held when the edit was made and never changes afterwards.
type WritebackCell struct {
	coordinate []*schema.Member
	newValue   float64
	previous   float64
	policy     Policy
	weight     evaluator.Calc
	recordedAt time.Time
}

// NewWritebackCell builds an edit. coordinate must hold one member of every
// hierarchy in ordinal order; weight may be nil.
func NewWritebackCell(coordinate []*schema.Member, newValue, previous float64, policy Policy, weight evaluator.Calc) (*WritebackCell, error) {
	if !policy.Valid() {
		return nil, &PolicyDefectError{Policy: policy}
	}
	for i, m := range coordinate {
		if m == nil {
			return nil, fmt.Errorf("writeback coordinate has no member at position %d", i)
		}
		if m.IsNull() {
			return nil, fmt.Errorf("cannot write back to a cell at null member %s", m.UniqueName())
		}
		if m.Hierarchy().Ordinal() != i {
			return nil, fmt.Errorf("writeback coordinate member %s is out of hierarchy order", m.UniqueName())
		}
	}
	return &WritebackCell{
		coordinate: append([]*schema.Member(nil), coordinate...),
		newValue:   newValue,
		previous:   previous,
		policy:     policy,
		weight:     weight,
		recordedAt: time.Now().UTC(),
	}, nil
}

func (w *WritebackCell) NewValue() float64      { return w.newValue }
func (w *WritebackCell) PreviousValue() float64 { return w.previous }
func (w *WritebackCell) Policy() Policy         { return w.policy }
func (w *WritebackCell) Weight() evaluator.Calc { return w.weight }
func (w *WritebackCell) RecordedAt() time.Time  { return w.recordedAt }

// Offset is the change the edit made.
func (w *WritebackCell) Offset() float64 { return w.newValue - w.previous }

func (w *WritebackCell) Coordinate() []*schema.Member {
	return append([]*schema.Member(nil), w.coordinate...)
}

// RelationTo classifies the edit against a full coordinate.
func (w *WritebackCell) RelationTo(current []*schema.Member) Relation {
	return Relate(w.coordinate, current)
}

func (w *WritebackCell) String() string {
	return fmt.Sprintf("Writeback(%v: %g -> %g, %s)", w.coordinate, w.previous, w.newValue, w.policy)
}

// share evaluates the weight expression at the current context. A missing
// weight or an unweighted policy yields nil.
func (w *WritebackCell) share(ev *evaluator.Evaluator) (*float64, error) {
	if w.weight == nil || !w.policy.Weighted() {
		return nil, nil
	}
	v, err := w.weight.Evaluate(ev)
	if err != nil {
		return nil, fmt.Errorf("weight of %s: %w", w, err)
	}
	f, ok := evaluator.Number(v)
	if !ok {
		return nil, fmt.Errorf("weight of %s: %w: %v", w, ErrWeightNotNumeric, v)
	}
	return &f, nil
}

// RestoreWritebackCell rebuilds a persisted edit, keeping its timestamp.
func RestoreWritebackCell(coordinate []*schema.Member, newValue, previous float64, policy Policy, weight evaluator.Calc, recordedAt time.Time) (*WritebackCell, error) {
	w, err := NewWritebackCell(coordinate, newValue, previous, policy, weight)
	if err != nil {
		return nil, err
	}
	w.recordedAt = recordedAt
	return w, nil
}

// ============================================================================
// CONSTANT WEIGHT
// ============================================================================

type constantWeight float64

func (c constantWeight) Evaluate(*evaluator.Evaluator) (any, error) { return float64(c), nil }

// ConstantWeight is a weight expression with a fixed share.
func ConstantWeight(share float64) evaluator.Calc { return constantWeight(share) }

// WeightValue returns the share of a ConstantWeight. A nil weight reports
// (0, false, nil); any other expression fails with ErrWeightNotPersistable.
func WeightValue(c evaluator.Calc) (float64, bool, error) {
	switch w := c.(type) {
	case nil:
		return 0, false, nil
	case constantWeight:
		return float64(w), true, nil
	}
	return 0, false, ErrWeightNotPersistable
}
