package evaluator

import (
	"fmt"
	"sync"

	"github.com/spektr-org/spektr-olap/schema"
	"github.com/spektr-org/spektr-olap/tuple"
)

// ============================================================================
// SET EVALUATORS — cursors over set expressions
// ============================================================================
// NamedSetEvaluator resolves its set once per query and hands out any number
// of cursors over that fixed list. SetEvaluator re-resolves its expression
// against the evaluator it is bound to on every Evaluate call.
// Both report the position and element of the most recent cursor.
// ============================================================================

// SetCursor iterates one resolved set. It starts before the first element.
type SetCursor struct {
	list   tuple.List
	cursor *tuple.Cursor
}

func newSetCursor(l tuple.List) *SetCursor {
	return &SetCursor{list: l, cursor: l.Cursor()}
}

// Next advances and reports whether an element is available.
func (c *SetCursor) Next() bool { return c.cursor.Next() }

// Ordinal is the zero-based position of the current element, or -1 before
// the first call to Next and after iteration finished.
func (c *SetCursor) Ordinal() int { return c.cursor.Position() }

// Member returns the first member of the current element.
func (c *SetCursor) Member() (*schema.Member, bool) {
	m := c.cursor.Member(0)
	return m, m != nil
}

// Tuple returns the current element.
func (c *SetCursor) Tuple() ([]*schema.Member, bool) {
	t := c.cursor.Tuple()
	return t, t != nil
}

// List is the resolved set being iterated.
func (c *SetCursor) List() tuple.List { return c.list }

// cursorTracker remembers the most recent cursor handed out.
type cursorTracker struct {
	mu     sync.Mutex
	latest *SetCursor
}

func (t *cursorTracker) track(c *SetCursor) *SetCursor {
	t.mu.Lock()
	t.latest = c
	t.mu.Unlock()
	return c
}

func (t *cursorTracker) get() *SetCursor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest
}

// CurrentOrdinal is the position of the most recent cursor, or -1.
func (t *cursorTracker) CurrentOrdinal() int {
	if c := t.get(); c != nil {
		return c.Ordinal()
	}
	return -1
}

// CurrentMember is the current member of the most recent cursor.
func (t *cursorTracker) CurrentMember() (*schema.Member, bool) {
	if c := t.get(); c != nil {
		return c.Member()
	}
	return nil, false
}

// CurrentTuple is the current tuple of the most recent cursor.
func (t *cursorTracker) CurrentTuple() ([]*schema.Member, bool) {
	if c := t.get(); c != nil {
		return c.Tuple()
	}
	return nil, false
}

// NamedSetEvaluator is bound to a query-scoped named set.
type NamedSetEvaluator struct {
	cursorTracker

	name string
	calc ListCalc

	once sync.Once
	list tuple.List
	err  error
}

func (n *NamedSetEvaluator) Name() string { return n.name }

// List resolves the set on first use against a copy of ev and returns the
// fixed result on every later call.
func (n *NamedSetEvaluator) List(ev *Evaluator) (tuple.List, error) {
	n.once.Do(func() {
		l, err := n.calc.EvaluateList(ev.Push())
		if err != nil {
			n.err = fmt.Errorf("named set %s: %w", n.name, err)
			return
		}
		n.list = l.Fix()
	})
	return n.list, n.err
}

// Evaluate returns a new cursor over the resolved set.
func (n *NamedSetEvaluator) Evaluate(ev *Evaluator) (*SetCursor, error) {
	l, err := n.List(ev)
	if err != nil {
		return nil, err
	}
	return n.track(newSetCursor(l)), nil
}

// SetEvaluator is bound to an ad hoc set expression and an evaluator.
type SetEvaluator struct {
	cursorTracker

	ev   *Evaluator
	calc ListCalc
}

// Evaluate resolves the expression against the bound evaluator's current
// context and returns a cursor over the result. Context changes made by the
// expression are rolled back.
func (s *SetEvaluator) Evaluate() (c *SetCursor, err error) {
	sp := s.ev.Savepoint()
	defer func() {
		if rerr := s.ev.Restore(sp); err == nil && rerr != nil {
			c, err = nil, rerr
		}
	}()
	l, err := s.calc.EvaluateList(s.ev)
	if err != nil {
		return nil, err
	}
	return s.track(newSetCursor(l.Fix())), nil
}

// DefineNamedSet registers a named set for the query. Redefining a name that
// was already resolved is an error.
func (ev *Evaluator) DefineNamedSet(name string, calc ListCalc) error {
	q := ev.query
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, resolved := q.namedSets[name]; resolved {
		return fmt.Errorf("named set %s is already in use", name)
	}
	q.defs[name] = calc
	return nil
}

// NamedSetEvaluator returns the evaluator of a defined named set. With create
// unset it only reports an evaluator that already exists.
func (ev *Evaluator) NamedSetEvaluator(name string, create bool) (*NamedSetEvaluator, bool) {
	q := ev.query
	q.mu.Lock()
	defer q.mu.Unlock()
	if n, ok := q.namedSets[name]; ok {
		return n, true
	}
	calc, defined := q.defs[name]
	if !create || !defined {
		return nil, false
	}
	n := &NamedSetEvaluator{name: name, calc: calc}
	q.namedSets[name] = n
	return n, true
}

// SetEvaluator returns the evaluator bound to key on this evaluator. With
// create set a missing one is bound to calc; otherwise only an existing one
// is reported.
func (ev *Evaluator) SetEvaluator(key string, calc ListCalc, create bool) (*SetEvaluator, bool) {
	if s, ok := ev.sets[key]; ok {
		return s, true
	}
	if !create || calc == nil {
		return nil, false
	}
	if ev.sets == nil {
		ev.sets = make(map[string]*SetEvaluator)
	}
	s := &SetEvaluator{ev: ev, calc: calc}
	ev.sets[key] = s
	return s, true
}

// NamedSet refers to a named set of the query. It resolves on first
// evaluation and fails if no set of that name was defined.
func NamedSet(name string) ListCalc {
	return ListCalcFunc(func(ev *Evaluator) (tuple.List, error) {
		n, ok := ev.NamedSetEvaluator(name, true)
		if !ok {
			return nil, fmt.Errorf("named set %s is not defined", name)
		}
		return n.List(ev)
	})
}
