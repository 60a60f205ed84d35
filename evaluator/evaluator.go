// Package evaluator holds the per-query evaluation context: the current
// member of every hierarchy, an undo log for savepoint and restore, the
// aggregation context, and the query-scoped result cache and named sets.
//
// An Evaluator is not safe for concurrent use. Run concurrent branches on
// independent copies obtained with Push.
package evaluator

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/spektr-org/spektr-olap/metrics"
	"github.com/spektr-org/spektr-olap/schema"
	"github.com/spektr-org/spektr-olap/tuple"
)

// ErrInvalidSavepoint is returned when restoring a savepoint that was never
// issued by this evaluator or that an earlier restore already unwound.
var ErrInvalidSavepoint = errors.New("invalid savepoint")

// DefaultCacheSize bounds the per-query cache of expression results.
const DefaultCacheSize = 4096

// Savepoint identifies a point in the context mutation history.
type Savepoint int

// logEntry records the member a hierarchy held before a safe assignment.
// A nil prev means the hierarchy was unset.
type logEntry struct {
	ordinal int
	prev    *schema.Member
}

type mark struct {
	id  Savepoint
	pos int
}

// queryState is shared by an evaluator and every copy pushed from it.
type queryState struct {
	cache *lru.Cache[cacheKey, any]

	mu        sync.Mutex
	namedSets map[string]*NamedSetEvaluator
	defs      map[string]ListCalc

	params ParameterSource
}

// Evaluator is the evaluation context of one query.
type Evaluator struct {
	cube        *schema.Cube
	hierarchies []*schema.Hierarchy
	source      CellSource

	current  []*schema.Member
	previous []*schema.Member

	// Undo log. recorded[ord] is the index of the newest entry for a
	// hierarchy, or -1.
	log      []logEntry
	recorded []int
	marks    []mark
	nextID   Savepoint
	restored Savepoint // last savepoint closed by Restore, or -1

	aggregations []tuple.List

	query *queryState
	sets  map[string]*SetEvaluator

	logger  *logrus.Logger
	metrics metrics.Recorder
}

type options struct {
	logger    *logrus.Logger
	metrics   metrics.Recorder
	cacheSize int
	params    ParameterSource
}

// Option configures an Evaluator.
type Option func(*options)

// WithLogger sets the logger. Defaults to logrus.StandardLogger().
func WithLogger(l *logrus.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics recorder. Defaults to metrics.Nop.
func WithMetrics(r metrics.Recorder) Option {
	return func(o *options) { o.metrics = r }
}

// WithCacheSize bounds the expression result cache.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithParameters sets where Parameter looks up query parameters.
func WithParameters(src ParameterSource) Option {
	return func(o *options) { o.params = src }
}

// New creates the root evaluator of a query. source may be nil when no cell
// is ever evaluated from storage.
func New(cube *schema.Cube, source CellSource, opts ...Option) (*Evaluator, error) {
	if cube == nil {
		return nil, fmt.Errorf("evaluator: cube is required")
	}
	o := options{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logrus.StandardLogger()
	}
	if o.metrics == nil {
		o.metrics = metrics.Nop{}
	}

	cache, err := lru.New[cacheKey, any](o.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("evaluator: result cache: %w", err)
	}

	hs := cube.Hierarchies()
	ev := &Evaluator{
		cube:        cube,
		hierarchies: hs,
		source:      source,
		current:     make([]*schema.Member, len(hs)),
		previous:    make([]*schema.Member, len(hs)),
		recorded:    make([]int, len(hs)),
		restored:    -1,
		query: &queryState{
			cache:     cache,
			namedSets: make(map[string]*NamedSetEvaluator),
			defs:      make(map[string]ListCalc),
			params:    o.params,
		},
		logger:  o.logger,
		metrics: o.metrics,
	}
	for i := range ev.recorded {
		ev.recorded[i] = -1
	}
	return ev, nil
}

func (ev *Evaluator) Cube() *schema.Cube        { return ev.cube }
func (ev *Evaluator) Logger() *logrus.Logger    { return ev.logger }
func (ev *Evaluator) Metrics() metrics.Recorder { return ev.metrics }

// ============================================================================
// CONTEXT
// ============================================================================

func (ev *Evaluator) ordinal(h *schema.Hierarchy) int {
	ord := h.Ordinal()
	if ord < 0 || ord >= len(ev.hierarchies) || ev.hierarchies[ord] != h {
		panic(fmt.Sprintf("evaluator: hierarchy %s is not part of cube %s", h, ev.cube.Name()))
	}
	return ord
}

// SetContext makes m the current member of its hierarchy and returns the
// member it replaced (nil if the hierarchy was unset).
//
// With safe set, the first assignment to a hierarchy after the newest open
// savepoint records the prior member so Restore can reinstate it. With safe
// unset nothing is recorded: the caller asserts the prior member is already
// recorded or will never be restored. Restoring across an unsafe assignment
// that was not otherwise recorded leaves the assigned member in place.
func (ev *Evaluator) SetContext(m *schema.Member, safe bool) *schema.Member {
	ord := ev.ordinal(m.Hierarchy())
	old := ev.current[ord]
	if old == m {
		return old
	}
	if safe && len(ev.marks) > 0 && !ev.recordedSinceMark(ord) {
		ev.recorded[ord] = len(ev.log)
		ev.log = append(ev.log, logEntry{ordinal: ord, prev: old})
	}
	ev.previous[ord] = old
	ev.current[ord] = m
	return old
}

func (ev *Evaluator) recordedSinceMark(ord int) bool {
	idx := ev.recorded[ord]
	top := ev.marks[len(ev.marks)-1].pos
	return idx >= top && idx < len(ev.log) && ev.log[idx].ordinal == ord
}

// SetContextMembers applies SetContext to each member in order. When two
// members share a hierarchy the later one wins.
func (ev *Evaluator) SetContextMembers(members []*schema.Member, safe bool) {
	for _, m := range members {
		ev.SetContext(m, safe)
	}
}

// Context returns the current member of h. The second result is false when
// h has never been assigned, which is distinct from holding the null member.
func (ev *Evaluator) Context(h *schema.Hierarchy) (*schema.Member, bool) {
	m := ev.current[ev.ordinal(h)]
	return m, m != nil
}

// Member returns the current member of h, or its default member when unset.
func (ev *Evaluator) Member(h *schema.Hierarchy) *schema.Member {
	if m := ev.current[ev.ordinal(h)]; m != nil {
		return m
	}
	return h.DefaultMember()
}

// PreviousContext returns the member h held before its most recent
// assignment, regardless of savepoints. Restore does not change it.
func (ev *Evaluator) PreviousContext(h *schema.Hierarchy) (*schema.Member, bool) {
	m := ev.previous[ev.ordinal(h)]
	return m, m != nil
}

// Coordinate returns the current member of every hierarchy, defaults filled in.
func (ev *Evaluator) Coordinate() []*schema.Member {
	out := make([]*schema.Member, len(ev.hierarchies))
	for i, h := range ev.hierarchies {
		out[i] = ev.current[i]
		if out[i] == nil {
			out[i] = h.DefaultMember()
		}
	}
	return out
}

// ============================================================================
// SAVEPOINTS
// ============================================================================

// Savepoint marks the current position of the undo log.
func (ev *Evaluator) Savepoint() Savepoint {
	id := ev.nextID
	ev.nextID++
	ev.marks = append(ev.marks, mark{id: id, pos: len(ev.log)})
	return id
}

// Restore undoes, newest first, every recorded assignment made since sp was
// taken, and closes sp together with every savepoint taken after it.
// Restoring sp again is a no-op until another savepoint is restored;
// restoring one of the later savepoints fails with ErrInvalidSavepoint.
func (ev *Evaluator) Restore(sp Savepoint) error {
	k := -1
	for i := len(ev.marks) - 1; i >= 0; i-- {
		if ev.marks[i].id == sp {
			k = i
			break
		}
	}
	if k < 0 {
		if sp < 0 || sp >= ev.nextID {
			return fmt.Errorf("%w: savepoint %d was never issued", ErrInvalidSavepoint, sp)
		}
		if sp == ev.restored {
			return nil
		}
		return fmt.Errorf("%w: savepoint %d was already unwound", ErrInvalidSavepoint, sp)
	}

	pos := ev.marks[k].pos
	undone := len(ev.log) - pos
	for i := len(ev.log) - 1; i >= pos; i-- {
		e := ev.log[i]
		ev.current[e.ordinal] = e.prev
	}
	clear(ev.log[pos:])
	ev.log = ev.log[:pos]
	ev.marks = ev.marks[:k]
	ev.restored = sp

	if undone > 0 && ev.logger.IsLevelEnabled(logrus.TraceLevel) {
		ev.logger.WithFields(logrus.Fields{"savepoint": sp, "undone": undone}).Trace("context restored")
	}
	return nil
}

// ============================================================================
// DERIVED EVALUATORS
// ============================================================================

// Push returns an independent copy carrying the same context but no undo
// log or savepoints. Mutations on either side are invisible to the other.
// The copy shares the query cache and named sets.
func (ev *Evaluator) Push() *Evaluator {
	cp := &Evaluator{
		cube:         ev.cube,
		hierarchies:  ev.hierarchies,
		source:       ev.source,
		current:      append([]*schema.Member(nil), ev.current...),
		previous:     append([]*schema.Member(nil), ev.previous...),
		recorded:     make([]int, len(ev.recorded)),
		restored:     -1,
		aggregations: append([]tuple.List(nil), ev.aggregations...),
		query:        ev.query,
		logger:       ev.logger,
		metrics:      ev.metrics,
	}
	for i := range cp.recorded {
		cp.recorded[i] = -1
	}
	return cp
}

// PushAggregation returns a copy whose aggregation context also ranges over
// lists. The current members are unchanged.
func (ev *Evaluator) PushAggregation(lists ...tuple.List) *Evaluator {
	cp := ev.Push()
	cp.aggregations = append(cp.aggregations, lists...)
	return cp
}

// Aggregations returns the aggregation context.
func (ev *Evaluator) Aggregations() []tuple.List {
	return append([]tuple.List(nil), ev.aggregations...)
}

// EvaluateCurrent reads the raw cell value at the current coordinate.
func (ev *Evaluator) EvaluateCurrent() (any, error) {
	if ev.source == nil {
		return nil, fmt.Errorf("evaluator: no cell source configured")
	}
	v, err := ev.source.CellValue(ev.Coordinate(), ev.aggregations)
	if err != nil {
		return nil, fmt.Errorf("cell %v: %w", ev.Coordinate(), err)
	}
	return v, nil
}
