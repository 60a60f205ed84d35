package evaluator

import (
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"

	"github.com/spektr-org/spektr-olap/schema"
)

// ============================================================================
// EXPRESSION CACHE — results keyed by the members an expression depends on
// ============================================================================
// The fingerprint covers only the hierarchies named by the descriptor plus
// the aggregation context. Assigning a different member to any other
// hierarchy reuses the cached value, so an incomplete dependency list yields
// stale results rather than an error.
// ============================================================================

// ExpCacheDescriptor names a cacheable expression and the hierarchies its
// value depends on.
type ExpCacheDescriptor struct {
	name      string
	calc      Calc
	dependsOn []*schema.Hierarchy
}

// NewExpCacheDescriptor creates a descriptor. name must be unique per
// expression within a query.
func NewExpCacheDescriptor(name string, calc Calc, dependsOn ...*schema.Hierarchy) *ExpCacheDescriptor {
	deps := append([]*schema.Hierarchy(nil), dependsOn...)
	sort.Slice(deps, func(i, j int) bool { return deps[i].Ordinal() < deps[j].Ordinal() })
	return &ExpCacheDescriptor{name: name, calc: calc, dependsOn: deps}
}

func (d *ExpCacheDescriptor) Name() string { return d.name }

// DependsOn returns the hierarchies in ordinal order.
func (d *ExpCacheDescriptor) DependsOn() []*schema.Hierarchy {
	return append([]*schema.Hierarchy(nil), d.dependsOn...)
}

type cacheKey struct {
	name        string
	fingerprint uint64
}

func (ev *Evaluator) cacheKey(d *ExpCacheDescriptor) cacheKey {
	h := xxhash.New()
	for _, dep := range d.dependsOn {
		_, _ = h.WriteString(strconv.Itoa(dep.Ordinal()))
		_, _ = h.WriteString("=")
		_, _ = h.WriteString(ev.Member(dep).UniqueName())
		_, _ = h.WriteString(";")
	}
	for i, l := range ev.aggregations {
		_, _ = h.WriteString("|agg" + strconv.Itoa(i))
		for r := 0; r < l.Len(); r++ {
			_, _ = h.WriteString("(")
			for c := 0; c < l.Arity(); c++ {
				_, _ = h.WriteString(l.Get(r, c).UniqueName())
				_, _ = h.WriteString(",")
			}
			_, _ = h.WriteString(")")
		}
	}
	return cacheKey{name: d.name, fingerprint: h.Sum64()}
}

// CachedResult returns the value stored for d under the current context.
func (ev *Evaluator) CachedResult(d *ExpCacheDescriptor) (any, bool) {
	v, ok := ev.query.cache.Get(ev.cacheKey(d))
	if ok {
		ev.metrics.CacheHit(d.name)
	} else {
		ev.metrics.CacheMiss(d.name)
	}
	return v, ok
}

// StoreCachedResult stores v for d under the current context.
func (ev *Evaluator) StoreCachedResult(d *ExpCacheDescriptor, v any) {
	ev.query.cache.Add(ev.cacheKey(d), v)
}

// EvaluateCached returns the cached value of d, evaluating and storing it on
// a miss. Errors are not cached.
func (ev *Evaluator) EvaluateCached(d *ExpCacheDescriptor) (any, error) {
	if v, ok := ev.CachedResult(d); ok {
		return v, nil
	}
	v, err := d.calc.Evaluate(ev)
	if err != nil {
		return nil, err
	}
	ev.StoreCachedResult(d, v)
	if ev.logger.IsLevelEnabled(logrus.TraceLevel) {
		ev.logger.WithField("expression", d.name).Trace("cached expression evaluated")
	}
	return v, nil
}

// ClearCache drops every cached result of the query.
func (ev *Evaluator) ClearCache() {
	ev.query.cache.Purge()
}
