// Package metrics counts evaluator and allocation activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives evaluation events. Implementations must be safe for
// concurrent use because pushed evaluators share one recorder.
type Recorder interface {
	CacheHit(name string)
	CacheMiss(name string)
	AllocationPass(changes int)
	Relation(kind string)
}

// Nop discards every event.
type Nop struct{}

func (Nop) CacheHit(string)    {}
func (Nop) CacheMiss(string)   {}
func (Nop) AllocationPass(int) {}
func (Nop) Relation(string)    {}

// Prometheus records events as prometheus counters.
type Prometheus struct {
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	passes      prometheus.Counter
	adjusted    prometheus.Counter
	relations   *prometheus.CounterVec
}

// NewPrometheus creates the collectors and registers them with reg. A nil
// reg leaves them unregistered.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spektr_olap",
			Subsystem: "evaluator",
			Name:      "cache_hits_total",
			Help:      "Cached expression results served.",
		}, []string{"expression"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spektr_olap",
			Subsystem: "evaluator",
			Name:      "cache_misses_total",
			Help:      "Cached expression lookups that had to evaluate.",
		}, []string{"expression"}),
		passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spektr_olap",
			Subsystem: "scenario",
			Name:      "allocation_passes_total",
			Help:      "Cell evaluations run through the allocation engine.",
		}),
		adjusted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spektr_olap",
			Subsystem: "scenario",
			Name:      "adjusted_cells_total",
			Help:      "Allocation passes where at least one writeback applied.",
		}),
		relations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spektr_olap",
			Subsystem: "scenario",
			Name:      "writeback_relations_total",
			Help:      "Writeback cells classified per relation to the evaluated cell.",
		}, []string{"relation"}),
	}

	if reg != nil {
		for _, c := range p.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

func (p *Prometheus) collectors() []prometheus.Collector {
	return []prometheus.Collector{p.cacheHits, p.cacheMisses, p.passes, p.adjusted, p.relations}
}

func (p *Prometheus) CacheHit(name string)  { p.cacheHits.WithLabelValues(name).Inc() }
func (p *Prometheus) CacheMiss(name string) { p.cacheMisses.WithLabelValues(name).Inc() }
func (p *Prometheus) Relation(kind string)  { p.relations.WithLabelValues(kind).Inc() }

func (p *Prometheus) AllocationPass(changes int) {
	p.passes.Inc()
	if changes > 0 {
		p.adjusted.Inc()
	}
}
