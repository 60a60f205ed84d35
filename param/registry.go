package param

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry holds the parameters of one scope. Lookups fall through to the
// parent registry, so a statement registry sees connection, schema and
// system parameters. Names are matched case-insensitively.
type Registry struct {
	scope  Scope
	parent *Registry
	logger *logrus.Logger

	mu     sync.RWMutex
	params map[string]*Parameter
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger. Defaults to logrus.StandardLogger().
func WithLogger(l *logrus.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates a registry for scope. parent, if given, must belong to
// an outer scope.
func NewRegistry(scope Scope, parent *Registry, opts ...RegistryOption) (*Registry, error) {
	if parent != nil && parent.scope >= scope {
		return nil, fmt.Errorf("registry %s cannot nest inside %s", scope, parent.scope)
	}
	r := &Registry{scope: scope, parent: parent, params: make(map[string]*Parameter)}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		if parent != nil {
			r.logger = parent.logger
		} else {
			r.logger = logrus.StandardLogger()
		}
	}
	return r, nil
}

// NewStatement creates the per-query registry under parent.
func NewStatement(parent *Registry) (*Registry, error) {
	return NewRegistry(Statement, parent)
}

func (r *Registry) Scope() Scope      { return r.scope }
func (r *Registry) Parent() *Registry { return r.parent }

func key(name string) string { return strings.ToUpper(name) }

// Define adds p. The name must be new to this registry; shadowing a
// parameter of an outer scope is allowed.
func (r *Registry) Define(p *Parameter) error {
	if p.Scope() != r.scope {
		return fmt.Errorf("parameter %s has scope %s, registry is %s", p.Name(), p.Scope(), r.scope)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.params[key(p.Name())]; ok {
		return fmt.Errorf("%w: %s in %s scope", ErrDuplicate, p.Name(), r.scope)
	}
	r.params[key(p.Name())] = p
	return nil
}

// Lookup finds name in this registry or the nearest outer one.
func (r *Registry) Lookup(name string) (*Parameter, bool) {
	for reg := r; reg != nil; reg = reg.parent {
		reg.mu.RLock()
		p, ok := reg.params[key(name)]
		reg.mu.RUnlock()
		if ok {
			return p, true
		}
	}
	return nil, false
}

// Rebind replaces the parameter registered under p's name with p, as when
// a statement is resolved again. An assigned value of the replaced
// parameter carries over unless p is already set.
func (r *Registry) Rebind(p *Parameter) error {
	if p.Scope() != r.scope {
		return fmt.Errorf("parameter %s has scope %s, registry is %s", p.Name(), p.Scope(), r.scope)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.params[key(p.Name())]
	if ok && old != p && !p.IsSet() {
		if v, set := old.assignment(); set {
			if err := p.check(v); err != nil {
				return fmt.Errorf("rebind %s: %w", p.Name(), err)
			}
			p.assign(v)
			r.logger.WithFields(logrus.Fields{"parameter": p.Name(), "scope": r.scope.String()}).
				Debug("parameter value carried over")
		}
	}
	r.params[key(p.Name())] = p
	return nil
}

// Parameters lists the parameters of this registry only, by name.
func (r *Registry) Parameters() []*Parameter {
	r.mu.RLock()
	out := make([]*Parameter, 0, len(r.params))
	for _, p := range r.params {
		out = append(out, p)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
