// Package param implements query parameters: named, typed, scoped slots
// whose value falls back to a default expression evaluated against the
// caller's context.
package param

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spektr-org/spektr-olap/evaluator"
	"github.com/spektr-org/spektr-olap/schema"
	"github.com/spektr-org/spektr-olap/tuple"
)

var (
	// ErrUnconvertedValue is returned by SetValue when the value is not in
	// the normalized shape of the parameter's type. Run it through Convert.
	ErrUnconvertedValue = errors.New("unconverted parameter value")

	// ErrDuplicate is returned when a name is already defined in a registry.
	ErrDuplicate = errors.New("duplicate parameter")
)

// ============================================================================
// SCOPE & TYPE
// ============================================================================

// Scope sets the lifetime and visibility of a parameter. Outer scopes
// outlive the statements that read them.
type Scope int

const (
	System Scope = iota
	Schema
	Connection
	Statement
)

func (s Scope) String() string {
	switch s {
	case System:
		return "System"
	case Schema:
		return "Schema"
	case Connection:
		return "Connection"
	case Statement:
		return "Statement"
	}
	return fmt.Sprintf("Scope(%d)", int(s))
}

// ParseScope parses a scope name, case-insensitively.
func ParseScope(s string) (Scope, error) {
	for sc := System; sc <= Statement; sc++ {
		if strings.EqualFold(s, sc.String()) {
			return sc, nil
		}
	}
	return 0, fmt.Errorf("unknown parameter scope %q", s)
}

// Type is the declared value shape of a parameter.
type Type int

const (
	String Type = iota
	Numeric
	Member
	Set
)

func (t Type) String() string {
	switch t {
	case String:
		return "STRING"
	case Numeric:
		return "NUMERIC"
	case Member:
		return "MEMBER"
	case Set:
		return "SET"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ============================================================================
// PARAMETER
// ============================================================================

// Parameter is one binding. It is safe for concurrent use, since outer-scope
// parameters are shared by many statements.
type Parameter struct {
	name        string
	description string
	scope       Scope
	typ         Type
	hierarchy   *schema.Hierarchy
	def         evaluator.Calc
	modifiable  bool

	mu       sync.Mutex
	value    any
	assigned bool
	cached   any
	isCached bool
}

// Option configures a Parameter.
type Option func(*Parameter)

func WithDescription(d string) Option { return func(p *Parameter) { p.description = d } }

// WithHierarchy restricts member and set values to one hierarchy.
func WithHierarchy(h *schema.Hierarchy) Option { return func(p *Parameter) { p.hierarchy = h } }

// ReadOnly makes SetValue fail.
func ReadOnly() Option { return func(p *Parameter) { p.modifiable = false } }

// New creates an unset parameter. def is required.
func New(name string, scope Scope, typ Type, def evaluator.Calc, opts ...Option) (*Parameter, error) {
	if name == "" {
		return nil, fmt.Errorf("parameter name is required")
	}
	if def == nil {
		return nil, fmt.Errorf("parameter %s: default expression is required", name)
	}
	if typ < String || typ > Set {
		return nil, fmt.Errorf("parameter %s: invalid type %s", name, typ)
	}
	p := &Parameter{name: name, scope: scope, typ: typ, def: def, modifiable: true}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Parameter) Name() string                 { return p.name }
func (p *Parameter) Description() string          { return p.description }
func (p *Parameter) Scope() Scope                 { return p.scope }
func (p *Parameter) Type() Type                   { return p.typ }
func (p *Parameter) Hierarchy() *schema.Hierarchy { return p.hierarchy }
func (p *Parameter) Default() evaluator.Calc      { return p.def }
func (p *Parameter) Modifiable() bool             { return p.modifiable }

func (p *Parameter) String() string {
	return fmt.Sprintf("Parameter(%s, %s, %s)", p.name, p.typ, p.scope)
}

// Value returns the assigned value if the parameter is set. Otherwise the
// default expression is evaluated against ev on first use and the result is
// kept until Unset; reading the default never marks the parameter set.
func (p *Parameter) Value(ev *evaluator.Evaluator) (any, error) {
	p.mu.Lock()
	if p.assigned {
		v := p.value
		p.mu.Unlock()
		return v, nil
	}
	if p.isCached {
		v := p.cached
		p.mu.Unlock()
		return v, nil
	}
	p.mu.Unlock()

	raw, err := p.def.Evaluate(ev)
	if err != nil {
		return nil, fmt.Errorf("parameter %s: default: %w", p.name, err)
	}
	v, err := Convert(raw)
	if err != nil {
		return nil, fmt.Errorf("parameter %s: default: %w", p.name, err)
	}
	if err := p.check(v); err != nil {
		return nil, fmt.Errorf("parameter %s: default: %w", p.name, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.assigned {
		return p.value, nil
	}
	if !p.isCached {
		p.cached, p.isCached = v, true
	}
	return p.cached, nil
}

// SetValue assigns v and marks the parameter set. nil assigns an explicit
// null, which is not the same as Unset.
func (p *Parameter) SetValue(v any) error {
	if !p.modifiable {
		return fmt.Errorf("parameter %s is not modifiable", p.name)
	}
	if err := p.check(v); err != nil {
		return fmt.Errorf("parameter %s: %w", p.name, err)
	}
	p.assign(v)
	return nil
}

func (p *Parameter) assign(v any) {
	p.mu.Lock()
	p.value, p.assigned = v, true
	p.mu.Unlock()
}

// IsSet reports whether a value was assigned, even one equal to the default.
func (p *Parameter) IsSet() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.assigned
}

// Unset reverts to the default expression. The next Value call evaluates it
// again.
func (p *Parameter) Unset() {
	p.mu.Lock()
	p.value, p.assigned = nil, false
	p.cached, p.isCached = nil, false
	p.mu.Unlock()
}

// assigned value and whether there is one.
func (p *Parameter) assignment() (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.assigned
}

func (p *Parameter) check(v any) error {
	if v == nil {
		return nil
	}
	switch p.typ {
	case String:
		if _, ok := v.(string); ok {
			return nil
		}
	case Numeric:
		if _, ok := v.(float64); ok {
			return nil
		}
	case Member:
		if m, ok := v.(*schema.Member); ok {
			if p.hierarchy != nil && m.Hierarchy() != p.hierarchy {
				return fmt.Errorf("member %s is not in hierarchy %s", m, p.hierarchy)
			}
			return nil
		}
	case Set:
		if l, ok := v.(tuple.List); ok {
			if p.hierarchy != nil && (l.Arity() != 1 || l.Shape()[0] != p.hierarchy) {
				return fmt.Errorf("set is not a member list of hierarchy %s", p.hierarchy)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %T for %s", ErrUnconvertedValue, v, p.typ)
}

// ============================================================================
// NORMALIZATION
// ============================================================================

// Convert normalizes a value to the shapes SetValue accepts: string,
// float64, *schema.Member, tuple.List or nil. Integers become float64, a
// member slice becomes a one-column list and a slice of tuples becomes a
// list of their arity.
func Convert(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, float64, *schema.Member, tuple.List:
		return v, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case bool:
		if x {
			return "true", nil
		}
		return "false", nil
	case []*schema.Member:
		if len(x) == 0 {
			return nil, fmt.Errorf("%w: empty member slice has no hierarchy", ErrUnconvertedValue)
		}
		l, err := tuple.FromMembers(x[0].Hierarchy(), x...)
		if err != nil {
			return nil, err
		}
		return l, nil
	case [][]*schema.Member:
		l, err := tuple.FromTuples(x...)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnconvertedValue, v)
}

// ConvertBack turns a list value into plain slices: a one-column list
// becomes []*schema.Member, wider lists [][]*schema.Member. Other values are
// returned unchanged.
func ConvertBack(v any) any {
	l, ok := v.(tuple.List)
	if !ok {
		return v
	}
	if l.Arity() == 1 {
		out := make([]*schema.Member, l.Len())
		for i := range out {
			out[i] = l.Get(i, 0)
		}
		return out
	}
	out := make([][]*schema.Member, l.Len())
	for i := range out {
		out[i] = l.Tuple(i)
	}
	return out
}
