package schema

import (
	"fmt"
	"strings"
)

// ============================================================================
// CUBE — Hierarchies and members, consumed read-only by the evaluator
// ============================================================================
// Members are identified by pointer. Each hierarchy owns an All member
// (except Measures), a null member, and the members created from data.
// ============================================================================

// MeasuresHierarchy is the name of the flat hierarchy holding one member per measure.
const MeasuresHierarchy = "Measures"

const (
	allMemberName  = "All"
	nullMemberName = "#null"
)

type memberKind int

const (
	kindRegular memberKind = iota
	kindAll
	kindNull
)

// Member is one position on a Hierarchy.
type Member struct {
	name       string
	uniqueName string
	hierarchy  *Hierarchy
	parent     *Member
	children   []*Member
	depth      int
	ordinal    int
	kind       memberKind
}

func (m *Member) Name() string          { return m.name }
func (m *Member) UniqueName() string    { return m.uniqueName }
func (m *Member) Hierarchy() *Hierarchy { return m.hierarchy }
func (m *Member) Parent() *Member       { return m.parent }
func (m *Member) Depth() int            { return m.depth }
func (m *Member) Ordinal() int          { return m.ordinal }
func (m *Member) IsAll() bool           { return m.kind == kindAll }
func (m *Member) IsNull() bool          { return m.kind == kindNull }
func (m *Member) String() string        { return m.uniqueName }

// Children returns the direct children of m in insertion order.
func (m *Member) Children() []*Member {
	out := make([]*Member, len(m.children))
	copy(out, m.children)
	return out
}

// Level returns the level key of m, or "" for the All and null members.
func (m *Member) Level() string {
	if m.kind != kindRegular {
		return ""
	}
	levels := m.hierarchy.levels
	if len(levels) == 0 {
		return m.hierarchy.name
	}
	idx := m.depth - 1
	if !m.hierarchy.hasAll {
		idx = m.depth
	}
	if idx < 0 || idx >= len(levels) {
		return ""
	}
	return levels[idx]
}

// IsChildOrEqualTo reports whether m is other or one of its descendants.
// Null members are related to nothing, not even themselves.
func (m *Member) IsChildOrEqualTo(other *Member) bool {
	if m == nil || other == nil || m.IsNull() || other.IsNull() {
		return false
	}
	if m.hierarchy != other.hierarchy {
		return false
	}
	for cur := m; cur != nil; cur = cur.parent {
		if cur == other {
			return true
		}
		if cur.depth < other.depth {
			return false
		}
	}
	return false
}

// IsAncestorOf reports whether m is a strict ancestor of other.
func (m *Member) IsAncestorOf(other *Member) bool {
	return m != other && other.IsChildOrEqualTo(m)
}

// Hierarchy is one axis of the cube.
type Hierarchy struct {
	name     string
	ordinal  int
	levels   []string
	temporal bool
	hasAll   bool

	all     *Member
	null    *Member
	roots   []*Member
	members []*Member
	byName  map[string]*Member // unique name → member
}

func (h *Hierarchy) Name() string        { return h.name }
func (h *Hierarchy) Ordinal() int        { return h.ordinal }
func (h *Hierarchy) Levels() []string    { return append([]string(nil), h.levels...) }
func (h *Hierarchy) IsTemporal() bool    { return h.temporal }
func (h *Hierarchy) HasAll() bool        { return h.hasAll }
func (h *Hierarchy) NullMember() *Member { return h.null }
func (h *Hierarchy) String() string      { return quoteSegment(h.name) }

// AllMember returns the All member, or nil for hierarchies without one.
func (h *Hierarchy) AllMember() *Member { return h.all }

// DefaultMember is the member used when a context leaves the hierarchy unset:
// the All member, or the first root for flat hierarchies such as Measures.
func (h *Hierarchy) DefaultMember() *Member {
	if h.all != nil {
		return h.all
	}
	if len(h.roots) > 0 {
		return h.roots[0]
	}
	return h.null
}

// Members returns every regular member in creation order.
func (h *Hierarchy) Members() []*Member {
	return append([]*Member(nil), h.members...)
}

// RootMembers returns the top level below the All member.
func (h *Hierarchy) RootMembers() []*Member {
	return append([]*Member(nil), h.roots...)
}

// MemberByUniqueName finds a member (including All and null) by unique name.
func (h *Hierarchy) MemberByUniqueName(uniqueName string) (*Member, bool) {
	m, ok := h.byName[strings.ToLower(uniqueName)]
	return m, ok
}

// AddMember returns the child of parent named name, creating it on first use.
// A nil parent means the top level.
func (h *Hierarchy) AddMember(parent *Member, name string) *Member {
	if parent == nil {
		parent = h.all
	}
	var siblings []*Member
	if parent == nil {
		siblings = h.roots
	} else {
		siblings = parent.children
	}
	for _, s := range siblings {
		if s.name == name {
			return s
		}
	}

	m := &Member{
		name:      name,
		hierarchy: h,
		parent:    parent,
		ordinal:   len(h.members),
	}
	switch {
	case parent == nil:
		m.uniqueName = h.String() + "." + quoteSegment(name)
	case parent.kind == kindAll:
		m.uniqueName = h.String() + "." + quoteSegment(name)
		m.depth = 1
	default:
		m.uniqueName = parent.uniqueName + "." + quoteSegment(name)
		m.depth = parent.depth + 1
	}
	if parent == nil || parent == h.all {
		h.roots = append(h.roots, m)
	}
	if parent != nil {
		parent.children = append(parent.children, m)
	}
	h.members = append(h.members, m)
	h.byName[strings.ToLower(m.uniqueName)] = m
	return m
}

// child finds a direct child of parent (or a root) by case-insensitive name.
func (h *Hierarchy) child(parent *Member, name string) *Member {
	siblings := h.roots
	if parent != nil && parent != h.all {
		siblings = parent.children
	}
	for _, s := range siblings {
		if strings.EqualFold(s.name, name) {
			return s
		}
	}
	return nil
}

func quoteSegment(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func newHierarchy(name string, ordinal int, levels []string, hasAll bool) *Hierarchy {
	h := &Hierarchy{
		name:    name,
		ordinal: ordinal,
		levels:  append([]string(nil), levels...),
		hasAll:  hasAll,
		byName:  make(map[string]*Member),
	}
	if hasAll {
		h.all = &Member{
			name:       allMemberName,
			uniqueName: h.String() + ".[" + allMemberName + "]",
			hierarchy:  h,
			ordinal:    -1,
			kind:       kindAll,
		}
		h.byName[strings.ToLower(h.all.uniqueName)] = h.all
	}
	h.null = &Member{
		name:       nullMemberName,
		uniqueName: h.String() + ".[" + nullMemberName + "]",
		hierarchy:  h,
		ordinal:    -2,
		kind:       kindNull,
	}
	h.byName[strings.ToLower(h.null.uniqueName)] = h.null
	return h
}

// Cube is the catalog of hierarchies the evaluator navigates.
type Cube struct {
	name        string
	hierarchies []*Hierarchy
	byName      map[string]*Hierarchy
	measures    map[string]MeasureMeta
}

// NewCube creates an empty cube. Its Measures hierarchy is created on the
// first AddMeasure call.
func NewCube(name string) *Cube {
	return &Cube{
		name:     name,
		byName:   make(map[string]*Hierarchy),
		measures: make(map[string]MeasureMeta),
	}
}

func (c *Cube) Name() string { return c.name }

// Hierarchies returns the hierarchies ordered by ordinal.
func (c *Cube) Hierarchies() []*Hierarchy {
	return append([]*Hierarchy(nil), c.hierarchies...)
}

// Hierarchy finds a hierarchy by case-insensitive name.
func (c *Cube) Hierarchy(name string) (*Hierarchy, bool) {
	h, ok := c.byName[strings.ToLower(name)]
	return h, ok
}

// AddHierarchy registers a hierarchy with an All member.
func (c *Cube) AddHierarchy(name string, levels ...string) (*Hierarchy, error) {
	return c.addHierarchy(name, levels, true)
}

func (c *Cube) addHierarchy(name string, levels []string, hasAll bool) (*Hierarchy, error) {
	if name == "" {
		return nil, fmt.Errorf("hierarchy name is required")
	}
	if _, exists := c.byName[strings.ToLower(name)]; exists {
		return nil, fmt.Errorf("hierarchy %q already defined in cube %q", name, c.name)
	}
	h := newHierarchy(name, len(c.hierarchies), levels, hasAll)
	c.hierarchies = append(c.hierarchies, h)
	c.byName[strings.ToLower(name)] = h
	return h, nil
}

// AddMeasure adds a member to the Measures hierarchy.
func (c *Cube) AddMeasure(meta MeasureMeta) (*Member, error) {
	h, ok := c.Hierarchy(MeasuresHierarchy)
	if !ok {
		var err error
		h, err = c.addHierarchy(MeasuresHierarchy, nil, false)
		if err != nil {
			return nil, err
		}
	}
	if meta.DefaultAggregation == "" {
		meta.DefaultAggregation = "sum"
	}
	c.measures[meta.Key] = meta
	return h.AddMember(nil, meta.Key), nil
}

// Measures returns the Measures hierarchy, if any measure was added.
func (c *Cube) Measures() (*Hierarchy, bool) {
	return c.Hierarchy(MeasuresHierarchy)
}

// Measure returns the metadata of a measure member.
func (c *Cube) Measure(m *Member) (MeasureMeta, bool) {
	if m == nil || m.hierarchy.name != MeasuresHierarchy {
		return MeasureMeta{}, false
	}
	meta, ok := c.measures[m.name]
	return meta, ok
}

// MemberByUniqueName resolves a unique name such as "[Time].[2024].[Q1]".
func (c *Cube) MemberByUniqueName(uniqueName string) (*Member, bool) {
	segments, err := ParseIdentifier(uniqueName)
	if err != nil || len(segments) == 0 {
		return nil, false
	}
	h, ok := c.Hierarchy(segments[0])
	if !ok {
		return nil, false
	}
	return h.MemberByUniqueName(uniqueName)
}

// DefaultCoordinate returns the default member of every hierarchy.
func (c *Cube) DefaultCoordinate() []*Member {
	out := make([]*Member, len(c.hierarchies))
	for i, h := range c.hierarchies {
		out[i] = h.DefaultMember()
	}
	return out
}

// ============================================================================
// BUILD — Config + fact rows → Cube
// ============================================================================

// DimensionSource is the slice of a fact view BuildCube needs.
type DimensionSource interface {
	Len() int
	Dimension(index int, key string) string
}

// BuildCube creates one hierarchy per level chain of cfg and populates its
// members from the rows of src. Empty level values end the member path of a
// row on that hierarchy.
func BuildCube(cfg Config, src DimensionSource) (*Cube, error) {
	name := cfg.Name
	if name == "" {
		name = "Cube"
	}
	cube := NewCube(name)

	layout := cfg.HierarchyLayout()
	if len(layout) == 0 {
		return nil, fmt.Errorf("schema %q has no dimensions", name)
	}
	for _, hm := range layout {
		if len(hm.Levels) == 0 {
			return nil, fmt.Errorf("hierarchy %q has no levels", hm.Name)
		}
		h, err := cube.AddHierarchy(hm.Name, hm.Levels...)
		if err != nil {
			return nil, err
		}
		if d, ok := cfg.Dimension(hm.Levels[0]); ok {
			h.temporal = d.IsTemporal
		}
	}

	for _, m := range cfg.Measures {
		if _, err := cube.AddMeasure(m); err != nil {
			return nil, err
		}
	}

	if src == nil {
		return cube, nil
	}
	for i := 0; i < src.Len(); i++ {
		for _, h := range cube.hierarchies {
			if h.name == MeasuresHierarchy {
				continue
			}
			parent := h.all
			for _, level := range h.levels {
				val := strings.TrimSpace(src.Dimension(i, level))
				if val == "" {
					break
				}
				parent = h.AddMember(parent, val)
			}
		}
	}
	return cube, nil
}
