package schema

// ============================================================================
// SCHEMA — Describes the shape of a fact dataset and its hierarchies
// ============================================================================
// Auto-discovered from CSV (DiscoverFromCSV) or written by hand.
// BuildCube turns a Config plus the fact rows into a navigable Cube.
// Dimension Parent links form the level chains of each hierarchy:
//
//	category ← field   →   hierarchy "category" with levels [category, field]
// ============================================================================

// Config describes the complete shape of a dataset.
type Config struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Dimensions []DimensionMeta `json:"dimensions" yaml:"dimensions"`
	Measures   []MeasureMeta   `json:"measures" yaml:"measures"`

	// Optional explicit hierarchies. When empty, hierarchies are derived
	// from the dimension Parent links.
	Hierarchies []HierarchyMeta `json:"hierarchies,omitempty" yaml:"hierarchies,omitempty"`

	DiscoveredFrom string          `json:"discoveredFrom,omitempty" yaml:"discoveredFrom,omitempty"`
	DiscoveredAt   string          `json:"discoveredAt,omitempty" yaml:"discoveredAt,omitempty"`
	SkippedColumns []SkippedColumn `json:"skippedColumns,omitempty" yaml:"skippedColumns,omitempty"`
}

// DimensionMeta describes a string column that positions a fact row.
type DimensionMeta struct {
	Key             string   `json:"key" yaml:"key"`
	DisplayName     string   `json:"displayName" yaml:"displayName"`
	SampleValues    []string `json:"sampleValues,omitempty" yaml:"sampleValues,omitempty"`
	Parent          string   `json:"parent,omitempty" yaml:"parent,omitempty"` // parent level key
	IsTemporal      bool     `json:"isTemporal,omitempty" yaml:"isTemporal,omitempty"`
	CardinalityHint string   `json:"cardinalityHint,omitempty" yaml:"cardinalityHint,omitempty"` // "low", "medium", "high"
}

// MeasureMeta describes a numeric column aggregated into cell values.
type MeasureMeta struct {
	Key                string `json:"key" yaml:"key"`
	DisplayName        string `json:"displayName" yaml:"displayName"`
	Unit               string `json:"unit,omitempty" yaml:"unit,omitempty"`
	IsSynthetic        bool   `json:"isSynthetic,omitempty" yaml:"isSynthetic,omitempty"` // e.g. record_count
	DefaultAggregation string `json:"defaultAggregation,omitempty" yaml:"defaultAggregation,omitempty"`
}

// HierarchyMeta names a hierarchy and its levels, root first.
type HierarchyMeta struct {
	Name   string   `json:"name" yaml:"name"`
	Levels []string `json:"levels" yaml:"levels"`
}

// SkippedColumn records why a column was excluded during auto-discovery.
type SkippedColumn struct {
	Column string `json:"column" yaml:"column"`
	Reason string `json:"reason" yaml:"reason"`
}

// DefaultDimension creates a DimensionMeta with sensible defaults.
func DefaultDimension(key, displayName string) DimensionMeta {
	return DimensionMeta{Key: key, DisplayName: displayName}
}

// DefaultMeasure creates a summed MeasureMeta.
func DefaultMeasure(key, displayName string) MeasureMeta {
	return MeasureMeta{Key: key, DisplayName: displayName, DefaultAggregation: "sum"}
}

// DimensionKeys returns all dimension keys.
func (c Config) DimensionKeys() []string {
	keys := make([]string, len(c.Dimensions))
	for i, d := range c.Dimensions {
		keys[i] = d.Key
	}
	return keys
}

// MeasureKeys returns all measure keys.
func (c Config) MeasureKeys() []string {
	keys := make([]string, len(c.Measures))
	for i, m := range c.Measures {
		keys[i] = m.Key
	}
	return keys
}

// Dimension returns the dimension with the given key.
func (c Config) Dimension(key string) (DimensionMeta, bool) {
	for _, d := range c.Dimensions {
		if d.Key == key {
			return d, true
		}
	}
	return DimensionMeta{}, false
}

// HierarchyLayout returns the hierarchies of the config. Explicit
// hierarchies win; otherwise each parentless dimension starts a chain that
// follows the first child claiming it as Parent.
func (c Config) HierarchyLayout() []HierarchyMeta {
	if len(c.Hierarchies) > 0 {
		return c.Hierarchies
	}

	known := make(map[string]bool, len(c.Dimensions))
	for _, d := range c.Dimensions {
		known[d.Key] = true
	}

	claimed := make(map[string]bool)
	childOf := make(map[string]string)
	for _, d := range c.Dimensions {
		if d.Parent == "" || !known[d.Parent] {
			continue
		}
		if _, taken := childOf[d.Parent]; taken {
			continue // second child of the same parent starts its own chain
		}
		childOf[d.Parent] = d.Key
		claimed[d.Key] = true
	}

	var layout []HierarchyMeta
	for _, d := range c.Dimensions {
		if claimed[d.Key] {
			continue
		}
		levels := []string{d.Key}
		seen := map[string]bool{d.Key: true}
		for next, ok := childOf[d.Key]; ok && !seen[next]; next, ok = childOf[next] {
			levels = append(levels, next)
			seen[next] = true
		}
		layout = append(layout, HierarchyMeta{Name: d.Key, Levels: levels})
	}
	return layout
}
