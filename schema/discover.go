package schema

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ============================================================================
// AUTO-DISCOVERY — Heuristic column classification for cube building
// ============================================================================
// Inspects CSV data and produces a Config whose dimensions carry Parent
// links, so BuildCube can derive multi-level hierarchies from flat columns.
//
// Per column:
//   1. Sample values → detect type (numeric, date, bool, string)
//   2. Type + cardinality → role (dimension, measure, skip)
//   3. Functional dependency between dimensions → Parent link
//   4. Synthetic record_count measure
// ============================================================================

// DiscoverOptions controls discovery behavior.
type DiscoverOptions struct {
	SampleSize     int      // Max rows to inspect (0 = all). Default: 1000
	RecoverColumns []string // Force-include columns that were auto-skipped
	Name           string   // Dataset name override
}

// DefaultDiscoverOptions returns sensible defaults.
func DefaultDiscoverOptions() DiscoverOptions {
	return DiscoverOptions{SampleSize: 1000}
}

// DiscoverFromCSV generates a Config by inspecting CSV data.
func DiscoverFromCSV(data []byte, opts ...DiscoverOptions) (*Config, error) {
	opt := DefaultDiscoverOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	reader := csv.NewReader(bytes.NewReader(data))
	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("CSV has no columns")
	}

	limit := opt.SampleSize
	if limit <= 0 {
		limit = 100000
	}
	var rows [][]string
	for len(rows) < limit {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("CSV has no data rows")
	}

	columns := make([]columnAnalysis, len(headers))
	for i, header := range headers {
		columns[i] = analyzeColumn(header, i, rows)
	}

	forced := make(map[string]bool, len(opt.RecoverColumns))
	for _, col := range opt.RecoverColumns {
		forced[strings.ToLower(col)] = true
	}

	cfg := &Config{
		Name:           opt.Name,
		Version:        "1.0",
		DiscoveredFrom: "CSV",
		DiscoveredAt:   time.Now().Format(time.RFC3339),
	}
	if cfg.Name == "" {
		cfg.Name = "Sales"
	}

	for i := range columns {
		col := &columns[i]
		if col.role == roleSkipped && (forced[strings.ToLower(col.header)] || forced[col.key]) {
			col.role = roleDimension
		}
		switch col.role {
		case roleDimension:
			cfg.Dimensions = append(cfg.Dimensions, col.toDimension())
		case roleMeasure:
			cfg.Measures = append(cfg.Measures, col.toMeasure())
		default:
			cfg.SkippedColumns = append(cfg.SkippedColumns, SkippedColumn{Column: col.header, Reason: col.skipReason})
		}
	}

	cfg.Measures = append(cfg.Measures, MeasureMeta{
		Key:                "record_count",
		DisplayName:        "Record Count",
		IsSynthetic:        true,
		DefaultAggregation: "count",
	})

	detectParents(cfg.Dimensions, rows, columns)
	return cfg, nil
}

// ============================================================================
// COLUMN ANALYSIS
// ============================================================================

type columnRole int

const (
	roleDimension columnRole = iota
	roleMeasure
	roleSkipped
)

type columnType int

const (
	typeString columnType = iota
	typeNumeric
	typeDate
	typeBool
)

type columnAnalysis struct {
	header     string
	key        string
	index      int
	colType    columnType
	role       columnRole
	skipReason string

	uniqueCount int
	totalCount  int
	sampleVals  []string
	hasDecimals bool
	isTemporal  bool
	cardinality string
}

func analyzeColumn(header string, index int, rows [][]string) columnAnalysis {
	col := columnAnalysis{
		header:     header,
		key:        ColumnKey(header),
		index:      index,
		totalCount: len(rows),
	}

	values := make([]string, 0, len(rows))
	unique := make(map[string]bool)
	for _, row := range rows {
		if index >= len(row) {
			continue
		}
		val := strings.TrimSpace(row[index])
		if isNullToken(val) {
			continue
		}
		values = append(values, val)
		unique[val] = true
	}
	col.uniqueCount = len(unique)

	if len(values) == 0 {
		col.role = roleSkipped
		col.skipReason = "All values are empty/null"
		return col
	}

	col.sampleVals = collectSamples(unique, 10)
	col.colType = detectType(values)
	if col.colType == typeNumeric {
		for _, v := range values {
			if strings.Contains(v, ".") {
				col.hasDecimals = true
				break
			}
		}
	}
	col.isTemporal = col.colType == typeDate || (col.colType == typeString && isTemporalPattern(col.sampleVals))

	col.classifyRole()

	switch {
	case col.uniqueCount <= 10:
		col.cardinality = "low"
	case col.uniqueCount <= 100:
		col.cardinality = "medium"
	default:
		col.cardinality = "high"
	}
	return col
}

func isNullToken(v string) bool {
	switch v {
	case "", "null", "NULL", "N/A", "n/a":
		return true
	}
	return false
}

// classifyRole determines dimension vs measure vs skip.
func (col *columnAnalysis) classifyRole() {
	total := col.totalCount
	switch col.colType {
	case typeNumeric:
		if col.uniqueCount == total && total > 10 {
			col.role = roleSkipped
			col.skipReason = "Unique per row — likely an ID column"
			return
		}
		if col.hasDecimals {
			col.role = roleMeasure
			return
		}
		// Few distinct integers at a low ratio are codes (priority 1-5, years).
		if col.uniqueCount < 20 && float64(col.uniqueCount)/float64(total) < 0.3 {
			col.role = roleDimension
			return
		}
		col.role = roleMeasure

	case typeDate, typeBool:
		col.role = roleDimension

	default:
		if col.uniqueCount == total && total > 10 {
			col.role = roleSkipped
			col.skipReason = "Unique per row — likely an identifier"
			return
		}
		if col.uniqueCount > total/2 && col.uniqueCount > 50 {
			col.role = roleSkipped
			col.skipReason = fmt.Sprintf("High cardinality (%d unique values)", col.uniqueCount)
			return
		}
		col.role = roleDimension
	}
}

func (col *columnAnalysis) toDimension() DimensionMeta {
	return DimensionMeta{
		Key:             col.key,
		DisplayName:     toDisplayName(col.header),
		SampleValues:    col.sampleVals,
		IsTemporal:      col.isTemporal,
		CardinalityHint: col.cardinality,
	}
}

func (col *columnAnalysis) toMeasure() MeasureMeta {
	return MeasureMeta{
		Key:                col.key,
		DisplayName:        toDisplayName(col.header),
		DefaultAggregation: "sum",
	}
}

// ============================================================================
// TYPE DETECTION
// ============================================================================

// detectType requires 80% of non-null values to match a non-string type.
func detectType(values []string) columnType {
	var numCount, dateCount, boolCount int
	for _, v := range values {
		if isNumeric(v) {
			numCount++
		}
		if isDate(v) {
			dateCount++
		}
		if isBool(v) {
			boolCount++
		}
	}

	threshold := int(float64(len(values)) * 0.8)
	switch {
	case boolCount >= threshold:
		return typeBool
	case dateCount >= threshold:
		return typeDate
	case numCount >= threshold:
		return typeNumeric
	}
	return typeString
}

func isNumeric(s string) bool {
	_, ok := ParseNumber(s)
	return ok
}

// ParseNumber reads a numeric cell the way discovery classifies one:
// thousands separators and a leading currency symbol are ignored.
func ParseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimLeft(s, "$€£")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		f = -f
	}
	return f, true
}

// ColumnKey is the schema key discovery derives from a CSV header.
func ColumnKey(header string) string {
	return toSnakeCase(strings.TrimSpace(header))
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

func isDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func isBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false", "yes", "no":
		return true
	}
	return false
}

var temporalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[A-Z][a-z]{2}-\d{4}$`), // Jan-2026
	regexp.MustCompile(`^\d{4}-\d{2}$`),         // 2026-01
	regexp.MustCompile(`^Q[1-4][- ]\d{4}$`),     // Q1-2026
	regexp.MustCompile(`^Q[1-4]$`),              // Q1
	regexp.MustCompile(`^[A-Z][a-z]+ \d{4}$`),   // January 2026
}

func isTemporalPattern(samples []string) bool {
	for _, re := range temporalPatterns {
		matches := 0
		for _, s := range samples {
			if re.MatchString(s) {
				matches++
			}
		}
		if len(samples) > 0 && float64(matches)/float64(len(samples)) >= 0.8 {
			return true
		}
	}
	return false
}

// ============================================================================
// HIERARCHY DETECTION
// ============================================================================

// detectParents links each dimension to the closest dimension it
// functionally depends on: every child value maps to exactly one parent
// value and the parent has fewer distinct values. Among several valid
// parents the one with the most distinct values wins.
func detectParents(dimensions []DimensionMeta, rows [][]string, columns []columnAnalysis) {
	index := make(map[string]int)
	uniques := make(map[string]int)
	for _, col := range columns {
		if col.role == roleDimension {
			index[col.key] = col.index
			uniques[col.key] = col.uniqueCount
		}
	}

	for i := range dimensions {
		child := dimensions[i].Key
		childIdx, ok := index[child]
		if !ok {
			continue
		}

		best, bestUniques := "", 0
		for j := range dimensions {
			parent := dimensions[j].Key
			parentIdx, ok := index[parent]
			if i == j || !ok || uniques[parent] >= uniques[child] {
				continue
			}
			if dependsOn(rows, childIdx, parentIdx) && uniques[parent] > bestUniques {
				best, bestUniques = parent, uniques[parent]
			}
		}
		dimensions[i].Parent = best
	}
}

func dependsOn(rows [][]string, childIdx, parentIdx int) bool {
	seen := make(map[string]string)
	for _, row := range rows {
		if childIdx >= len(row) || parentIdx >= len(row) {
			continue
		}
		c, p := strings.TrimSpace(row[childIdx]), strings.TrimSpace(row[parentIdx])
		if c == "" || p == "" {
			continue
		}
		if existing, ok := seen[c]; ok && existing != p {
			return false
		}
		seen[c] = p
	}
	return len(seen) > 1
}

// ============================================================================
// STRING UTILITIES
// ============================================================================

// toSnakeCase converts "Column Name" or "columnName" → "column_name".
func toSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
			b.WriteRune('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	out := strings.NewReplacer(" ", "_", "-", "_").Replace(b.String())
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	return strings.Trim(out, "_")
}

// toDisplayName turns "story_points" into "Story Points".
func toDisplayName(s string) string {
	if strings.Contains(s, " ") {
		return strings.TrimSpace(s)
	}
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// collectSamples returns up to limit values in sorted order.
func collectSamples(unique map[string]bool, limit int) []string {
	samples := make([]string, 0, len(unique))
	for v := range unique {
		samples = append(samples, v)
	}
	sort.Strings(samples)
	if len(samples) > limit {
		samples = samples[:limit]
	}
	return samples
}
