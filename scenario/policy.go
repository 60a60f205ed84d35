// Package scenario implements writeback: a session-scoped list of edited
// cells and the allocation engine that spreads each edit over related cells
// when they are evaluated.
package scenario

import (
	"fmt"
	"strings"
)

// ============================================================================
// ALLOCATION POLICY
// ============================================================================

// Policy decides how an edit of an aggregate cell reaches the cells below it.
type Policy int

const (
	// EqualAllocation replaces each cell by its share of the new total.
	EqualAllocation Policy = iota
	// EqualIncrement adds each cell's share of the change.
	EqualIncrement
	// WeightedAllocation is EqualAllocation with an explicit share.
	WeightedAllocation
	// WeightedIncrement is EqualIncrement with an explicit share.
	WeightedIncrement
)

var policyNames = [...]string{
	EqualAllocation:    "EQUAL_ALLOCATION",
	EqualIncrement:     "EQUAL_INCREMENT",
	WeightedAllocation: "WEIGHTED_ALLOCATION",
	WeightedIncrement:  "WEIGHTED_INCREMENT",
}

func (p Policy) String() string {
	if p.Valid() {
		return policyNames[p]
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// Valid reports whether p is one of the known policies.
func (p Policy) Valid() bool { return p >= 0 && int(p) < len(policyNames) }

// Weighted reports whether p takes its share from a weight expression.
func (p Policy) Weighted() bool { return p == WeightedAllocation || p == WeightedIncrement }

// ParsePolicy accepts the policy names in any case, with '-' or '_'.
func ParsePolicy(s string) (Policy, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for i, name := range policyNames {
		if name == norm {
			return Policy(i), nil
		}
	}
	return 0, fmt.Errorf("unknown allocation policy %q", s)
}

func (p Policy) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, &PolicyDefectError{Policy: p}
	}
	return []byte(p.String()), nil
}

func (p *Policy) UnmarshalText(b []byte) error {
	v, err := ParsePolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// PolicyDefectError reports a policy value the allocation engine does not
// handle. It signals a defect in the caller, never bad input data.
type PolicyDefectError struct {
	Policy Policy
}

func (e *PolicyDefectError) Error() string {
	return fmt.Sprintf("unexpected allocation policy %s", e.Policy)
}

// Allocate returns the value of a cell below an edited aggregate.
//
// acc is the cell's running value, raw its stored value, previous and
// newValue the aggregate before and after the edit. The share is raw /
// previous (0 when previous is 0) unless the policy is weighted and weight
// is given.
func Allocate(p Policy, acc, previous, newValue, raw float64, weight *float64) (float64, error) {
	share := 0.0
	if previous != 0 {
		share = raw / previous
	}
	if p.Weighted() && weight != nil {
		share = *weight
	}
	switch p {
	case EqualAllocation, WeightedAllocation:
		return newValue * share, nil
	case EqualIncrement, WeightedIncrement:
		return acc + (newValue-previous)*share, nil
	}
	return 0, &PolicyDefectError{Policy: p}
}
