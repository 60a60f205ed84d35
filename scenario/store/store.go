// Package store persists scenarios so that writebacks survive the process
// that recorded them. Scenarios are stored as JSON records; members are
// referenced by unique name and resolved against the cube on load.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spektr-org/spektr-olap/evaluator"
	"github.com/spektr-org/spektr-olap/scenario"
	"github.com/spektr-org/spektr-olap/schema"
)

// ErrNotFound is returned when no scenario is stored under an id.
var ErrNotFound = errors.New("scenario not found")

// Store is a scenario repository. Implementations are safe for concurrent
// use.
type Store interface {
	Put(ctx context.Context, r Record) error
	Get(ctx context.Context, id string) (Record, error)
	// List returns the stored ids in ascending order.
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Record is the persisted form of a scenario.
type Record struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"createdAt"`
	Cells     []CellRecord `json:"cells"`
}

// CellRecord is the persisted form of one writeback.
type CellRecord struct {
	Coordinate    []string        `json:"coordinate"`
	NewValue      float64         `json:"newValue"`
	PreviousValue float64         `json:"previousValue"`
	Policy        scenario.Policy `json:"policy"`
	Weight        *float64        `json:"weight,omitempty"`
	RecordedAt    time.Time       `json:"recordedAt"`
}

// Encode converts a scenario to its record. Writebacks weighted by an
// expression other than scenario.ConstantWeight cannot be stored.
func Encode(s *scenario.Scenario) (Record, error) {
	r := Record{ID: s.ID().String(), Name: s.Name(), CreatedAt: s.CreatedAt()}
	for i, w := range s.Cells() {
		share, ok, err := scenario.WeightValue(w.Weight())
		if err != nil {
			return Record{}, fmt.Errorf("writeback %d of %s: %w", i, s.Name(), err)
		}
		c := CellRecord{
			NewValue:      w.NewValue(),
			PreviousValue: w.PreviousValue(),
			Policy:        w.Policy(),
			RecordedAt:    w.RecordedAt(),
		}
		if ok {
			c.Weight = &share
		}
		for _, m := range w.Coordinate() {
			c.Coordinate = append(c.Coordinate, m.UniqueName())
		}
		r.Cells = append(r.Cells, c)
	}
	return r, nil
}

// Decode rebuilds the scenario, resolving members against cube.
func (r Record) Decode(cube *schema.Cube) (*scenario.Scenario, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("scenario id %q: %w", r.ID, err)
	}
	cells := make([]*scenario.WritebackCell, 0, len(r.Cells))
	for i, c := range r.Cells {
		coord := make([]*schema.Member, len(c.Coordinate))
		for j, name := range c.Coordinate {
			m, ok := cube.MemberByUniqueName(name)
			if !ok {
				return nil, fmt.Errorf("writeback %d: %w", i, &schema.NotFoundError{Path: name, Cube: cube.Name()})
			}
			coord[j] = m
		}
		w, err := scenario.RestoreWritebackCell(coord, c.NewValue, c.PreviousValue, c.Policy, weightOf(c.Weight), c.RecordedAt)
		if err != nil {
			return nil, fmt.Errorf("writeback %d: %w", i, err)
		}
		cells = append(cells, w)
	}
	return scenario.Restore(id, r.Name, r.CreatedAt, cells), nil
}

func weightOf(share *float64) evaluator.Calc {
	if share == nil {
		return nil
	}
	return scenario.ConstantWeight(*share)
}

// Marshal encodes a record as JSON.
func Marshal(r Record) ([]byte, error) { return json.Marshal(r) }

// Unmarshal decodes a JSON record.
func Unmarshal(b []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return Record{}, fmt.Errorf("decode scenario record: %w", err)
	}
	return r, nil
}

// Save encodes s and puts it into st.
func Save(ctx context.Context, st Store, s *scenario.Scenario) error {
	r, err := Encode(s)
	if err != nil {
		return err
	}
	return st.Put(ctx, r)
}

// Load reads the scenario stored under id and resolves it against cube.
func Load(ctx context.Context, st Store, id uuid.UUID, cube *schema.Cube) (*scenario.Scenario, error) {
	r, err := st.Get(ctx, id.String())
	if err != nil {
		return nil, err
	}
	return r.Decode(cube)
}
