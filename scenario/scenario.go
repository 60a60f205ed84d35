package scenario

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spektr-org/spektr-olap/evaluator"
)

// Scenario is the session-scoped list of writeback edits, applied in the
// order they were recorded. Writers may add edits while queries run; each
// allocation pass reads the list once.
type Scenario struct {
	id        uuid.UUID
	name      string
	createdAt time.Time

	mu    sync.RWMutex
	cells []*WritebackCell
}

// New creates an empty scenario with a fresh id.
func New(name string) *Scenario {
	return &Scenario{id: uuid.New(), name: name, createdAt: time.Now().UTC()}
}

// Restore rebuilds a persisted scenario.
func Restore(id uuid.UUID, name string, createdAt time.Time, cells []*WritebackCell) *Scenario {
	return &Scenario{
		id:        id,
		name:      name,
		createdAt: createdAt,
		cells:     append([]*WritebackCell(nil), cells...),
	}
}

func (s *Scenario) ID() uuid.UUID        { return s.id }
func (s *Scenario) Name() string         { return s.name }
func (s *Scenario) CreatedAt() time.Time { return s.createdAt }

func (s *Scenario) String() string {
	return fmt.Sprintf("Scenario(%s %s, %d writebacks)", s.name, s.id, s.Len())
}

// Cells returns a snapshot of the edits in recorded order.
func (s *Scenario) Cells() []*WritebackCell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*WritebackCell(nil), s.cells...)
}

func (s *Scenario) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cells)
}

// Add appends an edit.
func (s *Scenario) Add(w *WritebackCell) {
	s.mu.Lock()
	s.cells = append(s.cells, w)
	s.mu.Unlock()
}

// Remove drops w and reports whether it was part of the scenario.
func (s *Scenario) Remove(w *WritebackCell) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.cells {
		if c == w {
			s.cells = append(s.cells[:i], s.cells[i+1:]...)
			return true
		}
	}
	return false
}

// Clear drops every edit.
func (s *Scenario) Clear() {
	s.mu.Lock()
	s.cells = nil
	s.mu.Unlock()
}

// SetCellValue records an edit of the cell at ev's current coordinate. The
// previous value is the cell's value under this scenario at the time of the
// call, so earlier edits are included; raw reads the stored value.
func (s *Scenario) SetCellValue(ev *evaluator.Evaluator, raw evaluator.Calc, newValue float64, policy Policy, weight evaluator.Calc) (*WritebackCell, error) {
	v, err := Calc(s, raw).Evaluate(ev)
	if err != nil {
		return nil, fmt.Errorf("read cell before writeback: %w", err)
	}
	previous, _ := evaluator.Number(v)
	w, err := NewWritebackCell(ev.Coordinate(), newValue, previous, policy, weight)
	if err != nil {
		return nil, err
	}
	s.Add(w)
	return w, nil
}
