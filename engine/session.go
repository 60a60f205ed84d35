package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/spektr-org/spektr-olap/evaluator"
	"github.com/spektr-org/spektr-olap/param"
	"github.com/spektr-org/spektr-olap/scenario"
	"github.com/spektr-org/spektr-olap/scenario/store"
	"github.com/spektr-org/spektr-olap/scenario/store/memory"
	"github.com/spektr-org/spektr-olap/schema"
)

// ============================================================================
// SESSION — Connection-scoped state: active scenario, store, parameters
// ============================================================================

// ErrNoScenario is returned by Writeback when no scenario is active.
var ErrNoScenario = errors.New("no active scenario")

// Session evaluates queries against one cube and records writebacks into its
// active scenario. Every writeback persists the scenario to the store.
type Session struct {
	cube   *schema.Cube
	source evaluator.CellSource
	cfg    *config
	params *param.Registry

	mu       sync.Mutex
	scenario *scenario.Scenario
}

// NewSession opens a session. WithScenario makes a scenario active from the
// start; WithStore chooses where scenarios are saved.
func NewSession(cube *schema.Cube, source evaluator.CellSource, opts ...Option) (*Session, error) {
	if cube == nil {
		return nil, fmt.Errorf("session: cube is required")
	}
	cfg := applyOptions(opts)
	if cfg.Store == nil {
		cfg.Store = memory.New()
	}

	schemaParams, err := param.NewRegistry(param.Schema, nil, param.WithLogger(cfg.Logger))
	if err != nil {
		return nil, err
	}
	params, err := param.NewRegistry(param.Connection, schemaParams)
	if err != nil {
		return nil, err
	}

	return &Session{
		cube:     cube,
		source:   source,
		cfg:      cfg,
		params:   params,
		scenario: cfg.Scenario,
	}, nil
}

func (s *Session) Cube() *schema.Cube          { return s.cube }
func (s *Session) Store() store.Store          { return s.cfg.Store }
func (s *Session) Parameters() *param.Registry { return s.params }

// Statement returns a fresh statement-scoped registry nested in the
// session's parameters.
func (s *Session) Statement() (*param.Registry, error) {
	return param.NewStatement(s.params)
}

// Scenario returns the active scenario, or nil.
func (s *Session) Scenario() *scenario.Scenario {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scenario
}

// NewScenario creates, saves and activates an empty scenario.
func (s *Session) NewScenario(ctx context.Context, name string) (*scenario.Scenario, error) {
	sc := scenario.New(name)
	if err := store.Save(ctx, s.cfg.Store, sc); err != nil {
		return nil, err
	}
	s.activate(sc)
	return sc, nil
}

// OpenScenario loads a saved scenario and activates it.
func (s *Session) OpenScenario(ctx context.Context, id uuid.UUID) (*scenario.Scenario, error) {
	sc, err := store.Load(ctx, s.cfg.Store, id, s.cube)
	if err != nil {
		return nil, err
	}
	s.activate(sc)
	return sc, nil
}

// CloseScenario deactivates the active scenario. Saved state is kept.
func (s *Session) CloseScenario() {
	s.activate(nil)
}

func (s *Session) activate(sc *scenario.Scenario) {
	s.mu.Lock()
	s.scenario = sc
	s.mu.Unlock()
	if sc != nil {
		s.cfg.Logger.WithFields(logrus.Fields{"scenario": sc.ID(), "name": sc.Name(), "writebacks": sc.Len()}).
			Info("scenario activated")
	}
}

// Scenarios lists the ids of every saved scenario.
func (s *Session) Scenarios(ctx context.Context) ([]string, error) {
	return s.cfg.Store.List(ctx)
}

// ResolveMember resolves an identifier under the session's IgnoreInvalidMembers setting.
func (s *Session) ResolveMember(identifier string) (*schema.Member, error) {
	return s.cube.ResolveMember(identifier, s.cfg.IgnoreInvalidMembers, nil)
}

// ResolveCoordinate resolves one member per identifier. Hierarchies left out
// keep their default member when the coordinate is used.
func (s *Session) ResolveCoordinate(identifiers []string) ([]*schema.Member, error) {
	out := make([]*schema.Member, 0, len(identifiers))
	for _, id := range identifiers {
		m, err := s.ResolveMember(id)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// ParseAxis parses an axis expression against the session cube.
func (s *Session) ParseAxis(text string) (evaluator.ListCalc, error) {
	return ParseAxis(s.cube, text, s.cfg.IgnoreInvalidMembers)
}

// Execute evaluates q, through the active scenario if there is one.
func (s *Session) Execute(ctx context.Context, q Query) (*Result, error) {
	cfg := *s.cfg
	cfg.Scenario = s.Scenario()
	return execute(ctx, s.cube, s.source, q, s.params, &cfg)
}

// Writeback sets the cell at coordinate to newValue in the active scenario
// and saves the scenario. The previous value is the cell as the scenario
// shows it now, earlier writebacks included. weight must be nil or a
// scenario.ConstantWeight so that the scenario can be persisted. When the
// store rejects the scenario the edit is dropped again.
func (s *Session) Writeback(ctx context.Context, coordinate []*schema.Member, newValue float64, policy scenario.Policy, weight evaluator.Calc) (*scenario.WritebackCell, error) {
	if _, _, err := scenario.WeightValue(weight); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sc := s.scenario
	if sc == nil {
		return nil, ErrNoScenario
	}

	ev, err := evaluator.New(s.cube, s.source, s.cfg.evaluatorOptions()...)
	if err != nil {
		return nil, err
	}
	ev.SetContextMembers(coordinate, true)

	w, err := sc.SetCellValue(ev, evaluator.Current(), newValue, policy, weight)
	if err != nil {
		return nil, err
	}
	if err := store.Save(ctx, s.cfg.Store, sc); err != nil {
		sc.Remove(w)
		return nil, fmt.Errorf("persist scenario %s: %w", sc.ID(), err)
	}

	s.cfg.Logger.WithFields(logrus.Fields{
		"scenario": sc.ID(),
		"cell":     tupleLabel(w.Coordinate()),
		"previous": w.PreviousValue(),
		"new":      w.NewValue(),
		"policy":   w.Policy(),
	}).Info("writeback recorded")
	return w, nil
}

// Close releases the store.
func (s *Session) Close() error {
	return s.cfg.Store.Close()
}
