package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/spektr-org/spektr-olap/config"
	"github.com/spektr-org/spektr-olap/evaluator"
	"github.com/spektr-org/spektr-olap/scenario"
	"github.com/spektr-org/spektr-olap/schema"
)

type writebackOptions struct {
	file     string
	scenario string
	name     string
	at       []string
	value    float64
	policy   string
	weight   float64
}

func newWritebackCmd(a *app) *cobra.Command {
	o := &writebackOptions{}
	cmd := &cobra.Command{
		Use:   "writeback",
		Short: "Set a cell to a new value in a scenario and save it",
		Long: `Records a writeback at the coordinate given by --at and persists the
scenario in the configured store. Without --scenario a new scenario is
created and its id printed. Hierarchies left out of --at keep their
default member.

Policies: equal_allocation, equal_increment, weighted_allocation,
weighted_increment. The weighted policies take --weight as a constant share.

Examples:
  spektr-olap writeback --file sales.csv --at "[region].[EMEA]" --value 1200
  spektr-olap writeback --file sales.csv --scenario 5f0c... --at "[region].[APAC]" \
      --at "[product].[A]" --value 90 --policy weighted_increment --weight 0.5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runWriteback(cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.file, "file", "f", "", "CSV data file")
	f.StringVar(&o.scenario, "scenario", "", "id of the scenario to extend; empty creates one")
	f.StringVar(&o.name, "name", "what-if", "name of a newly created scenario")
	f.StringArrayVar(&o.at, "at", nil, "coordinate member, repeatable")
	f.Float64Var(&o.value, "value", 0, "new cell value")
	f.StringVar(&o.policy, "policy", "equal_allocation", "allocation policy")
	f.Float64Var(&o.weight, "weight", 0, "constant share for weighted policies")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func (a *app) runWriteback(cmd *cobra.Command, o *writebackOptions) error {
	policy, err := scenario.ParsePolicy(o.policy)
	if err != nil {
		return err
	}
	var weight evaluator.Calc
	if cmd.Flags().Changed("weight") {
		weight = scenario.ConstantWeight(o.weight)
	} else if policy.Weighted() {
		return errors.New("--weight is required for weighted policies")
	}

	ctx := cmd.Context()
	ds, err := a.load(o.file, nil)
	if err != nil {
		return err
	}
	s, err := a.session(ctx, ds)
	if err != nil {
		return err
	}
	defer s.Close()

	if a.cfg.Store.Driver == "" || a.cfg.Store.Driver == config.DriverMemory {
		a.logger.Warn("memory store: the scenario is lost when the command exits")
	}

	var sc *scenario.Scenario
	if o.scenario != "" {
		id, err := uuid.Parse(o.scenario)
		if err != nil {
			return fmt.Errorf("scenario id %q: %w", o.scenario, err)
		}
		sc, err = s.OpenScenario(ctx, id)
		if err != nil {
			return err
		}
	} else if sc, err = s.NewScenario(ctx, o.name); err != nil {
		return err
	}

	coord, err := s.ResolveCoordinate(o.at)
	if err != nil {
		return err
	}
	w, err := s.Writeback(ctx, coord, o.value, policy, weight)
	if err != nil {
		return err
	}
	a.reportMetrics()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "scenario\t%s\n", sc.ID())
	fmt.Fprintf(out, "cell\t%s\n", coordinateLabel(w.Coordinate()))
	fmt.Fprintf(out, "previous\t%g\n", w.PreviousValue())
	fmt.Fprintf(out, "new\t%g\n", w.NewValue())
	fmt.Fprintf(out, "writebacks\t%d\n", sc.Len())
	return nil
}

func coordinateLabel(coord []*schema.Member) string {
	names := make([]string, len(coord))
	for i, m := range coord {
		names[i] = m.UniqueName()
	}
	return strings.Join(names, ", ")
}
