package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/spektr-org/spektr-olap/engine"
)

type evalOptions struct {
	file     string
	rows     string
	columns  string
	slicer   []string
	where    []string
	scenario string
	title    string
	format   string
}

func newEvalCmd(a *app) *cobra.Command {
	o := &evalOptions{}
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate a row/column grid over a CSV file",
		Long: `Builds the cube of the file and evaluates every cell of the rows x columns
grid. With --scenario the cells show the writebacks of the saved scenario.

Examples:
  spektr-olap eval --file sales.csv --rows "[region]" --columns "[product]"
  spektr-olap eval --file sales.csv --rows "[region] * [product]" --slicer "[Measures].[units]"
  spektr-olap eval --file sales.csv --rows "[region].[EMEA]" --where "product=A|B" --format json
  spektr-olap eval --file sales.csv --rows "[product]" --slicer "{[region].[EMEA].[France], [region].[APAC].[Japan]}"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runEval(cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.file, "file", "f", "", "CSV data file")
	f.StringVar(&o.rows, "rows", "", "row axis expression (required)")
	f.StringVar(&o.columns, "columns", "", "column axis expression")
	f.StringArrayVar(&o.slicer, "slicer", nil, "slicer member or braced set to aggregate over, repeatable")
	f.StringArrayVar(&o.where, "where", nil, "row filter dimension=value|value, repeatable")
	f.StringVar(&o.scenario, "scenario", "", "id of a saved scenario to evaluate through")
	f.StringVar(&o.title, "title", "", "table title (json output)")
	f.StringVar(&o.format, "format", "csv", "output format: csv, json, yaml")
	_ = cmd.MarkFlagRequired("rows")
	return cmd
}

func (a *app) runEval(cmd *cobra.Command, o *evalOptions) error {
	switch o.format {
	case "csv", "json", "yaml":
	default:
		return fmt.Errorf("unknown format %q", o.format)
	}

	ctx := cmd.Context()
	ds, err := a.load(o.file, o.where)
	if err != nil {
		return err
	}
	s, err := a.session(ctx, ds)
	if err != nil {
		return err
	}
	defer s.Close()

	if o.scenario != "" {
		id, err := uuid.Parse(o.scenario)
		if err != nil {
			return fmt.Errorf("scenario id %q: %w", o.scenario, err)
		}
		if _, err := s.OpenScenario(ctx, id); err != nil {
			return err
		}
	}

	var q engine.Query
	if q.Rows, err = s.ParseAxis(o.rows); err != nil {
		return err
	}
	if o.columns != "" {
		if q.Columns, err = s.ParseAxis(o.columns); err != nil {
			return err
		}
	}
	var members []string
	for _, v := range o.slicer {
		if !strings.HasPrefix(strings.TrimSpace(v), "{") {
			members = append(members, v)
			continue
		}
		set, err := s.ParseAxis(v)
		if err != nil {
			return err
		}
		q.Aggregate = append(q.Aggregate, set)
	}
	if q.Slicer, err = s.ResolveCoordinate(members); err != nil {
		return err
	}

	r, err := s.Execute(ctx, q)
	if err != nil {
		return err
	}
	a.logger.WithFields(logrus.Fields{"rows": len(r.Cells), "columns": r.ColumnCount()}).Debug("grid evaluated")
	a.reportMetrics()

	return writeTable(cmd.OutOrStdout(), o.format, engine.BuildTable(r, o.title))
}
