package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/spektr-org/spektr-olap/config"
	"github.com/spektr-org/spektr-olap/engine"
	"github.com/spektr-org/spektr-olap/helpers"
	"github.com/spektr-org/spektr-olap/metrics"
)

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	verbose    bool

	cfg      config.Config
	logger   *logrus.Logger
	registry *prometheus.Registry
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "spektr-olap",
		Short: "Multidimensional evaluation over CSV data",
		Long: `spektr-olap discovers a cube from a CSV file, evaluates axis queries
against it and records what-if writebacks in persisted scenarios.

Axis expressions:
  [region]                      root members of a hierarchy
  [region].[EMEA]               children of a member
  {([region].[EMEA], [product].[A])}  explicit tuple list
  [region] * [product]          crossjoin`,
		Version:       version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (.yaml, .toml, .json); defaults to $"+config.EnvPath)
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newDiscoverCmd(a), newEvalCmd(a), newWritebackCmd(a))
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.Load(a.configPath)
	} else {
		a.cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return err
	}
	a.logger = a.cfg.Logger()
	a.logger.SetOutput(cmd.ErrOrStderr())
	if a.verbose {
		a.logger.SetLevel(logrus.DebugLevel)
	}
	return nil
}

// load reads the CSV at path into a dataset, keeping the rows that pass where.
func (a *app) load(path string, where []string) (*helpers.Dataset, error) {
	if path == "" {
		return nil, errors.New("--file is required")
	}
	filters, err := engine.ParseFilters(where)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	ds, err := helpers.LoadCSV(data, filters)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a.logger.WithFields(logrus.Fields{
		"file":        path,
		"cube":        ds.Cube.Name(),
		"hierarchies": len(ds.Cube.Hierarchies()),
		"rows":        ds.Facts.View().Len(),
	}).Debug("dataset loaded")
	return ds, nil
}

// session opens the configured scenario store and a session over ds.
func (a *app) session(ctx context.Context, ds *helpers.Dataset) (*engine.Session, error) {
	st, err := a.cfg.Store.Open(ctx, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", a.cfg.Store.Driver, err)
	}
	opts := []engine.Option{
		engine.WithStore(st),
		engine.WithLogger(a.logger),
		engine.WithCacheSize(a.cfg.CacheSize),
		engine.WithIgnoreInvalidMembers(a.cfg.IgnoreInvalidMembers),
	}
	if a.cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		rec, err := metrics.NewPrometheus(a.registry)
		if err != nil {
			st.Close()
			return nil, err
		}
		opts = append(opts, engine.WithMetrics(rec))
	}
	s, err := engine.NewSession(ds.Cube, ds.Facts, opts...)
	if err != nil {
		st.Close()
		return nil, err
	}
	return s, nil
}

// reportMetrics logs the counter totals gathered during the command.
func (a *app) reportMetrics() {
	if a.registry == nil {
		return
	}
	families, err := a.registry.Gather()
	if err != nil {
		a.logger.WithError(err).Warn("gather metrics")
		return
	}
	for _, mf := range families {
		var total float64
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		a.logger.WithFields(logrus.Fields{"metric": mf.GetName(), "value": total}).Info("metrics")
	}
}
