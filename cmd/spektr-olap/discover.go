package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spektr-org/spektr-olap/schema"
)

type discoverOptions struct {
	file   string
	format string
}

// discoverOutput is the json/yaml shape of the discover command.
type discoverOutput struct {
	Schema      *schema.Config  `json:"schema" yaml:"schema"`
	Hierarchies []hierarchyInfo `json:"hierarchies" yaml:"hierarchies"`
}

type hierarchyInfo struct {
	Name     string   `json:"name" yaml:"name"`
	Levels   []string `json:"levels" yaml:"levels"`
	Members  int      `json:"members" yaml:"members"`
	Temporal bool     `json:"temporal,omitempty" yaml:"temporal,omitempty"`
}

func newDiscoverCmd(a *app) *cobra.Command {
	o := &discoverOptions{}
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Print the schema and hierarchies discovered from a CSV file",
		Long: `Classifies every column of the file as dimension, measure or skipped,
links dimensions into level chains and prints the resulting hierarchies.

Examples:
  spektr-olap discover --file sales.csv
  spektr-olap discover --file sales.csv --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDiscover(cmd, o)
		},
	}
	cmd.Flags().StringVarP(&o.file, "file", "f", "", "CSV data file")
	cmd.Flags().StringVar(&o.format, "format", "text", "output format: text, json, yaml")
	return cmd
}

func (a *app) runDiscover(cmd *cobra.Command, o *discoverOptions) error {
	ds, err := a.load(o.file, nil)
	if err != nil {
		return err
	}

	out := discoverOutput{Schema: ds.Schema}
	for _, h := range ds.Cube.Hierarchies() {
		out.Hierarchies = append(out.Hierarchies, hierarchyInfo{
			Name:     h.Name(),
			Levels:   h.Levels(),
			Members:  len(h.Members()),
			Temporal: h.IsTemporal(),
		})
	}

	w := cmd.OutOrStdout()
	switch o.format {
	case "text":
		writeDiscoverText(w, out)
		return nil
	case "json", "yaml":
		return encode(w, o.format, out)
	}
	return fmt.Errorf("unknown format %q", o.format)
}

func writeDiscoverText(w io.Writer, out discoverOutput) {
	fmt.Fprintf(w, "Cube %s\n\nDimensions:\n", out.Schema.Name)
	for _, d := range out.Schema.Dimensions {
		line := "  " + d.Key
		if d.Parent != "" {
			line += " (parent " + d.Parent + ")"
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintln(w, "\nMeasures:")
	for _, m := range out.Schema.Measures {
		fmt.Fprintf(w, "  %s [%s]\n", m.Key, m.DefaultAggregation)
	}

	if len(out.Schema.SkippedColumns) > 0 {
		fmt.Fprintln(w, "\nSkipped:")
		for _, s := range out.Schema.SkippedColumns {
			fmt.Fprintf(w, "  %s: %s\n", s.Column, s.Reason)
		}
	}

	fmt.Fprintln(w, "\nHierarchies:")
	for _, h := range out.Hierarchies {
		levels := "-"
		if len(h.Levels) > 0 {
			levels = strings.Join(h.Levels, " > ")
		}
		fmt.Fprintf(w, "  %s: %s (%d members)\n", schema.QuoteIdentifier([]string{h.Name}), levels, h.Members)
	}
}
