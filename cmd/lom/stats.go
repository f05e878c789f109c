package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/lom/internal/db"
	"github.com/banshee-data/lom/internal/export"
	"github.com/banshee-data/lom/internal/metric"
	"github.com/banshee-data/lom/internal/stats"
)

// loadOptions selects stored series: a gob object location, or a run of a
// SQLite database.
type loadOptions struct {
	metrics  []string
	database string
	run      string
}

func (o *loadOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceVarP(&o.metrics, "metric", "m", nil, "only these metric kinds")
	f.StringVar(&o.database, "db", "", "read the series of --run from a SQLite database")
	f.StringVar(&o.run, "run", "", "run id in --db")
}

func (o *loadOptions) load(ctx context.Context, args []string) ([]*metric.Series, error) {
	kinds, err := parseKinds(o.metrics)
	if err != nil {
		return nil, err
	}
	if o.database != "" {
		if o.run == "" {
			return nil, fmt.Errorf("--db requires --run")
		}
		database, err := db.Open(o.database)
		if err != nil {
			return nil, err
		}
		defer database.Close()
		return export.NewSQLiteSource(database, o.run, kinds...).ReadSeries(ctx)
	}
	if len(args) != 1 {
		return nil, fmt.Errorf("expected one series object location or --db and --run")
	}
	series, err := readSeries(ctx, args[0])
	if err != nil {
		return nil, err
	}
	series = filterSeries(series, kinds)
	if len(series) == 0 {
		return nil, fmt.Errorf("no matching series in %s", args[0])
	}
	return series, nil
}

func newStatsCmd() *cobra.Command {
	o := &loadOptions{}
	var last int
	cmd := &cobra.Command{
		Use:   "stats [series.gob]",
		Short: "Print mean, standard deviation and rms of stored metric series",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			series, err := o.load(cmd.Context(), args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range series {
				sum, err := stats.Summarize(s, last)
				if err != nil {
					return fmt.Errorf("%s: %w", s.Kind(), err)
				}
				total, err := stats.RMS(s.Last(last))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s [%s]: %d samples, rms %.6g\n", s.Kind(), s.Units(), sum.Samples, total)
				if err := printSummary(out, sum); err != nil {
					return err
				}
			}
			return nil
		},
	}
	o.register(cmd)
	cmd.Flags().IntVar(&last, "last", 0, "only the last N samples")
	return cmd
}
