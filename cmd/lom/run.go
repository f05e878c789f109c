package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/banshee-data/lom/internal/blob"
	"github.com/banshee-data/lom/internal/config"
	"github.com/banshee-data/lom/internal/db"
	"github.com/banshee-data/lom/internal/export"
	"github.com/banshee-data/lom/internal/metric"
	"github.com/banshee-data/lom/internal/monitoring"
	"github.com/banshee-data/lom/internal/optics"
	"github.com/banshee-data/lom/internal/pipeline"
	"github.com/banshee-data/lom/internal/sensitivity"
	"github.com/banshee-data/lom/internal/stats"
)

type runOptions struct {
	metrics         []string
	batch           int
	window          int
	workers         int
	translationUnit string
	rotationUnit    string
	csvOut          string
	gobOut          string
	database        string
	promFile        string
	last            int
}

func newRunCmd(g *globalOptions) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <rbm.csv>",
		Short: "Compute optical metrics from a rigid body motion time series",
		Long: `Stream a rigid body motion CSV (a time column followed by <segment>_<dof>
columns such as M1S1_Tx ... M2S7_Rz) through the sensitivity matrices and
print a summary of every metric series. Snapshots that cannot be transformed
for a metric are skipped and reported; the run continues.

Example:
  lom run rbm.csv --metric tiptilt,segment-piston --csv-out out/run
  lom run s3://sims/run42/rbm.csv --gob-out s3://sims/run42/metrics.gob`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			if err := o.apply(cmd, cfg); err != nil {
				return err
			}
			return runMetrics(cmd.Context(), cmd.OutOrStdout(), cfg, o, args[0])
		},
	}
	f := cmd.Flags()
	f.StringSliceVarP(&o.metrics, "metric", "m", nil, "metric kinds to compute (default: every stored kind)")
	f.IntVar(&o.batch, "batch", pipeline.DefaultBatchSize, "snapshots per batched matrix product")
	f.IntVar(&o.window, "window", 0, "retain the last N samples per metric for the summary")
	f.IntVar(&o.workers, "workers", 1, "metric kinds flushed concurrently")
	f.StringVar(&o.translationUnit, "translation-unit", "", "unit of input translations (default m)")
	f.StringVar(&o.rotationUnit, "rotation-unit", "", "unit of input rotations (default rad)")
	f.StringVar(&o.csvOut, "csv-out", "", "write one CSV per metric as <prefix>_<metric>.csv")
	f.StringVar(&o.gobOut, "gob-out", "", "write every series to one gob object")
	f.StringVar(&o.database, "db", "", "store the run in a SQLite database")
	f.StringVar(&o.promFile, "prom-file", "", "write run metrics in Prometheus text format")
	f.IntVar(&o.last, "last", 0, "summarise only the last N samples")
	return cmd
}

// apply copies explicitly set flags over the configuration.
func (o *runOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("metric") {
		names, err := splitNames(o.metrics)
		if err != nil {
			return err
		}
		cfg.Metrics = names
	}
	if f.Changed("batch") {
		cfg.BatchSize = &o.batch
	}
	if f.Changed("window") {
		cfg.Window = &o.window
	}
	if f.Changed("workers") {
		cfg.Workers = &o.workers
	}
	if f.Changed("translation-unit") {
		cfg.TranslationUnit = &o.translationUnit
	}
	if f.Changed("rotation-unit") {
		cfg.RotationUnit = &o.rotationUnit
	}
	if f.Changed("db") {
		cfg.Database = &o.database
	}
	return cfg.Validate()
}

func splitNames(names []string) ([]string, error) {
	kinds, err := parseKinds(names)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.String()
	}
	return out, nil
}

func runMetrics(ctx context.Context, out io.Writer, cfg *config.Config, o *runOptions, input string) error {
	store, err := openStore(ctx, cfg.GetSensitivities())
	if err != nil {
		return err
	}

	var src pipeline.Source = pipeline.CSVSource{Path: input, Basis: cfg.GetBasis()}
	if isRemote(input) {
		bs, key, err := blob.Open(ctx, input)
		if err != nil {
			return err
		}
		src = pipeline.BlobSource{Store: bs, Key: key, Basis: cfg.GetBasis()}
	}

	reg := prometheus.NewRegistry()
	collector, err := monitoring.NewCollector(reg)
	if err != nil {
		return err
	}
	opts := cfg.PipelineOptions()
	opts.Collector = collector
	p, err := pipeline.New(store, opts)
	if err != nil {
		return err
	}

	res, runErr := p.Run(ctx, src, cfg.GetMetrics()...)
	if res == nil || len(res.Series) == 0 {
		return runErr
	}
	if err := printRun(out, res, store, o.last); err != nil {
		return err
	}
	if err := exportRun(ctx, out, cfg, o, input, res); err != nil {
		return err
	}
	if o.promFile != "" {
		if err := prometheus.WriteToTextfile(o.promFile, reg); err != nil {
			return fmt.Errorf("write prometheus metrics: %w", err)
		}
	}
	return runErr
}

func printRun(out io.Writer, res *pipeline.Result, store *sensitivity.Store, last int) error {
	fmt.Fprintf(out, "records: %d, skipped samples: %d\n", res.Processed, len(res.Skips))
	for _, k := range res.Unavailable {
		fmt.Fprintf(out, "unavailable: %s (not in sensitivity store)\n", k)
	}
	for _, k := range res.Kinds() {
		s := res.Series[k]
		if w := res.Window(k); w != nil {
			s = w.Series()
		}
		fmt.Fprintf(out, "\n%s [%s]: %d samples, %d skipped\n", k, s.Units(), res.Series[k].Len(), len(res.SkipsFor(k)))
		if s.Len() == 0 {
			continue
		}
		sum, err := stats.Summarize(s, min(last, s.Len()))
		if err != nil {
			return err
		}
		if err := printSummary(out, sum); err != nil {
			return err
		}
	}

	if wf, ok := res.Series[metric.Wavefront]; ok && wf.Len() > 0 && store.SegmentMask() != nil {
		rms, err := optics.SegmentWFERMS(wf.At(wf.Len()-1).Values, store.SegmentMask(), 1e9)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nsegment wavefront rms [nm] at t=%g: %s\n", wf.Time(wf.Len()-1), formatValues(rms))
	}
	if ps, ok := res.Series[metric.SegmentPiston]; ok && ps.Len() > 0 {
		dp := optics.DifferentialPiston(ps.At(ps.Len() - 1).Values)
		var worst float64
		for _, v := range dp {
			worst = math.Max(worst, math.Abs(v))
		}
		fmt.Fprintf(out, "largest differential piston [%s] at t=%g: %g\n", ps.Units(), ps.Time(ps.Len()-1), worst)
	}
	return nil
}

func printSummary(out io.Writer, sum *stats.Summary) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "component\tmean\tstd\trms")
	for j, name := range sum.Components {
		fmt.Fprintf(tw, "%s\t%.6g\t%.6g\t%.6g\n", name, sum.Mean[j], sum.Std[j], sum.RMS[j])
	}
	return tw.Flush()
}

func formatValues(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%.4g", x)
	}
	return strings.Join(parts, " ")
}

func exportRun(ctx context.Context, out io.Writer, cfg *config.Config, o *runOptions, input string, res *pipeline.Result) error {
	kinds := res.Kinds()
	series := make([]*metric.Series, len(kinds))
	for i, k := range kinds {
		series[i] = res.Series[k]
	}

	if o.csvOut != "" {
		for _, s := range series {
			t, err := export.NewTable(s)
			if err != nil {
				return err
			}
			loc := kindLocation(o.csvOut, s.Kind(), ".csv")
			if err := writeTable(ctx, loc, t); err != nil {
				return err
			}
			fmt.Fprintf(out, "wrote %s\n", loc)
		}
	}
	if o.gobOut != "" {
		if err := writeSeries(ctx, o.gobOut, series...); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", o.gobOut)
	}
	if path := cfg.GetDatabase(); path != "" {
		database, err := db.Open(path)
		if err != nil {
			return err
		}
		defer database.Close()
		sink, err := export.NewSQLiteSink(ctx, database, input, nil)
		if err != nil {
			return err
		}
		if err := sink.WriteSeries(ctx, series...); err != nil {
			return err
		}
		fmt.Fprintf(out, "stored run %s in %s\n", sink.RunID(), path)
	}
	return nil
}
