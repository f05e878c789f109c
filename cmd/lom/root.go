package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/banshee-data/lom/internal/blob"
	"github.com/banshee-data/lom/internal/config"
	"github.com/banshee-data/lom/internal/export"
	"github.com/banshee-data/lom/internal/metric"
	"github.com/banshee-data/lom/internal/monitoring"
	"github.com/banshee-data/lom/internal/segment"
	"github.com/banshee-data/lom/internal/sensitivity"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath    string
	sensitivities string
	quiet         bool
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:          "lom",
		Short:        "Linear optical model for segmented telescope mirrors",
		SilenceUsage: true,
		Long: `lom maps rigid body motions of the M1 and M2 mirror segments to optical
metrics (tip-tilt, segment tip-tilt, segment piston, wavefront) through
calibrated sensitivity matrices.

The sensitivity artifact defaults to optical_sensitivities.bin in the
directory named by $LOM. Locations of the form s3://bucket/key are read from
and written to S3 using the LOM_S3_* environment.`,
		PersistentPreRun: func(*cobra.Command, []string) {
			if g.quiet {
				monitoring.SetLogger(nil)
			}
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "configuration file (.json, .yaml or .yml)")
	pf.StringVar(&g.sensitivities, "sensitivities", "", "sensitivity artifact path or s3:// location")
	pf.BoolVarP(&g.quiet, "quiet", "q", false, "suppress diagnostic logging")

	root.AddCommand(
		newRunCmd(g),
		newStatsCmd(),
		newPSDCmd(g),
		newSensCmd(g),
		newRunsCmd(),
		newVersionCmd(),
	)
	return root
}

// config loads the configuration file, if any, and applies the persistent
// flag overrides.
func (g *globalOptions) config() (*config.Config, error) {
	cfg := &config.Config{}
	if g.configPath != "" {
		var err error
		if cfg, err = config.Load(g.configPath); err != nil {
			return nil, err
		}
	}
	if g.sensitivities != "" {
		cfg.Sensitivities = &g.sensitivities
	}
	return cfg, nil
}

func openStore(ctx context.Context, location string) (*sensitivity.Store, error) {
	bs, key, err := blob.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	return sensitivity.Open(ctx, bs, key)
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "s3://")
}

// writeTable writes t as CSV to a local path under an exclusive lock, or to
// an s3:// location.
func writeTable(ctx context.Context, location string, t *export.Table) error {
	if isRemote(location) {
		bs, key, err := blob.Open(ctx, location)
		if err != nil {
			return err
		}
		return export.NewBlobSink(bs, key).WriteTable(ctx, t)
	}
	return export.LockedFile(ctx, location, func(w io.Writer) error {
		return export.NewCSVSink(w).WriteTable(ctx, t)
	})
}

// writeSeries writes series as one gob object, locally or to S3.
func writeSeries(ctx context.Context, location string, series ...*metric.Series) error {
	if isRemote(location) {
		bs, key, err := blob.Open(ctx, location)
		if err != nil {
			return err
		}
		return export.NewBlobSink(bs, key).WriteSeries(ctx, series...)
	}
	return export.LockedFile(ctx, location, func(w io.Writer) error {
		return export.NewGobSink(w).WriteSeries(ctx, series...)
	})
}

func readSeries(ctx context.Context, location string) ([]*metric.Series, error) {
	bs, key, err := blob.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	return export.NewBlobSource(bs, key).ReadSeries(ctx)
}

// kindLocation derives a per-kind artifact location from a prefix, e.g.
// out/run + segment-piston + .csv gives out/run_segment-piston.csv.
func kindLocation(prefix string, k metric.Kind, ext string) string {
	prefix = strings.TrimSuffix(prefix, ext)
	return prefix + "_" + k.String() + ext
}

func parseKinds(names []string) ([]metric.Kind, error) {
	var out []metric.Kind
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			k, err := metric.ParseKind(part)
			if err != nil {
				return nil, err
			}
			out = append(out, k)
		}
	}
	return out, nil
}

func filterSeries(series []*metric.Series, kinds []metric.Kind) []*metric.Series {
	if len(kinds) == 0 {
		return series
	}
	var out []*metric.Series
	for _, s := range series {
		for _, k := range kinds {
			if s.Kind() == k {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// parseSegments parses a comma separated list of assemblies ("M1") and
// segments ("M2S3") into a canonical set. Empty means every segment.
func parseSegments(s string) (segment.Set, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return segment.Full(), nil
	}
	seen := make(map[segment.ID]bool)
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if a, err := segment.ParseAssembly(tok); err == nil {
			for _, id := range segment.Full(a) {
				seen[id] = true
			}
			continue
		}
		id, err := segment.Parse(tok)
		if err != nil {
			return nil, err
		}
		seen[id] = true
	}
	var ids []segment.ID
	for _, id := range segment.Full() {
		if seen[id] {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no segments in %q", s)
	}
	return segment.NewSet(ids...)
}
