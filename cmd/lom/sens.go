package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/banshee-data/lom/internal/blob"
	"github.com/banshee-data/lom/internal/export"
	"github.com/banshee-data/lom/internal/sensitivity"
	"github.com/banshee-data/lom/internal/units"
)

func newSensCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sens",
		Short: "Inspect and build sensitivity matrix artifacts",
	}
	cmd.AddCommand(newSensInspectCmd(g), newSensFromCSVCmd())
	return cmd
}

func newSensInspectCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [artifact]",
		Short: "List the matrices of a sensitivity artifact",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			location := cfg.GetSensitivities()
			if len(args) == 1 {
				location = args[0]
			}
			store, err := openStore(cmd.Context(), location)
			if err != nil {
				return err
			}
			return printStore(cmd.OutOrStdout(), location, store)
		},
	}
}

func printStore(out io.Writer, location string, store *sensitivity.Store) error {
	fmt.Fprintf(out, "%s: %d matrices\n", location, store.Len())
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "metric\toutputs\tinputs\tunits\tinput basis\tsegments")
	for _, k := range store.Kinds() {
		m, err := store.Get(k)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\n", k, m.OutputDim(), m.InputDim(), m.Units(), m.InputBasis(), m.Segments())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if mask := store.SegmentMask(); mask != nil {
		fmt.Fprintf(out, "wavefront masks: %d in-pupil samples of %d\n", len(mask), len(store.PupilMask()))
	}
	return nil
}

type fromCSVOptions struct {
	out             string
	units           string
	translationUnit string
	rotationUnit    string
	segments        string
}

func newSensFromCSVCmd() *cobra.Command {
	o := &fromCSVOptions{}
	cmd := &cobra.Command{
		Use:   "from-csv <matrix.csv[:segments]>...",
		Short: "Build a sensitivity artifact from delimited matrices",
		Long: `Build a sensitivity artifact from headerless CSV files with one row per
metric output: "metric,segment,v1,...,vn". Each file holds one matrix. The
calibration segment set defaults to --segments and can be set per file with
a suffix, e.g. piston.csv:M1 or tiptilt.csv:M1,M2.

Example:
  lom sens from-csv --out optical_sensitivities.bin tiptilt.csv piston.csv:M1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := o.build(args)
			if err != nil {
				return err
			}
			if err := saveStore(cmd.Context(), o.out, store); err != nil {
				return err
			}
			return printStore(cmd.OutOrStdout(), o.out, store)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.out, "out", "o", sensitivity.DefaultFileName, "artifact path or s3:// location")
	f.StringVar(&o.units, "units", "", "output units (default: the metric's own)")
	f.StringVar(&o.translationUnit, "translation-unit", string(units.Meter), "calibration unit of translations")
	f.StringVar(&o.rotationUnit, "rotation-unit", string(units.Radian), "calibration unit of rotations")
	f.StringVar(&o.segments, "segments", "", "calibration segments, e.g. M1 or M1S1,M1S2 (default: all 14)")
	return cmd
}

func (o *fromCSVOptions) build(args []string) (*sensitivity.Store, error) {
	basis := units.Basis{Translation: units.Unit(o.translationUnit), Rotation: units.Unit(o.rotationUnit)}
	if err := basis.Validate(); err != nil {
		return nil, err
	}
	unit, err := units.ParseUnit(o.units)
	if err != nil {
		return nil, err
	}
	var matrices []*sensitivity.Matrix
	for _, arg := range args {
		path, segs := arg, o.segments
		if i := strings.LastIndexByte(arg, ':'); i > 0 {
			path, segs = arg[:i], arg[i+1:]
		}
		set, err := parseSegments(segs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", arg, err)
		}
		m, err := readMatrix(path, sensitivity.Spec{Units: unit, InputBasis: basis, Segments: set})
		if err != nil {
			return nil, err
		}
		matrices = append(matrices, m)
	}
	return sensitivity.New(matrices...)
}

func readMatrix(path string, base sensitivity.Spec) (*sensitivity.Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := sensitivity.ReadCSV(f, base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func saveStore(ctx context.Context, location string, store *sensitivity.Store) error {
	if isRemote(location) {
		var buf bytes.Buffer
		if err := sensitivity.Encode(&buf, store); err != nil {
			return err
		}
		bs, key, err := blob.Open(ctx, location)
		if err != nil {
			return err
		}
		return bs.Put(ctx, key, &buf, "application/octet-stream")
	}
	return export.LockedFile(ctx, location, func(w io.Writer) error {
		return sensitivity.Encode(w, store)
	})
}
