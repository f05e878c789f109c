package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/lom/internal/export"
	"github.com/banshee-data/lom/internal/stats"
)

func newPSDCmd(g *globalOptions) *cobra.Command {
	o := &loadOptions{}
	var (
		rate    float64
		segLen  int
		overlap int
		csvOut  string
	)
	cmd := &cobra.Command{
		Use:   "psd [series.gob]",
		Short: "Estimate the power spectral density of stored metric series",
		Long: `Estimate the one-sided power spectral density of every component with
Welch's method (Hann window, mean removed per segment). The sample rate
defaults to the one implied by the first two timestamps and the segment
length is clamped to the series length.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			opts := cfg.WelchOptions()
			if cmd.Flags().Changed("segment") {
				opts.SegmentLength = segLen
			}
			if cmd.Flags().Changed("overlap") {
				opts.Overlap = overlap
			}

			series, err := o.load(cmd.Context(), args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range series {
				fs := rate
				if fs == 0 {
					if fs, err = stats.SampleRate(s); err != nil {
						return fmt.Errorf("%s: %w", s.Kind(), err)
					}
				}
				so := opts
				if so.SegmentLength > s.Len() {
					so.SegmentLength = s.Len()
				}
				if so.Overlap >= so.SegmentLength {
					so.Overlap = 0
				}
				sp, err := stats.PSD(s, fs, so)
				if err != nil {
					return err
				}
				names := s.Kind().ComponentNames(s.Components())
				fmt.Fprintf(out, "%s [%s²/Hz]: %d bins up to %g Hz\n", s.Kind(), sp.Units, len(sp.Frequencies), sp.Frequencies[len(sp.Frequencies)-1])
				for j, name := range names {
					fmt.Fprintf(out, "  %s peak at %g Hz\n", name, sp.Peak(j))
				}
				if csvOut != "" {
					loc := kindLocation(csvOut, s.Kind(), ".csv")
					if err := writeTable(cmd.Context(), loc, spectrumTable(sp, names)); err != nil {
						return err
					}
					fmt.Fprintf(out, "wrote %s\n", loc)
				}
			}
			return nil
		},
	}
	o.register(cmd)
	f := cmd.Flags()
	f.Float64Var(&rate, "fs", 0, "sample rate in Hz (default: from timestamps)")
	f.IntVar(&segLen, "segment", stats.DefaultSegmentLength, "Welch segment length in samples")
	f.IntVar(&overlap, "overlap", 0, "samples shared by consecutive segments (0: half, negative: none)")
	f.StringVar(&csvOut, "csv-out", "", "write one spectrum CSV per metric as <prefix>_<metric>.csv")
	return cmd
}

// spectrumTable lays a spectrum out as a frequency column followed by one
// density column per component.
func spectrumTable(sp *stats.Spectrum, names []string) *export.Table {
	t := &export.Table{
		Kind:    sp.Kind,
		Units:   sp.Units,
		Columns: append([]string{"frequency"}, names...),
		Rows:    make([][]float64, len(sp.Frequencies)),
	}
	for k, f := range sp.Frequencies {
		row := make([]float64, 1+len(sp.Power))
		row[0] = f
		for j := range sp.Power {
			row[1+j] = sp.Power[j][k]
		}
		t.Rows[k] = row
	}
	return t
}
