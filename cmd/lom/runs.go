package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/lom/internal/db"
)

func newRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs <database>",
		Short: "List the runs stored in a SQLite database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := db.Open(args[0])
			if err != nil {
				return err
			}
			defer database.Close()
			runs, err := database.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "run\tcreated\tsource\tseries")
			for _, r := range runs {
				kinds := make([]string, len(r.Series))
				for i, s := range r.Series {
					kinds[i] = fmt.Sprintf("%s (%d)", s.Kind, s.Samples)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Created.UTC().Format(time.RFC3339), r.Source, strings.Join(kinds, ", "))
			}
			return tw.Flush()
		},
	}
}
