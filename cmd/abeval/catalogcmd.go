package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/ab-eval/internal/store"
)

func newCatalogCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List catalog queries and their current state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cat, s, err := openEnv(st)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			records, err := s.ListRecords(cmd.Context())
			if err != nil {
				return err
			}
			statusByID := make(map[int]store.Status, len(records))
			for _, rec := range records {
				statusByID[rec.QueryID] = rec.Status()
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCATEGORY\tQUALITY\tCLARITY\tSTATUS\tQUERY")
			for _, q := range cat.All() {
				status, ok := statusByID[q.ID]
				if !ok {
					status = store.StatusEmpty
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", q.ID, q.Category, q.Quality, q.IntentClarity, status, q.Text)
			}
			return tw.Flush()
		},
	}
}
