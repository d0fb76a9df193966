package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/ab-eval/internal/sampling"
)

func newSampleCmd(st *cliState) *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Generate the stratified scoring sample",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cat, s, err := openEnv(st)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			sampler, err := sampling.New(cat, s, cfg.Sampling)
			if err != nil {
				return err
			}

			set, err := sampler.Generate(cmd.Context(), size)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "sample generated: %d queries\n", len(set.QueryIDs))
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tQUALITY\tSIZE\tALLOCATED")
			for _, a := range set.Strata {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", a.Category, a.Quality, a.Size, a.Allocated)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&size, "size", 0, "target sample size (defaults to configured size)")
	return cmd
}
