package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/ab-eval/internal/sampling"
)

func newStatusCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show collection progress and sample state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cat, s, err := openEnv(st)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			stats, err := s.AggregateStats(cmd.Context())
			if err != nil {
				return err
			}

			sampler, err := sampling.New(cat, s, cfg.Sampling)
			if err != nil {
				return err
			}
			sampleStatus, err := sampler.Status(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "total queries\t%d\n", stats.TotalQueries)
			fmt.Fprintf(tw, "platform A responses\t%d\n", stats.ResponsesA)
			fmt.Fprintf(tw, "platform B responses\t%d\n", stats.ResponsesB)
			fmt.Fprintf(tw, "both responses\t%d\n", stats.BothResponses)
			fmt.Fprintf(tw, "scored\t%d\n", stats.Scored)
			fmt.Fprintf(tw, "complete\t%.1f%%\n", stats.PercentComplete)
			if sampleStatus.Exists {
				fmt.Fprintf(tw, "sample\t%d queries (target %d)\n", len(sampleStatus.Sample.QueryIDs), sampleStatus.Sample.TargetSize)
			} else {
				fmt.Fprintf(tw, "sample\tnot generated (%d/%d responses ready)\n", sampleStatus.Readiness.BothResponses, sampleStatus.Readiness.Required)
			}
			return tw.Flush()
		},
	}
}
