package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/ab-eval/internal/analysis"
	"github.com/stellarlinkco/ab-eval/internal/store"
)

func newAnalyzeCmd(st *cliState) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compare platform scores over the sampled records",
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
			sample, err := s.GetSampleSet(cmd.Context())
			if err != nil && !errors.Is(err, store.ErrNoSample) {
				return err
			}

			rows := analysis.BuildRows(cat, records, sample)
			report := analysis.Analyze(rows)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "records analyzed: %d\n\n", report.N)

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "METRIC\tA MEAN\tB MEAN\tDIFF\tP\tEFFECT")
			for _, sum := range report.Summaries {
				diff := sum.PlatformA.Mean - sum.PlatformB.Mean
				p, effect := "-", "-"
				for _, test := range report.PairedTests {
					if test.Metric == sum.Metric {
						if test.ZeroVariance {
							p, effect = "-", "no variance"
						} else {
							p = fmt.Sprintf("%.4f", test.PValue)
							effect = test.Interpretation
						}
					}
				}
				fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%+.2f\t%s\t%s\n", sum.Metric, sum.PlatformA.Mean, sum.PlatformB.Mean, diff, p, effect)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintln(out)
			for _, insight := range report.Insights {
				fmt.Fprintf(out, "- %s\n", insight)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the full report as JSON")
	return cmd
}
