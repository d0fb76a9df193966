package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/ab-eval/internal/dispatch"
)

func newDispatchCmd(st *cliState) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Fill missing platform A responses in one batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cat, s, err := openEnv(st)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			provider, err := defaultProviderFromConfig(cfg)
			if err != nil {
				return err
			}
			d, err := dispatch.New(s, cat, provider, cfg.Batch)
			if err != nil {
				return err
			}

			if dryRun {
				pending, batch, err := d.Estimate(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d pending, next batch would process %d\n", pending, batch)
				return nil
			}

			if err := d.Start(cmd.Context()); err != nil {
				return err
			}
			if err := d.Wait(cmd.Context()); err != nil {
				return err
			}

			final, err := d.Acknowledge()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), final.Message)
			for _, item := range final.Errors {
				fmt.Fprintf(cmd.OutOrStdout(), "  query %d: %s\n", item.QueryID, item.Message)
			}
			if final.ErrorOverflow > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "  ... and %d more errors\n", final.ErrorOverflow)
			}
			if final.Outcome == dispatch.OutcomeFailed {
				return fmt.Errorf("batch failed (%d errors)", final.Failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report batch size without dispatching")
	return cmd
}
