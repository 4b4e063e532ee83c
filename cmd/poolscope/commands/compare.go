package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/poolscope/pkg/compare"
	"github.com/Sumatoshi-tech/poolscope/pkg/observability"
)

const flagFailOnDiff = "fail-on-diff"

// ErrReportsDiffer is returned by compare --fail-on-diff when the summaries
// differ.
var ErrReportsDiffer = errors.New("summaries differ")

func newCompareCommand(a *app) *cobra.Command {
	var tolerant, failOnDiff bool

	cmd := &cobra.Command{
		Use:   "compare <a> <b>",
		Short: "Diff the text summaries of two allocation logs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, observability.ModeCLI, func(ctx context.Context) error {
				if !cmd.Flags().Changed(flagTolerant) {
					tolerant = a.cfg.Summary.Tolerant
				}

				left, err := a.summaryReport(ctx, args[0], tolerant)
				if err != nil {
					return err
				}

				right, err := a.summaryReport(ctx, args[1], tolerant)
				if err != nil {
					return err
				}

				changes, err := compare.Diff(left, right)
				if err != nil {
					return err
				}

				err = compare.Render(cmd.OutOrStdout(), changes, !a.colorDisabled())
				if err != nil {
					return err
				}

				if failOnDiff && compare.Changed(changes) {
					return ErrReportsDiffer
				}

				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&tolerant, flagTolerant, false,
		"ignore clear or destroy of pools that are already gone instead of failing")
	cmd.Flags().BoolVar(&failOnDiff, flagFailOnDiff, false, "exit non-zero when the summaries differ")

	return cmd
}
