package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/poolscope/pkg/observability"
	"github.com/Sumatoshi-tech/poolscope/pkg/report"
	"github.com/Sumatoshi-tech/poolscope/pkg/summary"
)

// Summary flag names.
const (
	flagFormat   = "format"
	flagTolerant = "tolerant"
	flagTitle    = "title"
	flagHistory  = "history"
)

type summarizeOptions struct {
	format   string
	tolerant bool
	title    string
	history  bool
}

func newSummaryCommand(a *app) *cobra.Command {
	var opts summarizeOptions

	cmd := &cobra.Command{
		Use:   "summary [file]",
		Short: "Summarize an allocation log",
		Long: `Summarize an allocation log: call counts, maxima and histograms of
maximum pool size, pool depth and allocations per pool.

Formats: text (default), table, json, yaml, html.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, observability.ModeCLI, func(ctx context.Context) error {
				if !cmd.Flags().Changed(flagFormat) {
					opts.format = a.cfg.Summary.Format
				}

				if !cmd.Flags().Changed(flagTolerant) {
					opts.tolerant = a.cfg.Summary.Tolerant
				}

				return a.summarize(ctx, cmd.OutOrStdout(), a.logFile(args), opts)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.format, flagFormat, "f", report.FormatText,
		fmt.Sprintf("output format: %v", report.Formats))
	cmd.Flags().BoolVar(&opts.tolerant, flagTolerant, false,
		"ignore clear or destroy of pools that are already gone instead of failing")
	cmd.Flags().StringVar(&opts.title, flagTitle, "", "report title for table and html output")
	cmd.Flags().BoolVar(&opts.history, flagHistory, false, "include per-pool history in json and yaml output")

	return cmd
}

func (a *app) summaryReport(ctx context.Context, path string, tolerant bool) (*summary.Report, error) {
	events, err := a.pipe.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	sopts, err := a.cfg.SummaryOptions()
	if err != nil {
		return nil, err
	}

	sopts.Tolerant = tolerant

	return a.pipe.Summarize(ctx, events, sopts)
}

func (a *app) summarize(ctx context.Context, w io.Writer, path string, opts summarizeOptions) error {
	if !report.ValidFormat(opts.format) {
		return fmt.Errorf("%w: %q (available: %v)", report.ErrUnknownFormat, opts.format, report.Formats)
	}

	rep, err := a.summaryReport(ctx, path, opts.tolerant)
	if err != nil {
		return err
	}

	return report.Render(w, rep, opts.format, report.Options{
		Title:   opts.title,
		NoColor: a.colorDisabled(),
		History: opts.history,
	})
}
