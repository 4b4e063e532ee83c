package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/poolscope/pkg/observability"
	"github.com/Sumatoshi-tech/poolscope/pkg/replay"
)

// Legacy root flag names.
const (
	flagProgram = "program"
	flagPoCore  = "pocore"
)

// NewRootCommand creates the poolscope root command with every subcommand
// attached.
func NewRootCommand() *cobra.Command {
	a := &app{}

	var program, pocore bool

	cmd := &cobra.Command{
		Use:   "poolscope [file]",
		Short: "Summarize and replay pool allocation logs",
		Long: `poolscope reads a pool allocation log (create/alloc/clear/destroy lines)
and either summarizes it or turns it into a C benchmark program.

Without flags the root command prints the text summary of the log.
  --program  replay the log against the apr pool API
  --pocore   replay the log against the pocore pool API`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, observability.ModeCLI, func(ctx context.Context) error {
				path := a.logFile(args)

				switch {
				case pocore:
					return a.replay(ctx, cmd.OutOrStdout(), path, replay.PoCore.Name(), a.cfg.Replay.Iterations)
				case program:
					return a.replay(ctx, cmd.OutOrStdout(), path, replay.APR.Name(), a.cfg.Replay.Iterations)
				default:
					return a.summarize(ctx, cmd.OutOrStdout(), path, summarizeOptions{
						format:   a.cfg.Summary.Format,
						tolerant: a.cfg.Summary.Tolerant,
					})
				}
			})
		},
	}

	a.bindGlobalFlags(cmd)

	cmd.Flags().BoolVar(&program, flagProgram, false, "emit an apr replay program instead of a summary")
	cmd.Flags().BoolVar(&pocore, flagPoCore, false, "emit a pocore replay program instead of a summary")
	cmd.MarkFlagsMutuallyExclusive(flagProgram, flagPoCore)

	cmd.AddCommand(
		newSummaryCommand(a),
		newReplayCommand(a),
		newCompareCommand(a),
		newTargetsCommand(),
		newSchemaCommand(),
		newMCPCommand(a),
		newVersionCommand(),
	)

	return cmd
}
