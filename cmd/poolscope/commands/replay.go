package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/poolscope/pkg/observability"
	"github.com/Sumatoshi-tech/poolscope/pkg/replay"
)

// Replay flag names.
const (
	flagTarget     = "target"
	flagIterations = "iterations"
	flagOutput     = "output"
)

// ErrInvalidIterations is returned for a non-positive --iterations.
var ErrInvalidIterations = errors.New("iterations must be positive")

func newReplayCommand(a *app) *cobra.Command {
	var (
		target     string
		iterations int
		output     string
	)

	cmd := &cobra.Command{
		Use:   "replay [file]",
		Short: "Generate a C benchmark that replays an allocation log",
		Long: `Generate a C program that repeats the pool calls of an allocation log
against a native pool allocator. Allocations on pools that are not live are
emitted as "// BOGUS:" comments. Destroys of dead pools are skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, observability.ModeCLI, func(ctx context.Context) error {
				if !cmd.Flags().Changed(flagTarget) {
					target = a.cfg.Replay.Target
				}

				if !cmd.Flags().Changed(flagIterations) {
					iterations = a.cfg.Replay.Iterations
				}

				if iterations <= 0 {
					return fmt.Errorf("%w: %d", ErrInvalidIterations, iterations)
				}

				if output == "" {
					return a.replay(ctx, cmd.OutOrStdout(), a.logFile(args), target, iterations)
				}

				return a.replayToFile(ctx, output, a.logFile(args), target, iterations)
			})
		},
	}

	cmd.Flags().StringVarP(&target, flagTarget, "t", replay.APR.Name(),
		fmt.Sprintf("pool API to emit: %v", replay.Targets()))
	cmd.Flags().IntVarP(&iterations, flagIterations, "n", replay.DefaultIterations, "benchmark loop count")
	cmd.Flags().StringVarP(&output, flagOutput, "o", "", "write the program to this file instead of stdout")

	return cmd
}

func (a *app) replay(ctx context.Context, w io.Writer, path, targetName string, iterations int) error {
	target, err := replay.Lookup(targetName)
	if err != nil {
		return err
	}

	events, err := a.pipe.Load(ctx, path)
	if err != nil {
		return err
	}

	_, err = a.pipe.Replay(ctx, w, events, target, replay.Options{Iterations: iterations})

	return err
}

func (a *app) replayToFile(ctx context.Context, output, path, targetName string, iterations int) (err error) {
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}

	defer func() {
		err = errors.Join(err, f.Close())
	}()

	return a.replay(ctx, f, path, targetName, iterations)
}
