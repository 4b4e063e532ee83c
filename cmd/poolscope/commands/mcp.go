package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/poolscope/pkg/mcp"
	"github.com/Sumatoshi-tech/poolscope/pkg/observability"
)

func newMCPCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

Tools:
  - poolscope_summarize: summary of an allocation log
  - poolscope_replay: C replay program for an allocation log
  - poolscope_targets: list replay targets`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, observability.ModeMCP, func(ctx context.Context) error {
				toolMetrics, err := observability.NewToolMetrics(a.providers.Meter)
				if err != nil {
					return err
				}

				opts, err := a.cfg.SummaryOptions()
				if err != nil {
					return err
				}

				srv := mcp.NewServer(mcp.ServerDeps{
					Logger:         a.providers.Logger,
					Metrics:        toolMetrics,
					RunMetrics:     a.metrics,
					Tracer:         a.providers.Tracer,
					SummaryOptions: opts,
				})

				return srv.Run(ctx)
			})
		},
	}
}
