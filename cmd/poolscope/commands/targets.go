package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/poolscope/pkg/replay"
)

func newTargetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List replay targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tbl := table.NewWriter()
			tbl.SetStyle(table.StyleLight)
			tbl.AppendHeader(table.Row{"Target", "Pool type"})

			for _, name := range replay.Targets() {
				target, err := replay.Lookup(name)
				if err != nil {
					return err
				}

				tbl.AppendRow(table.Row{target.Name(), target.PoolType()})
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(), tbl.Render())

			return err
		},
	}
}
