package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/poolscope/pkg/report"
)

const flagValidate = "validate"

func newSchemaCommand() *cobra.Command {
	var validate string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the json summary format",
		Long: `Print the JSON schema of the json summary format, or check a json
summary against it with --validate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			if validate == "" {
				_, err := out.Write(report.Schema())

				return err
			}

			data, err := os.ReadFile(validate)
			if err != nil {
				return fmt.Errorf("read %s: %w", validate, err)
			}

			err = report.ValidateJSON(data)
			if err != nil {
				return err
			}

			_, err = color.New(color.FgGreen).Fprintf(out, "%s is a valid summary\n", validate)

			return err
		},
	}

	cmd.Flags().StringVar(&validate, flagValidate, "", "validate this json summary instead of printing the schema")

	return cmd
}
