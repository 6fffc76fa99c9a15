package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fileseer/fileseer/internal/output"
	"github.com/fileseer/fileseer/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version and build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			if format == "json" {
				return out.JSON(version.GetInfo())
			}
			out.Linef("%s", version.String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
