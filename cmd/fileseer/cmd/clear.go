package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fileseer/fileseer/internal/output"
)

func newClearCmd() *cobra.Command {
	var filenames bool
	var all bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the index",
		Long: `Empty the vector tables and file records. Pass --filenames to drop
only the filename index instead, or --all to drop everything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := output.New(cmd.OutOrStdout())

			svc, err := openService(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			switch {
			case all:
				if err := svc.ClearAll(ctx); err != nil {
					return err
				}
				out.Successf("Cleared vectors, file records, and file names")
			case filenames:
				if err := svc.ClearFilenameIndex(); err != nil {
					return err
				}
				out.Successf("Cleared file names")
			default:
				if err := svc.ClearIndex(ctx); err != nil {
					return err
				}
				out.Successf("Cleared vectors and file records")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&filenames, "filenames", false, "Clear only the filename index")
	cmd.Flags().BoolVar(&all, "all", false, "Clear every store")
	return cmd
}
