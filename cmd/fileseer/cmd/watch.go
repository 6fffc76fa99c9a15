package cmd

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fileseer/fileseer/internal/output"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <path>",
		Short: "Keep the index in sync with a directory",
		Long: `Reconcile the index against the directory, then watch it for
changes. Created and modified files are re-indexed after a debounce
window; deletions are removed from every index. Runs until
interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.New(cmd.OutOrStdout())

			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			svc, err := openService(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			out.Successf("Watching %s  (ctrl-c to stop)", path)
			err = svc.Watch(ctx, path)
			if errors.Is(err, context.Canceled) {
				out.Dimf("Stopped.")
				return nil
			}
			return err
		},
	}
}
