package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fileseer/fileseer/internal/mcp"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Run the Model Context Protocol server on stdio. Explorer frontends
and AI clients connect here to drive indexing and search. Logs go to
the log file only; stdout carries the JSON-RPC stream.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			svc, err := openService(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			srv, err := mcp.NewServer(svc, slog.Default())
			if err != nil {
				return err
			}
			return srv.Serve(ctx)
		},
	}
}
