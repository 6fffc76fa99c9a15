package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/fileseer/fileseer/internal/index"
	"github.com/fileseer/fileseer/internal/output"
)

// timeRounding keeps elapsed durations readable in CLI output.
const timeRounding = 10 * time.Millisecond

type statsReport struct {
	Index     index.IndexingStats `json:"index"`
	TextRows  int                 `json:"text_rows"`
	ImageRows int                 `json:"image_rows"`
	TotalRows int                 `json:"total_rows"`
	Filenames int                 `json:"filenames"`
}

func newStatsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := output.New(cmd.OutOrStdout())

			svc, err := openService(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			report := statsReport{Index: svc.Stats(), Filenames: svc.FilenameCount()}
			report.TextRows, report.ImageRows, report.TotalRows = svc.VectorDBStats()

			if format == "json" {
				return out.JSON(report)
			}

			out.Headerf("Vector store")
			out.KV("Text rows", report.TextRows)
			out.KV("Image rows", report.ImageRows)
			out.KV("Total rows", report.TotalRows)
			out.KV("File names", report.Filenames)

			if report.Index.Processed > 0 || report.Index.Running {
				out.Newline()
				if report.Index.Running {
					out.Headerf("Indexing (running)")
				} else {
					out.Headerf("Last indexing run")
				}
				printIndexStats(out, report.Index)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
