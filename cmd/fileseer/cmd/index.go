package cmd

import (
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/fileseer/fileseer/internal/index"
	"github.com/fileseer/fileseer/internal/output"
)

func newIndexCmd() *cobra.Command {
	var namesOnly bool
	var format string

	cmd := &cobra.Command{
		Use:   "index <path>",
		Short: "Index a directory tree",
		Long: `Index every supported file under a directory: text and PDFs are
chunked and embedded, images are embedded whole, and every file name
goes into the fuzzy filename index. Unchanged files are skipped, so
re-running is cheap.

With --names-only the walk registers file names without reading any
content, which is much faster and covers files of every type.`,
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

			if namesOnly {
				added, errs := svc.ScanDirectoryForFilenames(ctx, path)
				for _, e := range errs {
					out.Warningf("%s", e)
				}
				if format == "json" {
					return out.JSON(map[string]any{"added": added, "errors": errs})
				}
				out.Successf("Registered %d file names from %s", added, path)
				return nil
			}

			stats, err := svc.IndexFolder(ctx, path)
			if err != nil {
				return err
			}
			if format == "json" {
				return out.JSON(stats)
			}
			printIndexStats(out, stats)
			return nil
		},
	}

	cmd.Flags().BoolVar(&namesOnly, "names-only", false, "Register file names without extracting or embedding content")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func printIndexStats(out *output.Writer, stats index.IndexingStats) {
	out.Headerf("Indexing complete in %s", stats.Elapsed.Round(timeRounding))
	out.KV("Processed", stats.Processed)
	out.KV("Indexed", stats.Indexed)
	out.KV("Skipped", stats.Skipped)
	out.KV("Failed", stats.Failed)
	if stats.Deleted > 0 {
		out.KV("Deleted", stats.Deleted)
	}
	out.KV("Chunks", stats.Chunks)

	if len(stats.ByCategory) > 0 {
		out.Newline()
		out.Headerf("By category")
		for _, cat := range sortedKeys(stats.ByCategory) {
			out.KV(cat, stats.ByCategory[cat])
		}
	}

	if len(stats.IndexedFiles) > 0 {
		out.Newline()
		out.Headerf("Indexed files")
		for _, p := range stats.IndexedFiles {
			out.Dimf("  %s", p)
		}
		if stats.Indexed > len(stats.IndexedFiles) {
			out.Dimf("  ... and %d more", stats.Indexed-len(stats.IndexedFiles))
		}
	}

	if len(stats.FailedFiles) > 0 {
		out.Newline()
		out.Warningf("%d files failed:", len(stats.FailedFiles))
		for _, f := range stats.FailedFiles {
			out.Dimf("  %s: %s", f.Path, f.Reason)
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
