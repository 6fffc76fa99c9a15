package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fileseer/fileseer/internal/output"
	"github.com/fileseer/fileseer/internal/search"
)

type searchFlags struct {
	mode        string
	limit       int
	minScore    float64
	maxDistance int
	categories  []string
	crossModal  bool
	format      string
}

func newSearchCmd() *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed files",
		Long: `Search indexed files by content meaning, approximate file name, or
both blended.

Examples:
  fileseer search "notes from the berlin trip"
  fileseer search --mode filename "raedme"
  fileseer search --mode semantic --cross-modal "red bicycle"
  fileseer search "budget" --category document --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.New(cmd.OutOrStdout())
			query := strings.Join(args, " ")

			svc, err := openService(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			resp, err := svc.Search(ctx, query, search.Mode(flags.mode), search.Options{
				Limit:       flags.limit,
				MinScore:    flags.minScore,
				MaxDistance: flags.maxDistance,
				Categories:  flags.categories,
				CrossModal:  flags.crossModal,
			})
			if err != nil {
				return err
			}

			if flags.format == "json" {
				return out.JSON(resp)
			}

			if len(resp.Results) == 0 {
				out.Dimf("No results for %q", query)
				return nil
			}

			out.Headerf("%d results for %q  (%s, %s)",
				len(resp.Results), query, resp.Mode, resp.Elapsed.Round(timeRounding))
			for i, r := range resp.Results {
				out.Result(i+1, r.Path, r.Score, resultDetail(r))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.mode, "mode", "m", string(search.ModeCombined), "Search mode: semantic, filename, combined")
	cmd.Flags().IntVarP(&flags.limit, "limit", "n", 0, "Maximum number of results (0 uses the configured default)")
	cmd.Flags().Float64Var(&flags.minScore, "min-score", 0, "Minimum semantic score; negative disables the floor")
	cmd.Flags().IntVar(&flags.maxDistance, "max-distance", -1, "Maximum edit distance for filename matches (-1 uses the configured default)")
	cmd.Flags().StringSliceVarP(&flags.categories, "category", "c", nil, "Restrict filename matches to categories (repeatable)")
	cmd.Flags().BoolVar(&flags.crossModal, "cross-modal", false, "Also match images against text queries")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func resultDetail(r search.Result) string {
	parts := []string{string(r.Modality)}
	if r.Category != "" {
		parts = append(parts, r.Category)
	}
	if r.Modality == search.ModalityFilename {
		parts = append(parts, fmt.Sprintf("distance %d", r.Distance))
	}
	if r.Size > 0 {
		parts = append(parts, formatSize(r.Size))
	}
	return strings.Join(parts, ", ")
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
