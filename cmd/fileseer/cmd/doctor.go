package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fileseer/fileseer/internal/output"
	"github.com/fileseer/fileseer/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that this machine can run fileseer",
		Long: `Run environment checks: data directory access, instance lock, free
disk space, file descriptor limits, and embedding provider
reachability. Exits non-zero when a required check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			checker := preflight.NewChecker(cfg)
			results := checker.RunAll(cmd.Context())

			if format == "json" {
				payload := map[string]any{
					"status": preflight.Summary(results),
					"checks": results,
				}
				if err := out.JSON(payload); err != nil {
					return err
				}
			} else {
				printDoctorResults(out, results)
			}

			if preflight.HasCriticalFailures(results) {
				return fmt.Errorf("environment check failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func printDoctorResults(out *output.Writer, results []preflight.Result) {
	out.Headerf("fileseer environment check")
	for _, r := range results {
		line := fmt.Sprintf("%s: %s", r.Name, r.Message)
		switch r.Status {
		case preflight.StatusPass:
			out.Successf("[PASS] %s", line)
		case preflight.StatusWarn:
			out.Warningf("[WARN] %s", line)
		default:
			out.Errorf("[FAIL] %s", line)
		}
		if r.Detail != "" {
			out.Dimf("       %s", r.Detail)
		}
	}
	out.Newline()
	out.Linef("Status: %s", preflight.Summary(results))
}
