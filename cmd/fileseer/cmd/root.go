// Package cmd implements the fileseer CLI commands.
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fileseer/fileseer/internal/config"
	"github.com/fileseer/fileseer/internal/logging"
	"github.com/fileseer/fileseer/internal/service"
	"github.com/fileseer/fileseer/pkg/version"
)

var (
	flagDataDir string
	flagDebug   bool

	logCleanup func()
)

// Execute runs the root command with signal-aware cancellation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd creates the fileseer root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fileseer",
		Short: "Local-first semantic and fuzzy search over your files",
		Long: `fileseer keeps a live search index of your directories: file content
is extracted, chunked, and embedded for semantic queries, and file
names feed a fuzzy index that forgives typos.

Index a folder once, then watch it to keep the index in sync:

  fileseer index ~/Documents
  fileseer watch ~/Documents
  fileseer search "tax report from last spring"
  fileseer search --mode filename "raedme"`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("fileseer version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Override the index data directory")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")

	cmd.PersistentPreRun = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if logCleanup != nil {
			logCleanup()
			logCleanup = nil
		}
	}

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging routes logs to the rotating file. Serve mode never
// echoes to stderr since stdout carries JSON-RPC; other commands echo
// only under --debug. A failed setup falls back to the default logger
// rather than blocking the command.
func setupLogging(cmd *cobra.Command, _ []string) {
	level := "info"
	if flagDebug {
		level = "debug"
	}

	if cmd.Name() == "serve" {
		if cleanup, err := logging.SetupServeMode(level); err == nil {
			logCleanup = cleanup
		}
		return
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = level
	logCfg.WriteToStderr = flagDebug
	if logger, cleanup, err := logging.Setup(logCfg); err == nil {
		slog.SetDefault(logger)
		logCleanup = cleanup
	}
}

// loadConfig resolves configuration for the working directory and
// applies CLI overrides.
func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, err
	}
	if flagDataDir != "" {
		cfg.Paths.DataDir = flagDataDir
	}
	return cfg, nil
}

// openService builds the full service stack for one command invocation.
func openService(ctx context.Context) (*service.Service, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return service.Open(ctx, cfg, slog.Default())
}
