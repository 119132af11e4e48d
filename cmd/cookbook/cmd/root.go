// Package cmd provides the CLI commands for the cookbook catalog tool.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/angus-g/cosima-cookbook/internal/catalog"
	"github.com/angus-g/cosima-cookbook/internal/config"
	"github.com/angus-g/cosima-cookbook/internal/logging"
	"github.com/angus-g/cosima-cookbook/pkg/version"
)

var (
	dbPath    string
	debugMode bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the cookbook CLI. Flag defaults
// come from the user configuration (file plus environment); flags given on
// the command line win.
func NewRootCmd() *cobra.Command {
	cfg, cfgErr := config.Load()
	if cfg == nil {
		cfg = config.NewConfig()
	}

	cmd := &cobra.Command{
		Use:   "cookbook",
		Short: "Catalog of array-oriented experiment output",
		Long: `cookbook maintains a searchable catalog of metadata describing
experiment output directories: per-file time coverage, sampling frequency,
and the schema of every variable, persisted into SQLite so downstream
tools can query it without re-opening the raw files.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgErr != nil {
				return cfgErr
			}

			logCfg := logging.DefaultConfig()
			logCfg.Level = cfg.Logging.Level
			if cfg.Logging.File != "" {
				logCfg.FilePath = cfg.Logging.File
			}
			logCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
			logCfg.MaxFiles = cfg.Logging.MaxFiles
			if debugMode {
				logCfg.Level = "debug"
			}
			logCfg.WriteToStderr = debugMode

			cleanup, err := logging.SetupDefault(logCfg)
			if err != nil {
				return fmt.Errorf("set up logging: %w", err)
			}
			loggingCleanup = cleanup
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if loggingCleanup != nil {
				loggingCleanup()
			}
		},
	}
	cmd.SetVersionTemplate(version.String() + "\n")

	defaultDB := cfg.Database
	if defaultDB == "" {
		defaultDB = catalog.DefaultDBPath()
	}
	cmd.PersistentFlags().StringVar(&dbPath, "database", defaultDB,
		"path to the catalog database")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging to stderr")

	cmd.AddCommand(newIndexCmd(cfg))
	cmd.AddCommand(newPruneCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newStatsCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cookbook: %v\n", err)
		return err
	}
	return nil
}
