package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angus-g/cosima-cookbook/internal/access"
	"github.com/angus-g/cosima-cookbook/internal/catalog"
	"github.com/angus-g/cosima-cookbook/internal/cerr"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <experiment>",
		Short: "Show catalog statistics for an experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := catalog.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			return store.View(cmd.Context(), func(tx *catalog.Tx) error {
				expt, err := tx.FindExperimentByName(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if expt == nil {
					return cerr.Newf(cerr.CodeNoExperiment, "no such experiment: %s", args[0])
				}

				stats, err := tx.ExperimentStats(cmd.Context(), expt.ID)
				if err != nil {
					return err
				}

				keywords, err := tx.ExperimentKeywords(cmd.Context(), expt.ID)
				if err != nil {
					return err
				}

				fmt.Printf("Experiment: %s\n", expt.Name)
				fmt.Printf("Root:       %s\n", expt.RootDir)
				if len(keywords) > 0 {
					fmt.Printf("Keywords:   %v\n", keywords)
				}
				fmt.Printf("Files:      %d (%d present)\n", stats.Files, stats.PresentFiles)
				fmt.Printf("Variables:  %d instances of %d definitions\n",
					stats.VariableInstances, stats.VariableDefinitions)

				// access counts come from the registered access log, when
				// the catalog names one
				alog, err := access.ForStore(cmd.Context(), store)
				if err != nil {
					return err
				}
				defer alog.Close()
				if alog != nil {
					files, err := tx.ListFiles(cmd.Context(), expt.ID)
					if err != nil {
						return err
					}
					ids := make([]int64, len(files))
					for i, f := range files {
						ids[i] = f.ID
					}
					accesses, err := alog.CountForFiles(cmd.Context(), ids)
					if err != nil {
						return err
					}
					fmt.Printf("Accesses:   %d\n", accesses)
				}
				return nil
			})
		},
	}
}
