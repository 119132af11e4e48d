package cmd

import (
	"github.com/spf13/cobra"

	"github.com/angus-g/cosima-cookbook/internal/catalog"
	"github.com/angus-g/cosima-cookbook/internal/index"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <experiment>",
		Short: "Delete an experiment from the catalog",
		Long: `Completely delete an experiment from the catalog: the experiment
entry, all of its files, and their variable instances. Canonical variable
definitions and keywords shared with other experiments are kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := catalog.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			builder := index.NewBuilder(store, nil, nil)
			return builder.DeleteExperiment(cmd.Context(), args[0])
		},
	}
}
