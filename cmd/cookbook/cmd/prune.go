package cmd

import (
	"github.com/spf13/cobra"

	"github.com/angus-g/cosima-cookbook/internal/catalog"
	"github.com/angus-g/cosima-cookbook/internal/index"
)

func newPruneCmd() *cobra.Command {
	var keep bool

	cmd := &cobra.Command{
		Use:   "prune <experiment>",
		Short: "Prune missing or broken files from an experiment",
		Long: `Delete the catalog entries for files within the experiment that no
longer exist on disk or were broken at index time. With --keep the entries
are retained but marked not-present.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := catalog.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			builder := index.NewBuilder(store, nil, nil)
			return builder.PruneExperiment(cmd.Context(), args[0], !keep)
		},
	}

	cmd.Flags().BoolVar(&keep, "keep", false, "mark files not-present instead of deleting them")

	return cmd
}
