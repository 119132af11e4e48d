package cmd

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/angus-g/cosima-cookbook/internal/catalog"
	"github.com/angus-g/cosima-cookbook/internal/config"
	"github.com/angus-g/cosima-cookbook/internal/dataset"
	"github.com/angus-g/cosima-cookbook/internal/index"
)

func newIndexCmd(cfg *config.Config) *cobra.Command {
	var (
		update         bool
		noPrune        bool
		keep           bool
		followSymlinks bool
		jobs           int
		driver         string
		pattern        string
	)

	cmd := &cobra.Command{
		Use:   "index <directory>...",
		Short: "Index experiment directories into the catalog",
		Long: `Index all dataset files contained within the given experiment
directories. Each directory is one experiment; its reconciliation commits
independently before the next begins.

Files already in the catalog are skipped unless --update is given. Files
in the catalog but missing on disk are deleted, or retained but marked
not-present with --keep; --no-prune leaves them untouched.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opener, err := dataset.Lookup(driver)
			if err != nil {
				return err
			}

			store, err := catalog.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			indexer, err := index.NewIndexer(opener)
			if err != nil {
				return err
			}

			var runner index.Runner
			if jobs > 1 {
				runner = &index.PoolRunner{Workers: jobs}
			} else {
				seq := &index.SequentialRunner{}
				if isatty.IsTerminal(os.Stdout.Fd()) {
					seq.Progress = func(done, total int) {
						fmt.Printf("\rindexing %d/%d", done, total)
						if done == total {
							fmt.Println()
						}
					}
				}
				runner = seq
			}

			builder := index.NewBuilder(store, indexer, runner)
			builder.Synchronizer().Logf = func(format string, a ...any) {
				fmt.Printf(format+"\n", a...)
			}

			indexed, err := builder.BuildIndex(cmd.Context(), args, index.Options{
				Update:         update,
				Prune:          !noPrune,
				Delete:         !keep,
				FollowSymlinks: followSymlinks,
				Pattern:        pattern,
			})
			if err != nil {
				return fmt.Errorf("indexed %d files before failure: %w", indexed, err)
			}

			fmt.Printf("Indexed %d new files\n", indexed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&update, "update", false, "re-index experiments already in the catalog")
	cmd.Flags().BoolVar(&noPrune, "no-prune", false, "leave stale catalog entries untouched")
	cmd.Flags().BoolVar(&keep, "keep", false, "mark stale entries not-present instead of deleting them")
	cmd.Flags().BoolVar(&followSymlinks, "follow-symlinks", cfg.Index.FollowSymlinks,
		"follow symbolic links during discovery")
	defaultJobs := cfg.Index.Jobs
	if defaultJobs < 1 {
		defaultJobs = 1
	}
	cmd.Flags().IntVar(&jobs, "jobs", defaultJobs, "number of parallel extraction workers")
	cmd.Flags().StringVar(&driver, "driver", cfg.Index.Driver, "registered dataset reader to use")
	cmd.Flags().StringVar(&pattern, "pattern", cfg.Index.Pattern, "file-name glob matched during discovery")

	return cmd
}
