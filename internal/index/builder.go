package index

import (
	"context"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/angus-g/cosima-cookbook/internal/catalog"
	"github.com/angus-g/cosima-cookbook/internal/cerr"
)

// Builder is the top-level entry point consumed by callers: it indexes
// experiment directories and applies prune/delete policy to existing
// experiments.
type Builder struct {
	store *catalog.Store
	sync  *Synchronizer
}

// NewBuilder wires a builder from a store, an indexer, and an optional
// runner (nil runs extraction sequentially).
func NewBuilder(store *catalog.Store, indexer *Indexer, runner Runner) *Builder {
	return &Builder{
		store: store,
		sync:  NewSynchronizer(store, indexer, runner),
	}
}

// Synchronizer exposes the underlying synchronizer, e.g. to replace its
// user-message sink.
func (b *Builder) Synchronizer() *Synchronizer { return b.sync }

// BuildIndex indexes all dataset files within the given experiment
// directories and returns the number of newly indexed files.
//
// Experiments are processed one at a time and each commits independently:
// a failure partway through a multi-experiment batch leaves earlier
// experiments committed, and is reported alongside the count indexed so
// far.
func (b *Builder) BuildIndex(ctx context.Context, directories []string, opts Options) (int, error) {
	indexed := 0
	for _, dir := range directories {
		n, err := b.sync.SyncExperiment(ctx, dir, opts)
		indexed += n
		if err != nil {
			return indexed, err
		}
	}
	return indexed, nil
}

// PruneExperiment deletes (or marks as not present) the catalog entries
// for files within the experiment that no longer exist on disk or were
// broken at index time.
func (b *Builder) PruneExperiment(ctx context.Context, experiment string, del bool) error {
	lock := flock.New(b.store.Path() + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	tx, err := b.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	expt, err := tx.FindExperimentByName(ctx, experiment)
	if err != nil {
		return err
	}
	if expt == nil {
		return cerr.Newf(cerr.CodeNoExperiment, "no such experiment: %s", experiment)
	}

	files, err := tx.ListFiles(ctx, expt.ID)
	if err != nil {
		return err
	}

	for _, f := range files {
		if _, statErr := os.Stat(filepath.Join(expt.RootDir, f.Path)); statErr == nil && f.Present {
			continue
		}
		if del {
			if err := tx.DeleteFile(ctx, f.ID); err != nil {
				return err
			}
		} else if f.Present {
			if err := tx.SetFilePresent(ctx, f.ID, false); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// DeleteExperiment completely removes an experiment from the catalog:
// the experiment row, its files, and their variable instances. Canonical
// variable definitions and keywords shared with other experiments are left
// intact.
func (b *Builder) DeleteExperiment(ctx context.Context, experiment string) error {
	lock := flock.New(b.store.Path() + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	tx, err := b.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	expt, err := tx.FindExperimentByName(ctx, experiment)
	if err != nil {
		return err
	}
	if expt == nil {
		return cerr.Newf(cerr.CodeNoExperiment, "no such experiment: %s", experiment)
	}

	if err := tx.DeleteExperiment(ctx, expt.ID); err != nil {
		return err
	}
	return tx.Commit()
}
