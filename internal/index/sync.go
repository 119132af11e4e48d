package index

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"

	"github.com/angus-g/cosima-cookbook/internal/catalog"
	"github.com/angus-g/cosima-cookbook/internal/discover"
)

// Options are the orthogonal reconciliation flags.
type Options struct {
	// Update re-indexes experiments (and files) already in the catalog.
	// Without it, an already-indexed experiment is a no-op.
	Update bool

	// Prune enables the stale-file policy: files in the catalog but no
	// longer on disk are deleted (Delete=true) or marked not-present
	// (Delete=false). With Prune=false stale files are left untouched.
	Prune  bool
	Delete bool

	// FollowSymlinks descends into symlinked directories during discovery.
	FollowSymlinks bool

	// Pattern is the discovery file-name glob (default: *.nc).
	Pattern string
}

// Synchronizer reconciles one experiment directory against the catalog:
// new files are indexed, unchanged files skipped (or re-indexed under
// Update), stale files pruned per policy. The merge phase is serial and
// guarded by a cross-process file lock, since the canonical variable and
// keyword tables are the only mutable state shared between experiments.
type Synchronizer struct {
	store   *catalog.Store
	indexer *Indexer
	runner  Runner

	// Logf emits user-visible progress messages. Defaults to slog.
	Logf func(format string, args ...any)
}

// NewSynchronizer creates a synchronizer. runner may be nil, in which case
// files are indexed sequentially.
func NewSynchronizer(store *catalog.Store, indexer *Indexer, runner Runner) *Synchronizer {
	if runner == nil {
		runner = &SequentialRunner{}
	}
	return &Synchronizer{
		store:   store,
		indexer: indexer,
		runner:  runner,
		Logf: func(format string, args ...any) {
			slog.Info(fmt.Sprintf(format, args...))
		},
	}
}

// lockPath is the single-writer lock guarding the merge phase, shared by
// all processes writing to the same catalog.
func (s *Synchronizer) lockPath() string {
	return s.store.Path() + ".lock"
}

// SyncExperiment indexes all output files for a single experiment
// directory and commits the reconciled result as one transaction. It
// returns the number of newly indexed files.
func (s *Synchronizer) SyncExperiment(ctx context.Context, dir string, opts Options) (int, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, err
	}
	name := filepath.Base(absDir)

	// Discover before locking; only the catalog diff and merge need the
	// single-writer guard.
	found, err := discover.Find(ctx, absDir, discover.Options{
		Pattern:        opts.Pattern,
		FollowSymlinks: opts.FollowSymlinks,
	})
	if err != nil {
		return 0, err
	}

	lock := flock.New(s.lockPath())
	if err := lock.Lock(); err != nil {
		return 0, fmt.Errorf("acquire catalog lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	expt, err := tx.GetExperiment(ctx, name, absDir)
	if err != nil {
		return 0, err
	}
	if expt != nil && !opts.Update {
		s.Logf("Not re-indexing experiment: %s\nPass --update to build_index", name)
		return 0, nil
	}

	s.Logf("Indexing experiment: %s", name)

	desc := ReadDescriptor(absDir)
	if expt == nil {
		expt = &catalog.Experiment{Name: name, RootDir: absDir}
		desc.Apply(expt)
		if err := tx.CreateExperiment(ctx, expt); err != nil {
			return 0, err
		}
	} else {
		desc.Apply(expt)
		if err := tx.UpdateExperimentMetadata(ctx, expt); err != nil {
			return 0, err
		}
	}

	interner := catalog.NewInterner(tx)

	// The descriptor's keyword list replaces the experiment's keyword set
	// with canonical, case-folded references.
	if desc != nil && len(desc.Keywords) > 0 {
		var keywordIDs []int64
		for _, word := range desc.Keywords {
			id, err := interner.InternKeyword(ctx, word)
			if err != nil {
				return 0, err
			}
			keywordIDs = append(keywordIDs, id)
		}
		if err := tx.ReplaceKeywords(ctx, expt.ID, keywordIDs); err != nil {
			return 0, err
		}
	}

	existing, err := tx.ListFiles(ctx, expt.ID)
	if err != nil {
		return 0, err
	}

	onDisk := make(map[string]bool, len(found.Files))
	for _, f := range found.Files {
		onDisk[f] = true
	}
	existingByPath := make(map[string]*catalog.File, len(existing))

	// Classify catalog files: unchanged (skip, or re-index under Update)
	// or stale (apply prune policy).
	var reindex []string
	for _, f := range existing {
		existingByPath[f.Path] = f
		if onDisk[f.Path] {
			if opts.Update {
				reindex = append(reindex, f.Path)
			}
			continue
		}
		if !opts.Prune {
			continue
		}
		if opts.Delete {
			if err := tx.DeleteFile(ctx, f.ID); err != nil {
				return 0, err
			}
		} else if f.Present {
			if err := tx.SetFilePresent(ctx, f.ID, false); err != nil {
				return 0, err
			}
		}
	}

	// Files on disk but not in the catalog are new.
	var newPaths []string
	for _, f := range found.Files {
		if _, ok := existingByPath[f]; !ok {
			newPaths = append(newPaths, f)
		}
	}
	sort.Strings(newPaths)

	paths := append(newPaths, reindex...)
	results := s.runner.Run(ctx, paths, func(ctx context.Context, relPath string) *catalog.File {
		return s.indexer.IndexFile(ctx, relPath, expt)
	})
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// Serial merge: canonicalize shared sub-records and persist. All
	// parallel results are in hand before the first intern lookup.
	newCount := 0
	for _, file := range results {
		for _, vi := range file.Variables {
			id, err := interner.InternVariable(ctx, vi.Definition)
			if err != nil {
				return 0, err
			}
			vi.DefinitionID = id
		}

		if prev, ok := existingByPath[file.Path]; ok {
			file.ID = prev.ID
			file.ExperimentID = expt.ID
			if err := tx.UpdateFile(ctx, file); err != nil {
				return 0, err
			}
			if err := tx.DeleteFileVariables(ctx, file.ID); err != nil {
				return 0, err
			}
		} else {
			file.ExperimentID = expt.ID
			if err := tx.InsertFile(ctx, file); err != nil {
				return 0, err
			}
			newCount++
		}

		for _, vi := range file.Variables {
			vi.FileID = file.ID
			if err := tx.InsertVariableInstance(ctx, vi); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newCount, nil
}
