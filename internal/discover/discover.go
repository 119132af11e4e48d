// Package discover finds dataset files under an experiment root.
//
// Discovery degrades gracefully: unreadable subtrees are collected as
// warnings on the result and the walk continues with whatever was
// reachable. Paths are returned relative to the root, since the relative
// path is the stable identity of a file within an experiment.
package discover

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/angus-g/cosima-cookbook/internal/cerr"
)

// DefaultPattern matches netCDF output files.
const DefaultPattern = "*.nc"

// Options controls a discovery walk.
type Options struct {
	// Pattern is the file-name glob to match (default: *.nc).
	Pattern string

	// FollowSymlinks descends into symlinked directories and accepts
	// symlinked files. Cycles are broken on resolved paths.
	FollowSymlinks bool
}

// Warning records a path that could not be read during the walk.
type Warning struct {
	Path string
	Err  error
}

// Result holds the outcome of one discovery walk.
type Result struct {
	// Files are matched paths relative to the root, unordered.
	Files []string

	// Warnings are the unreadable paths that were skipped.
	Warnings []Warning
}

// Find walks the tree below root and collects files matching the pattern.
// It returns an error only if the root itself is unusable; partial
// filesystem failures become warnings on the result.
func Find(ctx context.Context, root string, opts Options) (*Result, error) {
	pattern := opts.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeDiscovery, err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeDiscovery, err)
	}
	if !info.IsDir() {
		return nil, cerr.Newf(cerr.CodeDiscovery, "root path is not a directory: %s", absRoot)
	}

	w := &walker{
		pattern: pattern,
		follow:  opts.FollowSymlinks,
		result:  &Result{},
		visited: make(map[string]bool),
	}

	if err := w.walk(ctx, absRoot, ""); err != nil {
		return nil, err
	}

	for _, warn := range w.result.Warnings {
		slog.Warn("skipped unreadable path during discovery",
			slog.String("path", warn.Path),
			slog.String("error", warn.Err.Error()))
	}

	return w.result, nil
}

type walker struct {
	pattern string
	follow  bool
	result  *Result

	// visited guards against symlink cycles, keyed by resolved directory.
	visited map[string]bool
}

// walk traverses the directory at dir; rel is dir's path relative to the
// experiment root ("" for the root itself).
func (w *walker) walk(ctx context.Context, dir, rel string) error {
	if w.follow {
		resolved, err := filepath.EvalSymlinks(dir)
		if err != nil {
			w.warn(dir, err)
			return nil
		}
		if w.visited[resolved] {
			return nil
		}
		w.visited[resolved] = true
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			w.warn(path, err)
			return nil
		}

		relPath, rerr := filepath.Rel(dir, path)
		if rerr != nil {
			w.warn(path, rerr)
			return nil
		}
		if rel != "" {
			relPath = filepath.Join(rel, relPath)
		}

		if d.IsDir() {
			return nil
		}

		// Symlinks: descend into directories, match files, when enabled.
		if d.Type()&fs.ModeSymlink != 0 {
			if !w.follow {
				return nil
			}
			target, serr := os.Stat(path)
			if serr != nil {
				w.warn(path, serr)
				return nil
			}
			if target.IsDir() {
				return w.walk(ctx, path, relPath)
			}
		}

		if matched, merr := filepath.Match(w.pattern, filepath.Base(path)); merr == nil && matched {
			w.result.Files = append(w.result.Files, relPath)
		}

		return nil
	})
}

func (w *walker) warn(path string, err error) {
	w.result.Warnings = append(w.result.Warnings, Warning{Path: path, Err: err})
}
