package index

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/angus-g/cosima-cookbook/internal/catalog"
)

// IndexFunc extracts one file record. It never fails; failures are
// embedded in the record itself.
type IndexFunc func(ctx context.Context, relPath string) *catalog.File

// Runner fans a set of file paths out to extraction workers and gathers
// every result before returning. Result order matches the input order.
// Gathering completely before the merge matters: interning correctness
// depends on a single serial merge pass over a consistent result set.
type Runner interface {
	Run(ctx context.Context, paths []string, fn IndexFunc) []*catalog.File
}

// SequentialRunner indexes paths one at a time, reporting progress.
type SequentialRunner struct {
	// Progress, when set, is called after each file with (done, total).
	Progress func(done, total int)
}

// Run implements Runner.
func (r *SequentialRunner) Run(ctx context.Context, paths []string, fn IndexFunc) []*catalog.File {
	results := make([]*catalog.File, 0, len(paths))
	for i, path := range paths {
		if ctx.Err() != nil {
			break
		}
		results = append(results, fn(ctx, path))
		if r.Progress != nil {
			r.Progress(i+1, len(paths))
		}
	}
	return results
}

// PoolRunner indexes paths concurrently with a bounded worker pool.
// Extraction is embarrassingly parallel: workers share no mutable state
// and no file's outcome blocks another's.
type PoolRunner struct {
	// Workers bounds concurrency; defaults to GOMAXPROCS.
	Workers int
}

// Run implements Runner.
func (r *PoolRunner) Run(ctx context.Context, paths []string, fn IndexFunc) []*catalog.File {
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]*catalog.File, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			results[i] = fn(gctx, path)
			return nil
		})
	}
	_ = g.Wait()

	// Drop any slots skipped due to cancellation.
	gathered := results[:0]
	for _, f := range results {
		if f != nil {
			gathered = append(gathered, f)
		}
	}
	return gathered
}
