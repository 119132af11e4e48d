// Package index implements the catalog indexing engine: per-file schema
// and time extraction, parallel fan-out, and experiment reconciliation.
package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/angus-g/cosima-cookbook/internal/catalog"
	"github.com/angus-g/cosima-cookbook/internal/cerr"
	"github.com/angus-g/cosima-cookbook/internal/dataset"
)

// extractionCacheSize bounds the LRU of per-file extraction results.
const extractionCacheSize = 65536

// Indexer turns one file path plus an experiment context into a complete,
// unattached file record. It holds no mutable state shared between calls
// apart from a concurrency-safe result cache, so IndexFile may run for
// many paths in parallel.
type Indexer struct {
	opener dataset.Opener

	// cache holds successful extraction results keyed by
	// path|mtime|size, so repeated --update passes skip files whose
	// stat has not changed.
	cache *lru.Cache[string, *catalog.File]
}

// NewIndexer creates an indexer reading datasets through the given opener.
func NewIndexer(opener dataset.Opener) (*Indexer, error) {
	cache, err := lru.New[string, *catalog.File](extractionCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create extraction cache: %w", err)
	}
	return &Indexer{opener: opener, cache: cache}, nil
}

// IndexFile extracts the schema and time coverage of one file. It never
// returns an error: any failure is absorbed into a record with
// Present=false, so one corrupt file cannot abort a batch. The returned
// record is unattached (zero IDs) until the serial merge persists it.
func (ix *Indexer) IndexFile(ctx context.Context, relPath string, expt *catalog.Experiment) (file *catalog.File) {
	absPath := filepath.Join(expt.RootDir, relPath)

	file = &catalog.File{
		Path:      relPath,
		IndexTime: time.Now().Format(catalog.TimeFormat),
		Present:   false,
	}

	// A registered opener is third-party code; a panic on a corrupt file
	// is contained here like any other extraction failure.
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic indexing file",
				slog.String("path", absPath),
				slog.Any("panic", r))
			file.Variables = nil
			file.TimeStart, file.TimeEnd, file.Frequency = "", "", ""
			file.Present = false
		}
	}()

	cacheKey, statOK := extractionKey(absPath)
	if statOK {
		if cached, ok := ix.cache.Get(cacheKey); ok {
			return cloneFile(cached, file.IndexTime)
		}
	}

	ds, err := ix.opener.Open(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Info("unable to find file", slog.String("path", absPath))
		} else {
			slog.Error("error opening file",
				slog.String("path", absPath),
				slog.String("error", err.Error()))
		}
		return file
	}
	defer func() { _ = ds.Close() }()

	if err := ix.extract(ds, file); err != nil {
		// Partial data gathered before the failure is discarded; the
		// record describes only the failure.
		slog.Error("error indexing file",
			slog.String("path", absPath),
			slog.String("code", cerr.GetCode(err)),
			slog.String("error", err.Error()))
		file.Variables = nil
		file.TimeStart, file.TimeEnd, file.Frequency = "", "", ""
		return file
	}

	file.Present = true
	if statOK {
		ix.cache.Add(cacheKey, cloneFile(file, file.IndexTime))
	}
	return file
}

// extract fills in the file's variables and time coverage.
func (ix *Indexer) extract(ds dataset.Dataset, file *catalog.File) error {
	for _, v := range ds.Variables() {
		def := &catalog.VariableDefinition{Name: v.Name()}
		if longName, ok := v.Attr("long_name"); ok {
			def.LongName = longName
		}
		if standardName, ok := v.Attr("standard_name"); ok {
			def.StandardName = standardName
		}
		if units, ok := v.Attr("units"); ok {
			def.Units = units
		}

		file.Variables = append(file.Variables, &catalog.VariableInstance{
			Definition: def,
			Dimensions: formatDimensions(v.Dimensions()),
			Chunking:   formatChunking(v.Chunking()),
		})
	}

	info, err := InferTimeInfo(ds)
	if err != nil {
		// Non-CF-compliant time metadata skips time extraction only;
		// the file is still indexed normally.
		if cerr.IsNonCompliantTime(err) {
			slog.Debug("skipping time extraction",
				slog.String("path", file.Path),
				slog.String("reason", err.Error()))
			return nil
		}
		return err
	}
	if info != nil {
		file.TimeStart = info.Start
		file.TimeEnd = info.End
		file.Frequency = info.Frequency
	}
	return nil
}

// extractionKey builds the cache key for a path from its current stat.
func extractionKey(absPath string) (string, bool) {
	st, err := os.Stat(absPath)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%s|%d|%d", absPath, st.ModTime().UnixNano(), st.Size()), true
}

// cloneFile deep-copies a file record so cached results never share
// mutable state with records flowing through the merge.
func cloneFile(src *catalog.File, indexTime string) *catalog.File {
	out := &catalog.File{
		Path:      src.Path,
		IndexTime: indexTime,
		Present:   src.Present,
		TimeStart: src.TimeStart,
		TimeEnd:   src.TimeEnd,
		Frequency: src.Frequency,
	}
	for _, vi := range src.Variables {
		def := *vi.Definition
		out.Variables = append(out.Variables, &catalog.VariableInstance{
			Definition: &def,
			Dimensions: vi.Dimensions,
			Chunking:   vi.Chunking,
		})
	}
	return out
}

// formatDimensions serializes a dimension-name tuple, e.g. ('time', 'x').
func formatDimensions(dims []string) string {
	if len(dims) == 0 {
		return "()"
	}
	quoted := make([]string, len(dims))
	for i, d := range dims {
		quoted[i] = "'" + d + "'"
	}
	if len(quoted) == 1 {
		return "(" + quoted[0] + ",)"
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}

// formatChunking serializes the chunk layout, e.g. [1, 10], or
// "contiguous" for unchunked storage.
func formatChunking(chunks []int) string {
	if len(chunks) == 0 {
		return "contiguous"
	}
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("%d", c)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
