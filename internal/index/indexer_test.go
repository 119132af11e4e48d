package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angus-g/cosima-cookbook/internal/catalog"
	"github.com/angus-g/cosima-cookbook/internal/dataset"
	"github.com/angus-g/cosima-cookbook/internal/dataset/datasettest"
)

func TestFormatDimensions(t *testing.T) {
	tests := []struct {
		name string
		dims []string
		want string
	}{
		{name: "empty", dims: nil, want: "()"},
		{name: "single", dims: []string{"time"}, want: "('time',)"},
		{name: "pair", dims: []string{"time", "x"}, want: "('time', 'x')"},
		{name: "triple", dims: []string{"time", "y", "x"}, want: "('time', 'y', 'x')"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDimensions(tt.dims))
		})
	}
}

func TestFormatChunking(t *testing.T) {
	assert.Equal(t, "contiguous", formatChunking(nil))
	assert.Equal(t, "[1, 10]", formatChunking([]int{1, 10}))
	assert.Equal(t, "[5]", formatChunking([]int{5}))
}

func indexerFixture(t *testing.T) (*Indexer, *datasettest.Opener, *catalog.Experiment) {
	t.Helper()
	opener := datasettest.NewOpener()
	ix, err := NewIndexer(opener)
	require.NoError(t, err)
	expt := &catalog.Experiment{ID: 1, Name: "expt1", RootDir: t.TempDir()}
	return ix, opener, expt
}

func writePlaceholder(t *testing.T, expt *catalog.Experiment, rel string, contents string) string {
	t.Helper()
	abs := filepath.Join(expt.RootDir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(contents), 0o644))
	return abs
}

func TestIndexFileSuccess(t *testing.T) {
	ix, opener, expt := indexerFixture(t)
	abs := writePlaceholder(t, expt, "output000/ocean.nc", "x")
	opener.Files[abs] = datasettest.TimeSeries("temp", []float64{0, 1}, "days since 1900-01-01", "noleap")

	f := ix.IndexFile(context.Background(), "output000/ocean.nc", expt)
	require.NotNil(t, f)
	assert.True(t, f.Present)
	assert.Equal(t, "output000/ocean.nc", f.Path)
	assert.Equal(t, "1 daily", f.Frequency)
	require.Len(t, f.Variables, 2)

	// records are unattached until the merge persists them
	assert.Zero(t, f.ID)
	for _, vi := range f.Variables {
		assert.Zero(t, vi.DefinitionID)
	}

	assert.True(t, opener.Files[abs].Closed)
}

func TestIndexFileMissing(t *testing.T) {
	ix, _, expt := indexerFixture(t)

	f := ix.IndexFile(context.Background(), "output000/gone.nc", expt)
	require.NotNil(t, f)
	assert.False(t, f.Present)
	assert.Empty(t, f.Variables)
	assert.NotEmpty(t, f.IndexTime)
}

func TestIndexFileCorrupt(t *testing.T) {
	ix, opener, expt := indexerFixture(t)
	abs := writePlaceholder(t, expt, "output000/broken.nc", "x")
	opener.Corrupt[abs] = true

	f := ix.IndexFile(context.Background(), "output000/broken.nc", expt)
	require.NotNil(t, f)
	assert.False(t, f.Present)
	assert.Empty(t, f.Variables)
}

func TestIndexFileDiscardsPartialResults(t *testing.T) {
	ix, opener, expt := indexerFixture(t)
	abs := writePlaceholder(t, expt, "output000/empty.nc", "x")
	// zero-length record dimension fails extraction after variables have
	// been gathered; nothing of the partial walk survives
	opener.Files[abs] = datasettest.TimeSeries("temp", nil, "days since 1900-01-01", "noleap")

	f := ix.IndexFile(context.Background(), "output000/empty.nc", expt)
	require.NotNil(t, f)
	assert.False(t, f.Present)
	assert.Empty(t, f.Variables)
	assert.Empty(t, f.TimeStart)
	assert.Empty(t, f.Frequency)
}

func TestIndexFileMissingTimeVariableFails(t *testing.T) {
	ix, opener, expt := indexerFixture(t)
	abs := writePlaceholder(t, expt, "output000/headless.nc", "x")
	ds := datasettest.TimeSeries("temp", []float64{0, 1}, "days since 1900-01-01", "noleap")
	// drop the time coordinate, keeping the record dimension
	ds.Vars = ds.Vars[1:]
	opener.Files[abs] = ds

	f := ix.IndexFile(context.Background(), "output000/headless.nc", expt)
	require.NotNil(t, f)
	assert.False(t, f.Present)
	assert.Empty(t, f.Variables)
}

func TestIndexFileNonCompliantTimeStillIndexes(t *testing.T) {
	ix, opener, expt := indexerFixture(t)
	abs := writePlaceholder(t, expt, "output000/odd.nc", "x")
	opener.Files[abs] = datasettest.TimeSeries("temp", []float64{0, 1}, "fortnights since always", "noleap")

	f := ix.IndexFile(context.Background(), "output000/odd.nc", expt)
	require.NotNil(t, f)
	assert.True(t, f.Present)
	assert.Len(t, f.Variables, 2)
	// time coverage is simply absent
	assert.Empty(t, f.TimeStart)
	assert.Empty(t, f.Frequency)
}

func TestIndexFileCachesByStat(t *testing.T) {
	ix, opener, expt := indexerFixture(t)
	abs := writePlaceholder(t, expt, "output000/ocean.nc", "x")
	opener.Files[abs] = datasettest.TimeSeries("temp", []float64{0, 1}, "days since 1900-01-01", "noleap")

	first := ix.IndexFile(context.Background(), "output000/ocean.nc", expt)
	require.True(t, first.Present)

	// with an unchanged stat the dataset is not reopened
	delete(opener.Files, abs)
	second := ix.IndexFile(context.Background(), "output000/ocean.nc", expt)
	require.True(t, second.Present)
	assert.Equal(t, first.Frequency, second.Frequency)
	assert.Len(t, second.Variables, 2)

	// cached results are cloned: mutating one result does not leak into
	// the next
	second.Variables[0].Definition.Name = "mutated"
	third := ix.IndexFile(context.Background(), "output000/ocean.nc", expt)
	assert.NotEqual(t, "mutated", third.Variables[0].Definition.Name)
}

type panicDataset struct {
	*datasettest.DS
}

func (panicDataset) Variables() []dataset.Variable {
	panic("corrupt variable table")
}

func TestIndexFilePanicIsContained(t *testing.T) {
	opener := dataset.OpenerFunc(func(string) (dataset.Dataset, error) {
		return panicDataset{datasettest.TimeSeries("temp", []float64{0, 1}, "days since 1900-01-01", "noleap")}, nil
	})
	ix, err := NewIndexer(opener)
	require.NoError(t, err)
	expt := &catalog.Experiment{ID: 1, Name: "expt1", RootDir: t.TempDir()}

	f := ix.IndexFile(context.Background(), "output000/evil.nc", expt)
	require.NotNil(t, f)
	assert.False(t, f.Present)
	assert.Empty(t, f.Variables)
	assert.Empty(t, f.Frequency)
	assert.NotEmpty(t, f.IndexTime)
}

func TestIndexFileFailuresAreNotCached(t *testing.T) {
	ix, opener, expt := indexerFixture(t)
	abs := writePlaceholder(t, expt, "output000/flaky.nc", "x")
	opener.Corrupt[abs] = true

	f := ix.IndexFile(context.Background(), "output000/flaky.nc", expt)
	require.False(t, f.Present)

	// once the file opens cleanly it indexes normally
	delete(opener.Corrupt, abs)
	opener.Files[abs] = datasettest.TimeSeries("temp", []float64{0, 1}, "days since 1900-01-01", "noleap")
	f = ix.IndexFile(context.Background(), "output000/flaky.nc", expt)
	assert.True(t, f.Present)
}
