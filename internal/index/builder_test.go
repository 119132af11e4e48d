package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angus-g/cosima-cookbook/internal/catalog"
	"github.com/angus-g/cosima-cookbook/internal/cerr"
	"github.com/angus-g/cosima-cookbook/internal/dataset/datasettest"
)

func newBuilderFixture(t *testing.T) (*syncFixture, *Builder) {
	t.Helper()
	fx := newSyncFixture(t)
	b := &Builder{store: fx.store, sync: fx.sync}
	return fx, b
}

func TestBuildIndexMultipleDirectories(t *testing.T) {
	fx, b := newBuilderFixture(t)
	fx.addDataFile(t, "output000/a.nc", []float64{0, 1})

	otherDir := filepath.Join(filepath.Dir(fx.exptDir), "expt2")
	require.NoError(t, os.MkdirAll(otherDir, 0o755))
	p := filepath.Join(otherDir, "b.nc")
	require.NoError(t, os.WriteFile(p, []byte("b"), 0o644))
	fx.opener.Files[p] = datasettest.TimeSeries("salt", []float64{0, 1}, "days since 1900-01-01", "noleap")

	n, err := b.BuildIndex(context.Background(), []string{fx.exptDir, otherDir}, Options{Prune: true})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	err = fx.store.View(context.Background(), func(tx *catalog.Tx) error {
		for _, name := range []string{"expt1", "expt2"} {
			expt, err := tx.FindExperimentByName(context.Background(), name)
			require.NoError(t, err)
			assert.NotNil(t, expt, name)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestBuildIndexReportsCountOnFailure(t *testing.T) {
	fx, b := newBuilderFixture(t)
	fx.addDataFile(t, "output000/a.nc", []float64{0, 1})

	// the second directory does not exist, so its sync fails after the
	// first experiment has already committed
	missing := filepath.Join(filepath.Dir(fx.exptDir), "nonexistent")
	n, err := b.BuildIndex(context.Background(), []string{fx.exptDir, missing}, Options{Prune: true})
	require.Error(t, err)
	assert.Equal(t, 1, n)

	files := fx.files(t)
	assert.Len(t, files, 1)
}

func TestPruneExperimentDeletesMissingFiles(t *testing.T) {
	fx, b := newBuilderFixture(t)
	fx.addDataFile(t, "output000/a.nc", []float64{0, 1})
	stale := fx.addDataFile(t, "output001/b.nc", []float64{2, 3})

	_, err := b.BuildIndex(context.Background(), []string{fx.exptDir}, Options{Prune: true})
	require.NoError(t, err)

	require.NoError(t, os.Remove(stale))

	require.NoError(t, b.PruneExperiment(context.Background(), "expt1", true))

	files := fx.files(t)
	require.Len(t, files, 1)
	assert.Contains(t, files, "output000/a.nc")
}

func TestPruneExperimentKeepMarksNotPresent(t *testing.T) {
	fx, b := newBuilderFixture(t)
	fx.addDataFile(t, "output000/a.nc", []float64{0, 1})
	stale := fx.addDataFile(t, "output001/b.nc", []float64{2, 3})

	_, err := b.BuildIndex(context.Background(), []string{fx.exptDir}, Options{Prune: true})
	require.NoError(t, err)

	require.NoError(t, os.Remove(stale))

	require.NoError(t, b.PruneExperiment(context.Background(), "expt1", false))

	files := fx.files(t)
	require.Len(t, files, 2)
	assert.True(t, files["output000/a.nc"].Present)
	assert.False(t, files["output001/b.nc"].Present)
}

func TestPruneExperimentDeletesBrokenFiles(t *testing.T) {
	// A file that failed extraction is not-present even though it still
	// exists on disk; prune with delete removes its entry.
	fx, b := newBuilderFixture(t)
	fx.addDataFile(t, "output000/a.nc", []float64{0, 1})
	corrupt := fx.addDataFile(t, "output000/broken.nc", nil)
	fx.opener.Corrupt[corrupt] = true

	_, err := b.BuildIndex(context.Background(), []string{fx.exptDir}, Options{Prune: true})
	require.NoError(t, err)
	require.False(t, fx.files(t)["output000/broken.nc"].Present)

	require.NoError(t, b.PruneExperiment(context.Background(), "expt1", true))

	files := fx.files(t)
	require.Len(t, files, 1)
	assert.Contains(t, files, "output000/a.nc")
}

func TestPruneExperimentUnknown(t *testing.T) {
	_, b := newBuilderFixture(t)
	err := b.PruneExperiment(context.Background(), "nope", true)
	require.Error(t, err)
	assert.Equal(t, cerr.CodeNoExperiment, cerr.GetCode(err))
}

func TestDeleteExperiment(t *testing.T) {
	fx, b := newBuilderFixture(t)
	fx.addDataFile(t, "output000/a.nc", []float64{0, 1})

	otherDir := filepath.Join(filepath.Dir(fx.exptDir), "expt2")
	require.NoError(t, os.MkdirAll(otherDir, 0o755))
	p := filepath.Join(otherDir, "b.nc")
	require.NoError(t, os.WriteFile(p, []byte("b"), 0o644))
	fx.opener.Files[p] = datasettest.TimeSeries("temp", []float64{0, 1}, "days since 1900-01-01", "noleap")

	_, err := b.BuildIndex(context.Background(), []string{fx.exptDir, otherDir}, Options{Prune: true})
	require.NoError(t, err)

	require.NoError(t, b.DeleteExperiment(context.Background(), "expt1"))

	err = fx.store.View(context.Background(), func(tx *catalog.Tx) error {
		gone, err := tx.FindExperimentByName(context.Background(), "expt1")
		require.NoError(t, err)
		assert.Nil(t, gone)

		// the other experiment and the shared definitions survive
		expt, err := tx.FindExperimentByName(context.Background(), "expt2")
		require.NoError(t, err)
		require.NotNil(t, expt)
		files, err := tx.ListFiles(context.Background(), expt.ID)
		require.NoError(t, err)
		require.Len(t, files, 1)
		instances, err := tx.ListVariableInstances(context.Background(), files[0].ID)
		require.NoError(t, err)
		assert.Len(t, instances, 2)
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteExperimentUnknown(t *testing.T) {
	_, b := newBuilderFixture(t)
	err := b.DeleteExperiment(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, cerr.CodeNoExperiment, cerr.GetCode(err))
}
