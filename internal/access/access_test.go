package access

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angus-g/cosima-cookbook/internal/catalog"
)

func TestRecordAndCount(t *testing.T) {
	log, err := Open(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	defer log.Close()

	ctx := context.Background()
	require.NoError(t, log.Record(ctx, "alice", []int64{1, 2, 1}))
	require.NoError(t, log.Record(ctx, "bob", []int64{1}))

	n, err := log.CountForFile(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = log.CountForFile(ctx, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = log.CountForFile(ctx, 99)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCountForFiles(t *testing.T) {
	log, err := Open(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	defer log.Close()

	ctx := context.Background()
	require.NoError(t, log.Record(ctx, "alice", []int64{1, 2, 1}))
	require.NoError(t, log.Record(ctx, "bob", []int64{3}))

	n, err := log.CountForFiles(ctx, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	n, err = log.CountForFiles(ctx, []int64{2, 99})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = log.CountForFiles(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNilLogIsNoOp(t *testing.T) {
	var log *Log
	ctx := context.Background()

	assert.NoError(t, log.Record(ctx, "alice", []int64{1}))
	n, err := log.CountForFile(ctx, 1)
	assert.NoError(t, err)
	assert.Zero(t, n)
	n, err = log.CountForFiles(ctx, []int64{1, 2})
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, log.Close())
}

func TestForStore(t *testing.T) {
	tmp := t.TempDir()
	store, err := catalog.Open(filepath.Join(tmp, "catalog.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	// no access log registered
	log, err := ForStore(ctx, store)
	require.NoError(t, err)
	assert.Nil(t, log)

	statsPath := filepath.Join(tmp, "stats.db")
	require.NoError(t, store.SetStatsDBPath(ctx, statsPath))

	log, err = ForStore(ctx, store)
	require.NoError(t, err)
	require.NotNil(t, log)
	defer log.Close()

	require.NoError(t, log.Record(ctx, "alice", []int64{7}))
	n, err := log.CountForFile(ctx, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
