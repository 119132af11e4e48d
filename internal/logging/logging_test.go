package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "info", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "ERROR", want: slog.LevelError},
		{in: "bogus", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestSetupWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "cookbook.log")
	cfg := Config{
		Level:     "info",
		FilePath:  path,
		MaxSizeMB: 1,
		MaxFiles:  2,
	}

	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)

	logger.Info("indexing experiment", slog.String("experiment", "expt1"))
	logger.Debug("suppressed at info level")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "indexing experiment", entry["msg"])
	assert.Equal(t, "expt1", entry["experiment"])
}

func TestRotatingWriterRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookbook.log")

	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer w.Close()

	// force the threshold low enough to rotate on the second write
	w.maxSize = 16

	_, err = w.Write([]byte(strings.Repeat("a", 12) + "\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte(strings.Repeat("b", 12) + "\n"))
	require.NoError(t, err)

	rotated, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Contains(t, string(rotated), "aaa")

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(current), "bbb")
}

func TestRotatingWriterDropsOldest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookbook.log")

	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer w.Close()
	w.maxSize = 4

	for i := 0; i < 5; i++ {
		_, err = w.Write([]byte("12345678"))
		require.NoError(t, err)
	}

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err)
	_, err = os.Stat(path + ".2")
	assert.NoError(t, err)
	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err), "only maxFiles rotations kept")
}
