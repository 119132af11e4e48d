package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.cookbook/logs/).
// Falls back to the temp directory if the home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".cookbook", "logs")
	}
	return filepath.Join(home, ".cookbook", "logs")
}

// DefaultLogPath returns the default catalog log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "cookbook.log")
}
