package runner

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFileName = ".crankstress.lock"

// ArtifactPath returns the artifact a worker writes inside dir.
func ArtifactPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("output_%d.txt", index))
}

// lockOutputDir creates dir if needed and takes an exclusive, non-blocking lock on it.
func lockOutputDir(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock output directory %s: %w", dir, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", dir, ErrOutputDirLocked)
	}
	return lock, nil
}
