// Package lock guards a batch output directory against concurrent writers.
// The summary table and the per-sample artifacts are owned by exactly one
// driver process at a time.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

const lockFileName = "phylopipe.lock"

// OutputLock is a single-writer lock implemented via a PID file + flock(2).
// Keep the lock alive by keeping the file descriptor open.
type OutputLock struct {
	path string
	f    *os.File
}

// AcquireOutputDir takes an exclusive non-blocking lock inside outputDir,
// creating the directory if needed, and writes the current PID into the
// lock file. A second phylopipe run against the same directory fails fast
// instead of interleaving artifact writes.
func AcquireOutputDir(outputDir string) (*OutputLock, error) {
	if outputDir == "" {
		return nil, fmt.Errorf("output directory is empty")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	lockPath := filepath.Join(outputDir, lockFileName)
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("another run owns %s: %w", outputDir, err)
	}

	if err := f.Truncate(0); err != nil {
		return nil, releaseAfter(f, fmt.Errorf("truncate lock file: %w", err))
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, releaseAfter(f, fmt.Errorf("seek lock file: %w", err))
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		return nil, releaseAfter(f, fmt.Errorf("write pid: %w", err))
	}
	if err := f.Sync(); err != nil {
		return nil, releaseAfter(f, fmt.Errorf("sync lock file: %w", err))
	}

	return &OutputLock{path: lockPath, f: f}, nil
}

func releaseAfter(f *os.File, err error) error {
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	_ = f.Close()
	return err
}

func (l *OutputLock) Path() string { return l.path }

func (l *OutputLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}
