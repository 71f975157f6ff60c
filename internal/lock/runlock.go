// Package lock serializes runs against a single repository.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/zeebo/blake3"
)

// ErrHeld reports that another process holds the run lock.
var ErrHeld = errors.New("another fast-staged run appears to be active for this repository")

// RunLock is an exclusive per-repository lock implemented via a PID file +
// flock(2). Keep the lock alive by keeping the file descriptor open.
type RunLock struct {
	path string
	f    *os.File
}

// Path returns the lock file location for repoRoot under stateDir. The name
// is derived from the root so distinct repositories never contend.
func Path(stateDir, repoRoot string) string {
	sum := blake3.Sum256([]byte(repoRoot))
	return filepath.Join(stateDir, "locks", fmt.Sprintf("%x.pid", sum[:8]))
}

// Acquire takes the exclusive non-blocking run lock for repoRoot, writes the
// current PID into the file, and returns a handle that must be released.
// Returns ErrHeld when another run owns the lock.
func Acquire(stateDir, repoRoot string) (*RunLock, error) {
	if repoRoot == "" {
		return nil, fmt.Errorf("repository root is empty")
	}
	lockPath := Path(stateDir, repoRoot)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, ErrHeld
		}
		return nil, fmt.Errorf("acquire lock: %w", err)
	}

	if err := writePID(f); err != nil {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
		return nil, err
	}

	return &RunLock{path: lockPath, f: f}, nil
}

func writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		return fmt.Errorf("write pid: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync lock file: %w", err)
	}
	return nil
}

func (l *RunLock) Path() string { return l.path }

func (l *RunLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}
