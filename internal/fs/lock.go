package fs

import (
	"errors"
	"fmt"
	"os"
	"time"
)

var (
	// ErrLockTimeout is returned when a lock cannot be acquired before the
	// timeout expires. Another process holds the lock; retrying later is
	// reasonable.
	ErrLockTimeout = errors.New("lock timeout")

	// ErrLockOpen is returned when the lock side-car file cannot be created
	// or opened. This is a storage fault, not contention.
	ErrLockOpen = errors.New("open lock file")

	// ErrInvalidTimeout is returned when a timeout is <= 0.
	ErrInvalidTimeout = errors.New("invalid lock timeout")
)

// lockSuffix is appended to the protected path to form the side-car name.
const lockSuffix = ".lock"

// retryInterval is the fixed delay between non-blocking acquisition attempts.
const retryInterval = 100 * time.Millisecond

// Locker provides per-file exclusive locking across processes.
//
// A lock on path is represented by a side-car file "path.lock" next to the
// protected file, so the protected file itself can be renamed over or removed
// while the lock is held. The OS-level locking primitive differs per platform
// (flock on Unix, LockFileEx on Windows) behind the same contract: exclusivity
// holds across cooperating processes, acquisition is bounded by a timeout, and
// release always works even after the critical section failed.
//
// The lock is advisory: a process that never takes the lock is not stopped
// from touching the file.
type Locker struct {
	fs FS
}

// NewLocker creates a Locker that uses the given filesystem to manage
// side-car files. Panics if fs is nil.
func NewLocker(fs FS) *Locker {
	if fs == nil {
		panic("fs is nil")
	}

	return &Locker{fs: fs}
}

// FileLock is a held lock. Call [FileLock.Release] to release it; Release is
// idempotent.
type FileLock struct {
	fs       FS
	lockPath string
	file     File
}

// Acquire obtains an exclusive lock protecting path, retrying every 100ms
// until timeout elapses.
//
// Returns an error satisfying errors.Is(err, ErrLockTimeout) when another
// holder outlasts the timeout, and errors.Is(err, ErrLockOpen) when the
// side-car cannot be created.
func (l *Locker) Acquire(path string, timeout time.Duration) (*FileLock, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be > 0", ErrInvalidTimeout)
	}

	lockPath := path + lockSuffix
	deadline := time.Now().Add(timeout)

	for {
		file, err := l.fs.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, lockFilePerm)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLockOpen, err)
		}

		acquired, err := l.tryAcquire(file, lockPath)
		if err != nil {
			_ = file.Close()

			return nil, err
		}

		if acquired {
			return &FileLock{fs: l.fs, lockPath: lockPath, file: file}, nil
		}

		_ = file.Close()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: %s after %s", ErrLockTimeout, path, timeout)
		}

		time.Sleep(min(retryInterval, remaining))
	}
}

// tryAcquire makes one non-blocking attempt on the open side-car. On success
// it verifies the descriptor still refers to the file currently at lockPath:
// release removes the side-car, so a holder that released between our open
// and our lock call leaves us holding a lock on an unlinked inode that no
// other process can see. Such stale acquisitions are treated as misses.
func (l *Locker) tryAcquire(file File, lockPath string) (bool, error) {
	err := lockFileExclusive(file)
	if err != nil {
		if lockWouldBlock(err) {
			return false, nil
		}

		return false, fmt.Errorf("lock %q: %w", lockPath, err)
	}

	match, err := lockedFileCurrent(l.fs, file, lockPath)
	if err != nil || !match {
		_ = unlockFile(file)

		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("verifying lock file %q: %w", lockPath, err)
		}

		return false, nil
	}

	return true, nil
}

const lockFilePerm = 0o644

// Release unlocks and removes the side-car file.
//
// The side-car is removed first, while the lock is still held, so no waiter
// can acquire a file that is about to disappear. Removal failure is not
// reported: correctness depends on the lock being released, not on side-car
// cleanliness.
func (fl *FileLock) Release() {
	if fl.file == nil {
		return
	}

	_ = fl.fs.Remove(fl.lockPath)
	_ = unlockFile(fl.file)
	_ = fl.file.Close()
	fl.file = nil
}
