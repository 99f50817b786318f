//go:build unix

package fs

import (
	"errors"
	"fmt"
	"syscall"
)

// Unix strategy: advisory whole-file locking via flock(2).
//
// flock locks an inode, not a pathname, which is why lock.go re-verifies the
// pathname after every successful acquisition.

func lockFileExclusive(f File) error {
	return flockRetryEINTR(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
}

func unlockFile(f File) error {
	return flockRetryEINTR(int(f.Fd()), syscall.LOCK_UN)
}

func lockWouldBlock(err error) bool {
	return errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN)
}

// lockedFileCurrent reports whether the locked descriptor still refers to the
// file currently at path, comparing (dev, inode) pairs.
func lockedFileCurrent(fsys FS, f File, path string) (bool, error) {
	openInfo, err := f.Stat()
	if err != nil {
		return false, err
	}

	openSys, ok := openInfo.Sys().(*syscall.Stat_t)
	if !ok || openSys == nil {
		return false, fmt.Errorf("file.Stat Sys=%T, want *syscall.Stat_t", openInfo.Sys())
	}

	pathInfo, err := fsys.Stat(path)
	if err != nil {
		return false, err
	}

	pathSys, ok := pathInfo.Sys().(*syscall.Stat_t)
	if !ok || pathSys == nil {
		return false, fmt.Errorf("fs.Stat Sys=%T, want *syscall.Stat_t", pathInfo.Sys())
	}

	return openSys.Dev == pathSys.Dev && openSys.Ino == pathSys.Ino, nil
}

// flockRetryEINTR wraps flock, retrying when a signal interrupts the syscall.
// Capped to avoid spinning under a pathological signal storm.
func flockRetryEINTR(fd int, how int) error {
	const maxEINTRRetries = 10000

	var err error
	for attempt := 0; attempt < maxEINTRRetries; attempt++ {
		err = syscall.Flock(fd, how)
		if err == nil || !errors.Is(err, syscall.EINTR) {
			return err
		}
	}

	return err
}
