//go:build windows

package fs

import (
	"errors"

	"golang.org/x/sys/windows"
)

// Windows strategy: mandatory record locking via LockFileEx on the first byte
// of the side-car, mirroring what msvcrt-style tooling does. Windows locks
// follow the handle, so no pathname re-verification is needed: a locked
// side-car cannot be deleted out from under the holder.

func lockFileExclusive(f File) error {
	ol := new(windows.Overlapped)

	return windows.LockFileEx(
		windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, 1, 0, ol,
	)
}

func unlockFile(f File) error {
	ol := new(windows.Overlapped)

	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, ol)
}

func lockWouldBlock(err error) bool {
	return errors.Is(err, windows.ERROR_LOCK_VIOLATION)
}

func lockedFileCurrent(FS, File, string) (bool, error) {
	return true, nil
}
