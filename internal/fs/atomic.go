package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
)

// ErrDirSync indicates the parent directory could not be synced after rename.
//
// When returned, the new file is in place but its directory entry is not
// guaranteed durable. Callers can detect this with errors.Is.
var ErrDirSync = errors.New("dir sync")

// AtomicWriter replaces files atomically using the temp-file-then-rename
// pattern. The temp file is created in the same directory as the target so
// the final rename never crosses a filesystem boundary.
//
// Readers of the target path observe either the previous complete content or
// the new complete content, never a partial write.
type AtomicWriter struct {
	fs FS
}

// NewAtomicWriter creates an AtomicWriter that uses the given filesystem.
// Panics if fs is nil.
func NewAtomicWriter(fs FS) *AtomicWriter {
	if fs == nil {
		panic("fs is nil")
	}

	return &AtomicWriter{fs: fs}
}

const atomicFilePerm = 0o644

// Write writes data from r to path atomically and durably.
//
// It writes to a hidden temp file in the target's directory, syncs it,
// renames it over path, then syncs the parent directory. On any failure after
// temp-file creation the temp file is removed best-effort; it is never left
// as the final artifact at path.
//
// If only the directory sync step fails, the returned error satisfies
// errors.Is(err, ErrDirSync) and the file is already in place.
func (w *AtomicWriter) Write(path string, reader io.Reader) error {
	if reader == nil {
		panic("reader is nil")
	}

	if path == "" {
		return errors.New("path is empty")
	}

	dir, base := filepath.Split(path)
	if base == "" || base == "." {
		return fmt.Errorf("path is invalid: %q", path)
	}

	if dir == "" {
		dir = "."
	}

	dir = filepath.Clean(dir)

	tmpFile, tmpPath, err := createTempFile(w.fs, dir, base)
	if err != nil {
		return err
	}

	cleanup := func() error {
		closeErr := tmpFile.Close()
		if closeErr != nil {
			closeErr = fmt.Errorf("close temp file %q: %w", tmpPath, closeErr)
		}

		removeErr := w.fs.Remove(tmpPath)
		if removeErr != nil && !os.IsNotExist(removeErr) {
			removeErr = fmt.Errorf("remove temp file %q: %w", tmpPath, removeErr)
		} else {
			removeErr = nil
		}

		return errors.Join(closeErr, removeErr)
	}

	if _, copyErr := io.Copy(tmpFile, reader); copyErr != nil {
		return errors.Join(fmt.Errorf("write temp file %q: %w", tmpPath, copyErr), cleanup())
	}

	if syncErr := tmpFile.Sync(); syncErr != nil {
		return errors.Join(fmt.Errorf("sync temp file %q: %w", tmpPath, syncErr), cleanup())
	}

	if closeErr := tmpFile.Close(); closeErr != nil {
		_ = w.fs.Remove(tmpPath)

		return fmt.Errorf("close temp file %q: %w", tmpPath, closeErr)
	}

	if renameErr := w.fs.Rename(tmpPath, path); renameErr != nil {
		removeErr := w.fs.Remove(tmpPath)
		if removeErr != nil && !os.IsNotExist(removeErr) {
			removeErr = fmt.Errorf("remove temp file %q: %w", tmpPath, removeErr)
		} else {
			removeErr = nil
		}

		return errors.Join(fmt.Errorf("rename: %w", renameErr), removeErr)
	}

	return fsyncDir(w.fs, dir)
}

const tempFileMaxAttempts = 10000

// Process-wide sequence keeps concurrent writers to the same target from
// colliding on a temp name.
var tempFileSeq atomic.Uint64

func createTempFile(fsys FS, dir, base string) (File, string, error) {
	for attempt := 0; attempt < tempFileMaxAttempts; attempt++ {
		seq := tempFileSeq.Add(1)
		path := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d", base, seq))

		file, err := fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, atomicFilePerm)
		if err == nil {
			return file, path, nil
		}

		if os.IsExist(err) {
			continue
		}

		return nil, "", fmt.Errorf("create temp file: %w", err)
	}

	return nil, "", fmt.Errorf("exhausted temp file attempts in %q", dir)
}

func fsyncDir(fsys FS, dir string) error {
	dirFd, err := fsys.Open(dir)
	if err != nil {
		return errors.Join(ErrDirSync, fmt.Errorf("open dir %q: %w", dir, err))
	}

	syncErr := dirFd.Sync()
	closeErr := dirFd.Close()

	if syncErr != nil {
		syncErr = errors.Join(ErrDirSync, fmt.Errorf("sync dir %q: %w", dir, syncErr))
	}

	if closeErr != nil {
		closeErr = fmt.Errorf("close dir %q: %w", dir, closeErr)
	}

	return errors.Join(syncErr, closeErr)
}
