// Package fs provides the filesystem primitives the issue store is built on:
// a small [FS] abstraction over the os package, an [AtomicWriter] that makes
// file replacement crash-safe, and a [Locker] that serializes cross-process
// access to individual files.
//
// The [FS] interface exists so tests can substitute failing implementations;
// production code always uses [Real].
package fs

import (
	"io"
	"os"
)

// File represents an open file descriptor.
//
// Satisfied by [os.File]. The Fd method is required by the lock
// implementations, Sync by the atomic writer.
type File interface {
	io.ReadWriteCloser
	io.Seeker

	// Fd returns the file descriptor. See [os.File.Fd].
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file. See [os.File.Stat].
	Stat() (os.FileInfo, error)

	// Sync commits the file's contents to disk. See [os.File.Sync].
	Sync() error
}

// FS defines the filesystem operations used by the store.
//
// All methods mirror their [os] package equivalents.
type FS interface {
	// Open opens a file for reading. See [os.Open].
	Open(path string) (File, error)

	// OpenFile opens a file with specified flags and permissions. See [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// ReadFile reads an entire file into memory. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// ReadDir reads a directory and returns its entries sorted by name. See [os.ReadDir].
	ReadDir(path string) ([]os.DirEntry, error)

	// MkdirAll creates a directory and all parents. See [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error

	// Stat returns file info. See [os.Stat].
	Stat(path string) (os.FileInfo, error)

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error

	// Rename moves/renames a file. Atomic on the same filesystem. See [os.Rename].
	Rename(oldpath, newpath string) error
}

// Compile-time interface checks.
var _ File = (*os.File)(nil)
