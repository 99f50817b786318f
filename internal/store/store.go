// Package store persists issue records as one JSON file each under
// <root>/.bugit/issues, safely under concurrent access from multiple
// processes.
//
// Every operation resolves paths once, takes a per-record advisory lock,
// performs an atomic read or write, and releases the lock. There is no
// in-memory index: the set of live records is always derived by listing the
// directory at call time.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bugit/internal/fs"
)

// DefaultLockTimeout bounds how long an operation waits for a contended
// record before giving up with ErrLockTimeout.
const DefaultLockTimeout = 10 * time.Second

// schemaVersionField is defaulted at save time and never rewritten afterward.
const (
	schemaVersionField   = "schema_version"
	currentSchemaVersion = "v1"
)

const dirPerm = 0o755

// Options configures Open.
//
// The zero value resolves the project root by walking upward from the
// current working directory looking for a marker file, keeps backups on
// delete, and uses the real filesystem.
type Options struct {
	// Root is an explicit project root. When set, no marker walk happens.
	Root string

	// WorkDir is where the marker walk starts when Root is empty.
	// Empty means the process working directory.
	WorkDir string

	// FS substitutes the filesystem, for tests. Nil means the real one.
	FS fs.FS

	// LockTimeout bounds lock acquisition. Zero means DefaultLockTimeout.
	LockTimeout time.Duration

	// DisableBackups turns off the snapshot-before-delete behavior.
	DisableBackups bool

	// Debugf receives diagnostic traces. Nil means discard. Tracing never
	// alters behavior, only verbosity.
	Debugf func(format string, args ...any)
}

// Store is the repository over the record files. Safe for concurrent use
// from multiple goroutines and multiple processes; all mutual exclusion is
// per-record file locking, never an in-process mutex, so unrelated processes
// stay correct too.
type Store struct {
	fs         fs.FS
	root       string // project root
	issuesDir  string
	backupsDir string

	locker *fs.Locker
	writer *fs.AtomicWriter

	lockTimeout time.Duration
	backups     bool
	debugf      func(format string, args ...any)
}

// Open resolves the store root and ensures the issues directory exists.
// Idempotent: repeated calls return equivalent stores and never fail on an
// already-existing directory.
func Open(opts Options) (*Store, error) {
	fsys := opts.FS
	if fsys == nil {
		fsys = fs.NewReal()
	}

	debugf := opts.Debugf
	if debugf == nil {
		debugf = func(string, ...any) {}
	}

	root := opts.Root
	if root == "" {
		workDir := opts.WorkDir
		if workDir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("resolving working directory: %w", err)
			}

			workDir = wd
		}

		root = resolveProjectRoot(fsys, workDir, debugf)
	}

	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}

	s := &Store{
		fs:          fsys,
		root:        root,
		issuesDir:   filepath.Join(root, storeDirName, issuesDirName),
		backupsDir:  filepath.Join(root, storeDirName, backupsDirName),
		locker:      fs.NewLocker(fsys),
		writer:      fs.NewAtomicWriter(fsys),
		lockTimeout: timeout,
		backups:     !opts.DisableBackups,
		debugf:      debugf,
	}

	if err := fsys.MkdirAll(s.issuesDir, dirPerm); err != nil {
		return nil, fmt.Errorf("%w: creating issues directory %s: %w", ErrWriteFailed, s.issuesDir, err)
	}

	s.debugf("store open: issues dir %s", s.issuesDir)

	return s, nil
}

// Dir returns the directory holding the record files.
func (s *Store) Dir() string {
	return s.issuesDir
}

// recordPath returns the on-disk location for id. The id must already be
// validated.
func (s *Store) recordPath(id string) string {
	return filepath.Join(s.issuesDir, recordFileName(id))
}

// Save persists doc, assigning a fresh id when it has none, and returns the
// id. Overwriting an existing id replaces its content but keeps identity;
// last writer wins, there is no optimistic-concurrency check.
func (s *Store) Save(doc Document) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("%w: document must be a keyed map", ErrInvalidStructure)
	}

	id, _ := doc["id"].(string)
	if id == "" {
		id = newID()
		doc["id"] = id
		s.debugf("save: assigned id %s", id)
	}

	if err := validateID(id); err != nil {
		return "", fmt.Errorf("%w: %q", err, id)
	}

	if v, ok := doc[schemaVersionField].(string); !ok || v == "" {
		doc[schemaVersionField] = currentSchemaVersion
	}

	data, err := encodeDocument(doc)
	if err != nil {
		return "", err
	}

	path := s.recordPath(id)

	lock, err := s.acquire(path)
	if err != nil {
		return "", err
	}
	defer lock.Release()

	if err := s.atomicWrite(path, data); err != nil {
		return "", err
	}

	s.debugf("save: wrote %s (%d bytes)", path, len(data))

	return id, nil
}

// Load reads the record with the given id. A parsed document missing its
// "id" field gets it back-filled from the file name, which defends against
// manually edited files.
func (s *Store) Load(id string) (Document, error) {
	if err := validateID(id); err != nil {
		return nil, fmt.Errorf("%w: %q", err, id)
	}

	path := s.recordPath(id)

	if _, err := s.fs.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}

		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	lock, err := s.acquire(path)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	doc, err := s.readDocument(path)
	if err != nil {
		return nil, err
	}

	if _, ok := doc["id"].(string); !ok {
		doc["id"] = id
	}

	return doc, nil
}

// ScanFailure records one file that could not be read during List.
type ScanFailure struct {
	Path string
	Err  error
}

// List returns every readable record sorted by severity (most urgent first),
// then creation time (newest first).
//
// This is not a consistent snapshot: each file is locked and read
// independently, so a concurrent writer may be reflected partially. The
// guarantee is only that no record is ever observed in a half-written state.
// A file that cannot be read is skipped, never fatal to the listing.
func (s *Store) List() ([]Document, error) {
	docs, _, err := s.ListDetailed()

	return docs, err
}

// ListDetailed is List plus the per-file failures that were skipped,
// for diagnostics.
func (s *Store) ListDetailed() ([]Document, []ScanFailure, error) {
	entries, err := s.fs.ReadDir(s.issuesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}

		return nil, nil, fmt.Errorf("reading issues directory: %w", err)
	}

	var (
		docs     []Document
		failures []ScanFailure
	)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isRecordFile(name) {
			continue
		}

		path := filepath.Join(s.issuesDir, name)

		doc, err := s.readLocked(path)
		if err != nil {
			s.debugf("list: skipping %s: %v", path, err)
			failures = append(failures, ScanFailure{Path: path, Err: err})

			continue
		}

		if _, ok := doc["id"].(string); !ok {
			doc["id"] = idFromFileName(name)
		}

		docs = append(docs, doc)
	}

	sortDocuments(docs)

	return docs, failures, nil
}

// GetByIndex returns the i-th record of the current listing, 1-based. The
// index is ephemeral: it is recomputed from a fresh listing on every call and
// is not stable across saves or deletes.
func (s *Store) GetByIndex(index int) (Document, error) {
	if index < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}

	docs, err := s.List()
	if err != nil {
		return nil, err
	}

	if index > len(docs) {
		return nil, fmt.Errorf("%w: %d (1-%d)", ErrIndexOutOfRange, index, len(docs))
	}

	return docs[index-1], nil
}

// Delete removes the record with the given id, snapshotting it to the backup
// area first when backups are enabled. Returns false (not an error) when the
// record does not exist.
func (s *Store) Delete(id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, fmt.Errorf("%w: %q", err, id)
	}

	path := s.recordPath(id)

	if _, err := s.fs.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("stat %s: %w", path, err)
	}

	lock, err := s.acquire(path)
	if err != nil {
		return false, err
	}
	defer lock.Release()

	data, err := s.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil // lost the race to another deleter
		}

		return false, fmt.Errorf("reading %s: %w", path, err)
	}

	if s.backups {
		if err := s.writeBackup(id, data); err != nil {
			return false, err
		}
	}

	if err := s.fs.Remove(path); err != nil {
		return false, fmt.Errorf("%w: removing %s: %w", ErrWriteFailed, path, err)
	}

	s.debugf("delete: removed %s", path)

	return true, nil
}

// acquire takes the per-record lock, mapping the lock layer's errors into the
// store taxonomy.
func (s *Store) acquire(path string) (*fs.FileLock, error) {
	lock, err := s.locker.Acquire(path, s.lockTimeout)
	if err == nil {
		return lock, nil
	}

	switch {
	case errors.Is(err, fs.ErrLockTimeout):
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, path)
	case errors.Is(err, fs.ErrLockOpen):
		return nil, fmt.Errorf("%w: %s: %w", ErrLockIO, path, err)
	default:
		return nil, fmt.Errorf("%w: %s: %w", ErrLockIO, path, err)
	}
}

// readLocked reads one record file under its lock.
func (s *Store) readLocked(path string) (Document, error) {
	lock, err := s.acquire(path)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	return s.readDocument(path)
}

// readDocument opens and parses a record file. Non-existence yields
// ErrNotFound, malformed content ErrCorruptDocument, a non-object payload
// ErrInvalidStructure.
func (s *Store) readDocument(path string) (Document, error) {
	data, err := s.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}

		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return decodeDocument(data, path)
}

// atomicWrite writes data to path through the atomic writer. A failed
// directory sync is traced but not surfaced: the rename already landed, so
// the record is intact and only the durability of the directory entry is in
// question.
func (s *Store) atomicWrite(path string, data []byte) error {
	err := s.writer.Write(path, bytes.NewReader(data))
	if err == nil {
		return nil
	}

	if errors.Is(err, fs.ErrDirSync) {
		s.debugf("write %s: %v", path, err)

		return nil
	}

	return fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
}
