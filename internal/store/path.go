package store

import (
	"path/filepath"
	"strings"

	"bugit/internal/fs"
)

// Directory names under the resolved project root.
const (
	storeDirName   = ".bugit"
	issuesDirName  = "issues"
	backupsDirName = "backups"
)

// projectMarkers identify a project root during the upward walk. The first
// ancestor (including the start directory) containing any of these wins.
var projectMarkers = []string{".bugitrc", ".git"}

// ResolveRoot locates the project root for a process working directory using
// the real filesystem. Exposed so callers that need the root before opening
// the store (config lives there) resolve it exactly once, the same way Open
// would.
func ResolveRoot(workDir string, debugf func(string, ...any)) string {
	if debugf == nil {
		debugf = func(string, ...any) {}
	}

	return resolveProjectRoot(fs.NewReal(), workDir, debugf)
}

// resolveProjectRoot walks from startDir upward looking for a project marker.
// If no ancestor carries one, startDir itself is used and a diagnostic is
// traced; the store still works, it just lives where the caller stands.
func resolveProjectRoot(fsys fs.FS, startDir string, debugf func(string, ...any)) string {
	dir := startDir

	for {
		for _, marker := range projectMarkers {
			if _, err := fsys.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	debugf("no project marker found above %s, using it as root", startDir)

	return startDir
}

// recordFileName returns the file name for a record id.
func recordFileName(id string) string {
	return id + recordExt
}

const recordExt = ".json"

// validateID rejects ids that are empty or would escape the issues directory
// when used as a file name.
func validateID(id string) error {
	if id == "" {
		return ErrInvalidID
	}

	if strings.ContainsAny(id, `/\`) || id != filepath.Base(id) || id == "." || id == ".." {
		return ErrInvalidID
	}

	return nil
}

// isRecordFile reports whether a directory entry name belongs to a live
// record, excluding lock side-cars and atomic-writer temp files by pattern.
func isRecordFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false // temp files are dot-prefixed
	}

	if strings.HasSuffix(name, lockExt) {
		return false
	}

	return strings.HasSuffix(name, recordExt)
}

const lockExt = ".lock"

// idFromFileName recovers the record id from its file name.
func idFromFileName(name string) string {
	return strings.TrimSuffix(name, recordExt)
}
