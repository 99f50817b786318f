package store

import (
	"bytes"
	"fmt"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
)

// writeBackup snapshots the exact current bytes of a record into the backup
// area before deletion, named <id>_<unixtime>.json so repeated deletes of a
// reused file name never clobber an earlier snapshot.
//
// The snapshot is written through an atomic rename of its own: a crash during
// backup must not leave a truncated snapshot pretending to be a good one.
func (s *Store) writeBackup(id string, data []byte) error {
	if err := s.fs.MkdirAll(s.backupsDir, dirPerm); err != nil {
		return fmt.Errorf("%w: creating backups directory: %w", ErrWriteFailed, err)
	}

	name := fmt.Sprintf("%s_%d%s", id, time.Now().Unix(), recordExt)
	path := filepath.Join(s.backupsDir, name)

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: backup %s: %w", ErrWriteFailed, path, err)
	}

	s.debugf("delete: backed up %s to %s", id, path)

	return nil
}
