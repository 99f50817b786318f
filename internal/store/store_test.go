package store_test

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"bugit/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.Open(store.Options{
		Root:        t.TempDir(),
		LockTimeout: 2 * time.Second,
	})
	require.NoError(t, err)

	return st
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	// Values as JSON will hand them back: []any and float64, not []string
	// and int.
	doc := store.Document{
		"title":       "Crash on login",
		"description": "App crashes when the password field is empty\nwith a stack trace",
		"severity":    "high",
		"type":        "bug",
		"tags":        []any{"auth", "crash"},
		"created_at":  "2026-08-30T10:00:00Z",
		"extra":       map[string]any{"retries": float64(3)},
	}

	id, err := st.Save(doc)
	require.NoError(t, err)
	require.Len(t, id, 6)
	require.Equal(t, id, doc["id"])
	require.Equal(t, "v1", doc["schema_version"])

	loaded, err := st.Load(id)
	require.NoError(t, err)

	if diff := cmp.Diff(doc, loaded); diff != "" {
		t.Fatalf("loaded document differs from saved (-saved +loaded):\n%s", diff)
	}
}

func TestSaveKeepsIdentityOnOverwrite(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	id, err := st.Save(store.Document{"title": "first"})
	require.NoError(t, err)

	_, err = st.Save(store.Document{"id": id, "title": "second"})
	require.NoError(t, err)

	loaded, err := st.Load(id)
	require.NoError(t, err)
	require.Equal(t, "second", loaded["title"])

	docs, err := st.List()
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestSaveRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	_, err := st.Save(nil)
	require.ErrorIs(t, err, store.ErrInvalidStructure)

	for _, id := range []string{"../evil", `..\evil`, "a/b", ".", ".."} {
		_, err := st.Save(store.Document{"id": id, "title": "x"})
		require.ErrorIs(t, err, store.ErrInvalidID, "id %q", id)
	}
}

func TestLoadMissingRecord(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	_, err := st.Load("nosuch")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.Load("")
	require.ErrorIs(t, err, store.ErrInvalidID)
}

func TestLoadBackfillsIDFromFileName(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	// A hand-edited file that lost its id field.
	path := filepath.Join(st.Dir(), "abc123.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"title": "orphaned"}`), 0o644))

	loaded, err := st.Load("abc123")
	require.NoError(t, err)
	require.Equal(t, "abc123", loaded["id"])
	require.Equal(t, "orphaned", loaded["title"])
}

func TestLoadDistinguishesCorruptionFromBadStructure(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	require.NoError(t, os.WriteFile(filepath.Join(st.Dir(), "broken.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(st.Dir(), "array.json"), []byte("[1, 2, 3]"), 0o644))

	_, err := st.Load("broken")
	require.ErrorIs(t, err, store.ErrCorruptDocument)

	_, err = st.Load("array")
	require.ErrorIs(t, err, store.ErrInvalidStructure)
}

func TestListOrdersBySeverityThenRecency(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	save := func(title, severity, createdAt string) {
		t.Helper()

		_, err := st.Save(store.Document{
			"title":      title,
			"severity":   severity,
			"created_at": createdAt,
		})
		require.NoError(t, err)
	}

	save("old low", "low", "2026-08-01T08:00:00Z")
	save("old critical", "critical", "2026-08-02T08:00:00Z")
	save("medium", "medium", "2026-08-03T08:00:00Z")
	save("new critical", "critical", "2026-08-04T08:00:00Z")
	save("unknown severity", "", "2026-08-05T08:00:00Z")

	docs, err := st.List()
	require.NoError(t, err)

	titles := make([]string, 0, len(docs))
	for _, doc := range docs {
		titles = append(titles, doc["title"].(string))
	}

	want := []string{"new critical", "old critical", "unknown severity", "medium", "old low"}
	require.Equal(t, want, titles)
}

func TestListAcceptsZonelessTimestamps(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	_, err := st.Save(store.Document{"title": "zoned", "created_at": "2026-08-01T08:00:00Z"})
	require.NoError(t, err)

	_, err = st.Save(store.Document{"title": "zoneless", "created_at": "2026-08-02T08:00:00"})
	require.NoError(t, err)

	docs, err := st.List()
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "zoneless", docs[0]["title"])
}

func TestListSkipsUnreadableFilesAndForeignEntries(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	_, err := st.Save(store.Document{"title": "good one"})
	require.NoError(t, err)

	_, err = st.Save(store.Document{"title": "good two"})
	require.NoError(t, err)

	dir := st.Dir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corrupt.json"), []byte("{oops"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scalar.json"), []byte(`"just a string"`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.json.lock"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".crashed.json.tmp-42"), []byte("partial"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a record"), 0o644))

	docs, failures, err := st.ListDetailed()
	require.NoError(t, err)
	require.Len(t, docs, 2, "only intact records should be listed")
	require.Len(t, failures, 2, "corrupt and mis-shaped records should be reported, foreign files ignored")
}

func TestListWithoutIssuesDirectory(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	require.NoError(t, os.RemoveAll(st.Dir()))

	docs, err := st.List()
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestGetByIndexBounds(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	_, err := st.Save(store.Document{"title": "a", "created_at": "2026-08-01T08:00:00Z"})
	require.NoError(t, err)
	_, err = st.Save(store.Document{"title": "b", "created_at": "2026-08-02T08:00:00Z"})
	require.NoError(t, err)

	_, err = st.GetByIndex(0)
	require.ErrorIs(t, err, store.ErrInvalidIndex)

	_, err = st.GetByIndex(-1)
	require.ErrorIs(t, err, store.ErrInvalidIndex)

	_, err = st.GetByIndex(3)
	require.ErrorIs(t, err, store.ErrIndexOutOfRange)

	docs, err := st.List()
	require.NoError(t, err)

	first, err := st.GetByIndex(1)
	require.NoError(t, err)
	require.Equal(t, docs[0]["id"], first["id"])
}

func TestDeleteThenLoad(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	id, err := st.Save(store.Document{"title": "doomed"})
	require.NoError(t, err)

	deleted, err := st.Delete(id)
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = st.Load(id)
	require.ErrorIs(t, err, store.ErrNotFound)

	deleted, err = st.Delete(id)
	require.NoError(t, err)
	require.False(t, deleted, "second delete reports absence, not an error")
}

func TestDeleteWritesFaithfulBackup(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	st, err := store.Open(store.Options{Root: root, LockTimeout: 2 * time.Second})
	require.NoError(t, err)

	id, err := st.Save(store.Document{"title": "keep a copy", "severity": "high"})
	require.NoError(t, err)

	original, err := os.ReadFile(filepath.Join(st.Dir(), id+".json"))
	require.NoError(t, err)

	deleted, err := st.Delete(id)
	require.NoError(t, err)
	require.True(t, deleted)

	backupsDir := filepath.Join(root, ".bugit", "backups")
	entries, err := os.ReadDir(backupsDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	namePattern := regexp.MustCompile(`^` + regexp.QuoteMeta(id) + `_\d+\.json$`)
	require.Regexp(t, namePattern, entries[0].Name())

	snapshot, err := os.ReadFile(filepath.Join(backupsDir, entries[0].Name()))
	require.NoError(t, err)
	require.Equal(t, original, snapshot, "backup must be byte-identical to the deleted record")
}

func TestDeleteWithBackupsDisabled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	st, err := store.Open(store.Options{Root: root, DisableBackups: true, LockTimeout: 2 * time.Second})
	require.NoError(t, err)

	id, err := st.Save(store.Document{"title": "gone for good"})
	require.NoError(t, err)

	deleted, err := st.Delete(id)
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = os.Stat(filepath.Join(root, ".bugit", "backups"))
	require.True(t, os.IsNotExist(err), "no backup area should appear when backups are off")
}

func TestConcurrentSavesSameRecord(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	const writers = 4

	titles := make(map[string]bool, writers)

	var wg sync.WaitGroup

	for i := 0; i < writers; i++ {
		title := fmt.Sprintf("writer %d", i)
		titles[title] = true

		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := st.Save(store.Document{"id": "shared1", "title": title})
			if err != nil {
				t.Errorf("Save: %v", err)
			}
		}()
	}

	wg.Wait()

	loaded, err := st.Load("shared1")
	require.NoError(t, err)

	title, _ := loaded["title"].(string)
	require.True(t, titles[title], "record must be one complete version, got title %q", title)
}

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	st1, err := store.Open(store.Options{Root: root})
	require.NoError(t, err)

	id, err := st1.Save(store.Document{"title": "persists"})
	require.NoError(t, err)

	st2, err := store.Open(store.Options{Root: root})
	require.NoError(t, err)

	loaded, err := st2.Load(id)
	require.NoError(t, err)
	require.Equal(t, "persists", loaded["title"])
}

func TestOpenResolvesRootByMarkerWalk(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".bugitrc"), []byte("{}"), 0o644))

	nested := filepath.Join(root, "src", "deep")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	st, err := store.Open(store.Options{WorkDir: nested})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, ".bugit", "issues"), st.Dir())
}

func TestOpenFallsBackToWorkDirWithoutMarker(t *testing.T) {
	t.Parallel()

	// TempDir has no marker and no marked ancestor it can reach before /.
	dir := t.TempDir()

	var traced bool

	st, err := store.Open(store.Options{
		WorkDir: dir,
		Debugf:  func(string, ...any) { traced = true },
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, ".bugit", "issues"), st.Dir())
	require.True(t, traced, "fallback should leave a trace")
}

func TestStatsAggregates(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	for _, severity := range []string{"critical", "high", "high", ""} {
		doc := store.Document{"title": "x"}
		if severity != "" {
			doc["severity"] = severity
		}

		_, err := st.Save(doc)
		require.NoError(t, err)
	}

	stats := st.Stats()
	require.Empty(t, stats.Err)
	require.Equal(t, st.Dir(), stats.IssuesDirectory)
	require.Equal(t, 4, stats.TotalIssues)
	require.Positive(t, stats.TotalSizeBytes)
	require.Equal(t, map[string]int{"low": 0, "medium": 1, "high": 2, "critical": 1}, stats.BySeverity)
}

func TestFaultClassification(t *testing.T) {
	t.Parallel()

	require.True(t, store.IsFault(fmt.Errorf("wrapped: %w", store.ErrNotFound)))
	require.True(t, store.IsFault(store.ErrLockTimeout))
	require.False(t, store.IsFault(fmt.Errorf("unrelated")))

	require.True(t, store.IsContention(store.ErrLockTimeout))
	require.True(t, store.IsContention(store.ErrLockIO))
	require.False(t, store.IsContention(store.ErrCorruptDocument))
}
