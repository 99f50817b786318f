package fs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func Test_AtomicWriter_Creates_Target_With_Exact_Content(t *testing.T) {
	t.Parallel()

	writer := NewAtomicWriter(NewReal())
	path := filepath.Join(t.TempDir(), "record.json")

	content := `{"id": "abc123"}` + "\n"

	if err := writer.Write(path, strings.NewReader(content)); err != nil {
		t.Fatalf("Write(%q): %v", path, err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%q): %v", path, err)
	}

	if string(got) != content {
		t.Fatalf("content mismatch:\ngot:  %q\nwant: %q", got, content)
	}
}

func Test_AtomicWriter_Replaces_Existing_File(t *testing.T) {
	t.Parallel()

	writer := NewAtomicWriter(NewReal())
	path := filepath.Join(t.TempDir(), "record.json")

	if err := writer.Write(path, strings.NewReader("old")); err != nil {
		t.Fatalf("first Write: %v", err)
	}

	if err := writer.Write(path, strings.NewReader("new")); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%q): %v", path, err)
	}

	if string(got) != "new" {
		t.Fatalf("content after replace: got %q, want %q", got, "new")
	}
}

func Test_AtomicWriter_Leaves_No_Temp_Files_On_Success(t *testing.T) {
	t.Parallel()

	writer := NewAtomicWriter(NewReal())
	dir := t.TempDir()
	path := filepath.Join(dir, "record.json")

	if err := writer.Write(path, strings.NewReader("data")); err != nil {
		t.Fatalf("Write(%q): %v", path, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(%q): %v", dir, err)
	}

	if len(entries) != 1 || entries[0].Name() != "record.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}

		t.Fatalf("directory holds %v, want only record.json", names)
	}
}

func Test_AtomicWriter_Rejects_Empty_Or_Invalid_Path(t *testing.T) {
	t.Parallel()

	writer := NewAtomicWriter(NewReal())

	if err := writer.Write("", strings.NewReader("data")); err == nil {
		t.Fatal("Write(\"\"): want error, got nil")
	}

	if err := writer.Write(t.TempDir()+string(os.PathSeparator), strings.NewReader("data")); err == nil {
		t.Fatal("Write on a directory path: want error, got nil")
	}
}

// failReader fails mid-copy so the writer's temp-file cleanup path runs.
type failReader struct{}

func (failReader) Read([]byte) (int, error) {
	return 0, errors.New("source failed")
}

func Test_AtomicWriter_Removes_Temp_File_When_Copy_Fails(t *testing.T) {
	t.Parallel()

	writer := NewAtomicWriter(NewReal())
	dir := t.TempDir()
	path := filepath.Join(dir, "record.json")

	err := writer.Write(path, failReader{})
	if err == nil {
		t.Fatal("Write with failing reader: want error, got nil")
	}

	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		t.Fatalf("ReadDir(%q): %v", dir, readErr)
	}

	if len(entries) != 0 {
		t.Fatalf("temp artifacts left after failed write: %v", entries)
	}
}

// renameFailFS fails every Rename to exercise the cleanup path after the temp
// file is fully written.
type renameFailFS struct {
	*Real
}

func (renameFailFS) Rename(string, string) error {
	return errors.New("rename failed")
}

func Test_AtomicWriter_Preserves_Previous_Content_When_Rename_Fails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "record.json")

	if err := os.WriteFile(path, []byte("previous"), 0o644); err != nil {
		t.Fatalf("seeding target: %v", err)
	}

	writer := NewAtomicWriter(renameFailFS{NewReal()})

	err := writer.Write(path, strings.NewReader("next"))
	if err == nil {
		t.Fatal("Write with failing rename: want error, got nil")
	}

	got, readErr := os.ReadFile(path)
	if readErr != nil {
		t.Fatalf("ReadFile(%q): %v", path, readErr)
	}

	if string(got) != "previous" {
		t.Fatalf("target changed despite failed rename: got %q, want %q", got, "previous")
	}

	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		t.Fatalf("ReadDir(%q): %v", dir, readErr)
	}

	if len(entries) != 1 {
		t.Fatalf("temp artifacts left after failed rename: %v", entries)
	}
}

func Test_AtomicWriter_Concurrent_Writers_Leave_One_Complete_Version(t *testing.T) {
	t.Parallel()

	writer := NewAtomicWriter(NewReal())
	dir := t.TempDir()
	path := filepath.Join(dir, "record.json")

	contents := []string{
		strings.Repeat("a", 4096),
		strings.Repeat("b", 4096),
		strings.Repeat("c", 4096),
		strings.Repeat("d", 4096),
	}

	var wg sync.WaitGroup

	for _, content := range contents {
		content := content

		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := writer.Write(path, strings.NewReader(content)); err != nil {
				t.Errorf("Write: %v", err)
			}
		}()
	}

	wg.Wait()

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%q): %v", path, err)
	}

	found := false
	for _, content := range contents {
		if string(got) == content {
			found = true

			break
		}
	}

	if !found {
		t.Fatalf("target is not one complete version (len=%d)", len(got))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(%q): %v", dir, err)
	}

	if len(entries) != 1 {
		t.Fatalf("temp artifacts left after concurrent writes: %v", entries)
	}
}
