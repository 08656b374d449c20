package scheduler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreLoadMissingFile(t *testing.T) {
	t.Parallel()

	store := NewFileStore(filepath.Join(t.TempDir(), "jobs.json"))
	st, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if st != nil {
		t.Fatalf("Load() = %+v, want nil for missing file", st)
	}
}

func TestFileStoreSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "jobs.json")
	store := NewFileStore(path)

	in := State{
		Version: storageVersion,
		Jobs: []json.RawMessage{
			json.RawMessage(`{"job_id":"aa11bb22","cron_expression":"0 8 * * *","description":"morning","actions":[],"enabled":true}`),
		},
	}
	if err := store.Save(in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	out, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if out == nil || out.Version != storageVersion {
		t.Fatalf("Load() = %+v, want version %d", out, storageVersion)
	}
	if len(out.Jobs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out.Jobs))
	}

	var rec map[string]any
	if err := json.Unmarshal(out.Jobs[0], &rec); err != nil {
		t.Fatalf("record not valid JSON: %v", err)
	}
	if rec["job_id"] != "aa11bb22" || rec["cron_expression"] != "0 8 * * *" {
		t.Errorf("unexpected record: %v", rec)
	}

	// The temp file used for atomic writes must not linger.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
}

func TestFileStoreLoadCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "jobs.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := NewFileStore(path).Load(); err == nil {
		t.Fatal("expected error for corrupt store file")
	}
}

func TestFileStoreRejectsNewerVersion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "jobs.json")
	blob := `{"version":99,"jobs":[]}`
	if err := os.WriteFile(path, []byte(blob), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := NewFileStore(path).Load(); err == nil {
		t.Fatal("expected error for newer store version")
	}
}

func TestFileStoreEmptyPathDisablesPersistence(t *testing.T) {
	t.Parallel()

	store := NewFileStore("  ")
	if err := store.Save(State{Version: storageVersion}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	st, err := store.Load()
	if err != nil || st != nil {
		t.Fatalf("Load() = %+v, %v; want nil, nil", st, err)
	}
}
