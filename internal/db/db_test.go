package db

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInit(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "ctx.sqlite")

	db, err := Init(dbPath)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file not created at %s", dbPath)
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		t.Fatalf("failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}

	var tableName string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='captures'").Scan(&tableName)
	if err != nil {
		t.Fatalf("captures table not found: %v", err)
	}

	for _, idx := range []string{"idx_captures_file_hash", "idx_captures_created_at"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&name)
		if err != nil {
			t.Errorf("index %s not found: %v", idx, err)
		}
	}
}

func TestInit_CreatesDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	baseDir := filepath.Join(tmpDir, "nested", "path", "Ctx")

	db, err := Init(filepath.Join(baseDir, "ctx.sqlite"))
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(baseDir); os.IsNotExist(err) {
		t.Errorf("base directory not created at %s", baseDir)
	}
}

func TestUserVersion(t *testing.T) {
	db, err := Init(filepath.Join(t.TempDir(), "ctx.sqlite"))
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	version, err := GetUserVersion(db)
	if err != nil {
		t.Fatalf("GetUserVersion() error = %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("version = %d, want %d", version, CurrentSchemaVersion)
	}
}

func TestInit_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ctx.sqlite")

	db1, err := Init(dbPath)
	if err != nil {
		t.Fatalf("first Init() error = %v", err)
	}
	if _, err := db1.Exec(`INSERT INTO captures (id, created_at, file_hash, file_name, file_size_bytes,
		file_path_at_capture, origin_title, origin_url) VALUES ('01A', 1, 'h', 'n', 1, '/p', 't', 'u')`); err != nil {
		t.Fatalf("insert error = %v", err)
	}
	db1.Close()

	db2, err := Init(dbPath)
	if err != nil {
		t.Fatalf("second Init() error = %v", err)
	}
	defer db2.Close()

	var n int
	if err := db2.QueryRow("SELECT count(*) FROM captures").Scan(&n); err != nil {
		t.Fatalf("count error = %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1 (migration must not reset data)", n)
	}
}
