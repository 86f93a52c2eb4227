package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSQL(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("select 1;"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestCollectSQLOrdersBySequence(t *testing.T) {
	dir := t.TempDir()
	writeSQL(t, dir, "0002_slots.up.sql")
	writeSQL(t, dir, "0001_core.up.sql")
	writeSQL(t, dir, "0001_core.down.sql")

	files, err := collectSQL(dir, ".up.sql")
	if err != nil {
		t.Fatalf("collectSQL: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 up migrations, got %d", len(files))
	}
	if files[0].Base != "0001_core.up.sql" || files[1].Base != "0002_slots.up.sql" {
		t.Fatalf("wrong order: %v", files)
	}
}

func TestCollectSQLRejectsBadName(t *testing.T) {
	dir := t.TempDir()
	writeSQL(t, dir, "core.up.sql")

	if _, err := collectSQL(dir, ".up.sql"); err == nil {
		t.Fatal("expected naming convention error")
	}
}

func TestCollectSQLRejectsDuplicateSequence(t *testing.T) {
	dir := t.TempDir()
	writeSQL(t, dir, "0001_core.up.sql")
	writeSQL(t, dir, "0001_extra.up.sql")

	_, err := collectSQL(dir, ".up.sql")
	if err == nil || !strings.Contains(err.Error(), "duplicate sequence") {
		t.Fatalf("expected duplicate sequence error, got %v", err)
	}
}

func TestCollectSQLMissingDir(t *testing.T) {
	files, err := collectSQL(filepath.Join(t.TempDir(), "nope"), ".sql")
	if err != nil || files != nil {
		t.Fatalf("missing dir must be empty, got %v %v", files, err)
	}
}

func TestSplitStatementsKeepsQuotedSemicolons(t *testing.T) {
	stmts := splitStatements("insert into t values ('a;b'); select 1;")
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if !strings.Contains(stmts[0], "'a;b'") {
		t.Fatalf("quoted semicolon split: %q", stmts[0])
	}
}
