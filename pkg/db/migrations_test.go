package db

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const migrationsTestPrefix = "db:migrations_test"

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("%s - failed to write %s: %v", migrationsTestPrefix, name, err)
		}
	}
}

func TestLoadMigrationFiles_SortedSQLOnly(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"003_third.sql":  "THIRD",
		"001_first.sql":  "FIRST",
		"002_second.sql": "SECOND",
		"README.md":      "# Migrations",
		"notes.txt":      "notes",
	})
	// directory with a .sql suffix must be skipped
	if err := os.Mkdir(filepath.Join(dir, "004_dir.sql"), 0755); err != nil {
		t.Fatalf("%s - mkdir: %v", migrationsTestPrefix, err)
	}

	got, err := LoadMigrationFiles(dir)
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", migrationsTestPrefix, err)
	}
	want := []Migration{
		{Name: "001_first.sql", SQL: "FIRST"},
		{Name: "002_second.sql", SQL: "SECOND"},
		{Name: "003_third.sql", SQL: "THIRD"},
	}
	if len(got) != len(want) {
		t.Fatalf("%s - got %d migrations, want %d", migrationsTestPrefix, len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s - migration %d = %+v, want %+v", migrationsTestPrefix, i, got[i], want[i])
		}
	}
}

func TestLoadMigrationFiles_EmptyDir(t *testing.T) {
	got, err := LoadMigrationFiles(t.TempDir())
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", migrationsTestPrefix, err)
	}
	if len(got) != 0 {
		t.Errorf("%s - expected no migrations, got %d", migrationsTestPrefix, len(got))
	}
}

func TestLoadMigrationFiles_NonExistentDir(t *testing.T) {
	if _, err := LoadMigrationFiles(filepath.Join(t.TempDir(), "nonexistent")); err == nil {
		t.Errorf("%s - expected error for non-existent directory", migrationsTestPrefix)
	}
}

func TestLoadMigrationFiles_RepositoryMigrations(t *testing.T) {
	got, err := LoadMigrationFiles(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", migrationsTestPrefix, err)
	}
	if len(got) == 0 || !strings.Contains(got[0].SQL, "CREATE TABLE IF NOT EXISTS players") {
		t.Errorf("%s - first migration should create the players table", migrationsTestPrefix)
	}
}

func TestPendingMigrations(t *testing.T) {
	all := []Migration{{Name: "001.sql"}, {Name: "002.sql"}, {Name: "003.sql"}}

	tests := []struct {
		name    string
		applied map[string]bool
		want    []string
	}{
		{"none applied", nil, []string{"001.sql", "002.sql", "003.sql"}},
		{"first applied", map[string]bool{"001.sql": true}, []string{"002.sql", "003.sql"}},
		{"gap", map[string]bool{"001.sql": true, "003.sql": true}, []string{"002.sql"}},
		{"all applied", map[string]bool{"001.sql": true, "002.sql": true, "003.sql": true}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PendingMigrations(all, tt.applied)
			if len(got) != len(tt.want) {
				t.Fatalf("%s - got %d pending, want %d", migrationsTestPrefix, len(got), len(tt.want))
			}
			for i, m := range got {
				if m.Name != tt.want[i] {
					t.Errorf("%s - pending[%d] = %s, want %s", migrationsTestPrefix, i, m.Name, tt.want[i])
				}
			}
		})
	}
}

func TestWriteStatus(t *testing.T) {
	var buf bytes.Buffer
	writeStatus(&buf, []Migration{{Name: "001.sql"}, {Name: "002.sql"}}, map[string]bool{"001.sql": true})

	out := buf.String()
	for _, want := range []string{"applied  001.sql", "pending  002.sql", "1 pending"} {
		if !strings.Contains(out, want) {
			t.Errorf("%s - status output missing %q:\n%s", migrationsTestPrefix, want, out)
		}
	}
}

func TestMigrationDown_IsNoOp(t *testing.T) {
	var buf bytes.Buffer
	if err := MigrationDown(&buf); err != nil {
		t.Errorf("%s - MigrationDown returned %v, want nil", migrationsTestPrefix, err)
	}
	if !strings.Contains(buf.String(), "forward-only") {
		t.Errorf("%s - MigrationDown output = %q", migrationsTestPrefix, buf.String())
	}
}
