package db

import (
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})
	return database
}

func TestNewCreatesSchema(t *testing.T) {
	database := newTestDB(t)

	tables := []string{
		"chat_sessions", "requests", "request_parts", "request_variables",
		"responses", "result_messages", "followups", "content_references",
		"code_citations", "tool_outputs", "agents", "metrics_repeat_failures",
		"catalog_metadata",
	}
	for _, table := range tables {
		var name string
		err := database.QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("Table %s missing: %v", table, err)
		}
	}
}

func TestNewStampsSchemaVersion(t *testing.T) {
	database := newTestDB(t)

	version, err := database.GetMetadata("schema_version")
	if err != nil {
		t.Fatal(err)
	}
	if version != SchemaVersion {
		t.Errorf("Expected schema version %s, got %s", SchemaVersion, version)
	}

	migratedAt, err := database.GetMetadata("schema_migrated_at_utc")
	if err != nil {
		t.Fatal(err)
	}
	if migratedAt == "" {
		t.Error("Expected a migration timestamp")
	}
}

func TestVersionNumberComparesNumerically(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"3", 3},
		{"10", 10},
		{"", 0},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := versionNumber(tt.in); got != tt.want {
			t.Errorf("versionNumber(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}

	// "10" sorts before "3" as a string; numerically it must not
	if versionNumber("10") <= versionNumber("3") {
		t.Error("Version 10 must compare above version 3")
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	database := newTestDB(t)

	if err := database.SetMetadata("k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := database.SetMetadata("k", "v2"); err != nil {
		t.Fatal(err)
	}

	got, err := database.GetMetadata("k")
	if err != nil {
		t.Fatal(err)
	}
	if got != "v2" {
		t.Errorf("Expected v2, got %s", got)
	}

	missing, err := database.GetMetadata("absent")
	if err != nil {
		t.Fatal(err)
	}
	if missing != "" {
		t.Errorf("Missing key must read as empty, got %s", missing)
	}
}

func TestResetRows(t *testing.T) {
	database := newTestDB(t)

	_, err := database.Exec(`
		INSERT INTO chat_sessions (session_id, workspace_fingerprint) VALUES ('s1', 'fp')
	`)
	if err != nil {
		t.Fatal(err)
	}
	_, err = database.Exec(`
		INSERT INTO requests (request_id, session_id, workspace_fingerprint) VALUES ('r1', 's1', 'fp')
	`)
	if err != nil {
		t.Fatal(err)
	}
	if err := database.SetMetadata("schema_version", SchemaVersion); err != nil {
		t.Fatal(err)
	}

	tx, err := database.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := ResetRows(tx); err != nil {
		t.Fatalf("ResetRows() error = %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := database.QueryRow("SELECT COUNT(*) FROM chat_sessions").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("Expected 0 sessions after reset, got %d", count)
	}
	if err := database.QueryRow("SELECT COUNT(*) FROM requests").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("Expected 0 requests after reset, got %d", count)
	}

	// Reset clears rows, not the catalog metadata
	version, err := database.GetMetadata("schema_version")
	if err != nil {
		t.Fatal(err)
	}
	if version != SchemaVersion {
		t.Errorf("Metadata must survive a reset, got %q", version)
	}
}
