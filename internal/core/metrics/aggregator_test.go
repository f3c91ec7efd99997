package metrics

import (
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/neilberkman/cophist/internal/core/db"
	"github.com/neilberkman/cophist/internal/core/redact"
	"github.com/neilberkman/cophist/pkg/chatsessions"
)

func int64Ptr(n int64) *int64 {
	return &n
}

func TestRegisterDeduplicates(t *testing.T) {
	a := New("fp", redact.New(true))

	a.Register("r1", "pytest -k smoke", int64Ptr(1), int64Ptr(100), nil)
	a.Register("r2", "  pytest -k smoke  ", int64Ptr(1), int64Ptr(200), nil)
	a.Register("r3", "pytest -k smoke", int64Ptr(2), int64Ptr(300), nil)

	if a.Len() != 2 {
		t.Fatalf("Expected 2 signatures, got %d", a.Len())
	}

	for _, entry := range a.entries {
		if entry.ExitCode == 1 {
			if entry.OccurrenceCount != 2 {
				t.Errorf("Expected count 2 for exit 1, got %d", entry.OccurrenceCount)
			}
			if entry.RequestID != "r2" || entry.LastSeenMS != 200 {
				t.Errorf("Latest occurrence must win: %+v", entry)
			}
		}
	}
}

func TestRegisterKeepsLatestSample(t *testing.T) {
	a := New("fp", redact.New(true))

	// An out-of-order older observation must not displace the newer sample
	a.Register("newer", "make build", int64Ptr(3), int64Ptr(500), nil)
	a.Register("older", "make build", int64Ptr(3), int64Ptr(100), nil)

	if a.Len() != 1 {
		t.Fatalf("Expected 1 signature, got %d", a.Len())
	}
	for _, entry := range a.entries {
		if entry.OccurrenceCount != 2 {
			t.Errorf("Expected count 2, got %d", entry.OccurrenceCount)
		}
		if entry.RequestID != "newer" {
			t.Errorf("Older observation displaced the sample: %+v", entry)
		}
	}
}

func TestRegisterIgnoresNonFailures(t *testing.T) {
	a := New("fp", redact.New(true))

	a.Register("r1", "", int64Ptr(1), nil, nil)            // blank command
	a.Register("r2", "   ", int64Ptr(1), nil, nil)         // whitespace command
	a.Register("r3", "go test ./...", nil, nil, nil)       // no exit code
	a.Register("r4", "go test ./...", int64Ptr(0), nil, nil) // success

	if a.Len() != 0 {
		t.Errorf("Expected no signatures, got %d", a.Len())
	}
}

func TestRegisterCapsSnippet(t *testing.T) {
	a := New("fp", redact.New(false))

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	a.Register("r1", "run "+string(long), int64Ptr(1), int64Ptr(1), nil)

	for _, entry := range a.entries {
		if len(entry.SampleSnippet) != maxSnippetLen {
			t.Errorf("Expected snippet capped at %d, got %d chars", maxSnippetLen, len(entry.SampleSnippet))
		}
	}
}

func TestRegisterCapsOnRuneBoundary(t *testing.T) {
	a := New("fp", redact.New(false))

	command := "echo " + strings.Repeat("日", 300)
	a.Register("r1", command, int64Ptr(1), int64Ptr(1), nil)

	for _, entry := range a.entries {
		if !utf8.ValidString(entry.SampleSnippet) {
			t.Error("Snippet split a multi-byte rune")
		}
		if got := utf8.RuneCountInString(entry.SampleSnippet); got != maxSnippetLen {
			t.Errorf("Expected %d runes, got %d", maxSnippetLen, got)
		}
	}
}

func TestRegisterRedactsSnippet(t *testing.T) {
	a := New("fp", redact.New(true))
	a.Register("r1", "run token=abc123XYZ now", int64Ptr(1), int64Ptr(1), nil)

	for _, entry := range a.entries {
		if entry.SampleSnippet != "run token=<redacted> now" {
			t.Errorf("Secret survived in snippet: %q", entry.SampleSnippet)
		}
	}
}

func TestPersistReplacesWorkspaceRows(t *testing.T) {
	catalog, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = catalog.Close()
	}()

	persist := func(a *Aggregator) {
		t.Helper()
		tx, err := catalog.Begin()
		if err != nil {
			t.Fatal(err)
		}
		if err := a.Persist(tx); err != nil {
			t.Fatalf("Persist() error = %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatal(err)
		}
	}

	first := New("fp-1", redact.New(true))
	first.Register("r1", "pytest -k smoke", int64Ptr(1), int64Ptr(100), nil)
	first.Register("r2", "pytest -k smoke", int64Ptr(1), int64Ptr(200), nil)
	first.Register("r3", "make build", int64Ptr(2), int64Ptr(150), nil)
	persist(first)

	var count int
	if err := catalog.QueryRow("SELECT COUNT(*) FROM metrics_repeat_failures").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("Expected 2 rows, got %d", count)
	}

	var occurrences, lastSeen int64
	err = catalog.QueryRow(`
		SELECT occurrence_count, last_seen_ms FROM metrics_repeat_failures
		WHERE command_text = ? AND exit_code = 1
	`, "pytest -k smoke").Scan(&occurrences, &lastSeen)
	if err != nil {
		t.Fatal(err)
	}
	if occurrences != 2 || lastSeen != 200 {
		t.Errorf("Expected (2, 200), got (%d, %d)", occurrences, lastSeen)
	}

	// A second run for the same workspace replaces its rows wholesale
	second := New("fp-1", redact.New(true))
	second.Register("r9", "go vet ./...", int64Ptr(1), int64Ptr(900), nil)
	persist(second)

	if err := catalog.QueryRow("SELECT COUNT(*) FROM metrics_repeat_failures").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected replacement to leave 1 row, got %d", count)
	}

	// Rows for other workspaces survive
	other := New("fp-2", redact.New(true))
	other.Register("r1", "cargo test", int64Ptr(101), int64Ptr(50), nil)
	persist(other)

	second = New("fp-1", redact.New(true))
	second.Register("r1", "npm test", int64Ptr(1), int64Ptr(999), nil)
	persist(second)

	if err := catalog.QueryRow("SELECT COUNT(*) FROM metrics_repeat_failures WHERE workspace_fingerprint = 'fp-2'").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Other workspace rows must survive, got %d", count)
	}
}

func TestPersistStoresPayload(t *testing.T) {
	catalog, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = catalog.Close()
	}()

	payload := chatsessions.Object(
		chatsessions.M("metadata", chatsessions.Object(
			chatsessions.M("exitCode", chatsessions.Int(1)),
		)),
	)

	a := New("fp", redact.New(true))
	a.Register("r1", "make test", int64Ptr(1), int64Ptr(10), payload)

	tx, err := catalog.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Persist(tx); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	var stored string
	err = catalog.QueryRow("SELECT redacted_payload_json FROM metrics_repeat_failures").Scan(&stored)
	if err != nil {
		t.Fatal(err)
	}
	if stored != `{"metadata":{"exitCode":1}}` {
		t.Errorf("Unexpected payload %q", stored)
	}
}
