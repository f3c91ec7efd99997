// Package metrics aggregates repeated failing-command observations for a
// workspace within a single ingest run.
package metrics

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/neilberkman/cophist/internal/core/redact"
	"github.com/neilberkman/cophist/pkg/chatsessions"
)

const (
	maxSnippetLen = 200
	maxPayloadLen = 20000
)

// Entry is one aggregated failure signature.
type Entry struct {
	CommandText     string
	ExitCode        int64
	OccurrenceCount int
	LastSeenMS      int64
	RequestID       string
	SampleSnippet   string
	PayloadJSON     *string
}

type key struct {
	commandHash string
	exitCode    int64
}

// truncate caps a string at n characters without splitting a rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Aggregator deduplicates failing commands by (command hash, exit code).
// Commands differing only in case or quoting count as distinct
// signatures.
type Aggregator struct {
	fingerprint string
	redactor    *redact.Redactor
	entries     map[key]*Entry
	order       []key
}

// New returns an empty aggregator scoped to a workspace fingerprint.
func New(fingerprint string, redactor *redact.Redactor) *Aggregator {
	return &Aggregator{
		fingerprint: fingerprint,
		redactor:    redactor,
		entries:     make(map[key]*Entry),
	}
}

// Register records one failing-command observation. Blank commands and
// nil or zero exit codes are ignored. On a repeated signature the count
// is bumped and, when the new timestamp is at least the stored one, the
// sample snippet, representative request id, and payload are replaced.
func (a *Aggregator) Register(requestID, commandText string, exitCode, timestampMS *int64, payload *chatsessions.Value) {
	canonical := strings.TrimSpace(commandText)
	if canonical == "" {
		return
	}
	if exitCode == nil || *exitCode == 0 {
		return
	}

	digest := sha256.Sum256([]byte(canonical))
	k := key{commandHash: hex.EncodeToString(digest[:]), exitCode: *exitCode}

	payloadJSON := a.redactor.Dump(payload)
	if payloadJSON != nil {
		capped := truncate(*payloadJSON, maxPayloadLen)
		if capped != *payloadJSON {
			capped += "..."
		}
		payloadJSON = &capped
	}
	snippet := truncate(a.redactor.Text(canonical), maxSnippetLen)
	var ts int64
	if timestampMS != nil {
		ts = *timestampMS
	}

	if existing, ok := a.entries[k]; ok {
		existing.OccurrenceCount++
		if ts >= existing.LastSeenMS {
			existing.LastSeenMS = ts
			existing.RequestID = requestID
			existing.SampleSnippet = snippet
			existing.PayloadJSON = payloadJSON
		}
		return
	}

	a.entries[k] = &Entry{
		CommandText:     canonical,
		ExitCode:        *exitCode,
		OccurrenceCount: 1,
		LastSeenMS:      ts,
		RequestID:       requestID,
		SampleSnippet:   snippet,
		PayloadJSON:     payloadJSON,
	}
	a.order = append(a.order, k)
}

// Len returns the number of distinct failure signatures so far.
func (a *Aggregator) Len() int {
	return len(a.entries)
}

// Persist replaces the workspace's aggregate rows with this run's
// observations. The table reflects only the files processed in the
// current run.
func (a *Aggregator) Persist(tx *sql.Tx) error {
	if _, err := tx.Exec(
		`DELETE FROM metrics_repeat_failures WHERE workspace_fingerprint = ?`,
		a.fingerprint,
	); err != nil {
		return fmt.Errorf("clear repeat failures: %w", err)
	}

	for _, k := range a.order {
		entry := a.entries[k]
		_, err := tx.Exec(`
			INSERT INTO metrics_repeat_failures (
				workspace_fingerprint, command_hash, command_text, exit_code,
				occurrence_count, last_seen_ms, request_id, sample_snippet,
				redacted_payload_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			a.fingerprint,
			k.commandHash,
			entry.CommandText,
			entry.ExitCode,
			entry.OccurrenceCount,
			entry.LastSeenMS,
			entry.RequestID,
			entry.SampleSnippet,
			entry.PayloadJSON,
		)
		if err != nil {
			return fmt.Errorf("insert repeat failure %s: %w", entry.SampleSnippet, err)
		}
	}
	return nil
}
