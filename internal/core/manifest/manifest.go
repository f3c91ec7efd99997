// Package manifest emits the catalog's companion documentation: a JSON
// schema manifest and a rendered README with sample queries.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cbroglie/mustache"

	"github.com/neilberkman/cophist/internal/core/db"
)

const (
	// ManifestName is the JSON schema manifest artifact.
	ManifestName = "schema_manifest.json"
	// ReadmeName is the human-readable companion document.
	ReadmeName = "README_CopilotChatHistory.md"
)

// Column documents one column of a catalog table.
type Column struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Table documents one catalog table.
type Table struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Columns     []Column `json:"columns"`
}

// Query is a sample query shipped with the manifest.
type Query struct {
	Title string `json:"title"`
	SQL   string `json:"sql"`
}

// Document is the full manifest payload.
type Document struct {
	SchemaVersion        string   `json:"schema_version"`
	GeneratedAtUTC       string   `json:"generated_at_utc"`
	DatabaseFile         string   `json:"database_file"`
	WorkspaceFingerprint string   `json:"workspace_fingerprint"`
	Tables               []Table  `json:"tables"`
	SampleQueries        []Query  `json:"sample_queries"`
	VersionHistory       []string `json:"version_history"`
}

// Write renders both artifacts into outputDir and returns their paths.
func Write(outputDir, dbPath, fingerprint string) (string, string, error) {
	doc := build(dbPath, fingerprint)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to encode manifest: %w", err)
	}
	manifestPath := filepath.Join(outputDir, ManifestName)
	if err := os.WriteFile(manifestPath, append(data, '\n'), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write manifest: %w", err)
	}

	readme, err := mustache.Render(readmeTemplate, readmeContext(doc))
	if err != nil {
		return "", "", fmt.Errorf("failed to render readme: %w", err)
	}
	readmePath := filepath.Join(outputDir, ReadmeName)
	if err := os.WriteFile(readmePath, []byte(readme), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write readme: %w", err)
	}

	return manifestPath, readmePath, nil
}

func build(dbPath, fingerprint string) *Document {
	return &Document{
		SchemaVersion:        db.SchemaVersion,
		GeneratedAtUTC:       time.Now().UTC().Format(time.RFC3339),
		DatabaseFile:         filepath.Base(dbPath),
		WorkspaceFingerprint: fingerprint,
		Tables:               tables,
		SampleQueries:        sampleQueries,
		VersionHistory: []string{
			"1: initial flat chat log tables",
			"2: per-request child tables and agents",
			"3: workspace fingerprint scoping and repeat-failure metrics",
		},
	}
}

var tables = []Table{
	{
		Name:        "chat_sessions",
		Description: "One row per chat session, scoped by workspace fingerprint.",
		Columns: []Column{
			{Name: "session_id", Description: "Stable session identifier from the archive."},
			{Name: "workspace_fingerprint", Description: "16-hex token scoping the row to a workspace."},
			{Name: "version", Description: "Archive format version."},
			{Name: "requester_username", Description: "Redacted requester display name."},
			{Name: "responder_username", Description: "Redacted responder display name."},
			{Name: "initial_location", Description: "Editor surface the session started in."},
			{Name: "creation_date_ms", Description: "Session creation time, epoch milliseconds."},
			{Name: "last_message_date_ms", Description: "Last activity time, epoch milliseconds."},
			{Name: "custom_title", Description: "User-assigned title, redacted."},
			{Name: "is_imported", Description: "1 when the archive was imported rather than native."},
			{Name: "source_file", Description: "Archive file this row came from."},
			{Name: "raw_json", Description: "Redacted original session payload."},
		},
	},
	{
		Name:        "requests",
		Description: "One row per prompt/response turn.",
		Columns: []Column{
			{Name: "request_id", Description: "Stable request identifier."},
			{Name: "session_id", Description: "Owning session."},
			{Name: "workspace_fingerprint", Description: "Workspace scope, denormalized for direct queries."},
			{Name: "timestamp_ms", Description: "Turn timestamp, epoch milliseconds."},
			{Name: "prompt_text", Description: "Redacted user prompt."},
			{Name: "response_id", Description: "Identifier of the paired response."},
			{Name: "agent_id", Description: "Responding agent, if declared."},
			{Name: "is_canceled", Description: "1 when the turn was canceled."},
			{Name: "timing_first_progress_ms", Description: "Milliseconds to first progress."},
			{Name: "timing_total_ms", Description: "Total turn duration in milliseconds."},
			{Name: "result_metadata_json", Description: "Redacted free-form result metadata."},
		},
	},
	{
		Name:        "request_parts",
		Description: "Ordered structured elements of each prompt message.",
		Columns: []Column{
			{Name: "request_id", Description: "Owning request."},
			{Name: "part_index", Description: "Zero-based position."},
			{Name: "kind", Description: "Part kind."},
			{Name: "text", Description: "Redacted part text or serialized value."},
			{Name: "range_json", Description: "Source range, serialized."},
			{Name: "editor_range_json", Description: "Editor range, serialized."},
		},
	},
	{
		Name:        "request_variables",
		Description: "Context variables attached to each request.",
		Columns: []Column{
			{Name: "request_id", Description: "Owning request."},
			{Name: "variable_id", Description: "Variable identifier."},
			{Name: "name", Description: "Variable name."},
			{Name: "value_json", Description: "Redacted variable value."},
			{Name: "is_file", Description: "1 when the variable points at a file."},
			{Name: "model_description", Description: "Redacted description shown to the model."},
		},
	},
	{
		Name:        "responses",
		Description: "Ordered response items per request.",
		Columns: []Column{
			{Name: "request_id", Description: "Owning request."},
			{Name: "response_index", Description: "Zero-based position."},
			{Name: "value", Description: "Redacted response text or serialized value."},
			{Name: "supports_html", Description: "1 when the item may render HTML."},
			{Name: "supports_theme_icons", Description: "1 when the item may use theme icons."},
		},
	},
	{
		Name:        "result_messages",
		Description: "Role-tagged messages attached to a request result.",
		Columns: []Column{
			{Name: "request_id", Description: "Owning request."},
			{Name: "message_index", Description: "Zero-based position."},
			{Name: "role", Description: "Message role."},
			{Name: "content", Description: "Redacted message content."},
		},
	},
	{
		Name:        "followups",
		Description: "Suggested follow-up prompts per request.",
		Columns: []Column{
			{Name: "request_id", Description: "Owning request."},
			{Name: "followup_index", Description: "Zero-based position."},
			{Name: "kind", Description: "Followup kind."},
			{Name: "agent_id", Description: "Agent the followup targets."},
			{Name: "message", Description: "Redacted followup text."},
		},
	},
	{
		Name:        "content_references",
		Description: "Content the response cited.",
		Columns: []Column{
			{Name: "request_id", Description: "Owning request."},
			{Name: "reference_index", Description: "Zero-based position."},
			{Name: "uri_json", Description: "Redacted reference target, serialized."},
			{Name: "range_json", Description: "Cited range, serialized."},
		},
	},
	{
		Name:        "code_citations",
		Description: "Attribution records for generated code.",
		Columns: []Column{
			{Name: "request_id", Description: "Owning request."},
			{Name: "citation_index", Description: "Zero-based position."},
			{Name: "citation_json", Description: "Redacted citation record, serialized."},
		},
	},
	{
		Name:        "tool_outputs",
		Description: "Structured tool results and extracted code blocks.",
		Columns: []Column{
			{Name: "request_id", Description: "Owning request."},
			{Name: "output_index", Description: "Zero-based position."},
			{Name: "tool_kind", Description: "Output kind, e.g. codeBlock."},
			{Name: "payload_json", Description: "Redacted payload, serialized."},
		},
	},
	{
		Name:        "agents",
		Description: "Agents declared across sessions, last declaration wins.",
		Columns: []Column{
			{Name: "agent_id", Description: "Agent identifier."},
			{Name: "session_id", Description: "Session that last declared the agent."},
			{Name: "descriptor_json", Description: "Redacted agent descriptor."},
			{Name: "is_default", Description: "1 for the default agent."},
			{Name: "locations_json", Description: "Surfaces the agent serves, serialized."},
		},
	},
	{
		Name:        "metrics_repeat_failures",
		Description: "Commands that failed with the same exit code more than once, aggregated per run.",
		Columns: []Column{
			{Name: "workspace_fingerprint", Description: "Workspace scope."},
			{Name: "command_hash", Description: "SHA-256 of the trimmed command text."},
			{Name: "command_text", Description: "The trimmed command."},
			{Name: "exit_code", Description: "Non-zero exit status."},
			{Name: "occurrence_count", Description: "How many turns hit this signature."},
			{Name: "last_seen_ms", Description: "Most recent occurrence, epoch milliseconds."},
			{Name: "request_id", Description: "Request of the most recent occurrence."},
			{Name: "sample_snippet", Description: "Redacted command snippet, capped."},
			{Name: "redacted_payload_json", Description: "Redacted context blob, capped."},
		},
	},
	{
		Name:        "catalog_metadata",
		Description: "Key/value facts about the catalog build.",
		Columns: []Column{
			{Name: "key", Description: "Metadata key."},
			{Name: "value", Description: "Metadata value."},
		},
	},
}

var sampleQueries = []Query{
	{
		Title: "Most recent sessions",
		SQL:   "SELECT session_id, custom_title, datetime(last_message_date_ms / 1000, 'unixepoch') AS last_message FROM chat_sessions ORDER BY last_message_date_ms DESC LIMIT 20;",
	},
	{
		Title: "Prompts in a session, in order",
		SQL:   "SELECT timestamp_ms, prompt_text FROM requests WHERE session_id = ? ORDER BY timestamp_ms;",
	},
	{
		Title: "Commands that keep failing",
		SQL:   "SELECT command_text, exit_code, occurrence_count FROM metrics_repeat_failures WHERE occurrence_count > 1 ORDER BY occurrence_count DESC;",
	},
	{
		Title: "Busiest days",
		SQL:   "SELECT date(timestamp_ms / 1000, 'unixepoch') AS day, COUNT(*) AS turns FROM requests GROUP BY day ORDER BY turns DESC LIMIT 10;",
	},
}

const readmeTemplate = `# Copilot Chat History Catalog

SQLite catalog of chat sessions for this workspace.

- **Database**: {{database_file}}
- **Schema version**: {{schema_version}}
- **Workspace fingerprint**: {{workspace_fingerprint}}
- **Generated**: {{generated_at_utc}}

Secrets are redacted before anything is written; the ` + "`ingest_audit.json`" + ` file next to this one records whether redaction was enabled for the run that produced the catalog.

## Tables

{{#tables}}
### {{name}}

{{description}}

{{#columns}}
- ` + "`{{name}}`" + ` — {{description}}
{{/columns}}

{{/tables}}
## Sample queries

{{#sample_queries}}
**{{title}}**

` + "```sql\n{{{sql}}}\n```" + `

{{/sample_queries}}
## Version history

{{#version_history}}
- {{.}}
{{/version_history}}
`

func readmeContext(doc *Document) map[string]interface{} {
	var tableCtx []map[string]interface{}
	for _, t := range doc.Tables {
		var cols []map[string]string
		for _, c := range t.Columns {
			cols = append(cols, map[string]string{"name": c.Name, "description": c.Description})
		}
		tableCtx = append(tableCtx, map[string]interface{}{
			"name":        t.Name,
			"description": t.Description,
			"columns":     cols,
		})
	}
	var queryCtx []map[string]string
	for _, q := range doc.SampleQueries {
		queryCtx = append(queryCtx, map[string]string{"title": q.Title, "sql": q.SQL})
	}
	return map[string]interface{}{
		"database_file":         doc.DatabaseFile,
		"schema_version":        doc.SchemaVersion,
		"workspace_fingerprint": doc.WorkspaceFingerprint,
		"generated_at_utc":      doc.GeneratedAtUTC,
		"tables":                tableCtx,
		"sample_queries":        queryCtx,
		"version_history":       doc.VersionHistory,
	}
}
