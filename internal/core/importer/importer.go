// Package importer runs the ingest pipeline: locate archives, normalize
// them, redact secrets, and persist everything into the workspace catalog
// in a single transaction.
package importer

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/neilberkman/cophist/internal/core/db"
	"github.com/neilberkman/cophist/internal/core/extract"
	"github.com/neilberkman/cophist/internal/core/locator"
	"github.com/neilberkman/cophist/internal/core/metrics"
	"github.com/neilberkman/cophist/internal/core/redact"
	"github.com/neilberkman/cophist/internal/core/workspace"
	"github.com/neilberkman/cophist/pkg/chatsessions"
)

// ErrNoUsableSessions means every located file failed to parse or
// normalize. The transaction is rolled back and nothing is written.
var ErrNoUsableSessions = errors.New("no usable sessions in any input file")

// Options configures one ingest run.
type Options struct {
	// InputPath is a file or directory to ingest. Empty means scan the
	// default editor storage directories.
	InputPath string

	// DBPath overrides the catalog location. A bare file name is placed
	// inside OutputDir.
	DBPath string

	// OutputDir receives the catalog and companion artifacts. Relative
	// paths resolve against WorkspaceRoot.
	OutputDir string

	// WorkspaceRoot scopes the catalog. Empty means the current directory.
	WorkspaceRoot string

	// ScanDirs are extra directories to scan when InputPath is empty.
	ScanDirs []string

	// Reset purges all existing rows before ingesting.
	Reset bool

	// RedactionDisabled turns off secret scrubbing. The audit records it.
	RedactionDisabled bool
}

// Report summarizes a completed run; it is also the audit document.
type Report struct {
	WorkspaceRoot        string   `json:"workspace_root"`
	WorkspaceFingerprint string   `json:"workspace_fingerprint"`
	OutputDir            string   `json:"output_dir"`
	DatabasePath         string   `json:"database_path"`
	RedactionEnabled     bool     `json:"redaction_enabled"`
	Files                []string `json:"files"`
	SessionsIngested     int      `json:"sessions_ingested"`
	RequestsIngested     int      `json:"requests_ingested"`
	SecretsRedacted      int      `json:"secrets_redacted"`
	Warnings             []string `json:"warnings"`
}

// Run executes the pipeline and returns its report. Per-file problems
// become warnings; boundary violations, missing inputs, and a run with
// zero usable files are fatal.
func Run(opts Options) (*Report, error) {
	root := opts.WorkspaceRoot
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		root = cwd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}

	outputDir := opts.OutputDir
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(root, outputDir)
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = "copilot_chat_logs.db"
	}
	if !filepath.IsAbs(dbPath) {
		if filepath.Base(dbPath) == dbPath {
			dbPath = filepath.Join(outputDir, dbPath)
		} else {
			dbPath = filepath.Join(root, dbPath)
		}
	}
	// The catalog always sits inside the output directory
	outputDir = filepath.Dir(dbPath)

	// Boundary check comes before any write, including mkdir
	if err := workspace.EnsureWithin(outputDir, root); err != nil {
		return nil, err
	}

	files, err := locator.Gather(opts.InputPath, opts.ScanDirs)
	if err != nil {
		return nil, err
	}

	fingerprint, err := workspace.Fingerprint(root)
	if err != nil {
		return nil, err
	}

	catalog, err := db.New(dbPath)
	if err != nil {
		return nil, err
	}
	defer catalog.Close()

	redactor := redact.New(!opts.RedactionDisabled)
	aggregator := metrics.New(fingerprint, redactor)

	report := &Report{
		WorkspaceRoot:        root,
		WorkspaceFingerprint: fingerprint,
		OutputDir:            outputDir,
		DatabasePath:         dbPath,
		RedactionEnabled:     redactor.Enabled(),
		Files:                []string{},
		Warnings:             []string{},
	}

	tx, err := catalog.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if opts.Reset {
		if err := db.ResetRows(tx); err != nil {
			return nil, err
		}
	}

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %v", file, err))
			continue
		}

		sessions, _, err := chatsessions.Normalize(data)
		if err != nil {
			report.Warnings = append(report.Warnings, formatFileError(file, err))
			continue
		}
		if len(sessions) == 0 {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("%s: no sessions extracted", file))
			continue
		}

		fileUsable := false
		for _, session := range sessions {
			if session.SessionID == "" || len(session.Requests) == 0 {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("%s: skipped session without id or requests", file))
				continue
			}
			if err := persistSession(tx, session, file, fingerprint, redactor, aggregator); err != nil {
				return nil, err
			}
			fileUsable = true
			report.SessionsIngested++
			report.RequestsIngested += len(session.Requests)
		}
		// Only files that yielded sessions count as ingested sources
		if fileUsable {
			report.Files = append(report.Files, file)
		}
	}

	if len(report.Files) == 0 {
		return nil, ErrNoUsableSessions
	}

	if err := aggregator.Persist(tx); err != nil {
		return nil, err
	}
	if err := db.UpdateRunMetadata(tx, report.Files); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	report.SecretsRedacted = redactor.Count()
	return report, nil
}

func formatFileError(file string, err error) string {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Sprintf("%s: invalid JSON at offset %d: %v", file, syntaxErr.Offset, syntaxErr)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return fmt.Sprintf("%s: invalid JSON: unexpected end of input", file)
	}
	return fmt.Sprintf("%s: %v", file, err)
}

// persistSession replaces a session and its children. Delete before
// insert keeps re-ingesting the same archive idempotent.
func persistSession(tx *sql.Tx, session *chatsessions.Session, sourceFile, fingerprint string, redactor *redact.Redactor, aggregator *metrics.Aggregator) error {
	if _, err := tx.Exec(`DELETE FROM requests WHERE session_id = ?`, session.SessionID); err != nil {
		return fmt.Errorf("failed to clear requests for %s: %w", session.SessionID, err)
	}
	if _, err := tx.Exec(`DELETE FROM chat_sessions WHERE session_id = ?`, session.SessionID); err != nil {
		return fmt.Errorf("failed to clear session %s: %w", session.SessionID, err)
	}

	_, err := tx.Exec(`
		INSERT INTO chat_sessions (
			session_id, workspace_fingerprint, version, requester_username,
			responder_username, initial_location, creation_date_ms,
			last_message_date_ms, custom_title, is_imported, source_file, raw_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		session.SessionID,
		fingerprint,
		session.Version,
		redactor.TextPtr(session.RequesterUsername),
		redactor.TextPtr(session.ResponderUsername),
		session.InitialLocation,
		session.CreationDateMS,
		session.LastMessageDateMS,
		redactor.TextPtr(session.CustomTitle),
		boolToInt(session.IsImported),
		sourceFile,
		redactor.Dump(session.Raw),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", session.SessionID, err)
	}

	for i := range session.Requests {
		req := &session.Requests[i]
		if err := persistRequest(tx, session.SessionID, req, fingerprint, redactor); err != nil {
			return err
		}

		exitCode := extract.RequestExitCode(req)
		command := extract.Command(req)
		aggregator.Register(req.RequestID, command, exitCode, req.TimestampMS, failurePayload(req))
	}
	return nil
}

func persistRequest(tx *sql.Tx, sessionID string, req *chatsessions.Request, fingerprint string, redactor *redact.Redactor) error {
	var agentID *string
	if req.Agent != nil {
		agentID = &req.Agent.ID
		_, err := tx.Exec(`
			INSERT INTO agents (agent_id, session_id, descriptor_json, is_default, locations_json)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(agent_id) DO UPDATE SET
				session_id = excluded.session_id,
				descriptor_json = excluded.descriptor_json,
				is_default = excluded.is_default,
				locations_json = excluded.locations_json
		`,
			req.Agent.ID,
			sessionID,
			redactor.Dump(req.Agent.Descriptor),
			boolToInt(req.Agent.IsDefault),
			redactor.Dump(req.Agent.Locations),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert agent %s: %w", req.Agent.ID, err)
		}
	}

	_, err := tx.Exec(`
		INSERT INTO requests (
			request_id, session_id, workspace_fingerprint, timestamp_ms,
			prompt_text, response_id, agent_id, is_canceled,
			timing_first_progress_ms, timing_total_ms, result_metadata_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		req.RequestID,
		sessionID,
		fingerprint,
		req.TimestampMS,
		redactor.TextPtr(req.PromptText),
		req.ResponseID,
		agentID,
		boolToInt(req.IsCanceled),
		req.TimingFirstProgress,
		req.TimingTotal,
		redactor.Dump(req.Metadata),
	)
	if err != nil {
		return fmt.Errorf("failed to insert request %s: %w", req.RequestID, err)
	}

	for i, part := range req.Parts {
		var text *string
		if s, ok := part.Text.StringVal(); ok {
			text = redactor.TextPtr(&s)
		} else {
			text = redactor.Dump(part.Text)
		}
		if _, err := tx.Exec(`
			INSERT INTO request_parts (request_id, part_index, kind, text, range_json, editor_range_json)
			VALUES (?, ?, ?, ?, ?, ?)
		`, req.RequestID, i, part.Kind, text, chatsessions.DumpPtr(part.Range), chatsessions.DumpPtr(part.EditorRange)); err != nil {
			return fmt.Errorf("failed to insert part %d of %s: %w", i, req.RequestID, err)
		}
	}

	for _, variable := range req.Variables {
		if _, err := tx.Exec(`
			INSERT INTO request_variables (request_id, variable_id, name, value_json, is_file, model_description)
			VALUES (?, ?, ?, ?, ?, ?)
		`, req.RequestID, variable.ID, variable.Name, redactor.Dump(variable.Value), boolToInt(variable.IsFile), redactor.TextPtr(variable.ModelDescription)); err != nil {
			return fmt.Errorf("failed to insert variable %s of %s: %w", variable.ID, req.RequestID, err)
		}
	}

	for i, resp := range req.Responses {
		var value *string
		if s, ok := resp.Value.StringVal(); ok {
			value = redactor.TextPtr(&s)
		} else {
			value = redactor.Dump(resp.Value)
		}
		if _, err := tx.Exec(`
			INSERT INTO responses (request_id, response_index, value, supports_html, supports_theme_icons)
			VALUES (?, ?, ?, ?, ?)
		`, req.RequestID, i, value, boolToInt(resp.SupportsHTML), boolToInt(resp.SupportsThemeIcons)); err != nil {
			return fmt.Errorf("failed to insert response %d of %s: %w", i, req.RequestID, err)
		}
	}

	for i, msg := range req.ResultMessages {
		var content *string
		if s, ok := msg.Content.StringVal(); ok {
			content = redactor.TextPtr(&s)
		} else {
			content = redactor.Dump(msg.Content)
		}
		if _, err := tx.Exec(`
			INSERT INTO result_messages (request_id, message_index, role, content)
			VALUES (?, ?, ?, ?)
		`, req.RequestID, i, msg.Role, content); err != nil {
			return fmt.Errorf("failed to insert result message %d of %s: %w", i, req.RequestID, err)
		}
	}

	for i, followup := range req.Followups {
		var message *string
		if s, ok := followup.Message.StringVal(); ok {
			message = redactor.TextPtr(&s)
		} else {
			message = redactor.Dump(followup.Message)
		}
		if _, err := tx.Exec(`
			INSERT INTO followups (request_id, followup_index, kind, agent_id, message)
			VALUES (?, ?, ?, ?, ?)
		`, req.RequestID, i, followup.Kind, followup.AgentID, message); err != nil {
			return fmt.Errorf("failed to insert followup %d of %s: %w", i, req.RequestID, err)
		}
	}

	for i, ref := range req.ContentReferences {
		if _, err := tx.Exec(`
			INSERT INTO content_references (request_id, reference_index, uri_json, range_json)
			VALUES (?, ?, ?, ?)
		`, req.RequestID, i, redactor.Dump(ref.Reference), chatsessions.DumpPtr(ref.Range)); err != nil {
			return fmt.Errorf("failed to insert content reference %d of %s: %w", i, req.RequestID, err)
		}
	}

	for i, citation := range req.CodeCitations {
		if _, err := tx.Exec(`
			INSERT INTO code_citations (request_id, citation_index, citation_json)
			VALUES (?, ?, ?)
		`, req.RequestID, i, redactor.Dump(citation.Citation)); err != nil {
			return fmt.Errorf("failed to insert code citation %d of %s: %w", i, req.RequestID, err)
		}
	}

	for i, output := range req.ToolOutputs {
		if _, err := tx.Exec(`
			INSERT INTO tool_outputs (request_id, output_index, tool_kind, payload_json)
			VALUES (?, ?, ?, ?)
		`, req.RequestID, i, output.Kind, redactor.Dump(output.Payload)); err != nil {
			return fmt.Errorf("failed to insert tool output %d of %s: %w", i, req.RequestID, err)
		}
	}

	return nil
}

// failurePayload builds the context blob stored with an aggregated
// failure: the result metadata plus the raw response items.
func failurePayload(req *chatsessions.Request) *chatsessions.Value {
	var responses []*chatsessions.Value
	for _, resp := range req.Responses {
		if resp.Raw != nil {
			responses = append(responses, resp.Raw)
		}
	}
	metadata := req.Metadata
	if metadata == nil {
		metadata = chatsessions.Null()
	}
	return chatsessions.Object(
		chatsessions.M("metadata", metadata),
		chatsessions.M("response", chatsessions.Array(responses...)),
	)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
