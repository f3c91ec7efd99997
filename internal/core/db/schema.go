package db

func (db *DB) initSchema() error {
	schema := `
	-- One row per chat session scoped to this workspace
	CREATE TABLE IF NOT EXISTS chat_sessions (
		session_id TEXT PRIMARY KEY,
		workspace_fingerprint TEXT NOT NULL,
		version INTEGER,
		requester_username TEXT,
		responder_username TEXT,
		initial_location TEXT,
		creation_date_ms INTEGER,
		last_message_date_ms INTEGER,
		custom_title TEXT,
		is_imported INTEGER,
		source_file TEXT,
		raw_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_chat_sessions_workspace ON chat_sessions(workspace_fingerprint);
	CREATE INDEX IF NOT EXISTS idx_chat_sessions_last_message ON chat_sessions(last_message_date_ms);

	-- Agents keep a weak back-reference to the session that last declared them
	CREATE TABLE IF NOT EXISTS agents (
		agent_id TEXT PRIMARY KEY,
		session_id TEXT REFERENCES chat_sessions(session_id) ON DELETE SET NULL,
		descriptor_json TEXT,
		is_default INTEGER,
		locations_json TEXT
	);

	-- Normalized prompt turns
	CREATE TABLE IF NOT EXISTS requests (
		request_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES chat_sessions(session_id) ON DELETE CASCADE,
		workspace_fingerprint TEXT NOT NULL,
		timestamp_ms INTEGER,
		prompt_text TEXT,
		response_id TEXT,
		agent_id TEXT,
		is_canceled INTEGER,
		timing_first_progress_ms INTEGER,
		timing_total_ms INTEGER,
		result_metadata_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_requests_session ON requests(session_id);
	CREATE INDEX IF NOT EXISTS idx_requests_workspace ON requests(workspace_fingerprint);
	CREATE INDEX IF NOT EXISTS idx_requests_timestamp ON requests(timestamp_ms);

	-- Ordered child rows, one table per structured request element
	CREATE TABLE IF NOT EXISTS request_parts (
		request_id TEXT NOT NULL REFERENCES requests(request_id) ON DELETE CASCADE,
		part_index INTEGER NOT NULL,
		kind TEXT,
		text TEXT,
		range_json TEXT,
		editor_range_json TEXT,
		PRIMARY KEY (request_id, part_index)
	);

	CREATE TABLE IF NOT EXISTS request_variables (
		request_id TEXT NOT NULL REFERENCES requests(request_id) ON DELETE CASCADE,
		variable_id TEXT NOT NULL,
		name TEXT,
		value_json TEXT,
		is_file INTEGER,
		model_description TEXT,
		PRIMARY KEY (request_id, variable_id)
	);

	CREATE TABLE IF NOT EXISTS responses (
		request_id TEXT NOT NULL REFERENCES requests(request_id) ON DELETE CASCADE,
		response_index INTEGER NOT NULL,
		value TEXT,
		supports_html INTEGER,
		supports_theme_icons INTEGER,
		PRIMARY KEY (request_id, response_index)
	);

	CREATE TABLE IF NOT EXISTS result_messages (
		request_id TEXT NOT NULL REFERENCES requests(request_id) ON DELETE CASCADE,
		message_index INTEGER NOT NULL,
		role TEXT,
		content TEXT,
		PRIMARY KEY (request_id, message_index)
	);

	CREATE TABLE IF NOT EXISTS followups (
		request_id TEXT NOT NULL REFERENCES requests(request_id) ON DELETE CASCADE,
		followup_index INTEGER NOT NULL,
		kind TEXT,
		agent_id TEXT,
		message TEXT,
		PRIMARY KEY (request_id, followup_index)
	);

	CREATE TABLE IF NOT EXISTS content_references (
		request_id TEXT NOT NULL REFERENCES requests(request_id) ON DELETE CASCADE,
		reference_index INTEGER NOT NULL,
		uri_json TEXT,
		range_json TEXT,
		PRIMARY KEY (request_id, reference_index)
	);

	CREATE TABLE IF NOT EXISTS code_citations (
		request_id TEXT NOT NULL REFERENCES requests(request_id) ON DELETE CASCADE,
		citation_index INTEGER NOT NULL,
		citation_json TEXT,
		PRIMARY KEY (request_id, citation_index)
	);

	CREATE TABLE IF NOT EXISTS tool_outputs (
		request_id TEXT NOT NULL REFERENCES requests(request_id) ON DELETE CASCADE,
		output_index INTEGER NOT NULL,
		tool_kind TEXT,
		payload_json TEXT,
		PRIMARY KEY (request_id, output_index)
	);

	-- Aggregated telemetry for repeated non-zero command exits
	CREATE TABLE IF NOT EXISTS metrics_repeat_failures (
		workspace_fingerprint TEXT NOT NULL,
		command_hash TEXT NOT NULL,
		command_text TEXT,
		exit_code INTEGER NOT NULL,
		occurrence_count INTEGER NOT NULL,
		last_seen_ms INTEGER,
		request_id TEXT,
		sample_snippet TEXT,
		redacted_payload_json TEXT,
		PRIMARY KEY (workspace_fingerprint, command_hash, exit_code)
	);

	CREATE INDEX IF NOT EXISTS idx_repeat_failures_last_seen ON metrics_repeat_failures(last_seen_ms);

	-- Key/value metadata about the catalog build
	CREATE TABLE IF NOT EXISTS catalog_metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	_, err := db.conn.Exec(schema)
	return err
}
