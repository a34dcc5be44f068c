package eventlog

const schema = `
CREATE TABLE IF NOT EXISTS event_log (
	global_seq INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id TEXT UNIQUE NOT NULL,
	event_type TEXT NOT NULL,
	schema_version INTEGER NOT NULL,
	stream_key TEXT NOT NULL,
	occurred_at_epoch_millis INTEGER NOT NULL,
	recorded_at_epoch_millis INTEGER NOT NULL,
	attribution_character_id INTEGER NULL,
	source TEXT NOT NULL CHECK (source IN ('esi', 'manual', 'import', 'sync')),
	payload_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_event_log_stream_key ON event_log(stream_key);
`

// dsn mirrors jaytripper_store's SqliteConnectOptions: WAL
// journal mode, normal synchronous, foreign keys on, a five second busy
// timeout. mattn/go-sqlite3 takes these as DSN query parameters.
func dsn(path string) string {
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000"
}
