package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create sessions and messages",
		SQL: `
			CREATE TABLE sessions (
				session_id   TEXT PRIMARY KEY,
				stage        TEXT NOT NULL DEFAULT 'WELCOME',
				locale       TEXT NOT NULL DEFAULT 'bn-BD',
				seq          INTEGER NOT NULL DEFAULT 0,
				last_seen_at INTEGER NOT NULL DEFAULT 0
			);

			CREATE TABLE messages (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id  TEXT NOT NULL,
				who         TEXT NOT NULL,
				text        TEXT NOT NULL,
				ts          INTEGER NOT NULL
			);

			CREATE INDEX idx_messages_session_ts ON messages (session_id, ts);
		`,
	},
	{
		Version: 2,
		Name:    "create customers and summaries",
		SQL: `
			CREATE TABLE customers (
				session_id TEXT PRIMARY KEY,
				name       TEXT NOT NULL DEFAULT '',
				phone      TEXT NOT NULL DEFAULT '',
				address    TEXT NOT NULL DEFAULT '',
				district   TEXT NOT NULL DEFAULT '',
				upazila    TEXT NOT NULL DEFAULT '',
				email      TEXT NOT NULL DEFAULT ''
			);

			CREATE TABLE summaries (
				session_id TEXT PRIMARY KEY,
				summary    TEXT NOT NULL,
				updated_at INTEGER NOT NULL DEFAULT 0
			);
		`,
	},
}
