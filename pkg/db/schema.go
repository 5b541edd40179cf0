package db

const (
	// SchemaV1 defines the SQL statements for version 1 of the database schema.
	// The diaries_fts virtual table is an external-content FTS5 index over the
	// diaries table. It is maintained explicitly by pkg/diary inside the same
	// transaction as every row write, so the row and its search projection can
	// never diverge.
	SchemaV1 = `
CREATE TABLE IF NOT EXISTS voxlog_versions (
    component TEXT PRIMARY KEY,
    version INTEGER NOT NULL,
    created_at REAL DEFAULT (unixepoch())
);

CREATE TABLE IF NOT EXISTS diaries (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    transcript TEXT NOT NULL,
    mood TEXT NOT NULL DEFAULT 'neutral',
    key_events TEXT NOT NULL DEFAULT '[]',
    todos TEXT NOT NULL DEFAULT '[]',
    tags TEXT NOT NULL DEFAULT '[]',
    audio_path TEXT,
    duration_sec REAL,
    created_at REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_diaries_created_at ON diaries(created_at);

CREATE VIRTUAL TABLE IF NOT EXISTS diaries_fts USING fts5(
    title, content, transcript,
    content='diaries', content_rowid='rowid'
);
`
)
