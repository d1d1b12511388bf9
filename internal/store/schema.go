package store

// Schema is the publish ledger DDL. Every write attempt gets one row,
// accepted or refused.
const Schema = `
CREATE TABLE IF NOT EXISTS publish_attempts (
	id          TEXT PRIMARY KEY,
	slug        TEXT NOT NULL,
	status      TEXT NOT NULL CHECK (status IN ('accepted', 'refused', 'failed')),
	issues      TEXT NOT NULL DEFAULT '[]',
	files       TEXT NOT NULL DEFAULT '[]',
	html_sha256 TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_publish_attempts_slug
	ON publish_attempts(slug, created_at DESC);
`
