package postgres

// Schema creates the tables the Repository reads and writes. It is safe to
// apply repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS crawl_jobs (
	id            TEXT PRIMARY KEY,
	job           JSONB NOT NULL,
	status        TEXT NOT NULL,
	submitted_at  TIMESTAMPTZ NOT NULL,
	started_at    TIMESTAMPTZ,
	finished_at   TIMESTAMPTZ,
	pages         INTEGER NOT NULL DEFAULT 0,
	errors        INTEGER NOT NULL DEFAULT 0,
	completed     BOOLEAN NOT NULL DEFAULT FALSE,
	error_text    TEXT NOT NULL DEFAULT '',
	stats         JSONB
);

CREATE INDEX IF NOT EXISTS crawl_jobs_status_idx ON crawl_jobs (status, submitted_at DESC);

CREATE TABLE IF NOT EXISTS crawl_pages (
	job_id      TEXT NOT NULL REFERENCES crawl_jobs (id) ON DELETE CASCADE,
	url         TEXT NOT NULL,
	seq         BIGSERIAL,
	status_code INTEGER NOT NULL,
	crawled_at  TIMESTAMPTZ NOT NULL,
	page        JSONB NOT NULL,
	PRIMARY KEY (job_id, url)
);
`
