// CLAUDE:SUMMARY SQLite schema of the recording and run journal.
package journal

// Schema is the journal DDL.
const Schema = `
-- One row per finished recording.
CREATE TABLE IF NOT EXISTS recordings (
    id              TEXT PRIMARY KEY,
    session_id      TEXT NOT NULL,
    url             TEXT NOT NULL DEFAULT '',
    is_suite        INTEGER NOT NULL DEFAULT 0,
    source          TEXT NOT NULL,
    action_count    INTEGER NOT NULL DEFAULT 0,
    nav_error       TEXT NOT NULL DEFAULT '',
    end_reason      TEXT NOT NULL DEFAULT '',
    started_at      INTEGER NOT NULL,
    ended_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_recordings_started ON recordings(started_at DESC);

-- Compacted action sequence of a recording, in order.
CREATE TABLE IF NOT EXISTS recording_actions (
    recording_id    TEXT NOT NULL REFERENCES recordings(id) ON DELETE CASCADE,
    seq             INTEGER NOT NULL,
    page_alias      TEXT NOT NULL,
    name            TEXT NOT NULL,
    payload         TEXT NOT NULL,
    PRIMARY KEY (recording_id, seq)
);

-- One row per journey run, completed or not.
CREATE TABLE IF NOT EXISTS runs (
    id              TEXT PRIMARY KEY,
    is_suite        INTEGER NOT NULL DEFAULT 0,
    ok              INTEGER NOT NULL DEFAULT 0,
    exit_code       INTEGER NOT NULL DEFAULT 0,
    output          TEXT NOT NULL DEFAULT '',
    error           TEXT NOT NULL DEFAULT '',
    source_bytes    INTEGER NOT NULL DEFAULT 0,
    duration_ms     INTEGER NOT NULL DEFAULT 0,
    created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
`
