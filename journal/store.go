// CLAUDE:SUMMARY Journal store: recordings with their actions and journey runs, newest first.
// Package journal keeps the history of recordings and journey runs in SQLite.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/journey/action"
	"github.com/hazyhaar/journey/dbopen"
)

// DefaultLimit caps history queries without an explicit limit.
const DefaultLimit = 20

// Store is the journal database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the journal at path and applies the schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	all := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, all...)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Recording is a journaled recording.
type Recording struct {
	ID          string            `json:"id"`
	SessionID   string            `json:"session_id"`
	URL         string            `json:"url,omitempty"`
	IsSuite     bool              `json:"is_suite"`
	Source      string            `json:"source"`
	ActionCount int               `json:"action_count"`
	Actions     []action.RawEvent `json:"actions,omitempty"` // only filled by GetRecording
	NavError    string            `json:"navigation_error,omitempty"`
	EndReason   string            `json:"end_reason,omitempty"`
	StartedAt   int64             `json:"started_at"` // unix ms
	EndedAt     int64             `json:"ended_at"`
}

// Run is a journaled journey run.
type Run struct {
	ID          string `json:"id"`
	IsSuite     bool   `json:"is_suite"`
	OK          bool   `json:"ok"`
	ExitCode    int    `json:"exit_code"`
	Output      string `json:"output,omitempty"`
	Error       string `json:"error,omitempty"`
	SourceBytes int    `json:"source_bytes"`
	DurationMs  int64  `json:"duration_ms"`
	CreatedAt   int64  `json:"created_at"`
}

// InsertRecording stores a recording and its action sequence atomically.
func (s *Store) InsertRecording(ctx context.Context, r *Recording) error {
	if r.EndedAt == 0 {
		r.EndedAt = time.Now().UnixMilli()
	}
	if r.StartedAt == 0 {
		r.StartedAt = r.EndedAt
	}
	r.ActionCount = len(r.Actions)

	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO recordings
				(id, session_id, url, is_suite, source, action_count, nav_error, end_reason, started_at, ended_at)
			VALUES (?,?,?,?,?,?,?,?,?,?)`,
			r.ID, r.SessionID, r.URL, r.IsSuite, r.Source, r.ActionCount, r.NavError, r.EndReason,
			r.StartedAt, r.EndedAt,
		)
		if err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO recording_actions (recording_id, seq, page_alias, name, payload)
			VALUES (?,?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, ev := range r.Actions {
			payload, err := json.Marshal(ev.Action)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, r.ID, i, ev.PageAlias, string(ev.Action.Name), string(payload)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("journal: insert recording %s: %w", r.ID, err)
	}
	return nil
}

// GetRecording returns a recording with its actions, or nil if unknown.
func (s *Store) GetRecording(ctx context.Context, id string) (*Recording, error) {
	r := &Recording{}
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, session_id, url, is_suite, source, action_count, nav_error, end_reason, started_at, ended_at
		FROM recordings WHERE id = ?`, id).Scan(
		&r.ID, &r.SessionID, &r.URL, &r.IsSuite, &r.Source, &r.ActionCount, &r.NavError, &r.EndReason,
		&r.StartedAt, &r.EndedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("journal: get recording %s: %w", id, err)
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT page_alias, payload FROM recording_actions
		WHERE recording_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("journal: get actions %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var ev action.RawEvent
		var payload string
		if err := rows.Scan(&ev.PageAlias, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &ev.Action); err != nil {
			return nil, fmt.Errorf("journal: decode action of %s: %w", id, err)
		}
		r.Actions = append(r.Actions, ev)
	}
	return r, rows.Err()
}

// RecentRecordings lists recordings, newest first, without their actions.
func (s *Store) RecentRecordings(ctx context.Context, limit int) ([]Recording, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, session_id, url, is_suite, source, action_count, nav_error, end_reason, started_at, ended_at
		FROM recordings ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent recordings: %w", err)
	}
	defer rows.Close()

	var out []Recording
	for rows.Next() {
		var r Recording
		if err := rows.Scan(&r.ID, &r.SessionID, &r.URL, &r.IsSuite, &r.Source, &r.ActionCount,
			&r.NavError, &r.EndReason, &r.StartedAt, &r.EndedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertRun stores a run.
func (s *Store) InsertRun(ctx context.Context, r *Run) error {
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().UnixMilli()
	}
	_, err := dbopen.Exec(ctx, s.DB, `
		INSERT INTO runs (id, is_suite, ok, exit_code, output, error, source_bytes, duration_ms, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		r.ID, r.IsSuite, r.OK, r.ExitCode, r.Output, r.Error, r.SourceBytes, r.DurationMs, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("journal: insert run %s: %w", r.ID, err)
	}
	return nil
}

// RecentRuns lists runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, is_suite, ok, exit_code, output, error, source_bytes, duration_ms, created_at
		FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.IsSuite, &r.OK, &r.ExitCode, &r.Output, &r.Error,
			&r.SourceBytes, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
