package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/journey/action"
	"github.com/hazyhaar/journey/dbopen"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return &Store{DB: dbopen.OpenMemory(t, dbopen.WithSchema(Schema))}
}

func TestRecordingRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	rec := &Recording{
		ID:        "rec_1",
		SessionID: "ses_1",
		URL:       "example.com",
		Source:    "step('Go to http://example.com', async () => {});\n",
		Actions: []action.RawEvent{
			{PageAlias: "page", Action: action.Action{Name: action.KindNavigate, URL: "http://example.com"}},
			{PageAlias: "page", Action: action.Action{Name: action.KindFill, Selector: "#q", Text: "go"}},
			{PageAlias: "page1", Action: action.Action{Name: action.KindClick, Selector: "#b", ClickCount: 2}},
		},
		EndReason: "stopped",
		StartedAt: 1000,
		EndedAt:   2000,
	}
	if err := s.InsertRecording(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if rec.ActionCount != 3 {
		t.Errorf("ActionCount: got %d, want 3", rec.ActionCount)
	}

	got, err := s.GetRecording(ctx, "rec_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("get: got nil")
	}
	if got.SessionID != "ses_1" || got.EndReason != "stopped" || got.StartedAt != 1000 {
		t.Errorf("got %+v", got)
	}
	if len(got.Actions) != 3 {
		t.Fatalf("Actions: got %d, want 3", len(got.Actions))
	}
	if got.Actions[2].PageAlias != "page1" || got.Actions[2].Action.ClickCount != 2 {
		t.Errorf("Actions[2]: got %+v", got.Actions[2])
	}
	if got.Actions[1].Action.Text != "go" {
		t.Errorf("Actions[1].Text: got %q, want go", got.Actions[1].Action.Text)
	}
}

func TestGetRecording_Unknown(t *testing.T) {
	s := testStore(t)
	got, err := s.GetRecording(context.Background(), "rec_missing")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestInsertRecording_DuplicateRollsBack(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first := &Recording{ID: "rec_1", SessionID: "ses_1", Source: "a", StartedAt: 1, EndedAt: 2}
	if err := s.InsertRecording(ctx, first); err != nil {
		t.Fatal(err)
	}
	dup := &Recording{ID: "rec_1", SessionID: "ses_2", Source: "b",
		Actions: []action.RawEvent{{PageAlias: "page", Action: action.Action{Name: action.KindNavigate, URL: "x"}}}}
	if err := s.InsertRecording(ctx, dup); err == nil {
		t.Fatal("expected error on duplicate id")
	}

	var n int
	if err := s.DB.QueryRow(`SELECT COUNT(*) FROM recording_actions`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("actions after failed insert: got %d, want 0", n)
	}
}

func TestRecentRecordings(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	for i, id := range []string{"rec_a", "rec_b", "rec_c"} {
		r := &Recording{ID: id, SessionID: "ses", Source: "x", StartedAt: int64(100 + i), EndedAt: int64(200 + i)}
		if err := s.InsertRecording(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.RecentRecordings(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d, want 2", len(got))
	}
	if got[0].ID != "rec_c" || got[1].ID != "rec_b" {
		t.Errorf("order: got %s, %s; want rec_c, rec_b", got[0].ID, got[1].ID)
	}
	if got[0].Actions != nil {
		t.Error("RecentRecordings loaded actions")
	}
}

func TestRuns(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	runs := []*Run{
		{ID: "run_1", OK: true, ExitCode: 0, Output: "ok", SourceBytes: 10, CreatedAt: 10},
		{ID: "run_2", OK: true, ExitCode: 1, Output: "1 failed", IsSuite: true, CreatedAt: 20},
		{ID: "run_3", OK: false, Error: "harness: spawn: not found", CreatedAt: 30},
	}
	for _, r := range runs {
		if err := s.InsertRun(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.RecentRuns(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d runs, want 3", len(got))
	}
	if got[0].ID != "run_3" || got[0].OK || got[0].Error == "" {
		t.Errorf("run_3: got %+v", got[0])
	}
	if got[1].ExitCode != 1 || !got[1].IsSuite {
		t.Errorf("run_2: got %+v", got[1])
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "journal.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.InsertRun(context.Background(), &Run{ID: "run_1", OK: true}); err != nil {
		t.Fatal(err)
	}
	got, err := s.RecentRuns(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].CreatedAt == 0 {
		t.Errorf("got %+v", got)
	}
}
