package recorder

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/journey/action"
	"github.com/hazyhaar/journey/idgen"
	"github.com/hazyhaar/journey/recorder/internal/capture"
	"github.com/hazyhaar/journey/recorder/internal/session"
)

// liveCtrl opens detached sessions whose open pages are counted by the test.
type liveCtrl struct {
	gate      chan struct{} // when set, Open blocks on it
	navErr    error
	pages     atomic.Int32
	shutdowns atomic.Int32
	opened    chan *session.Session
}

func newLiveCtrl() *liveCtrl {
	return &liveCtrl{opened: make(chan *session.Session, 1)}
}

func (c *liveCtrl) Open(ctx context.Context) (*session.Session, error) {
	if c.gate != nil {
		<-c.gate
	}
	return session.NewDetached("ses_live",
		func() (int, error) { return int(c.pages.Load()), nil },
		func() error { c.shutdowns.Add(1); return nil },
		nil), nil
}

func (c *liveCtrl) OpenPage(_ context.Context, s *session.Session, target string) (*rod.Page, error) {
	if s.State() != session.StateOpen {
		return nil, session.ErrClosed
	}
	c.pages.Add(1)
	s.PageOpened()
	c.opened <- s
	if c.navErr != nil {
		return nil, &NavigationError{URL: target, Err: c.navErr}
	}
	return nil, nil
}

func (c *liveCtrl) closePage(s *session.Session) {
	c.pages.Add(-1)
	s.PageClosed()
}

func (c *liveCtrl) waitOpened(t *testing.T) *session.Session {
	t.Helper()
	select {
	case s := <-c.opened:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("first page never opened")
		return nil
	}
}

// fakeSource is an event source fed directly by the test.
type fakeSource struct {
	events chan action.RawEvent
	once   sync.Once
}

func newFakeSource() *fakeSource {
	return &fakeSource{events: make(chan action.RawEvent, 16)}
}

func (f *fakeSource) Attach(*rod.Page) error         { return nil }
func (f *fakeSource) Detach(proto.TargetTargetID)    {}
func (f *fakeSource) Events() <-chan action.RawEvent { return f.events }
func (f *fakeSource) Close()                         { f.once.Do(func() { close(f.events) }) }

func newLiveRecorder(ctrl *liveCtrl, src *fakeSource) *Recorder {
	r := New(Config{NewID: idgen.Sequence("rec_")})
	r.ctrl = ctrl
	r.newSource = func(capture.Config) eventSource { return src }
	return r
}

type recordResult struct {
	rec *Recording
	err error
}

func startRecord(ctx context.Context, r *Recorder, opts Options) <-chan recordResult {
	done := make(chan recordResult, 1)
	go func() {
		rec, err := r.Record(ctx, opts)
		done <- recordResult{rec, err}
	}()
	return done
}

func waitResult(t *testing.T, done <-chan recordResult) recordResult {
	t.Helper()
	select {
	case res := <-done:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("recording never finished")
		return recordResult{}
	}
}

func page(a action.Action) action.RawEvent {
	return action.RawEvent{PageAlias: "page", Action: a}
}

func TestRecord_EndsWhenPagesClosed(t *testing.T) {
	ctrl, src := newLiveCtrl(), newFakeSource()
	r := newLiveRecorder(ctrl, src)

	done := startRecord(context.Background(), r, Options{URL: "example.com"})
	s := ctrl.waitOpened(t)

	src.events <- page(action.Action{Name: action.KindNavigate, URL: "http://example.com/"})
	src.events <- page(action.Action{Name: action.KindFill, Selector: "#q", Text: "a"})
	src.events <- page(action.Action{Name: action.KindFill, Selector: "#q", Text: "ab"})
	src.events <- page(action.Action{Name: action.KindClick, Selector: "#go", ClickCount: 1})
	ctrl.closePage(s)

	res := waitResult(t, done)
	if res.err != nil {
		t.Fatal(res.err)
	}
	rec := res.rec
	if rec.EndReason != EndPagesClosed {
		t.Errorf("EndReason: got %q, want %q", rec.EndReason, EndPagesClosed)
	}
	if rec.ID != "rec_1" || rec.SessionID != "ses_live" || rec.URL != "example.com" {
		t.Errorf("got %+v", rec)
	}
	if len(rec.Actions) != 3 {
		t.Fatalf("Actions: got %d, want 3: %+v", len(rec.Actions), rec.Actions)
	}
	if rec.Actions[1].Action.Text != "ab" {
		t.Errorf("fill not merged: got %q", rec.Actions[1].Action.Text)
	}
	if !strings.Contains(rec.Source, "await page.fill('#q', 'ab');") || strings.Contains(rec.Source, "'a');") {
		t.Errorf("Source:\n%s", rec.Source)
	}
	if rec.EndedAt.Before(rec.StartedAt) {
		t.Errorf("EndedAt %v before StartedAt %v", rec.EndedAt, rec.StartedAt)
	}
	if got := ctrl.shutdowns.Load(); got != 1 {
		t.Errorf("shutdowns: got %d, want 1", got)
	}
	if r.Active() {
		t.Error("slot still reserved")
	}
}

func TestRecord_Stop(t *testing.T) {
	ctrl, src := newLiveCtrl(), newFakeSource()
	r := newLiveRecorder(ctrl, src)

	done := startRecord(context.Background(), r, Options{IsSuite: true})
	ctrl.waitOpened(t)
	src.events <- page(action.Action{Name: action.KindClick, Selector: "#a", ClickCount: 1})

	if !r.Stop() {
		t.Error("Stop: got false, want true")
	}
	res := waitResult(t, done)
	if res.err != nil {
		t.Fatal(res.err)
	}
	if res.rec.EndReason != EndStopped {
		t.Errorf("EndReason: got %q, want %q", res.rec.EndReason, EndStopped)
	}
	if len(res.rec.Actions) != 1 {
		t.Errorf("Actions: got %d, want 1", len(res.rec.Actions))
	}
	if !strings.HasPrefix(res.rec.Source, "const { journey, step, expect }") {
		t.Errorf("suite header missing:\n%s", res.rec.Source)
	}
	r.Stop()
	if got := ctrl.shutdowns.Load(); got != 1 {
		t.Errorf("shutdowns: got %d, want 1", got)
	}
}

func TestRecord_Cancelled(t *testing.T) {
	ctrl, src := newLiveCtrl(), newFakeSource()
	r := newLiveRecorder(ctrl, src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := startRecord(ctx, r, Options{})
	ctrl.waitOpened(t)
	src.events <- page(action.Action{Name: action.KindNavigate, URL: "http://a.com/"})
	cancel()

	res := waitResult(t, done)
	if res.err != nil {
		t.Fatal(res.err)
	}
	if res.rec.EndReason != EndCancelled {
		t.Errorf("EndReason: got %q, want %q", res.rec.EndReason, EndCancelled)
	}
	if len(res.rec.Actions) != 1 {
		t.Errorf("partial actions lost: got %d, want 1", len(res.rec.Actions))
	}
	if got := ctrl.shutdowns.Load(); got != 1 {
		t.Errorf("shutdowns: got %d, want 1", got)
	}
}

func TestRecord_NavigationErrorKeepsRecording(t *testing.T) {
	ctrl, src := newLiveCtrl(), newFakeSource()
	ctrl.navErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
	r := newLiveRecorder(ctrl, src)

	done := startRecord(context.Background(), r, Options{URL: "nowhere.invalid"})
	s := ctrl.waitOpened(t)
	src.events <- page(action.Action{Name: action.KindNavigate, URL: "http://example.com/"})
	ctrl.closePage(s)

	res := waitResult(t, done)
	if res.err != nil {
		t.Fatal(res.err)
	}
	var navErr *NavigationError
	if !errors.As(res.rec.NavigationErr, &navErr) || navErr.URL != "nowhere.invalid" {
		t.Errorf("NavigationErr: got %v", res.rec.NavigationErr)
	}
	if len(res.rec.Actions) != 1 {
		t.Errorf("Actions: got %d, want 1", len(res.rec.Actions))
	}
}

func TestRecord_StopDuringLaunchClosesOpenedSession(t *testing.T) {
	ctrl, src := newLiveCtrl(), newFakeSource()
	ctrl.gate = make(chan struct{})
	r := newLiveRecorder(ctrl, src)

	done := startRecord(context.Background(), r, Options{})
	deadline := time.Now().Add(2 * time.Second)
	for !r.Active() {
		if time.Now().After(deadline) {
			t.Fatal("recording never became active")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !r.Stop() {
		t.Error("Stop during launch: got false, want true")
	}
	close(ctrl.gate)

	res := waitResult(t, done)
	if res.err != nil {
		t.Fatal(res.err)
	}
	if res.rec.EndReason != EndStopped {
		t.Errorf("EndReason: got %q, want %q", res.rec.EndReason, EndStopped)
	}
	if len(res.rec.Actions) != 0 || res.rec.Source != "" {
		t.Errorf("got %+v", res.rec)
	}
	if got := ctrl.pages.Load(); got != 0 {
		t.Errorf("page opened on a stopped session: %d", got)
	}
	if got := ctrl.shutdowns.Load(); got != 1 {
		t.Errorf("shutdowns: got %d, want 1", got)
	}
}

func TestBrowse_EndsWhenPagesClosed(t *testing.T) {
	ctrl := newLiveCtrl()
	r := newLiveRecorder(ctrl, newFakeSource())

	type browseResult struct {
		b   *Browsing
		err error
	}
	done := make(chan browseResult, 1)
	go func() {
		b, err := r.Browse(context.Background(), "example.com")
		done <- browseResult{b, err}
	}()
	ctrl.closePage(ctrl.waitOpened(t))

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatal(res.err)
		}
		if res.b.SessionID != "ses_live" || res.b.EndReason != EndPagesClosed {
			t.Errorf("got %+v", res.b)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("browse never finished")
	}
}
