// CLAUDE:SUMMARY Recorder drives one session at a time: capture, dedup and synthesis of a journey.
// Package recorder records browser journeys. A recording opens a visible
// browser session, captures what the user does in it, compacts the action
// stream as it arrives and, once the session ends, synthesizes the journey
// script.
package recorder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/journey/action"
	"github.com/hazyhaar/journey/idgen"
	"github.com/hazyhaar/journey/kit"
	"github.com/hazyhaar/journey/recorder/internal/capture"
	"github.com/hazyhaar/journey/recorder/internal/dedup"
	"github.com/hazyhaar/journey/recorder/internal/session"
	"github.com/hazyhaar/journey/synth"
)

// ErrSessionActive is returned when a recording or browsing session is
// already running on this Recorder.
var ErrSessionActive = errors.New("recorder: a session is already active")

type (
	// SessionLaunchError means the browser could not be started; the recording
	// never began.
	SessionLaunchError = session.SessionLaunchError
	// NavigationError means the initial navigation failed; the session stayed
	// open for the user to navigate.
	NavigationError = session.NavigationError
)

// End reasons of a session.
const (
	EndStopped     = "stopped"      // explicit Stop
	EndPagesClosed = "pages_closed" // user closed every page, or the browser
	EndCancelled   = "cancelled"    // caller's context done
)

// Config configures a Recorder.
type Config struct {
	// RemoteURL connects to an external Chrome instead of launching one.
	RemoteURL string
	// Bin is the Chrome binary for local launches.
	Bin string
	// Headless hides the browser window. Recording is normally visible.
	Headless bool
	// XvfbDisplay runs the visible browser on a virtual display.
	XvfbDisplay string
	// Stealth applies go-rod/stealth evasions to pages.
	Stealth bool
	// NavigateTimeout bounds the initial navigation. Default: 30s.
	NavigateTimeout time.Duration
	// HeartbeatInterval is the session health check period. Default: 2s.
	HeartbeatInterval time.Duration
	// JourneyName titles suite scripts. Default: synth.DefaultJourneyName.
	JourneyName string
	// EventBuffer is the capacity of the raw event channel. Default: 1024.
	EventBuffer int

	NewID  idgen.Generator // recording IDs, default idgen.RecordingID
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NewID == nil {
		c.NewID = idgen.RecordingID
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Options of one recording.
type Options struct {
	URL     string // optional start target; see session.ResolveTarget
	IsSuite bool   // synthesize a standalone journey file
}

// Recording is the result of a finished recording.
type Recording struct {
	ID        string
	SessionID string
	URL       string
	IsSuite   bool
	Source    string
	Actions   []action.RawEvent
	// NavigationErr is the initial navigation failure, if any. The recording
	// went on regardless.
	NavigationErr error
	EndReason     string
	StartedAt     time.Time
	EndedAt       time.Time
}

// Browsing is the result of a finished browsing session.
type Browsing struct {
	SessionID     string
	URL           string
	NavigationErr error
	EndReason     string
}

// controller is the part of session.Controller the recorder drives.
type controller interface {
	Open(ctx context.Context) (*session.Session, error)
	OpenPage(ctx context.Context, s *session.Session, target string) (*rod.Page, error)
}

// eventSource is the part of capture.Capture the recorder consumes.
type eventSource interface {
	Attach(page *rod.Page) error
	Detach(id proto.TargetTargetID)
	Events() <-chan action.RawEvent
	Close()
}

func newCapture(cfg capture.Config) eventSource { return capture.New(cfg) }

// active is the single live session of a Recorder.
type active struct {
	s       *session.Session
	stopped bool
}

// Recorder runs at most one session at a time.
type Recorder struct {
	cfg       Config
	ctrl      controller
	newSource func(capture.Config) eventSource

	mu  sync.Mutex
	cur *active
}

// New creates a Recorder.
func New(cfg Config) *Recorder {
	cfg.defaults()
	ctrl := session.NewController(session.Config{
		RemoteURL:         cfg.RemoteURL,
		Bin:               cfg.Bin,
		Headless:          cfg.Headless,
		XvfbDisplay:       cfg.XvfbDisplay,
		Stealth:           cfg.Stealth,
		NavigateTimeout:   cfg.NavigateTimeout,
		HeartbeatInterval: cfg.HeartbeatInterval,
		Logger:            cfg.Logger,
	})
	return &Recorder{cfg: cfg, ctrl: ctrl, newSource: newCapture}
}

// Record opens a session, records until it ends (every page closed, Stop, or
// ctx done) and returns the synthesized journey. Launch failures are returned
// as *SessionLaunchError. A failed initial navigation does not abort the
// recording; it is reported in Recording.NavigationErr.
func (r *Recorder) Record(ctx context.Context, opts Options) (*Recording, error) {
	rec := &Recording{
		ID:        r.cfg.NewID(),
		URL:       opts.URL,
		IsSuite:   opts.IsSuite,
		StartedAt: time.Now().UTC(),
	}

	s, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	defer r.release()
	rec.SessionID = s.ID
	ctx = kit.WithSessionID(kit.WithRecordingID(ctx, rec.ID), s.ID)
	log := kit.Logger(ctx, r.cfg.Logger)

	capt := r.newSource(capture.Config{Buffer: r.cfg.EventBuffer, Logger: log})
	s.OnPage(func(p *rod.Page) {
		if err := capt.Attach(p); err != nil {
			log.Warn("recorder: attach page", "error", err)
		}
	})
	s.OnPageClosed(capt.Detach)

	engine := dedup.New()
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for ev := range capt.Events() {
			d := engine.Push(ev)
			log.Debug("recorder: event", "alias", ev.PageAlias, "name", ev.Action.Name,
				"erase_previous", d.ErasePrevious, "drop", d.Drop)
		}
	}()

	log.Info("recorder: recording started", "url", opts.URL, "suite", opts.IsSuite)
	if _, err := r.ctrl.OpenPage(ctx, s, opts.URL); err != nil {
		var navErr *NavigationError
		switch {
		case errors.As(err, &navErr):
			log.Warn("recorder: initial navigation failed", "error", err)
			rec.NavigationErr = err
		case errors.Is(err, session.ErrClosed):
			// Stopped while launching.
		default:
			s.Close()
			capt.Close()
			<-consumed
			return nil, err
		}
	}

	rec.EndReason = r.wait(ctx, s)
	capt.Close()
	<-consumed

	rec.Actions = engine.Actions()
	engine.Reset()
	rec.Source = synth.Generator{Suite: opts.IsSuite, JourneyName: r.cfg.JourneyName}.Generate(rec.Actions)
	rec.EndedAt = time.Now().UTC()

	log.Info("recorder: recording finished", "actions", len(rec.Actions), "reason", rec.EndReason)
	return rec, nil
}

// Browse opens a session for manual browsing, without recording, and waits
// until it ends.
func (r *Recorder) Browse(ctx context.Context, url string) (*Browsing, error) {
	s, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	defer r.release()
	ctx = kit.WithSessionID(ctx, s.ID)
	log := kit.Logger(ctx, r.cfg.Logger)

	b := &Browsing{SessionID: s.ID, URL: url}
	log.Info("recorder: browsing started", "url", url)
	if _, err := r.ctrl.OpenPage(ctx, s, url); err != nil {
		var navErr *NavigationError
		switch {
		case errors.As(err, &navErr):
			log.Warn("recorder: initial navigation failed", "error", err)
			b.NavigationErr = err
		case errors.Is(err, session.ErrClosed):
		default:
			s.Close()
			return nil, err
		}
	}
	b.EndReason = r.wait(ctx, s)
	log.Info("recorder: browsing finished", "reason", b.EndReason)
	return b, nil
}

// Stop ends the active session, if any. It is safe to call at any time and
// any number of times; it reports whether a session was active.
func (r *Recorder) Stop() bool {
	r.mu.Lock()
	cur := r.cur
	if cur == nil {
		r.mu.Unlock()
		return false
	}
	cur.stopped = true
	s := cur.s
	r.mu.Unlock()

	if s != nil {
		s.Close()
	}
	r.cfg.Logger.Info("recorder: stop requested")
	return true
}

// Active reports whether a session is running.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cur != nil
}

// open reserves the single session slot and opens a session. A Stop that
// arrives while the browser is launching closes the session right away.
func (r *Recorder) open(ctx context.Context) (*session.Session, error) {
	r.mu.Lock()
	if r.cur != nil {
		r.mu.Unlock()
		return nil, ErrSessionActive
	}
	cur := &active{}
	r.cur = cur
	r.mu.Unlock()

	s, err := r.ctrl.Open(ctx)
	if err != nil {
		r.release()
		r.cfg.Logger.Error("recorder: session launch failed", "error", err)
		return nil, err
	}

	r.mu.Lock()
	cur.s = s
	stopped := cur.stopped
	r.mu.Unlock()
	if stopped {
		s.Close()
	}
	return s, nil
}

func (r *Recorder) release() {
	r.mu.Lock()
	r.cur = nil
	r.mu.Unlock()
}

// wait blocks until the session ends and reports why.
func (r *Recorder) wait(ctx context.Context, s *session.Session) string {
	select {
	case <-s.Done():
	case <-ctx.Done():
		s.Close()
		<-s.Done()
		return EndCancelled
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur != nil && r.cur.stopped {
		return EndStopped
	}
	return EndPagesClosed
}
