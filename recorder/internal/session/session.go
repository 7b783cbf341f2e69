// CLAUDE:SUMMARY Session lifecycle Open, Closing, Closed with exactly-once teardown and page hooks.
// Package session owns one browser session (a browser plus one isolated
// interaction context) for the lifetime of a recording or a browsing task,
// and tears it down exactly once: on explicit stop, when the last page of the
// context closes, or when the browser disconnects.
package session

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// State is the lifecycle state of a Session. The only transitions are
// Open -> Closing -> Closed.
type State int32

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// backend is the browser side of a session.
type backend interface {
	// openPages counts the pages still open in the session's context.
	openPages() (int, error)
	// shutdown releases the context and the browser. Called at most once.
	shutdown() error
}

// PageHook is called once for every page that appears in the session's
// context, before the session navigates it.
type PageHook func(page *rod.Page)

// CloseHook is called when a page of the session's context is destroyed,
// before the session checks whether any page remains.
type CloseHook func(id proto.TargetTargetID)

// Session is a live browser session. Create one with Controller.Open.
type Session struct {
	ID string

	state  atomic.Int32
	armed  atomic.Bool // set once the first page exists; exhaustion is only checked afterwards
	be     backend
	done   chan struct{}
	logger *slog.Logger

	shutdownErr error

	// rod handles; nil in tests built on a fake backend.
	browser *rod.Browser // interaction context

	mu         sync.Mutex
	hooks      []PageHook
	closeHooks []CloseHook
	seen       map[proto.TargetTargetID]chan struct{} // closed once the page's hooks ran
}

func newSession(id string, be backend, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		ID:     id,
		be:     be,
		done:   make(chan struct{}),
		logger: logger,
		seen:   make(map[proto.TargetTargetID]chan struct{}),
	}
}

// funcBackend is a backend made of plain functions.
type funcBackend struct {
	count func() (int, error)
	stop  func() error
}

func (f funcBackend) openPages() (int, error) { return f.count() }
func (f funcBackend) shutdown() error         { return f.stop() }

// NewDetached creates a session that is not bound to a browser: openPages
// and shutdown stand in for the browser side. Pages are reported with
// PageOpened and PageClosed. Controller.Open is the way to get a session
// that drives Chrome.
func NewDetached(id string, openPages func() (int, error), shutdown func() error, logger *slog.Logger) *Session {
	return newSession(id, funcBackend{count: openPages, stop: shutdown}, logger)
}

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the error reported by the underlying shutdown, if any. Only
// meaningful after Done is closed.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.shutdownErr
	default:
		return nil
	}
}

// OnPage registers a hook run for every page of the session. Hooks registered
// after a page was adopted are not replayed for it.
func (s *Session) OnPage(h PageHook) {
	s.mu.Lock()
	s.hooks = append(s.hooks, h)
	s.mu.Unlock()
}

// OnPageClosed registers a hook run for every destroyed page of the session.
func (s *Session) OnPageClosed(h CloseHook) {
	s.mu.Lock()
	s.closeHooks = append(s.closeHooks, h)
	s.mu.Unlock()
}

// Close tears the session down. Only the first caller performs the shutdown;
// every other call, concurrent or later, is a no-op that returns nil.
func (s *Session) Close() error {
	if !s.state.CompareAndSwap(int32(StateOpen), int32(StateClosing)) {
		return nil
	}
	err := s.be.shutdown()
	if err != nil {
		s.logger.Warn("session: shutdown", "session", s.ID, "error", err)
	}
	s.shutdownErr = err
	s.state.Store(int32(StateClosed))
	close(s.done)
	s.logger.Info("session: closed", "session", s.ID)
	return err
}

// PageOpened records that a page exists in the context. From then on, the
// session closes itself when no page remains.
func (s *Session) PageOpened() {
	s.armed.Store(true)
}

// PageClosed is the page-closed signal. It closes the session when no page
// remains open in its context.
func (s *Session) PageClosed() {
	s.checkExhausted()
}

// checkExhausted closes the session when the context has no open page left,
// or when the page count can no longer be obtained (browser gone).
func (s *Session) checkExhausted() {
	if s.State() != StateOpen || !s.armed.Load() {
		return
	}
	n, err := s.be.openPages()
	if err != nil {
		s.logger.Info("session: page count unavailable, closing", "session", s.ID, "error", err)
		s.Close()
		return
	}
	if n == 0 {
		s.logger.Info("session: last page closed", "session", s.ID)
		s.Close()
	}
}

// adopt installs the per-page handlers on a page the first time it is seen
// and runs the registered hooks. A concurrent adopt of the same target waits
// until the hooks have run. It reports whether the page was new.
func (s *Session) adopt(page *rod.Page) bool {
	s.mu.Lock()
	if ready, ok := s.seen[page.TargetID]; ok {
		s.mu.Unlock()
		<-ready
		return false
	}
	ready := make(chan struct{})
	s.seen[page.TargetID] = ready
	hooks := make([]PageHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	defer close(ready)
	s.PageOpened()
	acceptDialogs(page, s.logger)
	for _, h := range hooks {
		h(page)
	}
	return true
}

// adopted reports whether the target was already adopted.
func (s *Session) adopted(id proto.TargetTargetID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[id]
	return ok
}

// forget drops a closed target from the adopted set and runs the close
// hooks. It reports whether the target belonged to the session.
func (s *Session) forget(id proto.TargetTargetID) bool {
	s.mu.Lock()
	if _, ok := s.seen[id]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.seen, id)
	hooks := make([]CloseHook, len(s.closeHooks))
	copy(hooks, s.closeHooks)
	s.mu.Unlock()

	for _, h := range hooks {
		h(id)
	}
	return true
}

// acceptDialogs acknowledges every alert, confirm, prompt and beforeunload
// dialog raised by the page so the session never blocks on one.
func acceptDialogs(page *rod.Page, logger *slog.Logger) {
	go page.EachEvent(func(e *proto.PageJavascriptDialogOpening) {
		logger.Debug("session: dialog accepted", "type", e.Type, "message", e.Message)
		if err := (proto.PageHandleJavaScriptDialog{Accept: true, PromptText: e.DefaultPrompt}).Call(page); err != nil {
			logger.Debug("session: dialog accept failed", "error", err)
		}
	})()
}
