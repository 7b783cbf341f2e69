// CLAUDE:SUMMARY Captures page interactions via a CDP binding and main-frame navigations, with page aliases.
// Package capture turns browser activity into raw action events. An injected
// listener reports element interactions through a CDP binding; main-frame
// navigations the browser starts on its own (address bar, initial load) come
// from Page.frameNavigated. Every page gets a stable alias: page, page1, ...
package capture

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/journey/action"
)

//go:embed recorder.js
var recorderJS string

const bindingName = "__journey_binding"

// Config configures a Capture.
type Config struct {
	// Buffer is the capacity of the event channel. Default: 1024.
	Buffer int
	Logger *slog.Logger
}

// Capture collects raw events from every attached page into one channel.
// Events of one page are delivered in the order the page produced them.
type Capture struct {
	out    chan action.RawEvent
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
	wg     sync.WaitGroup

	mu      sync.RWMutex
	closed  bool
	aliases map[proto.TargetTargetID]string
	next    int
}

// New creates a Capture. Call Close when the session ends.
func New(cfg Config) *Capture {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Capture{
		out:     make(chan action.RawEvent, cfg.Buffer),
		ctx:     ctx,
		cancel:  cancel,
		logger:  cfg.Logger,
		aliases: make(map[proto.TargetTargetID]string),
	}
}

// Events returns the event stream. It is closed by Close.
func (c *Capture) Events() <-chan action.RawEvent { return c.out }

// AliasOf returns the alias assigned to a page target.
func (c *Capture) AliasOf(id proto.TargetTargetID) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.aliases[id]
	return a, ok
}

// Attach starts capturing on page. Attaching the same target twice is a
// no-op. Every page after the first emits an openPage event.
func (c *Capture) Attach(page *rod.Page) error {
	alias, isNew, err := c.assign(page.TargetID)
	if err != nil || !isNew {
		return err
	}
	log := c.logger.With("alias", alias)

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(page); err != nil {
		return fmt.Errorf("capture: add binding: %w", err)
	}
	if _, err := page.EvalOnNewDocument(recorderJS); err != nil {
		return fmt.Errorf("capture: inject recorder: %w", err)
	}

	nav := newNavFilter()
	wait := page.Context(c.ctx).EachEvent(
		func(e *proto.RuntimeBindingCalled) {
			if e.Name != bindingName {
				return
			}
			ev, err := decodeBinding(alias, e.Payload)
			if err != nil {
				log.Warn("capture: bad binding payload", "error", err)
				return
			}
			c.emit(ev)
		},
		func(e *proto.PageFrameRequestedNavigation) {
			nav.requested(e.FrameID)
		},
		func(e *proto.PageFrameNavigated) {
			if url, ok := nav.navigated(e.Frame); ok {
				c.emit(action.RawEvent{PageAlias: alias, Action: action.Action{Name: action.KindNavigate, URL: url}})
			}
		},
	)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		wait()
	}()

	if alias != firstAlias {
		info, err := page.Info()
		url := ""
		if err == nil && info != nil {
			url = info.URL
		}
		c.emit(action.RawEvent{PageAlias: alias, Action: action.Action{Name: action.KindOpenPage, URL: url}})
	}

	// The current document predates EvalOnNewDocument.
	if _, err := page.Eval(`() => {` + recorderJS + `}`); err != nil {
		log.Debug("capture: inject into current document", "error", err)
	}

	log.Debug("capture: attached", "target", page.TargetID)
	return nil
}

// Detach emits closePage for a target that has been destroyed.
func (c *Capture) Detach(id proto.TargetTargetID) {
	alias, ok := c.AliasOf(id)
	if !ok {
		return
	}
	c.emit(action.RawEvent{PageAlias: alias, Action: action.Action{Name: action.KindClosePage}})
}

// Close stops all page listeners and closes the event stream.
func (c *Capture) Close() {
	c.cancel()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.wg.Wait()
	close(c.out)
}

const firstAlias = "page"

// aliasFor returns the alias of the n-th page (0-based).
func aliasFor(n int) string {
	if n == 0 {
		return firstAlias
	}
	return firstAlias + strconv.Itoa(n)
}

func (c *Capture) assign(id proto.TargetTargetID) (alias string, isNew bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", false, fmt.Errorf("capture: closed")
	}
	if a, ok := c.aliases[id]; ok {
		return a, false, nil
	}
	alias = aliasFor(c.next)
	c.next++
	c.aliases[id] = alias
	return alias, true, nil
}

func (c *Capture) emit(ev action.RawEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.out <- ev:
	case <-c.ctx.Done():
	}
}

func decodeBinding(alias, payload string) (action.RawEvent, error) {
	a, err := action.Decode([]byte(payload))
	if err != nil {
		return action.RawEvent{}, err
	}
	return action.RawEvent{PageAlias: alias, Action: a}, nil
}

// navFilter keeps browser-initiated main-frame navigations. A navigation
// announced by Page.frameRequestedNavigation was started by the page itself
// (link, form, script) and is already implied by a recorded action.
type navFilter struct {
	mu      sync.Mutex
	pending map[proto.PageFrameID]bool
}

func newNavFilter() *navFilter {
	return &navFilter{pending: make(map[proto.PageFrameID]bool)}
}

func (f *navFilter) requested(id proto.PageFrameID) {
	f.mu.Lock()
	f.pending[id] = true
	f.mu.Unlock()
}

// navigated reports the URL to record for a committed navigation, if any.
func (f *navFilter) navigated(frame *proto.PageFrame) (string, bool) {
	if frame == nil || frame.ParentID != "" {
		return "", false
	}
	f.mu.Lock()
	requested := f.pending[frame.ID]
	delete(f.pending, frame.ID)
	f.mu.Unlock()
	if requested {
		return "", false
	}

	url := frame.URL + frame.URLFragment
	if url == "" || url == "about:blank" || strings.HasPrefix(url, "chrome-error:") {
		return "", false
	}
	return url, true
}
