// CLAUDE:SUMMARY Launches or connects Chrome via rod, opens the incognito context and watches its targets.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/journey/idgen"
)

// Config configures the Controller.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Bin is the Chrome binary. Empty = launcher lookup/download.
	Bin string

	// Headless runs the local browser without a window. Recording is meant to
	// be visible, so the default is false.
	Headless bool

	// XvfbDisplay starts an Xvfb server on this display for headful runs on
	// machines without a screen. Empty = use the current DISPLAY.
	XvfbDisplay string

	// Stealth creates pages with go-rod/stealth evasions applied.
	Stealth bool

	// NavigateTimeout bounds the initial navigation. Default: 30s.
	NavigateTimeout time.Duration

	// HeartbeatInterval is how often the session re-checks its page count and
	// the browser connection. Default: 2s.
	HeartbeatInterval time.Duration

	// NewID generates session IDs. Default: idgen.SessionID.
	NewID idgen.Generator

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 2 * time.Second
	}
	if c.NewID == nil {
		c.NewID = idgen.SessionID
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Controller opens browser sessions.
type Controller struct {
	cfg Config
}

// NewController creates a Controller.
func NewController(cfg Config) *Controller {
	cfg.defaults()
	return &Controller{cfg: cfg}
}

// Open launches (or connects to) a browser, creates one isolated interaction
// context and starts watching its pages. The session has no page yet; use
// OpenPage. Failures are reported as *SessionLaunchError.
func (c *Controller) Open(ctx context.Context) (*Session, error) {
	log := c.cfg.Logger
	be := &rodBackend{logger: log}

	fail := func(err error) (*Session, error) {
		be.shutdown()
		return nil, &SessionLaunchError{Remote: c.cfg.RemoteURL, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	if c.cfg.XvfbDisplay != "" && c.cfg.RemoteURL == "" && !c.cfg.Headless {
		xvfb, err := startXvfb(c.cfg.XvfbDisplay, log)
		if err != nil {
			return fail(err)
		}
		be.xvfb = xvfb
	}

	wsURL := c.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(c.cfg.Headless)
		if c.cfg.Bin != "" {
			l = l.Bin(c.cfg.Bin)
		}
		if c.cfg.XvfbDisplay != "" {
			l = l.Env(append(os.Environ(), "DISPLAY="+c.cfg.XvfbDisplay)...)
		}
		// The interaction context opens its own window.
		l = l.Set("no-startup-window").
			Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return fail(fmt.Errorf("launch: %w", err))
		}
		be.lnch = l
		wsURL = u
		log.Info("session: launched local chrome", "url", wsURL, "headless", c.cfg.Headless)
	} else {
		log.Info("session: connecting to remote", "url", wsURL)
	}

	connCtx, cancel := context.WithCancel(context.Background())
	be.cancel = cancel
	root := rod.New().Context(connCtx).ControlURL(wsURL)
	if err := root.Connect(); err != nil {
		return fail(fmt.Errorf("connect: %w", err))
	}
	be.root = root
	be.remote = c.cfg.RemoteURL != ""

	incog, err := root.Incognito()
	if err != nil {
		return fail(fmt.Errorf("create context: %w", err))
	}
	be.browser = incog

	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(root); err != nil {
		return fail(fmt.Errorf("discover targets: %w", err))
	}

	s := newSession(c.cfg.NewID(), be, log)
	s.browser = incog

	c.watch(s, be)
	go c.heartbeat(s)

	log.Info("session: opened", "session", s.ID, "context", incog.BrowserContextID)
	return s, nil
}

// OpenPage creates a page in the session's context, runs the session's page
// hooks on it, then navigates to the resolved target if one is given. A
// navigation failure returns the page together with a *NavigationError; the
// page and the session stay open.
func (c *Controller) OpenPage(ctx context.Context, s *Session, target string) (*rod.Page, error) {
	if s.State() != StateOpen || s.browser == nil {
		return nil, ErrClosed
	}

	var page *rod.Page
	var err error
	if c.cfg.Stealth {
		page, err = stealth.Page(s.browser)
	} else {
		page, err = s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, fmt.Errorf("session: create page: %w", err)
	}
	s.adopt(page)

	addr := ResolveTarget(target)
	if addr == "" {
		return page, nil
	}

	navCtx, cancel := context.WithTimeout(ctx, c.cfg.NavigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(addr); err != nil {
		return page, &NavigationError{URL: addr, Err: err}
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		c.cfg.Logger.Warn("session: wait load timeout", "url", addr, "error", err)
	}
	return page, nil
}

// watch follows target creation and destruction for the session's context.
// New pages (popups, tabs opened by the user) are adopted; every destroyed
// page of the context is a page-closed signal. When the browser connection
// ends, the session is closed.
func (c *Controller) watch(s *Session, be *rodBackend) {
	log := c.cfg.Logger
	ctxID := be.browser.BrowserContextID

	wait := be.root.EachEvent(
		func(e *proto.TargetTargetCreated) {
			info := e.TargetInfo
			if info == nil || info.Type != proto.TargetTargetInfoTypePage || info.BrowserContextID != ctxID {
				return
			}
			if s.adopted(info.TargetID) {
				return
			}
			page, err := be.browser.PageFromTarget(info.TargetID)
			if err != nil {
				log.Debug("session: attach target", "target", info.TargetID, "error", err)
				return
			}
			if s.adopt(page) {
				log.Debug("session: page opened", "target", info.TargetID, "url", info.URL)
			}
		},
		func(e *proto.TargetTargetDestroyed) {
			if !s.forget(e.TargetID) {
				return
			}
			log.Debug("session: page closed", "target", e.TargetID)
			go s.PageClosed()
		},
	)

	go func() {
		wait()
		if s.State() == StateOpen {
			log.Info("session: browser disconnected", "session", s.ID)
			s.Close()
		}
	}()
}

// heartbeat catches page exhaustion and disconnects that the event stream
// missed.
func (c *Controller) heartbeat(s *Session) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.Done():
			return
		case <-ticker.C:
			s.checkExhausted()
		}
	}
}

// rodBackend is the go-rod implementation of backend.
type rodBackend struct {
	root    *rod.Browser // connection
	browser *rod.Browser // interaction context
	lnch    *launcher.Launcher
	xvfb    *exec.Cmd
	remote  bool
	cancel  context.CancelFunc
	logger  *slog.Logger

	once sync.Once
}

func (b *rodBackend) openPages() (int, error) {
	if b.root == nil || b.browser == nil {
		return 0, errors.New("session: not connected")
	}
	res, err := proto.TargetGetTargets{}.Call(b.root)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range res.TargetInfos {
		if t.Type == proto.TargetTargetInfoTypePage && t.BrowserContextID == b.browser.BrowserContextID {
			n++
		}
	}
	return n, nil
}

func (b *rodBackend) shutdown() error {
	var errs []error
	b.once.Do(func() {
		if b.browser != nil {
			if err := b.browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close context: %w", err))
			}
		}
		if b.root != nil && !b.remote {
			if err := b.root.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close browser: %w", err))
			}
		}
		if b.cancel != nil {
			b.cancel()
		}
		if b.lnch != nil {
			b.lnch.Cleanup()
		}
		stopXvfb(b.xvfb, b.logger)
	})
	return errors.Join(errs...)
}
