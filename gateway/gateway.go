// CLAUDE:SUMMARY Operation router mapping op names to bytes-in/bytes-out handlers.
// Package gateway exposes the journey operations (start-recording,
// run-journey, save-file, stop, browse, history) to calling processes.
//
// Every operation is a bytes-in, bytes-out Handler registered by name, so the
// same table serves in-process callers, the HTTP API and the MCP tools:
//
//	gw := gateway.New(gateway.WithLogger(logger))
//	svc.Register(gw)
//	out, err := gw.Call(ctx, gateway.OpStartRecording, []byte(`{"url":"example.com"}`))
package gateway

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// Handler is a transport-agnostic operation: JSON bytes in, JSON bytes out.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// Operation names.
const (
	OpStartRecording = "start-recording"
	OpRunJourney     = "run-journey"
	OpSaveFile       = "save-file"
	OpStop           = "stop"
	OpBrowse         = "browse"
	OpHistory        = "history"
	OpRecording      = "recording"
)

// Gateway dispatches named operations to their handlers.
type Gateway struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets a custom logger for the gateway.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// New creates a Gateway with no operations.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		handlers: make(map[string]Handler),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Handle registers h under op, replacing any previous handler.
func (g *Gateway) Handle(op string, h Handler) {
	g.mu.Lock()
	g.handlers[op] = h
	g.mu.Unlock()
}

// Call dispatches an operation. Unknown operations fail with
// *ErrOperationNotFound.
func (g *Gateway) Call(ctx context.Context, op string, payload []byte) ([]byte, error) {
	g.mu.RLock()
	h := g.handlers[op]
	g.mu.RUnlock()

	if h == nil {
		return nil, &ErrOperationNotFound{Op: op}
	}
	g.logger.DebugContext(ctx, "gateway: call", "op", op, "bytes", len(payload))
	return h(ctx, payload)
}

// Ops lists the registered operations, sorted.
func (g *Gateway) Ops() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ops := make([]string, 0, len(g.handlers))
	for op := range g.handlers {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}
