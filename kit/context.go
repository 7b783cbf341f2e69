// CLAUDE:SUMMARY Request-scoped context values (transport, request, trace, session, recording IDs) and slog attrs.
package kit

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	transportKey ctxKey = iota
	requestIDKey
	traceIDKey
	sessionIDKey
	recordingIDKey
)

func withString(ctx context.Context, k ctxKey, v string) context.Context {
	return context.WithValue(ctx, k, v)
}

func getString(ctx context.Context, k ctxKey) string {
	v, _ := ctx.Value(k).(string)
	return v
}

// WithTransport tags the request with the transport it came from: "http",
// "mcp". Untagged contexts are in-process calls.
func WithTransport(ctx context.Context, t string) context.Context {
	return withString(ctx, transportKey, t)
}

// GetTransport defaults to "local".
func GetTransport(ctx context.Context) string {
	if v := getString(ctx, transportKey); v != "" {
		return v
	}
	return "local"
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}
func GetRequestID(ctx context.Context) string { return getString(ctx, requestIDKey) }

func WithTraceID(ctx context.Context, id string) context.Context {
	return withString(ctx, traceIDKey, id)
}
func GetTraceID(ctx context.Context) string { return getString(ctx, traceIDKey) }

// WithSessionID records the browser session serving the request.
func WithSessionID(ctx context.Context, id string) context.Context {
	return withString(ctx, sessionIDKey, id)
}
func GetSessionID(ctx context.Context) string { return getString(ctx, sessionIDKey) }

func WithRecordingID(ctx context.Context, id string) context.Context {
	return withString(ctx, recordingIDKey, id)
}
func GetRecordingID(ctx context.Context) string { return getString(ctx, recordingIDKey) }

// Attrs returns the request-scoped values of ctx as slog key/value pairs,
// skipping the empty ones.
func Attrs(ctx context.Context) []any {
	attrs := []any{"transport", GetTransport(ctx)}
	for _, kv := range []struct {
		name string
		key  ctxKey
	}{
		{"request_id", requestIDKey},
		{"trace_id", traceIDKey},
		{"session_id", sessionIDKey},
		{"recording_id", recordingIDKey},
	} {
		if v := getString(ctx, kv.key); v != "" {
			attrs = append(attrs, kv.name, v)
		}
	}
	return attrs
}

// Logger returns base enriched with Attrs(ctx).
func Logger(ctx context.Context, base *slog.Logger) *slog.Logger {
	return base.With(Attrs(ctx)...)
}
