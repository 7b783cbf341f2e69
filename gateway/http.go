// CLAUDE:SUMMARY chi HTTP transport for the gateway with request/trace IDs and error classification.
package gateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/journey/kit"
	"github.com/hazyhaar/journey/recorder"
)

// MaxPayload bounds operation request bodies.
const MaxPayload = 4 << 20

// NewHTTPHandler serves the gateway over HTTP:
//
//	POST /api/{op}   operation call, JSON body in, JSON body out
//	GET  /api/ops    registered operations
//	GET  /healthz
//
// start-recording holds its request open until the recording ends; stop is
// sent on a separate request.
func NewHTTPHandler(g *Gateway, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(traceID)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/ops", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"ops": g.Ops()})
	})
	r.Post("/api/{op}", func(w http.ResponseWriter, req *http.Request) {
		op := chi.URLParam(req, "op")
		ctx := req.Context()

		body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, MaxPayload))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", err)
			return
		}

		out, err := g.Call(ctx, op, body)
		if err != nil {
			status, code := classify(err)
			kit.Logger(ctx, logger).Warn("gateway: http call failed", "op", op, "status", status, "error", err)
			writeError(w, status, code, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(out)
	})
	return r
}

// classify maps an operation error to an HTTP status and a stable code.
func classify(err error) (int, string) {
	var notFound *ErrOperationNotFound
	var invalid *ErrInvalidPayload
	var launch *recorder.SessionLaunchError
	var noRec *ErrRecordingNotFound
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound, "operation_not_found"
	case errors.As(err, &noRec):
		return http.StatusNotFound, "recording_not_found"
	case errors.As(err, &invalid):
		return http.StatusBadRequest, "invalid_payload"
	case errors.As(err, &launch):
		return http.StatusServiceUnavailable, "session_launch_failed"
	case errors.Is(err, recorder.ErrSessionActive):
		return http.StatusConflict, "session_active"
	case errors.Is(err, context.Canceled):
		return 499, "cancelled"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// traceID tags each request with a random trace ID (context and X-Trace-ID
// header), the chi request ID and the "http" transport.
func traceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := make([]byte, 4)
		rand.Read(id)
		trace := hex.EncodeToString(id)

		ctx := kit.WithTraceID(r.Context(), trace)
		ctx = kit.WithTransport(ctx, "http")
		if reqID := middleware.GetReqID(ctx); reqID != "" {
			ctx = kit.WithRequestID(ctx, reqID)
		}
		w.Header().Set("X-Trace-ID", trace)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": code})
}
