// CLAUDE:SUMMARY Journey operations (record, run, save, stop, browse, history, recording) as kit endpoints.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/hazyhaar/journey/action"
	"github.com/hazyhaar/journey/harness"
	"github.com/hazyhaar/journey/idgen"
	"github.com/hazyhaar/journey/journal"
	"github.com/hazyhaar/journey/kit"
	"github.com/hazyhaar/journey/recorder"
)

// Recorder records and browses journeys.
type Recorder interface {
	Record(ctx context.Context, opts recorder.Options) (*recorder.Recording, error)
	Browse(ctx context.Context, url string) (*recorder.Browsing, error)
	Stop() bool
}

// Runner runs journeys.
type Runner interface {
	Run(ctx context.Context, req harness.Request) (*harness.Result, error)
}

// Journal keeps the operation history.
type Journal interface {
	InsertRecording(ctx context.Context, r *journal.Recording) error
	InsertRun(ctx context.Context, r *journal.Run) error
	GetRecording(ctx context.Context, id string) (*journal.Recording, error)
	RecentRecordings(ctx context.Context, limit int) ([]journal.Recording, error)
	RecentRuns(ctx context.Context, limit int) ([]journal.Run, error)
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Recorder Recorder
	Runner   Runner
	Saver    *Saver
	Journal  Journal // optional
	Logger   *slog.Logger
}

// Service implements the gateway operations.
type Service struct {
	rec     Recorder
	run     Runner
	saver   *Saver
	journal Journal
	logger  *slog.Logger
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		rec:     cfg.Recorder,
		run:     cfg.Runner,
		saver:   cfg.Saver,
		journal: cfg.Journal,
		logger:  cfg.Logger,
	}
}

type StartRecordingRequest struct {
	URL     string `json:"url,omitempty"`
	IsSuite bool   `json:"is_suite"`
}

type StartRecordingResponse struct {
	RecordingID     string            `json:"recording_id"`
	SessionID       string            `json:"session_id"`
	Source          string            `json:"source"`
	Actions         []action.RawEvent `json:"actions"`
	NavigationError string            `json:"navigation_error,omitempty"`
	EndReason       string            `json:"end_reason"`
}

type RunJourneyRequest struct {
	SourceCode string `json:"source_code"`
	IsSuite    bool   `json:"is_suite"`
}

// RunJourneyResponse is the outcome of a run. A run that could not execute
// has OK false and an empty Output.
type RunJourneyResponse struct {
	RunID    string `json:"run_id,omitempty"`
	OK       bool   `json:"ok"`
	Output   string `json:"output"`
	ExitCode int    `json:"exit_code"`
	Passed   bool   `json:"passed"`
}

type SaveFileRequest struct {
	Source string `json:"source"`
	Name   string `json:"name,omitempty"`
}

type SaveFileResponse struct {
	Saved bool `json:"saved"`
}

type StopResponse struct {
	Stopped bool `json:"stopped"`
}

type BrowseRequest struct {
	URL string `json:"url,omitempty"`
}

type BrowseResponse struct {
	SessionID       string `json:"session_id"`
	NavigationError string `json:"navigation_error,omitempty"`
	EndReason       string `json:"end_reason"`
}

type HistoryRequest struct {
	Limit int `json:"limit,omitempty"`
}

type HistoryResponse struct {
	Recordings []journal.Recording `json:"recordings"`
	Runs       []journal.Run       `json:"runs"`
}

type RecordingRequest struct {
	ID string `json:"id"`
}

// StartRecording records a journey until the session ends and returns the
// synthesized source. Launch failures are returned as
// *recorder.SessionLaunchError.
func (s *Service) StartRecording(ctx context.Context, req *StartRecordingRequest) (*StartRecordingResponse, error) {
	rec, err := s.rec.Record(ctx, recorder.Options{URL: req.URL, IsSuite: req.IsSuite})
	if err != nil {
		return nil, err
	}
	resp := &StartRecordingResponse{
		RecordingID: rec.ID,
		SessionID:   rec.SessionID,
		Source:      rec.Source,
		Actions:     rec.Actions,
		EndReason:   rec.EndReason,
	}
	if resp.Actions == nil {
		resp.Actions = []action.RawEvent{}
	}
	if rec.NavigationErr != nil {
		resp.NavigationError = rec.NavigationErr.Error()
	}

	if s.journal != nil {
		jr := &journal.Recording{
			ID:        rec.ID,
			SessionID: rec.SessionID,
			URL:       rec.URL,
			IsSuite:   rec.IsSuite,
			Source:    rec.Source,
			Actions:   rec.Actions,
			NavError:  resp.NavigationError,
			EndReason: rec.EndReason,
			StartedAt: rec.StartedAt.UnixMilli(),
			EndedAt:   rec.EndedAt.UnixMilli(),
		}
		if err := s.journal.InsertRecording(context.WithoutCancel(ctx), jr); err != nil {
			s.logger.WarnContext(ctx, "gateway: journal recording", "recording", rec.ID, "error", err)
		}
	}
	return resp, nil
}

// RunJourney runs a journey. Execution failures are logged and resolve to a
// response with OK false; they are never returned as errors.
func (s *Service) RunJourney(ctx context.Context, req *RunJourneyRequest) (*RunJourneyResponse, error) {
	resp := &RunJourneyResponse{}
	jr := &journal.Run{IsSuite: req.IsSuite, SourceBytes: len(req.SourceCode)}

	res, err := s.run.Run(ctx, harness.Request{SourceCode: req.SourceCode, IsSuite: req.IsSuite})
	if err != nil {
		var ee *harness.ExecutionError
		if errors.As(err, &ee) {
			resp.RunID = ee.RunID
		}
		s.logger.ErrorContext(ctx, "gateway: run-journey failed", "error", err)
		jr.ID, jr.Error = resp.RunID, err.Error()
	} else {
		resp.RunID = res.RunID
		resp.OK = true
		resp.Output = res.Output
		resp.ExitCode = res.ExitCode
		resp.Passed = res.Passed()
		jr.ID, jr.OK, jr.ExitCode, jr.Output = res.RunID, true, res.ExitCode, res.Output
		jr.DurationMs = res.Duration.Milliseconds()
	}

	if s.journal != nil && jr.ID != "" {
		if err := s.journal.InsertRun(context.WithoutCancel(ctx), jr); err != nil {
			s.logger.WarnContext(ctx, "gateway: journal run", "run", jr.ID, "error", err)
		}
	}
	return resp, nil
}

// SaveFile writes a journey where the Prompter says. Failures are logged and
// reported as Saved false.
func (s *Service) SaveFile(ctx context.Context, req *SaveFileRequest) (*SaveFileResponse, error) {
	ok, err := s.saver.Save(ctx, req.Source, req.Name)
	if err != nil {
		s.logger.ErrorContext(ctx, "gateway: save-file failed", "error", err)
		return &SaveFileResponse{}, nil
	}
	return &SaveFileResponse{Saved: ok}, nil
}

// Stop ends the active session, if any.
func (s *Service) Stop(ctx context.Context) *StopResponse {
	stopped := s.rec.Stop()
	s.logger.InfoContext(ctx, "gateway: stop", "stopped", stopped)
	return &StopResponse{Stopped: stopped}
}

// Browse opens a browser for manual navigation and returns once it is closed.
func (s *Service) Browse(ctx context.Context, req *BrowseRequest) (*BrowseResponse, error) {
	b, err := s.rec.Browse(ctx, req.URL)
	if err != nil {
		return nil, err
	}
	resp := &BrowseResponse{SessionID: b.SessionID, EndReason: b.EndReason}
	if b.NavigationErr != nil {
		resp.NavigationError = b.NavigationErr.Error()
	}
	return resp, nil
}

// History lists recent recordings and runs. Without a journal both lists are
// empty.
func (s *Service) History(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error) {
	resp := &HistoryResponse{Recordings: []journal.Recording{}, Runs: []journal.Run{}}
	if s.journal == nil {
		return resp, nil
	}
	recs, err := s.journal.RecentRecordings(ctx, req.Limit)
	if err != nil {
		return nil, err
	}
	runs, err := s.journal.RecentRuns(ctx, req.Limit)
	if err != nil {
		return nil, err
	}
	if recs != nil {
		resp.Recordings = recs
	}
	if runs != nil {
		resp.Runs = runs
	}
	return resp, nil
}

// Recording returns one journaled recording with its compacted actions.
func (s *Service) Recording(ctx context.Context, req *RecordingRequest) (*journal.Recording, error) {
	id, err := idgen.Parse(req.ID)
	if err != nil {
		return nil, &ErrInvalidPayload{Op: OpRecording, Err: err}
	}
	if s.journal == nil {
		return nil, &ErrRecordingNotFound{ID: id}
	}
	rec, err := s.journal.GetRecording(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &ErrRecordingNotFound{ID: id}
	}
	return rec, nil
}

// Endpoints returns the operations as kit endpoints, keyed by op name. Each
// endpoint takes the pointer request type of its operation.
func (s *Service) Endpoints() map[string]kit.Endpoint {
	return map[string]kit.Endpoint{
		OpStartRecording: func(ctx context.Context, req any) (any, error) {
			return s.StartRecording(ctx, req.(*StartRecordingRequest))
		},
		OpRunJourney: func(ctx context.Context, req any) (any, error) {
			r := req.(*RunJourneyRequest)
			if strings.TrimSpace(r.SourceCode) == "" {
				return nil, &ErrInvalidPayload{Op: OpRunJourney, Err: errors.New("source_code is required")}
			}
			return s.RunJourney(ctx, r)
		},
		OpSaveFile: func(ctx context.Context, req any) (any, error) {
			return s.SaveFile(ctx, req.(*SaveFileRequest))
		},
		OpStop: func(ctx context.Context, _ any) (any, error) {
			return s.Stop(ctx), nil
		},
		OpBrowse: func(ctx context.Context, req any) (any, error) {
			return s.Browse(ctx, req.(*BrowseRequest))
		},
		OpHistory: func(ctx context.Context, req any) (any, error) {
			return s.History(ctx, req.(*HistoryRequest))
		},
		OpRecording: func(ctx context.Context, req any) (any, error) {
			return s.Recording(ctx, req.(*RecordingRequest))
		},
	}
}

// decoders build the request value of each operation from its payload.
var decoders = map[string]func([]byte) (any, error){
	OpStartRecording: decodeAs[StartRecordingRequest],
	OpRunJourney:     decodeAs[RunJourneyRequest],
	OpSaveFile:       decodeSave,
	OpStop:           func([]byte) (any, error) { return nil, nil },
	OpBrowse:         decodeAs[BrowseRequest],
	OpHistory:        decodeAs[HistoryRequest],
	OpRecording:      decodeAs[RecordingRequest],
}

func decodeAs[T any](payload []byte) (any, error) {
	r := new(T)
	if len(strings.TrimSpace(string(payload))) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(payload, r); err != nil {
		return nil, err
	}
	return r, nil
}

// decodeSave accepts either {"source": ...} or a bare JSON string.
func decodeSave(payload []byte) (any, error) {
	var src string
	if err := json.Unmarshal(payload, &src); err == nil {
		return &SaveFileRequest{Source: src}, nil
	}
	return decodeAs[SaveFileRequest](payload)
}

// Register installs every operation on g, with logging.
func (s *Service) Register(g *Gateway) {
	for op, ep := range s.Endpoints() {
		g.Handle(op, bind(op, s.middleware(op)(ep)))
	}
}

// middleware is the stack every transport puts around an operation.
func (s *Service) middleware(op string) kit.Middleware {
	return kit.Chain(kit.Logging(s.logger, op), kit.Recover())
}

func bind(op string, ep kit.Endpoint) Handler {
	decode := decoders[op]
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		req, err := decode(payload)
		if err != nil {
			return nil, &ErrInvalidPayload{Op: op, Err: err}
		}
		resp, err := ep(ctx, req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	}
}
