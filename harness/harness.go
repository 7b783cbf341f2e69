// CLAUDE:SUMMARY Runs journeys with the synthetics CLI in its own process group and collects stripped output.
// Package harness runs a journey in a separate worker process through the
// test-runner CLI and returns its combined, color-free output.
//
// Inline journeys are piped to the worker's stdin (--inline). Suite journeys
// are written to a fixed file under <Dir>/journeys and passed as a positional
// argument; suite runs are therefore serialized. The worker always runs with
// --no-headless.
package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/journey/idgen"
)

// SuiteFile is the name of the file suite journeys are written to.
const SuiteFile = "recorded.journey.js"

// DefaultCommand invokes the Elastic Synthetics runner.
var DefaultCommand = []string{"npx", "@elastic/synthetics"}

// Config configures a Harness.
type Config struct {
	// Command is the runner executable and its leading arguments.
	// Default: DefaultCommand.
	Command []string

	// Dir is the worker's working directory; suite files go to Dir/journeys.
	// Default: <os.TempDir()>/journey.
	Dir string

	// Env is appended to the inherited environment.
	Env []string

	// Timeout bounds one run. Zero means no limit beyond the caller's context.
	Timeout time.Duration

	// NewID generates run IDs. Default: idgen.RunID.
	NewID idgen.Generator

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if len(c.Command) == 0 {
		c.Command = DefaultCommand
	}
	if c.Dir == "" {
		c.Dir = filepath.Join(os.TempDir(), "journey")
	}
	if c.NewID == nil {
		c.NewID = idgen.RunID
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Request is one journey to run.
type Request struct {
	SourceCode string
	IsSuite    bool
}

// Result is the outcome of a completed run.
type Result struct {
	RunID    string
	Output   string // stdout then stderr, color sequences removed
	ExitCode int
	Duration time.Duration
}

// Passed reports whether the runner exited with status 0.
func (r *Result) Passed() bool { return r.ExitCode == 0 }

// Harness runs journeys.
type Harness struct {
	cfg       Config
	suiteMu   sync.Mutex // the suite file path is fixed
	writeFile func(name string, data []byte, perm os.FileMode) error
}

// New creates a Harness.
func New(cfg Config) *Harness {
	cfg.defaults()
	return &Harness{cfg: cfg, writeFile: os.WriteFile}
}

// SuitePath returns the fixed path suite journeys are written to.
func (h *Harness) SuitePath() string {
	return filepath.Join(h.cfg.Dir, "journeys", SuiteFile)
}

// Run executes one journey and waits for the worker to exit. A non-zero exit
// is reported through Result.ExitCode, not as an error. Any failure to spawn,
// stream or clean up returns *ExecutionError and no result.
func (h *Harness) Run(ctx context.Context, req Request) (*Result, error) {
	runID := h.cfg.NewID()
	log := h.cfg.Logger.With("run", runID, "suite", req.IsSuite)
	start := time.Now()

	if h.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.Timeout)
		defer cancel()
	}

	var args []string
	if req.IsSuite {
		h.suiteMu.Lock()
		defer h.suiteMu.Unlock()

		path := h.SuitePath()
		if err := h.writeSuite(path, req.SourceCode); err != nil {
			// A failed write may still have created the file.
			if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				log.Warn("harness: remove partial journey file", "error", rmErr)
			}
			return nil, h.fail(log, &ExecutionError{RunID: runID, Op: "write", Err: err})
		}
		args = []string{path, "--no-headless"}
	} else {
		args = []string{"--no-headless", "--inline"}
	}

	res, err := h.exec(ctx, runID, args, req)

	if req.IsSuite {
		if rmErr := os.Remove(h.SuitePath()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = &ExecutionError{RunID: runID, Op: "cleanup", Err: rmErr}
		}
	}
	if err != nil {
		return nil, h.fail(log, err)
	}

	res.Duration = time.Since(start)
	log.Info("harness: run finished", "exit_code", res.ExitCode, "duration", res.Duration)
	return res, nil
}

func (h *Harness) exec(ctx context.Context, runID string, args []string, req Request) (*Result, error) {
	name := h.cfg.Command[0]
	full := append(append([]string{}, h.cfg.Command[1:]...), args...)

	if err := os.MkdirAll(h.cfg.Dir, 0o755); err != nil {
		return nil, &ExecutionError{RunID: runID, Op: "spawn", Err: err}
	}

	cmd := exec.CommandContext(ctx, name, full...)
	cmd.Dir = h.cfg.Dir
	cmd.Env = append(os.Environ(), h.cfg.Env...)
	isolate(cmd)

	var stdin io.WriteCloser
	var err error
	if !req.IsSuite {
		if stdin, err = cmd.StdinPipe(); err != nil {
			return nil, &ExecutionError{RunID: runID, Op: "spawn", Err: err}
		}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &ExecutionError{RunID: runID, Op: "spawn", Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &ExecutionError{RunID: runID, Op: "spawn", Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &ExecutionError{RunID: runID, Op: "spawn", Err: err}
	}
	h.cfg.Logger.Info("harness: worker started", "run", runID, "pid", cmd.Process.Pid, "args", full)

	// Drain both streams concurrently; a full pipe would block the worker.
	var outBuf, errBuf bytes.Buffer
	var g errgroup.Group
	if stdin != nil {
		g.Go(func() error {
			_, err := io.WriteString(stdin, req.SourceCode)
			if cerr := stdin.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return &ExecutionError{RunID: runID, Op: "stdin", Err: err}
			}
			return nil
		})
	}
	g.Go(func() error {
		if _, err := io.Copy(&outBuf, stdout); err != nil {
			return &ExecutionError{RunID: runID, Op: "read", Err: fmt.Errorf("stdout: %w", err)}
		}
		return nil
	})
	g.Go(func() error {
		if _, err := io.Copy(&errBuf, stderr); err != nil {
			return &ExecutionError{RunID: runID, Op: "read", Err: fmt.Errorf("stderr: %w", err)}
		}
		return nil
	})
	streamErr := g.Wait()

	waitErr := cmd.Wait()
	if streamErr != nil {
		return nil, streamErr
	}

	res := &Result{
		RunID:  runID,
		Output: StripANSI(outBuf.String()) + StripANSI(errBuf.String()),
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) || ctx.Err() != nil {
			return nil, &ExecutionError{RunID: runID, Op: "wait", Err: errors.Join(waitErr, ctx.Err())}
		}
		res.ExitCode = exitErr.ExitCode()
	}
	return res, nil
}

func (h *Harness) fail(log *slog.Logger, err error) error {
	log.Error("harness: run failed", "error", err)
	return err
}

func (h *Harness) writeSuite(path, source string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return h.writeFile(path, []byte(source), 0o644)
}
