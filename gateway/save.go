// CLAUDE:SUMMARY Saver writes journey scripts where a Prompter says; directory and terminal prompters.
package gateway

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultSaveName is the file name suggested for a saved journey.
const DefaultSaveName = "recorded.journey.js"

// Prompter asks for the destination of a journey. ok is false when the user
// declined to choose one.
type Prompter interface {
	Prompt(ctx context.Context, suggested string) (path string, ok bool, err error)
}

// Saver writes generated journeys where the Prompter says.
type Saver struct {
	prompter Prompter
	logger   *slog.Logger
}

// NewSaver creates a Saver. A nil logger uses slog.Default().
func NewSaver(p Prompter, logger *slog.Logger) *Saver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Saver{prompter: p, logger: logger}
}

// Save prompts for a destination, suggesting name (DefaultSaveName when
// empty), and writes source verbatim. It reports whether a file was written.
func (s *Saver) Save(ctx context.Context, source, name string) (bool, error) {
	if name == "" {
		name = DefaultSaveName
	}
	path, ok, err := s.prompter.Prompt(ctx, name)
	if err != nil {
		return false, fmt.Errorf("gateway: save: prompt: %w", err)
	}
	if !ok {
		s.logger.InfoContext(ctx, "gateway: save cancelled")
		return false, nil
	}
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		return false, fmt.Errorf("gateway: save: write %s: %w", path, err)
	}
	s.logger.InfoContext(ctx, "gateway: journey saved", "path", path, "bytes", len(source))
	return true, nil
}

// DirPrompter answers without asking: the suggested name inside Dir. Names
// are reduced to their base so callers cannot escape Dir.
type DirPrompter struct {
	Dir string
}

func (p DirPrompter) Prompt(_ context.Context, suggested string) (string, bool, error) {
	name := filepath.Base(filepath.Clean("/" + suggested))
	if name == "/" || name == "." {
		return "", false, errors.New("empty file name")
	}
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return "", false, err
	}
	return filepath.Join(p.Dir, name), true, nil
}

// LinePrompter asks on Out and reads one line from In. An empty line or the
// end of In cancels. A single goroutine reads In for the lifetime of the
// prompter; a line typed after a cancelled prompt answers the next one.
type LinePrompter struct {
	In  io.Reader
	Out io.Writer

	once  sync.Once
	lines chan lineAnswer
}

type lineAnswer struct {
	line string
	err  error
}

func (p *LinePrompter) read() {
	defer close(p.lines)
	r := bufio.NewReader(p.In)
	for {
		line, err := r.ReadString('\n')
		if line != "" || err == nil {
			p.lines <- lineAnswer{line: line}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.lines <- lineAnswer{err: err}
			}
			return
		}
	}
}

func (p *LinePrompter) Prompt(ctx context.Context, suggested string) (string, bool, error) {
	p.once.Do(func() {
		p.lines = make(chan lineAnswer)
		go p.read()
	})
	fmt.Fprintf(p.Out, "Save journey as (e.g. %s, empty to cancel): ", suggested)

	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case a, ok := <-p.lines:
		if !ok {
			return "", false, nil
		}
		if a.err != nil {
			return "", false, a.err
		}
		path := strings.TrimSpace(a.line)
		if path == "" {
			return "", false, nil
		}
		return path, true, nil
	}
}
