package gateway

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLinePrompter(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "mine.journey.js")

	var out bytes.Buffer
	s := NewSaver(&LinePrompter{In: strings.NewReader(dest + "\n\n"), Out: &out}, nil)

	ok, err := s.Save(context.Background(), "src", "")
	if err != nil || !ok {
		t.Fatalf("first save: got %v, %v", ok, err)
	}
	if !strings.Contains(out.String(), DefaultSaveName) {
		t.Errorf("prompt does not suggest %s: %q", DefaultSaveName, out.String())
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "src" {
		t.Errorf("file: got %q, %v", data, err)
	}

	ok, err = s.Save(context.Background(), "src", "")
	if err != nil || ok {
		t.Errorf("empty line: got %v, %v; want false, nil", ok, err)
	}
}

func TestLinePrompter_EOF(t *testing.T) {
	s := NewSaver(&LinePrompter{In: strings.NewReader(""), Out: &bytes.Buffer{}}, nil)
	ok, err := s.Save(context.Background(), "src", "")
	if err != nil || ok {
		t.Errorf("got %v, %v; want false, nil", ok, err)
	}
}

func TestLinePrompter_Cancelled(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewSaver(&LinePrompter{In: r, Out: &bytes.Buffer{}}, nil)
	if ok, err := s.Save(ctx, "src", ""); err == nil || ok {
		t.Errorf("got %v, %v; want false and an error", ok, err)
	}
}

func TestLinePrompter_AnswerAfterCancel(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	defer r.Close()

	p := &LinePrompter{In: r, Out: &bytes.Buffer{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok, err := p.Prompt(ctx, DefaultSaveName); err == nil || ok {
		t.Fatalf("cancelled prompt: got %v, %v", ok, err)
	}

	if _, err := w.WriteString("second.journey.js\n"); err != nil {
		t.Fatal(err)
	}
	path, ok, err := p.Prompt(context.Background(), DefaultSaveName)
	if err != nil || !ok || path != "second.journey.js" {
		t.Errorf("second prompt: got %q, %v, %v", path, ok, err)
	}
}

func TestDirPrompter(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		in, want string
	}{
		{"a.journey.js", filepath.Join(dir, "a.journey.js")},
		{"../../etc/passwd", filepath.Join(dir, "passwd")},
		{"sub/b.js", filepath.Join(dir, "b.js")},
	}
	for _, tt := range tests {
		got, ok, err := DirPrompter{Dir: dir}.Prompt(context.Background(), tt.in)
		if err != nil || !ok || got != tt.want {
			t.Errorf("Prompt(%q): got %q, %v, %v; want %q", tt.in, got, ok, err, tt.want)
		}
	}
	if _, _, err := (DirPrompter{Dir: dir}).Prompt(context.Background(), "/"); err == nil {
		t.Error("Prompt(/): expected error")
	}
}
