// CLAUDE:SUMMARY Prefixed UUIDv7 generators for session, recording and run IDs, plus Parse and Sequence.
// Package idgen generates the identifiers of recordings, sessions and runs.
// Every generator is a plain func so components take one as an option and
// tests can substitute a deterministic sequence.
package idgen

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
// Time-sortable, so journal rows sort by creation.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Sequence returns a Generator producing prefix1, prefix2, ... for tests.
func Sequence(prefix string) Generator {
	var n atomic.Int64
	return func() string {
		return prefix + strconv.FormatInt(n.Add(1), 10)
	}
}

// Type-scoped generators.
var (
	SessionID   Generator = Prefixed("ses_", UUIDv7())
	RecordingID Generator = Prefixed("rec_", UUIDv7())
	RunID       Generator = Prefixed("run_", UUIDv7())
)

// Parse validates a UUID string, with or without a type prefix, and returns
// it unchanged.
func Parse(s string) (string, error) {
	raw := s
	for _, p := range []string{"ses_", "rec_", "run_"} {
		if len(s) > len(p) && s[:len(p)] == p {
			raw = s[len(p):]
			break
		}
	}
	if _, err := uuid.Parse(raw); err != nil {
		return "", fmt.Errorf("idgen: invalid id %q: %w", s, err)
	}
	return s, nil
}
