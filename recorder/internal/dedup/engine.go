// CLAUDE:SUMMARY Engine keeps the compacted action sequence of one recording.
package dedup

import (
	"sync"

	"github.com/hazyhaar/journey/action"
)

// Engine holds the compacted sequence of one recording. Create one per
// recording; it is safe for concurrent use but merge decisions are only
// deterministic when events for an alias are pushed in arrival order.
type Engine struct {
	mu   sync.Mutex
	seq  []action.RawEvent
	last *action.RawEvent // last accepted event, nil until the first push
}

// New creates an empty Engine.
func New() *Engine {
	return &Engine{}
}

// Push merges ev into the sequence and returns the decision taken.
func (e *Engine) Push(ev action.RawEvent) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	d := Merge(e.last, ev)
	if d.Drop {
		return d
	}
	if d.ErasePrevious && len(e.seq) > 0 {
		e.seq = e.seq[:len(e.seq)-1]
	}
	e.seq = append(e.seq, ev)
	last := ev
	e.last = &last
	return d
}

// Actions returns a copy of the compacted sequence.
func (e *Engine) Actions() []action.RawEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]action.RawEvent, len(e.seq))
	copy(out, e.seq)
	return out
}

// Len returns the number of entries in the compacted sequence.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.seq)
}

// Last returns the last accepted event, if any.
func (e *Engine) Last() (action.RawEvent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return action.RawEvent{}, false
	}
	return *e.last, true
}

// Reset clears the sequence and the last context.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.seq = nil
	e.last = nil
	e.mu.Unlock()
}
