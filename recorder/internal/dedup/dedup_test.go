package dedup

import (
	"reflect"
	"sync"
	"testing"

	"github.com/hazyhaar/journey/action"
)

func ev(alias string, a action.Action) action.RawEvent {
	return action.RawEvent{PageAlias: alias, Action: a}
}

func fill(sel, text string) action.Action {
	return action.Action{Name: action.KindFill, Selector: sel, Text: text}
}

func click(sel string, n int) action.Action {
	return action.Action{Name: action.KindClick, Selector: sel, ClickCount: n}
}

func nav(url string) action.Action {
	return action.Action{Name: action.KindNavigate, URL: url}
}

func push(e *Engine, evs ...action.RawEvent) {
	for _, x := range evs {
		e.Push(x)
	}
}

func TestMerge_Rules(t *testing.T) {
	tests := []struct {
		name string
		last *action.RawEvent
		in   action.RawEvent
		want Decision
	}{
		{"no context", nil, ev("page", fill("#a", "x")), Decision{}},
		{"fill same selector", &action.RawEvent{PageAlias: "page", Action: fill("#a", "x")}, ev("page", fill("#a", "xy")), Decision{ErasePrevious: true}},
		{"fill other selector", &action.RawEvent{PageAlias: "page", Action: fill("#a", "x")}, ev("page", fill("#b", "x")), Decision{}},
		{"click higher count", &action.RawEvent{PageAlias: "page", Action: click("#a", 1)}, ev("page", click("#a", 2)), Decision{ErasePrevious: true}},
		{"click equal count", &action.RawEvent{PageAlias: "page", Action: click("#a", 1)}, ev("page", click("#a", 1)), Decision{}},
		{"click lower count", &action.RawEvent{PageAlias: "page", Action: click("#a", 2)}, ev("page", click("#a", 1)), Decision{}},
		{"click other selector", &action.RawEvent{PageAlias: "page", Action: click("#a", 1)}, ev("page", click("#b", 2)), Decision{}},
		{"navigate same url", &action.RawEvent{PageAlias: "page", Action: nav("http://a.com")}, ev("page", nav("http://a.com")), Decision{Drop: true}},
		{"navigate other url", &action.RawEvent{PageAlias: "page", Action: nav("http://a.com")}, ev("page", nav("http://b.com")), Decision{}},
		{"check after click", &action.RawEvent{PageAlias: "page", Action: click("#cb", 1)}, ev("page", action.Action{Name: action.KindCheck, Selector: "#cb"}), Decision{ErasePrevious: true}},
		{"uncheck after click", &action.RawEvent{PageAlias: "page", Action: click("#cb", 1)}, ev("page", action.Action{Name: action.KindUncheck, Selector: "#cb"}), Decision{ErasePrevious: true}},
		{"check after click other selector", &action.RawEvent{PageAlias: "page", Action: click("#x", 1)}, ev("page", action.Action{Name: action.KindCheck, Selector: "#cb"}), Decision{}},
		{"cross alias fill", &action.RawEvent{PageAlias: "page", Action: fill("#a", "x")}, ev("page1", fill("#a", "xy")), Decision{}},
		{"cross alias navigate", &action.RawEvent{PageAlias: "page", Action: nav("http://a.com")}, ev("page1", nav("http://a.com")), Decision{}},
		{"unknown kind", &action.RawEvent{PageAlias: "page", Action: action.Action{Name: "hover", Selector: "#a"}}, ev("page", action.Action{Name: "hover", Selector: "#a"}), Decision{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Merge(tt.last, tt.in); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEngine_FillsKeepLast(t *testing.T) {
	e := New()
	push(e,
		ev("page", fill("#name", "B")),
		ev("page", fill("#name", "Bo")),
		ev("page", fill("#name", "Bob")),
	)
	got := e.Actions()
	if len(got) != 1 {
		t.Fatalf("got %d actions, want 1", len(got))
	}
	if got[0].Action.Text != "Bob" {
		t.Errorf("Text: got %q, want %q", got[0].Action.Text, "Bob")
	}
}

func TestEngine_ClickCountIncreasing(t *testing.T) {
	e := New()
	push(e,
		ev("page", click("#a", 1)),
		ev("page", click("#a", 2)),
		ev("page", click("#a", 3)),
	)
	got := e.Actions()
	if len(got) != 1 {
		t.Fatalf("got %d actions, want 1", len(got))
	}
	if got[0].Action.ClickCount != 3 {
		t.Errorf("ClickCount: got %d, want 3", got[0].Action.ClickCount)
	}
}

func TestEngine_ClickCountNotIncreasing(t *testing.T) {
	e := New()
	push(e,
		ev("page", click("#a", 1)),
		ev("page", click("#a", 1)),
	)
	if n := e.Len(); n != 2 {
		t.Fatalf("got %d actions, want 2", n)
	}
}

func TestEngine_DuplicateNavigateLeavesContext(t *testing.T) {
	e := New()
	push(e, ev("page", nav("http://a.com")))
	before, _ := e.Last()

	d := e.Push(ev("page", nav("http://a.com")))
	if !d.Drop {
		t.Fatalf("Decision: got %+v, want Drop", d)
	}
	if n := e.Len(); n != 1 {
		t.Fatalf("got %d actions, want 1", n)
	}
	after, _ := e.Last()
	if !reflect.DeepEqual(after, before) {
		t.Errorf("last context changed: got %+v, want %+v", after, before)
	}
}

func TestEngine_DroppedNavigateDoesNotHideFill(t *testing.T) {
	// fill, navigate, navigate(dup), fill on the same selector: the second
	// fill compares against the retained navigate, not the first fill.
	e := New()
	push(e,
		ev("page", fill("#q", "a")),
		ev("page", nav("http://a.com")),
		ev("page", nav("http://a.com")),
		ev("page", fill("#q", "b")),
	)
	if n := e.Len(); n != 3 {
		t.Fatalf("got %d actions, want 3", n)
	}
}

func TestEngine_CheckReplacesClick(t *testing.T) {
	e := New()
	push(e,
		ev("page", click("#agree", 1)),
		ev("page", action.Action{Name: action.KindCheck, Selector: "#agree"}),
	)
	got := e.Actions()
	if len(got) != 1 {
		t.Fatalf("got %d actions, want 1", len(got))
	}
	if got[0].Action.Name != action.KindCheck {
		t.Errorf("Name: got %q, want %q", got[0].Action.Name, action.KindCheck)
	}
}

func TestEngine_CrossAliasNeverMerges(t *testing.T) {
	e := New()
	push(e,
		ev("page", fill("#q", "a")),
		ev("page1", fill("#q", "ab")),
	)
	if n := e.Len(); n != 2 {
		t.Fatalf("got %d actions, want 2", n)
	}
}

func TestEngine_Example(t *testing.T) {
	e := New()
	push(e,
		ev("page", nav("a.com")),
		ev("page", fill("#name", "Bo")),
		ev("page", fill("#name", "Bob")),
		ev("page", click("#submit", 1)),
	)
	got := e.Actions()
	want := []action.RawEvent{
		ev("page", nav("a.com")),
		ev("page", fill("#name", "Bob")),
		ev("page", click("#submit", 1)),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d actions, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].PageAlias != want[i].PageAlias || got[i].Action.Name != want[i].Action.Name ||
			got[i].Action.Selector != want[i].Action.Selector || got[i].Action.Text != want[i].Action.Text ||
			got[i].Action.URL != want[i].Action.URL || got[i].Action.ClickCount != want[i].Action.ClickCount {
			t.Errorf("[%d]: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestEngine_ActionsIsCopy(t *testing.T) {
	e := New()
	push(e, ev("page", fill("#a", "x")))
	got := e.Actions()
	got[0].Action.Text = "mutated"
	if e.Actions()[0].Action.Text != "x" {
		t.Error("Actions returned a shared slice")
	}
}

func TestEngine_Reset(t *testing.T) {
	e := New()
	push(e, ev("page", fill("#a", "x")))
	e.Reset()
	if e.Len() != 0 {
		t.Fatalf("Len after Reset: got %d, want 0", e.Len())
	}
	if _, ok := e.Last(); ok {
		t.Error("Last after Reset: want no context")
	}
	// A fill on the same selector after reset is a plain append.
	if d := e.Push(ev("page", fill("#a", "xy"))); d.ErasePrevious {
		t.Error("merge against context cleared by Reset")
	}
}

func TestEngine_ConcurrentAliases(t *testing.T) {
	e := New()
	var wg sync.WaitGroup
	for _, alias := range []string{"page", "page1", "page2"} {
		wg.Add(1)
		go func(alias string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				e.Push(ev(alias, click("#btn", 1)))
			}
		}(alias)
	}
	wg.Wait()
	if n := e.Len(); n != 150 {
		t.Errorf("got %d actions, want 150", n)
	}
}
