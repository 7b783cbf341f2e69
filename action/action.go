// CLAUDE:SUMMARY Action and RawEvent types for recorded browser interactions, with click modifier names.
// Package action defines the interaction types flowing from a live browser
// session to the journey synthesizer. Any consumer (dedup engine, synthesizer,
// journal) imports this package; it has no dependency on the browser.
package action

// Kind names a high-level user interaction.
type Kind string

const (
	KindNavigate      Kind = "navigate"      // browser-initiated main-frame navigation
	KindClick         Kind = "click"         // mouse click, ClickCount > 1 for dbl/triple
	KindFill          Kind = "fill"          // text entry, Text holds the full value
	KindCheck         Kind = "check"         // checkbox/radio turned on
	KindUncheck       Kind = "uncheck"       // checkbox turned off
	KindSelect        Kind = "select"        // <select> options chosen
	KindPress         Kind = "press"         // special key (Enter, Tab, Escape)
	KindSetInputFiles Kind = "setInputFiles" // file input populated
	KindOpenPage      Kind = "openPage"      // new page (tab or popup) opened
	KindClosePage     Kind = "closePage"     // page closed
)

// Modifier key bitmask, same encoding as the CDP Input domain.
const (
	ModAlt   = 1
	ModCtrl  = 2
	ModMeta  = 4
	ModShift = 8
)

// Action is a single replay-worthy interaction. Fields are meaningful per Kind:
// Selector for element actions, Text for fill, ClickCount/Button/Modifiers for
// click, URL for navigate and openPage, Key for press, Options for select,
// Files for setInputFiles. Unknown kinds are carried opaquely.
type Action struct {
	Name       Kind     `json:"name"`
	Selector   string   `json:"selector,omitempty"`
	Text       string   `json:"text,omitempty"`
	URL        string   `json:"url,omitempty"`
	ClickCount int      `json:"click_count,omitempty"`
	Button     string   `json:"button,omitempty"` // left | middle | right
	Modifiers  int      `json:"modifiers,omitempty"`
	Key        string   `json:"key,omitempty"`
	Options    []string `json:"options,omitempty"`
	Files      []string `json:"files,omitempty"`
}

// RawEvent is an action scoped to the page that produced it. Events for one
// alias arrive in chronological order; nothing is guaranteed across aliases.
type RawEvent struct {
	PageAlias string `json:"page_alias"`
	Action    Action `json:"action"`
}

// IsElementAction reports whether the kind targets a DOM element.
func (k Kind) IsElementAction() bool {
	switch k {
	case KindClick, KindFill, KindCheck, KindUncheck, KindSelect, KindPress, KindSetInputFiles:
		return true
	}
	return false
}

// ModifierNames returns the modifier keys set in mask, in a stable order.
func ModifierNames(mask int) []string {
	var names []string
	if mask&ModAlt != 0 {
		names = append(names, "Alt")
	}
	if mask&ModCtrl != 0 {
		names = append(names, "Control")
	}
	if mask&ModMeta != 0 {
		names = append(names, "Meta")
	}
	if mask&ModShift != 0 {
		names = append(names, "Shift")
	}
	return names
}
