// CLAUDE:SUMMARY Pure merge rules deciding whether an incoming action erases or drops.
// Package dedup compacts a live stream of recorded actions into the shortest
// sequence that still replays the same logical interactions.
package dedup

import "github.com/hazyhaar/journey/action"

// Decision is the outcome of comparing an incoming event with the last
// accepted one.
type Decision struct {
	// ErasePrevious removes the most recent entry before the incoming one is
	// appended.
	ErasePrevious bool
	// Drop discards the incoming event: nothing is appended and the last
	// context is left untouched.
	Drop bool
}

// Merge applies the compaction rules:
//   - fill after fill on the same selector replaces it
//   - click after click on the same selector with a higher click count replaces it
//   - navigate to the URL of the immediately preceding navigate is dropped
//   - check/uncheck after a click on the same selector replaces the click
//
// Events from different page aliases never merge. Merge is total: kinds it
// does not know yield the zero Decision (plain append).
func Merge(last *action.RawEvent, in action.RawEvent) Decision {
	if last == nil || last.PageAlias != in.PageAlias {
		return Decision{}
	}
	prev, cur := last.Action, in.Action

	switch {
	case cur.Name == action.KindFill && prev.Name == action.KindFill:
		return Decision{ErasePrevious: cur.Selector == prev.Selector}

	case cur.Name == action.KindClick && prev.Name == action.KindClick:
		return Decision{ErasePrevious: cur.Selector == prev.Selector && cur.ClickCount > prev.ClickCount}

	case cur.Name == action.KindNavigate && prev.Name == action.KindNavigate:
		return Decision{Drop: cur.URL == prev.URL}

	case (cur.Name == action.KindCheck || cur.Name == action.KindUncheck) && prev.Name == action.KindClick:
		return Decision{ErasePrevious: cur.Selector == prev.Selector}
	}
	return Decision{}
}
