// CLAUDE:SUMMARY Session launch and navigation error types.
package session

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when a page is requested on a session that is
// closing or closed.
var ErrClosed = errors.New("session: closed")

// SessionLaunchError means the browser or its interaction context could not
// be started. The recording never began.
type SessionLaunchError struct {
	Remote string // control URL when connecting to an external browser
	Err    error
}

func (e *SessionLaunchError) Error() string {
	if e.Remote != "" {
		return fmt.Sprintf("session: launch (remote %s): %v", e.Remote, e.Err)
	}
	return fmt.Sprintf("session: launch: %v", e.Err)
}

func (e *SessionLaunchError) Unwrap() error { return e.Err }

// NavigationError means the initial navigation of a page failed. The page and
// the session stay open.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("session: navigate %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }
