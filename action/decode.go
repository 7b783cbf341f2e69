// CLAUDE:SUMMARY Decodes binding payloads from the injected page listener into RawEvents.
package action

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingName is returned by Decode when the payload carries no action name.
var ErrMissingName = errors.New("action: missing name")

// Decode parses a single JSON-encoded Action as emitted by the in-page
// recorder. Element actions without a selector are rejected; unknown kinds
// are accepted as-is.
func Decode(data []byte) (Action, error) {
	var a Action
	if err := json.Unmarshal(data, &a); err != nil {
		return Action{}, fmt.Errorf("action: decode: %w", err)
	}
	if a.Name == "" {
		return Action{}, ErrMissingName
	}
	if a.Name.IsElementAction() && a.Selector == "" {
		return Action{}, fmt.Errorf("action: %s without selector", a.Name)
	}
	if a.Name == KindClick && a.ClickCount <= 0 {
		a.ClickCount = 1
	}
	return a, nil
}
