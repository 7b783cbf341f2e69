// CLAUDE:SUMMARY Resolves a user target into a navigable URL (file path, scheme, http default).
package session

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveTarget turns a user-supplied target into an address a page can
// navigate to. Existing local paths become file:// URLs; anything without an
// http(s), file:// or about: scheme gets http:// prepended. An empty target
// resolves to "" (no navigation).
//
// Schemes are matched in full and case-insensitively: "httpbin.org" is a host
// and becomes http://httpbin.org, where a bare "http" prefix test would keep
// it as is.
func ResolveTarget(target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return ""
	}
	if _, err := os.Stat(target); err == nil {
		if abs, err := filepath.Abs(target); err == nil {
			return "file://" + filepath.ToSlash(abs)
		}
	}
	lower := strings.ToLower(target)
	for _, p := range []string{"http://", "https://", "file://", "about:"} {
		if strings.HasPrefix(lower, p) {
			return target
		}
	}
	return "http://" + target
}
