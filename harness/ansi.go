// CLAUDE:SUMMARY Strips SGR escape sequences from runner output.
package harness

import "regexp"

// ansiSGR matches terminal color sequences (ESC [ ... m).
var ansiSGR = regexp.MustCompile("\x1b\\[.*?m")

// StripANSI removes terminal color sequences from s.
func StripANSI(s string) string {
	return ansiSGR.ReplaceAllString(s, "")
}
