// CLAUDE:SUMMARY Generates Elastic Synthetics inline or suite scripts from compacted actions.
// Package synth turns a compacted action sequence into an Elastic Synthetics
// journey. Inline scripts are a bare list of step() calls, which is what the
// runner expects on stdin with --inline; suite scripts wrap the steps in a
// journey() with the require header so the file runs on its own.
package synth

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/journey/action"
)

// DefaultJourneyName names the journey of suite scripts.
const DefaultJourneyName = "Recorded journey"

const mainAlias = "page"

// Generator produces script source from recorded actions.
type Generator struct {
	// Suite wraps the steps in a standalone journey file.
	Suite bool
	// JourneyName is the journey title in suite mode. Default: DefaultJourneyName.
	JourneyName string
}

// Generate renders the actions. It never fails: kinds it cannot express are
// rendered as comments.
func (g Generator) Generate(events []action.RawEvent) string {
	var b strings.Builder
	indent := ""
	if g.Suite {
		name := g.JourneyName
		if name == "" {
			name = DefaultJourneyName
		}
		b.WriteString("const { journey, step, expect } = require('@elastic/synthetics');\n\n")
		fmt.Fprintf(&b, "journey('%s', async ({ page, context }) => {\n", EscapeJS(name))
		indent = "  "
	}

	// Steps run as separate callbacks, so extra pages are declared once in
	// the enclosing scope and assigned by the step that opens them.
	extra := aliases(events)
	for _, alias := range extra {
		fmt.Fprintf(&b, "%slet %s;\n", indent, alias)
	}
	if len(extra) > 0 {
		b.WriteString("\n")
	}

	declared := map[string]bool{mainAlias: true}
	first := true
	for _, ev := range events {
		lines := g.lines(ev, declared)
		if len(lines) == 0 {
			continue
		}
		if !first {
			b.WriteString("\n")
		}
		first = false
		writeStep(&b, indent, Title(ev), lines)
	}

	if g.Suite {
		b.WriteString("});\n")
	}
	return b.String()
}

// aliases lists the non-main page aliases in order of first use.
func aliases(events []action.RawEvent) []string {
	seen := map[string]bool{mainAlias: true}
	var out []string
	for _, ev := range events {
		if ev.PageAlias == "" || seen[ev.PageAlias] {
			continue
		}
		seen[ev.PageAlias] = true
		out = append(out, ev.PageAlias)
	}
	return out
}

// lines returns the statements of one step.
func (g Generator) lines(ev action.RawEvent, declared map[string]bool) []string {
	alias := ev.PageAlias
	if alias == "" {
		alias = mainAlias
	}
	a := ev.Action

	var out []string
	if !declared[alias] {
		declared[alias] = true
		out = append(out, fmt.Sprintf("%s = await context.newPage();", alias))
	}

	switch a.Name {
	case action.KindOpenPage:
		if a.URL != "" && a.URL != "about:blank" {
			out = append(out, fmt.Sprintf("await %s.goto('%s');", alias, EscapeJS(a.URL)))
		}
		return out
	case action.KindClosePage:
		if alias == mainAlias {
			return nil
		}
		return append(out, fmt.Sprintf("await %s.close();", alias))
	}
	return append(out, Statement(alias, a))
}

// Statement renders one action against the page variable alias.
func Statement(alias string, a action.Action) string {
	sel := EscapeJS(a.Selector)
	switch a.Name {
	case action.KindNavigate:
		return fmt.Sprintf("await %s.goto('%s');", alias, EscapeJS(a.URL))
	case action.KindClick:
		method := "click"
		count := a.ClickCount
		if count == 2 {
			method = "dblclick"
			count = 0
		} else if count <= 1 {
			count = 0
		}
		if opts := clickOptions(a, count); opts != "" {
			return fmt.Sprintf("await %s.%s('%s', %s);", alias, method, sel, opts)
		}
		return fmt.Sprintf("await %s.%s('%s');", alias, method, sel)
	case action.KindFill:
		return fmt.Sprintf("await %s.fill('%s', '%s');", alias, sel, EscapeJS(a.Text))
	case action.KindCheck:
		return fmt.Sprintf("await %s.check('%s');", alias, sel)
	case action.KindUncheck:
		return fmt.Sprintf("await %s.uncheck('%s');", alias, sel)
	case action.KindSelect:
		return fmt.Sprintf("await %s.selectOption('%s', %s);", alias, sel, jsValues(a.Options))
	case action.KindPress:
		key := a.Key
		if mods := action.ModifierNames(a.Modifiers); len(mods) > 0 {
			key = strings.Join(mods, "+") + "+" + key
		}
		return fmt.Sprintf("await %s.press('%s', '%s');", alias, sel, EscapeJS(key))
	case action.KindSetInputFiles:
		return fmt.Sprintf("await %s.setInputFiles('%s', %s);", alias, sel, jsArray(a.Files))
	}
	if a.Selector != "" {
		return fmt.Sprintf("// unsupported action %q on '%s'", string(a.Name), sel)
	}
	return fmt.Sprintf("// unsupported action %q", string(a.Name))
}

// Title is the step title of an event.
func Title(ev action.RawEvent) string {
	a := ev.Action
	switch a.Name {
	case action.KindNavigate:
		return "Go to " + a.URL
	case action.KindClick:
		switch {
		case a.ClickCount == 2:
			return "Double click " + a.Selector
		case a.ClickCount > 2:
			return fmt.Sprintf("Click %s %d times", a.Selector, a.ClickCount)
		case a.Button == "right":
			return "Right click " + a.Selector
		}
		return "Click " + a.Selector
	case action.KindFill:
		return "Fill " + a.Selector
	case action.KindCheck:
		return "Check " + a.Selector
	case action.KindUncheck:
		return "Uncheck " + a.Selector
	case action.KindSelect:
		return "Select " + strings.Join(a.Options, ", ") + " in " + a.Selector
	case action.KindPress:
		return "Press " + a.Key + " on " + a.Selector
	case action.KindSetInputFiles:
		return "Upload to " + a.Selector
	case action.KindOpenPage:
		return "Open new page " + ev.PageAlias
	case action.KindClosePage:
		return "Close page " + ev.PageAlias
	}
	return string(a.Name)
}

func writeStep(b *strings.Builder, indent, title string, lines []string) {
	fmt.Fprintf(b, "%sstep('%s', async () => {\n", indent, EscapeJS(title))
	for _, l := range lines {
		fmt.Fprintf(b, "%s  %s\n", indent, l)
	}
	fmt.Fprintf(b, "%s});\n", indent)
}

func clickOptions(a action.Action, count int) string {
	var parts []string
	if a.Button != "" && a.Button != "left" {
		parts = append(parts, fmt.Sprintf("button: '%s'", EscapeJS(a.Button)))
	}
	if mods := action.ModifierNames(a.Modifiers); len(mods) > 0 {
		parts = append(parts, "modifiers: "+jsArray(mods))
	}
	if count > 0 {
		parts = append(parts, fmt.Sprintf("clickCount: %d", count))
	}
	if len(parts) == 0 {
		return ""
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// jsValues renders a single value as a string literal and several as an array.
func jsValues(vs []string) string {
	if len(vs) == 1 {
		return "'" + EscapeJS(vs[0]) + "'"
	}
	return jsArray(vs)
}

func jsArray(vs []string) string {
	quoted := make([]string, len(vs))
	for i, v := range vs {
		quoted[i] = "'" + EscapeJS(v) + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// EscapeJS escapes s for use inside a single-quoted JavaScript string.
func EscapeJS(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	s = strings.ReplaceAll(s, "\u2028", `\u2028`)
	s = strings.ReplaceAll(s, "\u2029", `\u2029`)
	return s
}
