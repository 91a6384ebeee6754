package match

import (
	"regexp"
	"strings"
)

// templateRe recognizes the "as template"/"as variable" suffix grammar on
// a target phrase. Group 1 is the templated part of the phrase.
var templateRe = regexp.MustCompile(`(?i)^(.+?)\s+(?:as var|variable|as variable|as a template|as a variable|template|is variable|as template|is template)$`)

// ExtractTemplate reports whether target uses the template suffix grammar
// and returns the phrase the template binds ("my name" in "my name as
// variable"). Template syntax is only legal while recording.
func ExtractTemplate(target string) (string, bool) {
	m := templateRe.FindStringSubmatch(strings.TrimSpace(target))
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// placeholderRe matches {{var}} and {{var.index}} substitution slots.
var placeholderRe = regexp.MustCompile(`\{\{(\w+)(?:\.(\d+))?\}\}`)

// Placeholders returns the variable names referenced by {{...}} slots in
// text, in order of appearance.
func Placeholders(text string) []string {
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
		names = append(names, m[1])
	}
	return names
}

// SubstitutePlaceholders replaces {{var}} and {{var.i}} slots using the
// given bindings. A {{var}} slot takes the first bound value; {{var.i}}
// indexes into the value list. Unknown variables are left as-is so a
// later pass (or the user) can see what was unbound.
func SubstitutePlaceholders(text string, bindings map[string][]string) string {
	if text == "" || len(bindings) == 0 {
		return text
	}
	return placeholderRe.ReplaceAllStringFunc(text, func(slot string) string {
		m := placeholderRe.FindStringSubmatch(slot)
		values, ok := bindings[m[1]]
		if !ok || len(values) == 0 {
			return slot
		}
		if m[2] == "" {
			return values[0]
		}
		idx := 0
		for _, c := range m[2] {
			idx = idx*10 + int(c-'0')
		}
		if idx >= len(values) {
			return ""
		}
		return values[idx]
	})
}
