package match

import (
	"regexp"
	"strings"
)

// ColorVocabulary is the fixed set of color words the command language
// understands. Extending it requires matching palette entries in the
// vision package.
var ColorVocabulary = []string{
	"black", "white", "red", "green", "blue",
	"yellow", "orange", "brown", "gray", "purple",
}

var colorRe = regexp.MustCompile(`(?i)\b(` + strings.Join(ColorVocabulary, "|") + `)\b`)
var spaceRe = regexp.MustCompile(`\s+`)

// ExtractColors finds color words present as whole tokens in the
// utterance and strips them from it. The colors are consumed by the
// target resolver, not left in the target phrase.
func ExtractColors(s string) ([]string, string) {
	found := colorRe.FindAllString(s, -1)
	if len(found) == 0 {
		return nil, s
	}
	colors := make([]string, len(found))
	for i, c := range found {
		colors[i] = strings.ToLower(c)
	}
	stripped := colorRe.ReplaceAllString(s, "")
	stripped = strings.TrimSpace(spaceRe.ReplaceAllString(stripped, " "))
	return colors, stripped
}

var colorLogicRe = regexp.MustCompile(`(?i)^(.*?\b)((?:\w+\s+(?:or|and)\s+)+\w+)\s+(\w+)(.*)$`)
var colorSplitRe = regexp.MustCompile(`(?i)\s+(?:or|and)\s+`)

// ExpandColorLogic fans a target like "blue or red button" out into one
// variant per color ("blue button", "red button"). Targets without the
// or/and pattern come back unchanged as a single variant.
func ExpandColorLogic(target string) []string {
	m := colorLogicRe.FindStringSubmatch(target)
	if m == nil {
		return []string{target}
	}
	prefix, group, noun, suffix := m[1], m[2], m[3], m[4]
	var out []string
	for _, color := range colorSplitRe.Split(group, -1) {
		variant := strings.TrimSpace(prefix + color + " " + noun + suffix)
		out = append(out, spaceRe.ReplaceAllString(variant, " "))
	}
	return out
}
