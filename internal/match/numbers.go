package match

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// NumRule is one comparator of a chained numeric condition, e.g. the
// ">10" of ">10<50".
type NumRule struct {
	Sign  string
	Value float64
}

// Matches applies the comparator to v.
func (r NumRule) Matches(v float64) bool {
	switch r.Sign {
	case ">":
		return v > r.Value
	case "<":
		return v < r.Value
	case ">=", "=>":
		return v >= r.Value
	case "<=", "=<":
		return v <= r.Value
	default: // "=", "==", bare number
		return v == r.Value
	}
}

var signNumberRe = regexp.MustCompile(`(>=|<=|>|<|=)\s*(\d+(?:\.\d+)?)`)

// ParseSignNumber parses chained numeric comparators like ">10<50" or
// ">=5<=20" into rules combined by logical AND. A bare number like "15"
// means equality. Returns nil when no number is present at all.
func ParseSignNumber(expr string) []NumRule {
	expr = strings.TrimSpace(expr)
	matches := signNumberRe.FindAllStringSubmatch(expr, -1)
	if len(matches) == 0 {
		bare := strings.TrimLeft(expr, "=<> ")
		v, err := strconv.ParseFloat(bare, 64)
		if err != nil {
			return nil
		}
		return []NumRule{{Sign: "==", Value: v}}
	}
	rules := make([]NumRule, 0, len(matches))
	for _, m := range matches {
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		rules = append(rules, NumRule{Sign: m[1], Value: v})
	}
	return rules
}

// numberWords maps spelled-out numbers the voice model produces.
var numberWords = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "twenty": 20, "thirty": 30, "forty": 40,
	"fifty": 50, "hundred": 100, "thousand": 1000,
}

// TextToNumber parses spelled-out numbers like "twenty five" or "three
// hundred". Unknown tokens flush the running total, mirroring natural
// dictation ("wait for, uh, twenty seconds").
func TextToNumber(text string) int {
	total, current := 0, 0
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		if val, ok := numberWords[tok]; ok {
			if val == 100 || val == 1000 {
				current *= val
			} else {
				current += val
			}
		} else if current != 0 {
			total += current
			current = 0
		}
	}
	return total + current
}

var digitsRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParseDelay extracts a sleep duration from a phrase. Digits win over
// spelled-out numbers; a "sec"/"s " hint means seconds, otherwise the
// value is taken as milliseconds.
func ParseDelay(text string) (time.Duration, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	inSeconds := strings.Contains(text, "sec") || strings.Contains(text, "s ")

	if m := digitsRe.FindString(text); m != "" {
		v, err := strconv.ParseFloat(m, 64)
		if err == nil && v > 0 {
			if inSeconds {
				return time.Duration(v * float64(time.Second)), true
			}
			return time.Duration(v * float64(time.Millisecond)), true
		}
	}

	if n := TextToNumber(text); n > 0 {
		if inSeconds {
			return time.Duration(n) * time.Second, true
		}
		return time.Duration(n) * time.Millisecond, true
	}
	return 0, false
}
