package rubric

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	leadingNumber = regexp.MustCompile(`^(\d+)`)
	labelPrefix   = regexp.MustCompile(`(?i)^(question|q)[\s.:#-]*`)
)

var spelledNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
	"nineteen": 19, "twenty": 20,
}

// CanonicalLabel reduces a raw question label to its canonical top-level
// question id. Sub-labels collapse onto their parent ("7(a)", "7b", "7.ii"
// all become "7"), common prefixes are stripped ("Q3", "Question 3" become
// "3"), and spelled-out numerals are converted ("seven" becomes "7").
// Labels with no recognizable number are returned trimmed and lowercased
// so repeated occurrences still merge.
func CanonicalLabel(label string) string {
	cleaned := strings.TrimSpace(label)
	cleaned = labelPrefix.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	if match := leadingNumber.FindString(cleaned); match != "" {
		if trimmed := strings.TrimLeft(match, "0"); trimmed != "" {
			return trimmed
		}
		return "0"
	}

	word := strings.ToLower(cleaned)
	if idx := strings.IndexAny(word, " .:(-"); idx > 0 {
		word = word[:idx]
	}
	if n, ok := spelledNumbers[word]; ok {
		return strconv.Itoa(n)
	}

	return strings.ToLower(cleaned)
}

// CanonicalNumber parses a raw label into its numeric question number.
// The boolean reports whether a number was recognized.
func CanonicalNumber(label string) (int, bool) {
	canonical := CanonicalLabel(label)
	n, err := strconv.Atoi(canonical)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
