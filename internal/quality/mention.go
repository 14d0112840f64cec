package quality

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultEmptySuffixes are the phrasings that report a missing value rather
// than a wrong one.
var DefaultEmptySuffixes = []string{"field value is empty", "字段值为空"}

func wordRune(r rune) bool {
	return r < utf8.RuneSelf && (r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r))
}

// Mentions reports whether a validation column names label with a complaint
// other than an empty value. "SOBT format invalid" mentions SOBT; "SOBT field
// value is empty" does not, and neither does "SOBTX format invalid".
func Mentions(column, label string, emptySuffixes []string) bool {
	if label == "" {
		return false
	}
	for from := 0; from < len(column); {
		i := strings.Index(column[from:], label)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(label)
		from = end

		if r, _ := utf8.DecodeLastRuneInString(column[:start]); start > 0 && wordRune(r) {
			continue
		}
		if r, _ := utf8.DecodeRuneInString(column[end:]); end < len(column) && wordRune(r) {
			continue
		}
		rest := strings.TrimLeft(column[end:], " \t")
		empty := false
		for _, s := range emptySuffixes {
			if s != "" && strings.HasPrefix(rest, s) {
				empty = true
				break
			}
		}
		if !empty {
			return true
		}
	}
	return false
}
