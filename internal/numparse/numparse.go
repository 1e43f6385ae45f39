// Package numparse reads integers the way browsers' parseInt(s, 10) does:
// leading whitespace is skipped, an optional sign and a run of decimal
// digits are consumed, and anything after the digits is ignored.
package numparse

import (
	"strconv"
	"strings"
	"unicode"
)

// LeadingInt parses the integer prefix of s. ok is false when s has no
// leading digits or the prefix does not fit in an int64.
func LeadingInt(s string) (int64, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
