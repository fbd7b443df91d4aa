package lotterysim

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	digitRun = regexp.MustCompile(`\d+`)

	controlReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", "", "\t", "")
)

// NormalizeText trims leading and trailing whitespace, turns each newline
// into a single space and deletes tabs and carriage returns.
func NormalizeText(s string) string {
	return controlReplacer.Replace(strings.TrimSpace(s))
}

// ExtractLeadingInteger returns the first run of decimal digits found
// anywhere in s, or 0 when there is none or it overflows int64.
//
// The scan is naive on purpose: "$2 Billion (est. 2024-01-01)" yields 2 and
// "$1,250 Million" yields 1 because the separator ends the run.
func ExtractLeadingInteger(s string) int64 {
	match := digitRun.FindString(s)
	if match == "" {
		return 0
	}
	n, err := strconv.ParseInt(match, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
