package utils

import (
	"strings"

	"golang.org/x/text/collate"
)

// CompareNatural orders strings so that embedded digit runs compare by
// numeric value ("2" < "10"). Text runs are compared with c, or byte-wise
// when c is nil. A collator must not be shared between goroutines.
func CompareNatural(a, b string, c *collate.Collator) int {
	ra, rb := naturalRuns(a), naturalRuns(b)
	for i := 0; i < len(ra) && i < len(rb); i++ {
		x, y := ra[i], rb[i]
		if isDigitRun(x) && isDigitRun(y) {
			if cmp := compareDigits(x, y); cmp != 0 {
				return cmp
			}
			continue
		}
		var cmp int
		if c != nil {
			cmp = c.CompareString(x, y)
		} else {
			cmp = strings.Compare(x, y)
		}
		if cmp != 0 {
			return cmp
		}
	}
	if len(ra) != len(rb) {
		if len(ra) < len(rb) {
			return -1
		}
		return 1
	}
	// Equal under the collator and numerically ("007" vs "7"): fall back
	// to bytes so the order stays total
	return strings.Compare(a, b)
}

// NaturalLess reports whether a sorts before b in natural byte order
func NaturalLess(a, b string) bool {
	return CompareNatural(a, b, nil) < 0
}

// naturalRuns splits s into alternating runs of ASCII digits and other characters
func naturalRuns(s string) []string {
	var runs []string
	start := 0
	for i := 1; i <= len(s); i++ {
		if i == len(s) || isDigit(s[i]) != isDigit(s[start]) {
			runs = append(runs, s[start:i])
			start = i
		}
	}
	return runs
}

func compareDigits(x, y string) int {
	x = strings.TrimLeft(x, "0")
	y = strings.TrimLeft(y, "0")
	if len(x) != len(y) {
		if len(x) < len(y) {
			return -1
		}
		return 1
	}
	return strings.Compare(x, y)
}

func isDigitRun(s string) bool {
	return s != "" && isDigit(s[0])
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
