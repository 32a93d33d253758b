package utils

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Similarity returns 1 - levenshtein(a, b) / max(len(a), len(b)) measured in
// runes. Two empty strings are identical.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := utf8.RuneCountInString(a)
	if lb := utf8.RuneCountInString(b); lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
