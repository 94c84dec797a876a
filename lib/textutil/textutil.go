package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)
var dashSeparatorRegex = regexp.MustCompile(`\s+-\s+`)

// NormalizeName lowercases and strips all whitespace, producing a
// stable key for fuzzy title matching.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// DisplayTitle cleans up a POS product title for reporting:
// whitespace collapsed, " - " separators become ". ", every word
// capitalized. "f1 - bella vita" becomes "F1. Bella Vita".
func DisplayTitle(title string) string {
	title = strings.Trim(title, " \n\t")
	title = whitespaceRegex.ReplaceAllString(title, " ")
	title = dashSeparatorRegex.ReplaceAllString(title, ". ")

	words := strings.Split(title, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
