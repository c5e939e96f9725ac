// Package metrics derives local text features and records session metrics.
package metrics

import (
	"strings"
	"unicode/utf8"
)

// Features are size measures of a piece of text. They describe a message
// without carrying any of its content.
type Features struct {
	Bytes int `json:"bytes"`
	Runes int `json:"runes"`
	Words int `json:"words"`
	Lines int `json:"lines"`
}

// CountFeatures computes byte, rune, word and line counts for s.
// Words split on Unicode whitespace; an empty string has zero lines.
func CountFeatures(s string) Features {
	f := Features{
		Bytes: len(s),
		Runes: utf8.RuneCountInString(s),
		Words: len(strings.Fields(s)),
	}
	if s != "" {
		f.Lines = 1 + strings.Count(s, "\n")
	}
	return f
}
