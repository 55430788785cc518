// Package keydates discovers the calendar dates that drive demand for an
// inventory item. Several independent sources are queried concurrently and their
// suggestions are merged into a deduplicated, consensus-ranked list.
package keydates

import (
	"regexp"
	"strings"
	"unicode"
)

// Item is one inventory piece as seen by the sources.
type Item struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject,omitempty"`
	Context string `json:"context,omitempty"`
}

// DefaultStripPhrases are removed from item names before subject extraction.
var DefaultStripPhrases = []string{
	"Shepard Fairey",
	"Obey Giant",
	"Signed Print",
	"Screen Print",
	"Art Print",
	"Lithograph",
	"Numbered",
	"Signed",
	"Poster",
	"Print",
}

// NewItem builds an Item, deriving Subject from the name when subject is blank.
func NewItem(id, name, subject string, stripPhrases []string) Item {
	if strings.TrimSpace(subject) == "" {
		subject = ExtractSubject(name, stripPhrases)
	}
	return Item{ID: id, Name: name, Subject: strings.TrimSpace(subject)}
}

// ExtractSubject strips marketing phrases, years and short tokens from a listing
// title, leaving the person or theme it depicts. The full name is returned when
// nothing survives.
func ExtractSubject(name string, stripPhrases []string) string {
	if stripPhrases == nil {
		stripPhrases = DefaultStripPhrases
	}

	s := name
	for _, p := range stripPhrases {
		s = stripPhrase(s, p)
	}

	var kept []string
	for _, tok := range strings.Fields(s) {
		tok = strings.TrimFunc(tok, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if len([]rune(tok)) <= 2 || isDigits(tok) {
			continue
		}
		kept = append(kept, tok)
	}
	if len(kept) == 0 {
		return strings.TrimSpace(name)
	}
	return strings.Join(kept, " ")
}

func stripPhrase(s, phrase string) string {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return s
	}
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)
	return re.ReplaceAllString(s, " ")
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
