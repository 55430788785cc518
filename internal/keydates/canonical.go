package keydates

import (
	"regexp"
	"strings"
)

var (
	possessive   = regexp.MustCompile(`(?i)(\w)['’]s\b`)
	nonAlnum     = regexp.MustCompile(`[^\p{L}\p{N}]+`)
	labelSynonym = map[string]string{
		"born":      "birthday",
		"birth":     "birthday",
		"bday":      "birthday",
		"birthdate": "birthday",
		"died":      "death",
		"passing":   "death",
		"passed":    "death",
		"anniv":     "anniversary",
		"xmas":      "christmas",
		"st":        "saint",
	}
	labelStopwords = map[string]bool{
		"the": true,
		"of":  true,
		"a":   true,
		"an":  true,
		"and": true,
		"s":   true,
	}
)

// Canonicalize normalises a label for comparison: lower case, possessives and
// punctuation removed, whitespace collapsed, stopwords dropped and common
// synonyms folded ("born" and "birth" become "birthday").
func Canonicalize(label string) string {
	s := possessive.ReplaceAllString(strings.ToLower(label), "$1")
	s = nonAlnum.ReplaceAllString(s, " ")

	var out []string
	for _, tok := range strings.Fields(s) {
		if syn, ok := labelSynonym[tok]; ok {
			tok = syn
		}
		if labelStopwords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}

// similarLabels reports whether two canonical labels name the same event: one's
// tokens are a subset of the other's, or their Jaccard overlap is at least half.
func similarLabels(a, b string) bool {
	if a == b {
		return a != ""
	}
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}

	inter := 0
	for t := range ta {
		if tb[t] {
			inter++
		}
	}
	if inter == len(ta) || inter == len(tb) {
		return true
	}
	union := len(ta) + len(tb) - inter
	return float64(inter)/float64(union) >= 0.5
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Fields(s) {
		set[t] = true
	}
	return set
}
