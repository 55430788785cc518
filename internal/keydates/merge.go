package keydates

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultMaxResults caps the ranked list when no explicit limit is configured.
const DefaultMaxResults = 6

// Merger clusters equivalent candidates and ranks the clusters by how many
// distinct sources agree on them. It is pure and safe for concurrent use.
type Merger struct {
	maxResults    int
	toleranceDays int
}

func NewMerger(maxResults, toleranceDays int) *Merger {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if toleranceDays < 0 {
		toleranceDays = 0
	}
	return &Merger{maxResults: maxResults, toleranceDays: toleranceDays}
}

type entry struct {
	c     Candidate
	canon string
}

type cluster struct {
	members []entry
	summary RankedDate
}

// Merge returns at most maxResults ranked dates. The result depends only on the
// multiset of candidates, never on their order: input is sorted on its full
// content before the single clustering pass.
func (m *Merger) Merge(candidates []Candidate) []RankedDate {
	entries := make([]entry, 0, len(candidates))
	for _, c := range candidates {
		if !c.valid() {
			continue
		}
		canon := Canonicalize(c.Label)
		if canon == "" {
			continue
		}
		if c.Category == "" {
			c.Category = CategoryOther
		}
		entries = append(entries, entry{c: c, canon: canon})
	}
	sort.Slice(entries, func(i, j int) bool { return lessEntry(entries[i], entries[j]) })

	var clusters []*cluster
	for _, e := range entries {
		var home *cluster
		for _, cl := range clusters {
			if m.accepts(cl, e) {
				home = cl
				break
			}
		}
		if home == nil {
			home = &cluster{}
			clusters = append(clusters, home)
		}
		home.members = append(home.members, e)
	}

	for _, cl := range clusters {
		cl.summary = summarize(cl.members)
	}
	clusters = foldCollisions(clusters)

	ranked := make([]RankedDate, 0, len(clusters))
	for _, cl := range clusters {
		ranked = append(ranked, cl.summary)
	}
	sort.Slice(ranked, func(i, j int) bool { return lessRanked(ranked[i], ranked[j]) })

	if len(ranked) > m.maxResults {
		ranked = ranked[:m.maxResults]
	}
	return ranked
}

func (m *Merger) accepts(cl *cluster, e entry) bool {
	for _, member := range cl.members {
		if member.canon == e.canon {
			return true
		}
		if DayDistance(member.c.Date, e.c.Date) <= m.toleranceDays && similarLabels(member.canon, e.canon) {
			return true
		}
	}
	return false
}

// foldCollisions merges clusters whose summaries ended up with the same
// (canonical label, date) key, so the output never repeats a pair.
func foldCollisions(clusters []*cluster) []*cluster {
	for {
		merged := false
		seen := make(map[string]int, len(clusters))
		for i, cl := range clusters {
			key := clusterKey(cl.summary)
			j, ok := seen[key]
			if !ok {
				seen[key] = i
				continue
			}
			clusters[j].members = append(clusters[j].members, cl.members...)
			clusters[j].summary = summarize(clusters[j].members)
			clusters = append(clusters[:i], clusters[i+1:]...)
			merged = true
			break
		}
		if !merged {
			return clusters
		}
	}
}

func clusterKey(r RankedDate) string {
	text, _ := MonthDay{Month: r.Date.Month, Day: r.Date.Day}.MarshalText()
	return r.CanonicalLabel + "|" + string(text)
}

func summarize(members []entry) RankedDate {
	sourceSet := make(map[string]bool)
	canonSources := make(map[string]map[string]bool)
	dateCount := make(map[MonthDay]int)
	best := CategoryOther

	for _, e := range members {
		sourceSet[e.c.Source] = true
		if canonSources[e.canon] == nil {
			canonSources[e.canon] = make(map[string]bool)
		}
		canonSources[e.canon][e.c.Source] = true
		dateCount[MonthDay{Month: e.c.Date.Month, Day: e.c.Date.Day}]++
		if e.c.Category.priority() < best.priority() {
			best = e.c.Category
		}
	}

	// Representative label: most-supported spelling, then shortest, then lexical.
	var label string
	labelScore := -1
	for _, e := range members {
		score := len(canonSources[e.canon])
		switch {
		case score > labelScore,
			score == labelScore && utf8.RuneCountInString(e.c.Label) < utf8.RuneCountInString(label),
			score == labelScore && utf8.RuneCountInString(e.c.Label) == utf8.RuneCountInString(label) && e.c.Label < label:
			label = e.c.Label
			labelScore = score
		}
	}

	// Date: most frequent month/day, earliest on a tie.
	var date MonthDay
	dateScore := 0
	for md, n := range dateCount {
		if n > dateScore || (n == dateScore && md.Ordinal() < date.Ordinal()) {
			date, dateScore = md, n
		}
	}
	date.Year = agreedYear(members, date)

	sources := make([]string, 0, len(sourceSet))
	for s := range sourceSet {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	return RankedDate{
		Label:          strings.TrimSpace(label),
		CanonicalLabel: Canonicalize(label),
		Date:           date,
		Support:        len(sources),
		Sources:        sources,
		Category:       best,
	}
}

// agreedYear keeps a year only when every member that supplied one for the
// chosen day agrees on it.
func agreedYear(members []entry, date MonthDay) int {
	year := 0
	for _, e := range members {
		if !e.c.Date.SameDay(date) || e.c.Date.Year == 0 {
			continue
		}
		if year != 0 && year != e.c.Date.Year {
			return 0
		}
		year = e.c.Date.Year
	}
	return year
}

func lessEntry(a, b entry) bool {
	if ao, bo := a.c.Date.Ordinal(), b.c.Date.Ordinal(); ao != bo {
		return ao < bo
	}
	if a.canon != b.canon {
		return a.canon < b.canon
	}
	if a.c.Source != b.c.Source {
		return a.c.Source < b.c.Source
	}
	if a.c.Label != b.c.Label {
		return a.c.Label < b.c.Label
	}
	if a.c.Date.Year != b.c.Date.Year {
		return a.c.Date.Year < b.c.Date.Year
	}
	return a.c.Category < b.c.Category
}

// lessRanked orders by support, then category, then calendar position.
func lessRanked(a, b RankedDate) bool {
	if a.Support != b.Support {
		return a.Support > b.Support
	}
	if ap, bp := a.Category.priority(), b.Category.priority(); ap != bp {
		return ap < bp
	}
	if ao, bo := a.Date.Ordinal(), b.Date.Ordinal(); ao != bo {
		return ao < bo
	}
	if a.CanonicalLabel != b.CanonicalLabel {
		return a.CanonicalLabel < b.CanonicalLabel
	}
	return a.Label < b.Label
}
