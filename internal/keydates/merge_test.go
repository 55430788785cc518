package keydates

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func md(m time.Month, d int) MonthDay { return MonthDay{Month: m, Day: d} }

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Ali Birthday", "ali birthday"},
		{"Muhammad Ali's Birthday", "muhammad ali birthday"},
		{"  Boxing   Day ", "boxing day"},
		{"Ali born", "ali birthday"},
		{"Anniversary of the Death of Joe Strummer", "anniversary death joe strummer"},
		{"St. Patrick’s Day", "saint patrick day"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonicalize(tt.in))
		})
	}
}

func TestSimilarLabels(t *testing.T) {
	assert.True(t, similarLabels("ali birthday", "muhammad ali birthday"))
	assert.True(t, similarLabels("earth day", "earth day"))
	assert.True(t, similarLabels("obama inauguration day", "obama inauguration anniversary"))
	assert.False(t, similarLabels("ali birthday", "boxing day"))
	assert.False(t, similarLabels("", "boxing day"))
}

func TestMerge_AliScenario(t *testing.T) {
	m := NewMerger(6, 1)
	got := m.Merge([]Candidate{
		{Label: "Ali Birthday", Date: md(time.January, 17), Source: "claude", Category: CategoryKey},
		{Label: "Muhammad Ali's Birthday", Date: md(time.January, 17), Source: "gpt4", Category: CategoryKey},
		{Label: "Boxing Day", Date: md(time.December, 26), Source: "grok", Category: CategoryNational},
	})

	require.Len(t, got, 2)
	assert.Equal(t, "Ali Birthday", got[0].Label)
	assert.Equal(t, md(time.January, 17), got[0].Date)
	assert.Equal(t, 2, got[0].Support)
	assert.Equal(t, []string{"claude", "gpt4"}, got[0].Sources)
	assert.Equal(t, "Boxing Day", got[1].Label)
	assert.Equal(t, md(time.December, 26), got[1].Date)
	assert.Equal(t, 1, got[1].Support)
}

func TestMerge_ToleranceAbsorbsOffByOne(t *testing.T) {
	m := NewMerger(6, 1)
	got := m.Merge([]Candidate{
		{Label: "Ali Birthday", Date: md(time.January, 17), Source: "claude"},
		{Label: "Muhammad Ali Birthday", Date: md(time.January, 18), Source: "gemini"},
		{Label: "Ali Birthday", Date: md(time.January, 17), Source: "openai"},
	})

	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].Support)
	assert.Equal(t, md(time.January, 17), got[0].Date, "majority date wins")
}

func TestMerge_ToleranceSpansLeapDay(t *testing.T) {
	m := NewMerger(6, 1)
	got := m.Merge([]Candidate{
		{Label: "Founders Day", Date: md(time.February, 28), Source: "claude"},
		{Label: "Texas Founders Day", Date: md(time.March, 1), Source: "gemini"},
		{Label: "Founders Day", Date: md(time.February, 28), Source: "openai"},
	})

	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].Support)
	assert.Equal(t, md(time.February, 28), got[0].Date)
}

func TestMerge_DissimilarLabelsSameDayStaySeparate(t *testing.T) {
	m := NewMerger(6, 1)
	got := m.Merge([]Candidate{
		{Label: "Christmas", Date: md(time.December, 25), Source: "claude"},
		{Label: "Boxing Day", Date: md(time.December, 26), Source: "claude"},
	})
	assert.Len(t, got, 2)
}

func TestMerge_SupportCountsDistinctSources(t *testing.T) {
	m := NewMerger(6, 1)
	got := m.Merge([]Candidate{
		{Label: "Earth Day", Date: md(time.April, 22), Source: "claude"},
		{Label: "Earth Day", Date: md(time.April, 22), Source: "claude"},
		{Label: "earth day", Date: md(time.April, 22), Source: "grok"},
	})
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Support)
}

func TestMerge_RankingTieBreaks(t *testing.T) {
	m := NewMerger(6, 0)
	got := m.Merge([]Candidate{
		{Label: "Ali Birthday", Date: md(time.January, 17), Source: "claude", Category: CategoryKey},
		{Label: "Earth Day", Date: md(time.April, 22), Source: "claude", Category: CategoryNational},
		{Label: "Ali Death Anniversary", Date: md(time.June, 3), Source: "claude", Category: CategoryKey},
		{Label: "Black History Month", Date: md(time.February, 1), Source: "gemini", Category: CategoryNational},
	})
	require.Len(t, got, 4)
	labels := []string{got[0].Label, got[1].Label, got[2].Label, got[3].Label}
	assert.Equal(t, []string{"Black History Month", "Earth Day", "Ali Birthday", "Ali Death Anniversary"}, labels)
}

func TestMerge_CapsResults(t *testing.T) {
	var cands []Candidate
	for d := 1; d <= 10; d++ {
		cands = append(cands, Candidate{Label: fmt.Sprintf("Event %c", 'A'+d), Date: md(time.March, d*2), Source: "claude"})
	}
	got := NewMerger(6, 1).Merge(cands)
	assert.Len(t, got, 6)
	assert.Equal(t, DefaultMaxResults, len(NewMerger(0, 1).Merge(cands)))
}

func TestMerge_SkipsInvalidCandidates(t *testing.T) {
	got := NewMerger(6, 1).Merge([]Candidate{
		{Label: "", Date: md(time.May, 1), Source: "claude"},
		{Label: "No Date", Source: "claude"},
		{Label: "...", Date: md(time.May, 1), Source: "claude"},
	})
	assert.Empty(t, got)
	assert.Empty(t, NewMerger(6, 1).Merge(nil))
}

func TestMerge_KeepsAgreedYear(t *testing.T) {
	got := NewMerger(6, 1).Merge([]Candidate{
		{Label: "Ali Birthday", Date: MonthDay{Month: time.January, Day: 17, Year: 1942}, Source: "wikipedia"},
		{Label: "Ali Birthday", Date: md(time.January, 17), Source: "claude"},
	})
	require.Len(t, got, 1)
	assert.Equal(t, 1942, got[0].Date.Year)
}

func sampleCandidates() []Candidate {
	sources := []string{"claude", "openai", "gemini", "grok", "wikipedia"}
	labels := []string{
		"Ali Birthday", "Muhammad Ali's Birthday", "Ali born", "Boxing Day",
		"Christmas", "Christmas Day", "Ali Death Anniversary", "Earth Day",
		"Rumble in the Jungle", "Thrilla in Manila",
	}
	dates := []MonthDay{
		md(time.January, 17), md(time.January, 18), md(time.December, 25),
		md(time.December, 26), md(time.June, 3), md(time.October, 30),
		md(time.December, 31), md(time.January, 1),
	}

	r := rand.New(rand.NewSource(42))
	var out []Candidate
	for i := 0; i < 40; i++ {
		out = append(out, Candidate{
			Label:    labels[r.Intn(len(labels))],
			Date:     dates[r.Intn(len(dates))],
			Source:   sources[r.Intn(len(sources))],
			Category: []Category{CategoryNational, CategoryKey, CategoryOther}[r.Intn(3)],
		})
	}
	return out
}

func TestMerge_PermutationInvariant(t *testing.T) {
	m := NewMerger(20, 1)
	base := sampleCandidates()
	want := m.Merge(base)

	for seed := int64(1); seed <= 25; seed++ {
		shuffled := append([]Candidate(nil), base...)
		r := rand.New(rand.NewSource(seed))
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, want, m.Merge(shuffled), "seed %d", seed)
	}
}

func TestMerge_UniqueLabelDatePairs(t *testing.T) {
	for tol := 0; tol <= 3; tol++ {
		got := NewMerger(50, tol).Merge(sampleCandidates())
		seen := make(map[string]bool)
		for _, r := range got {
			key := clusterKey(r)
			assert.False(t, seen[key], "duplicate %s at tolerance %d", key, tol)
			seen[key] = true
			assert.GreaterOrEqual(t, r.Support, 1)
			assert.Equal(t, len(r.Sources), r.Support)
		}
	}
}
