package keydates

import "strings"

// Category classifies a candidate. National observances outrank item-specific
// events when support is tied.
type Category string

const (
	CategoryNational Category = "national"
	CategoryKey      Category = "key"
	CategoryOther    Category = "other"
)

func (c Category) priority() int {
	switch c {
	case CategoryNational:
		return 0
	case CategoryKey:
		return 1
	default:
		return 2
	}
}

// ParseCategory maps free-form category strings onto the known set. Numbered
// slot names such as "key_event_3" map like their unnumbered form.
func ParseCategory(s string) Category {
	switch strings.TrimRight(strings.ToLower(strings.TrimSpace(s)), "_0123456789") {
	case "national", "national_event", "holiday":
		return CategoryNational
	case "key", "key_event":
		return CategoryKey
	default:
		return CategoryOther
	}
}

// Candidate is a single date suggestion from a single source.
type Candidate struct {
	Label    string   `json:"label"`
	Date     MonthDay `json:"date"`
	Source   string   `json:"source"`
	Category Category `json:"category,omitempty"`
}

func (c Candidate) valid() bool {
	return strings.TrimSpace(c.Label) != "" && c.Date.Valid()
}

// RankedDate is a merged consensus entry.
type RankedDate struct {
	Label          string   `json:"label"`
	CanonicalLabel string   `json:"canonical_label"`
	Date           MonthDay `json:"date"`
	Support        int      `json:"support"`
	Sources        []string `json:"sources"`
	Category       Category `json:"category"`
}
