package keydates

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// MonthDay is a calendar date whose year is optional. Most recurring holidays and
// anniversaries are year-independent, so Year is zero unless a source supplied one.
type MonthDay struct {
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
	Year  int        `json:"year,omitempty"`
}

// Valid reports whether the month/day pair exists in a leap year.
func (d MonthDay) Valid() bool {
	if d.Month < time.January || d.Month > time.December || d.Day < 1 {
		return false
	}
	t := time.Date(2000, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	return t.Month() == d.Month && t.Day() == d.Day
}

// Ordinal is the 1-based position of the date in a leap year.
func (d MonthDay) Ordinal() int {
	return time.Date(2000, d.Month, d.Day, 0, 0, 0, 0, time.UTC).YearDay()
}

// SameDay compares month and day, ignoring the year.
func (d MonthDay) SameDay(o MonthDay) bool {
	return d.Month == o.Month && d.Day == o.Day
}

// DayDistance is the number of days between two month/day pairs, wrapping across
// the year boundary (Dec 31 and Jan 1 are one day apart). The shorter of the
// leap-year and common-year distances wins, so Feb 28 and Mar 1 are one day
// apart; Feb 29 counts as Feb 28 in a common year.
func DayDistance(a, b MonthDay) int {
	leap := cyclicDistance(a.Ordinal(), b.Ordinal(), 366)
	common := cyclicDistance(a.commonOrdinal(), b.commonOrdinal(), 365)
	if common < leap {
		return common
	}
	return leap
}

func (d MonthDay) commonOrdinal() int {
	if d.Month == time.February && d.Day == 29 {
		return MonthDay{Month: time.February, Day: 28}.commonOrdinal()
	}
	return time.Date(2001, d.Month, d.Day, 0, 0, 0, 0, time.UTC).YearDay()
}

func cyclicDistance(a, b, yearLen int) int {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	if wrapped := yearLen - diff; wrapped < diff {
		return wrapped
	}
	return diff
}

func (d MonthDay) String() string {
	if d.Year != 0 {
		return fmt.Sprintf("%s %d, %d", d.Month, d.Day, d.Year)
	}
	return fmt.Sprintf("%s %d", d.Month, d.Day)
}

// MarshalText renders "MM-DD" or "YYYY-MM-DD".
func (d MonthDay) MarshalText() ([]byte, error) {
	if d.Year != 0 {
		return []byte(fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)), nil
	}
	return []byte(fmt.Sprintf("%02d-%02d", int(d.Month), d.Day)), nil
}

func (d *MonthDay) UnmarshalText(text []byte) error {
	parsed, err := ParseMonthDay(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var (
	ordinalSuffix = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
	extraSpace    = regexp.MustCompile(`\s+`)
)

type dateLayout struct {
	layout  string
	hasYear bool
}

var dateLayouts = []dateLayout{
	{"January 2, 2006", true},
	{"Jan 2, 2006", true},
	{"January 2 2006", true},
	{"2 January 2006", true},
	{"2 Jan 2006", true},
	{"2006-01-02", true},
	{"01/02/2006", true},
	{"1/2/2006", true},
	{"January 2", false},
	{"Jan 2", false},
	{"2 January", false},
	{"2 Jan", false},
	{"01/02", false},
	{"1/2", false},
	{"01-02", false},
}

// ParseMonthDay accepts the date spellings the sources produce: "January 17",
// "Jan 17", "01/17", "17 January", "17 Jan", "January 17th", "January 17, 1942",
// "1942-01-17" and "01-17".
func ParseMonthDay(s string) (MonthDay, error) {
	clean := strings.TrimSpace(s)
	clean = ordinalSuffix.ReplaceAllString(clean, "$1")
	clean = strings.TrimSuffix(strings.TrimSuffix(clean, "."), ",")
	clean = extraSpace.ReplaceAllString(clean, " ")
	if clean == "" {
		return MonthDay{}, fmt.Errorf("empty date")
	}

	for _, l := range dateLayouts {
		t, err := time.Parse(l.layout, clean)
		if err != nil {
			continue
		}
		md := MonthDay{Month: t.Month(), Day: t.Day()}
		if l.hasYear {
			md.Year = t.Year()
		}
		if md.Valid() {
			return md, nil
		}
	}
	return MonthDay{}, fmt.Errorf("unrecognised date %q", s)
}
