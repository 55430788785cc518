// Package pricing turns the distance to an item's nearest key date into a price
// multiplier using a static rule table.
package pricing

import (
	"fmt"
	"math"
	"sort"

	"datedriven/internal/common/config"
	apperrors "datedriven/internal/common/errors"
)

// DefaultMultiplier applies outside every configured window.
const DefaultMultiplier = 1.0

// PriceRule maps an inclusive "days until event" window to a multiplier.
// A nil bound is open-ended.
type PriceRule struct {
	MinDays    *int
	MaxDays    *int
	Multiplier float64
}

// Contains reports whether days falls inside the window.
func (r PriceRule) Contains(days int) bool {
	if r.MinDays != nil && days < *r.MinDays {
		return false
	}
	if r.MaxDays != nil && days > *r.MaxDays {
		return false
	}
	return true
}

func (r PriceRule) lower() int {
	if r.MinDays == nil {
		return math.MinInt
	}
	return *r.MinDays
}

func (r PriceRule) upper() int {
	if r.MaxDays == nil {
		return math.MaxInt
	}
	return *r.MaxDays
}

func (r PriceRule) String() string {
	bound := func(p *int, open string) string {
		if p == nil {
			return open
		}
		return fmt.Sprint(*p)
	}
	return fmt.Sprintf("[%s, %s] x%.2f", bound(r.MinDays, "-inf"), bound(r.MaxDays, "+inf"), r.Multiplier)
}

// RuleTable is an ordered, validated set of windows. It is immutable once built.
type RuleTable struct {
	rules []PriceRule
}

// NewRuleTable validates rules: every window must be well formed with a positive
// multiplier, windows may not overlap, and there may be no gap between the
// smallest and largest configured day.
func NewRuleTable(rules []PriceRule) (*RuleTable, error) {
	if len(rules) == 0 {
		return nil, apperrors.NewInvalidRuleTableError("rule table is empty")
	}

	for i, r := range rules {
		if r.Multiplier <= 0 || math.IsNaN(r.Multiplier) || math.IsInf(r.Multiplier, 0) {
			return nil, apperrors.NewInvalidRuleTableError(fmt.Sprintf("rule %d: multiplier must be positive", i))
		}
		if r.lower() > r.upper() {
			return nil, apperrors.NewInvalidRuleTableError(fmt.Sprintf("rule %d: min_days exceeds max_days", i))
		}
	}

	sorted := append([]PriceRule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].lower() < sorted[j].lower() })
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.upper() == math.MaxInt || cur.lower() <= prev.upper() {
			return nil, apperrors.NewInvalidRuleTableError(fmt.Sprintf("windows %s and %s overlap", prev, cur))
		}
		if cur.lower() != prev.upper()+1 {
			return nil, apperrors.NewInvalidRuleTableError(fmt.Sprintf("gap between %s and %s", prev, cur))
		}
	}

	return &RuleTable{rules: append([]PriceRule(nil), rules...)}, nil
}

// MustRuleTable panics on an invalid table. Intended for literals.
func MustRuleTable(rules []PriceRule) *RuleTable {
	t, err := NewRuleTable(rules)
	if err != nil {
		panic(err)
	}
	return t
}

// RuleTableFromConfig builds the table from the pricing section of the config.
func RuleTableFromConfig(cfg config.PricingConfig) (*RuleTable, error) {
	rules := make([]PriceRule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		rules = append(rules, PriceRule{MinDays: r.MinDays, MaxDays: r.MaxDays, Multiplier: r.Multiplier})
	}
	return NewRuleTable(rules)
}

func intPtr(v int) *int { return &v }

// DefaultRules is the proximity table in its evaluation order.
func DefaultRules() []PriceRule {
	return []PriceRule{
		{MinDays: intPtr(14), Multiplier: 1.15},
		{MinDays: intPtr(7), MaxDays: intPtr(13), Multiplier: 1.25},
		{MinDays: intPtr(3), MaxDays: intPtr(6), Multiplier: 1.35},
		{MinDays: intPtr(0), MaxDays: intPtr(2), Multiplier: 1.20},
		{MaxDays: intPtr(-1), Multiplier: 1.00},
	}
}

func DefaultRuleTable() *RuleTable {
	return MustRuleTable(DefaultRules())
}

// Multiplier returns the multiplier of the first window, in table order,
// containing daysUntil, or DefaultMultiplier when none does.
func (t *RuleTable) Multiplier(daysUntil int) float64 {
	for _, r := range t.rules {
		if r.Contains(daysUntil) {
			return r.Multiplier
		}
	}
	return DefaultMultiplier
}

// Rules returns a copy of the table in evaluation order.
func (t *RuleTable) Rules() []PriceRule {
	return append([]PriceRule(nil), t.rules...)
}
