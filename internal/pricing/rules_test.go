package pricing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datedriven/internal/common/config"
	apperrors "datedriven/internal/common/errors"
)

func TestDefaultRuleTable_Multiplier(t *testing.T) {
	table := DefaultRuleTable()
	tests := []struct {
		days int
		want float64
	}{
		{400, 1.15},
		{14, 1.15},
		{13, 1.25},
		{7, 1.25},
		{6, 1.35},
		{3, 1.35},
		{2, 1.20},
		{0, 1.20},
		{-1, 1.00},
		{-365, 1.00},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, table.Multiplier(tt.days), "days=%d", tt.days)
	}
}

func TestDefaultRuleTable_TotalAndSingleValued(t *testing.T) {
	rules := DefaultRules()
	for days := -500; days <= 500; days++ {
		matches := 0
		for _, r := range rules {
			if r.Contains(days) {
				matches++
			}
		}
		assert.Equal(t, 1, matches, "days=%d", days)
	}
}

func TestNewRuleTable_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		rules []PriceRule
	}{
		{name: "empty", rules: nil},
		{name: "non-positive multiplier", rules: []PriceRule{{MinDays: intPtr(0), Multiplier: 0}}},
		{name: "inverted bounds", rules: []PriceRule{{MinDays: intPtr(5), MaxDays: intPtr(1), Multiplier: 1.1}}},
		{
			name: "overlap",
			rules: []PriceRule{
				{MinDays: intPtr(7), Multiplier: 1.1},
				{MinDays: intPtr(3), MaxDays: intPtr(7), Multiplier: 1.2},
			},
		},
		{
			name: "two open upper bounds",
			rules: []PriceRule{
				{MinDays: intPtr(7), Multiplier: 1.1},
				{MinDays: intPtr(14), Multiplier: 1.2},
			},
		},
		{
			name: "gap",
			rules: []PriceRule{
				{MinDays: intPtr(14), Multiplier: 1.1},
				{MinDays: intPtr(0), MaxDays: intPtr(10), Multiplier: 1.2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRuleTable(tt.rules)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidRuleTable))
		})
	}
}

func TestNewRuleTable_PartialCoverageUsesDefault(t *testing.T) {
	table, err := NewRuleTable([]PriceRule{
		{MinDays: intPtr(0), MaxDays: intPtr(3), Multiplier: 1.5},
		{MinDays: intPtr(4), MaxDays: intPtr(10), Multiplier: 1.2},
	})
	require.NoError(t, err)
	assert.Equal(t, 1.5, table.Multiplier(2))
	assert.Equal(t, 1.2, table.Multiplier(10))
	assert.Equal(t, DefaultMultiplier, table.Multiplier(11))
	assert.Equal(t, DefaultMultiplier, table.Multiplier(-1))
}

func TestRuleTableFromConfig(t *testing.T) {
	table, err := RuleTableFromConfig(config.PricingConfig{Rules: config.DefaultPriceRules()})
	require.NoError(t, err)
	assert.Len(t, table.Rules(), 5)
	assert.Equal(t, 1.25, table.Multiplier(7))
}

func TestMustRuleTable_Panics(t *testing.T) {
	assert.Panics(t, func() { MustRuleTable(nil) })
}
