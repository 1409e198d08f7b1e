package settings_test

import (
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tour-quote/internal/pricing"
	"github.com/noah-isme/tour-quote/internal/settings"
)

func slab(min, max int64, value int64, active bool) pricing.MarkupSlab {
	return pricing.MarkupSlab{
		MinAmount:   decimal.NewFromInt(min),
		MaxAmount:   decimal.NewFromInt(max),
		MarkupType:  pricing.MarkupPercentage,
		MarkupValue: decimal.NewFromInt(value),
		IsActive:    active,
	}
}

func TestLintFlagsShippedSlabBoundary(t *testing.T) {
	t.Parallel()

	data, err := os.ReadFile("../../config/pricing.yaml")
	require.NoError(t, err)
	snap, err := settings.Parse(data)
	require.NoError(t, err)
	require.Equal(t, []string{
		"subtotal plus markup drops from 10800 to 10600 crossing from slab 0-10000 to 10000-50000; a higher base price quotes lower",
	}, settings.Lint(snap))
}

func TestLintAcceptsMonotoneSlabs(t *testing.T) {
	t.Parallel()

	fixed := slab(50000, 90000, 3000, true)
	fixed.MarkupType = pricing.MarkupFixed
	snap := settings.Snapshot{
		Version: "v2",
		Settings: pricing.Settings{
			DefaultCurrency: "INR",
			UseSlabPricing:  true,
			MarkupSlabs:     []pricing.MarkupSlab{slab(0, 10000, 6, true), slab(10000, 50000, 6, true), fixed},
		},
	}
	require.Empty(t, settings.Lint(snap))
}

func TestLintFindsProblems(t *testing.T) {
	t.Parallel()

	snap := settings.Snapshot{
		Settings: pricing.Settings{
			DefaultMarkupPercentage: decimal.NewFromInt(-1),
			DefaultCurrency:         "XYZQ",
			UseSlabPricing:          true,
			MarkupSlabs: []pricing.MarkupSlab{
				slab(0, 10000, 8, true),
				slab(5000, 20000, 6, true),
				slab(30000, 90000, 4, true),
				slab(0, 1, 150, false),
			},
		},
		Taxes: pricing.TaxTable{Rules: []pricing.TaxRule{
			{Country: "TH", Rate: decimal.NewFromInt(7)},
			{Country: "th", Rate: decimal.NewFromInt(8)},
			{Country: "", Rate: decimal.NewFromInt(5)},
			{Country: "IN", ServiceType: "hotel", Rate: decimal.NewFromInt(120)},
		}},
	}

	findings := settings.Lint(snap)
	require.Len(t, findings, 9, findings)
	require.Contains(t, findings, "version is empty; stored quotes cannot be traced to a rules revision")
	require.Contains(t, findings, "active slabs 0-10000 and 5000-20000 overlap")
	require.Contains(t, findings, "no active slab covers subtotals between 20000 and 30000")
	require.Contains(t, findings, "tax rule 1 duplicates rule 0 for TH/; only the first applies")
}

func TestLintFlagsSlabPricingWithoutActiveSlabs(t *testing.T) {
	t.Parallel()

	snap := settings.Snapshot{
		Version: "v1",
		Settings: pricing.Settings{
			DefaultCurrency: "INR",
			UseSlabPricing:  true,
			MarkupSlabs:     []pricing.MarkupSlab{slab(0, 100, 5, false)},
		},
	}
	require.Equal(t, []string{"useSlabPricing is on but no slab is active; every quote gets zero markup"}, settings.Lint(snap))
}
