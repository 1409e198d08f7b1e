package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MarkupResult describes the markup chosen for a subtotal.
type MarkupResult struct {
	Amount  decimal.Decimal
	Basis   string
	Slab    *MarkupSlab
	Matched bool
}

// ComputeMarkup converts a subtotal into a markup amount using either the flat
// default percentage or the first active slab containing the subtotal.
// A subtotal outside every active slab yields zero markup with Matched unset.
func ComputeMarkup(subtotal decimal.Decimal, settings *Settings) (MarkupResult, error) {
	if settings == nil {
		return MarkupResult{}, ErrConfiguration
	}
	if !settings.UseSlabPricing {
		pct := settings.DefaultMarkupPercentage
		return MarkupResult{
			Amount:  nonNegative(percentOf(subtotal, pct)),
			Basis:   fmt.Sprintf("default markup %s%%", pct.String()),
			Matched: true,
		}, nil
	}
	for i := range settings.MarkupSlabs {
		slab := settings.MarkupSlabs[i]
		if !slab.IsActive || !slab.Contains(subtotal) {
			continue
		}
		var amount decimal.Decimal
		var basis string
		switch slab.MarkupType {
		case MarkupFixed:
			amount = slab.MarkupValue
			basis = fmt.Sprintf("slab %s-%s fixed %s", slab.MinAmount, slab.MaxAmount, slab.MarkupValue)
		default:
			amount = percentOf(subtotal, slab.MarkupValue)
			basis = fmt.Sprintf("slab %s-%s %s%%", slab.MinAmount, slab.MaxAmount, slab.MarkupValue)
		}
		return MarkupResult{
			Amount:  nonNegative(amount),
			Basis:   basis,
			Slab:    &slab,
			Matched: true,
		}, nil
	}
	return MarkupResult{Amount: decimal.Zero, Basis: "no matching markup slab"}, nil
}

func percentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
