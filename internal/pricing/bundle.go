package pricing

import "github.com/shopspring/decimal"

type bundleRule struct {
	requires []Category
	discount BundleDiscount
}

// Bundle rules fire independently; a selection may unlock several at once.
var bundleRules = []bundleRule{
	{
		requires: []Category{CategoryTransport, CategoryHotel},
		discount: BundleDiscount{Type: DiscountPercentage, Value: decimal.NewFromInt(5), Description: "Transport + Accommodation Bundle"},
	},
	{
		requires: []Category{CategoryTransport, CategoryHotel, CategorySightseeing, CategoryRestaurant},
		discount: BundleDiscount{Type: DiscountPercentage, Value: decimal.NewFromInt(10), Description: "Complete Package Bundle"},
	},
}

// CategorySet is the set of categories present in a selection.
type CategorySet map[Category]struct{}

// CategoriesOf collects the categories of the given line items.
func CategoriesOf(items []LineItem) CategorySet {
	set := make(CategorySet, len(items))
	for _, it := range items {
		set[it.Category] = struct{}{}
	}
	return set
}

// Has reports whether c is in the set.
func (s CategorySet) Has(c Category) bool {
	_, ok := s[c]
	return ok
}

// EvaluateBundles returns every bundle discount unlocked by the selected categories.
func EvaluateBundles(selected CategorySet) []BundleDiscount {
	var out []BundleDiscount
	for _, rule := range bundleRules {
		if selected.hasAll(rule.requires) {
			out = append(out, rule.discount)
		}
	}
	return out
}

// DiscountAmount evaluates a discount against the pre-discount subtotal.
func DiscountAmount(d BundleDiscount, subtotal decimal.Decimal) decimal.Decimal {
	switch d.Type {
	case DiscountFixed:
		return nonNegative(d.Value)
	default:
		return nonNegative(round2(percentOf(subtotal, d.Value)))
	}
}

func (s CategorySet) hasAll(cats []Category) bool {
	for _, c := range cats {
		if !s.Has(c) {
			return false
		}
	}
	return true
}
