package pricing

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Aggregate prices a full selection. It is pure: identical snapshots always
// produce identical breakdowns. Only a missing settings snapshot is fatal;
// every lookup miss degrades to its documented default and is reported in
// Breakdown.Warnings.
func Aggregate(s Snapshot) (Breakdown, error) {
	if s.Settings == nil {
		return Breakdown{}, ErrConfiguration
	}

	currencyCode, warnings := resolveCurrency(s.Currency, s.Trip.Country, s.Settings)
	adj := Multipliers(s.Trip, s.Pax, s.Options.Dynamic, s.Now)
	if s.Options.Dynamic.Any() && s.Trip.TravelStart.IsZero() {
		warnings = append(warnings, warnf(WarnTravelDateMissing, "travel start date missing, seasonal and advance booking adjustments skipped"))
	}

	items := make([]PricedItem, 0, len(s.LineItems))
	categorySums := make(map[Category]decimal.Decimal)
	subtotal := decimal.Zero
	for _, it := range s.LineItems {
		price := it.BasePrice
		override := false
		if it.StaffPrice != nil {
			if s.Settings.AllowStaffPricingEdit {
				price = *it.StaffPrice
				override = true
			} else {
				warnings = append(warnings, warnf(WarnStaffPriceIgnored, "staff price on %s ignored, editing disabled", it.ID))
			}
		}
		if s.Options.Dynamic.Any() {
			price = adj.Apply(price)
		}
		if code, ok := ParseCurrency(it.Currency); strings.TrimSpace(it.Currency) != "" && (!ok || code != currencyCode) {
			warnings = append(warnings, warnf(WarnCurrencyMismatch, "line item %s priced in %s, quoted as %s", it.ID, it.Currency, currencyCode))
		}
		items = append(items, PricedItem{
			ID:            it.ID,
			Category:      it.Category,
			BasePrice:     it.BasePrice,
			AdjustedPrice: price,
			StaffOverride: override,
		})
		subtotal = subtotal.Add(price)
		categorySums[it.Category] = categorySums[it.Category].Add(price)
	}

	markup, err := ComputeMarkup(subtotal, s.Settings)
	if err != nil {
		return Breakdown{}, err
	}
	if !markup.Matched {
		warnings = append(warnings, warnf(WarnSlabUnmatched, "no active markup slab contains subtotal %s", subtotal))
	}
	markupAmount := round2(markup.Amount)

	var discounts []AppliedDiscount
	discountTotal := decimal.Zero
	for _, d := range EvaluateBundles(CategoriesOf(s.LineItems)) {
		amount := DiscountAmount(d, subtotal)
		discounts = append(discounts, AppliedDiscount{BundleDiscount: d, Amount: amount})
		discountTotal = discountTotal.Add(amount)
	}

	preTax := nonNegative(subtotal.Add(markupAmount).Sub(discountTotal))
	tax := ComputeTax(preTax, s.Trip.Country, s.Options.ServiceType, s.Options.TaxExempt, s.Taxes)
	if tax.Source == TaxSourceNone {
		warnings = append(warnings, warnf(WarnTaxRuleMissing, "no tax rule for country %q service %q", s.Trip.Country, s.Options.ServiceType))
	}
	finalPrice := tax.TotalAmount

	b := Breakdown{
		BasePrice:         subtotal,
		Markup:            markupAmount,
		MarkupBasis:       markup.Basis,
		Adjustments:       adj,
		Discounts:         discounts,
		DiscountTotal:     discountTotal,
		Taxes:             tax,
		FinalPrice:        finalPrice,
		Currency:          currencyCode,
		CurrencySymbol:    CurrencySymbol(currencyCode),
		PerPerson:         decimal.Zero,
		PerCategoryTotals: make(map[Category]decimal.Decimal, len(categorySums)),
		Items:             items,
		Warnings:          warnings,
	}
	if billable := s.Pax.Billable(); billable > 0 {
		b.PerPerson = round2(finalPrice.Div(decimal.NewFromInt(int64(billable))))
	}
	if s.Options.SplitByPax {
		split := SplitByPax(finalPrice, s.Pax, s.Options.ChildDiscountPercent)
		b.Pax = &split
	}
	for cat, sum := range categorySums {
		if subtotal.IsZero() {
			b.PerCategoryTotals[cat] = decimal.Zero
			continue
		}
		b.PerCategoryTotals[cat] = round2(finalPrice.Mul(sum).Div(subtotal))
	}
	return b, nil
}

// Validate rejects inputs that must never reach Aggregate.
func Validate(s Snapshot) error {
	if s.Pax.Adults < 0 || s.Pax.Children < 0 || s.Pax.Infants < 0 {
		return invalidf("pax counts must not be negative")
	}
	if s.Trip.TripDays < 0 {
		return invalidf("trip days must not be negative")
	}
	if s.Options.ChildDiscountPercent.IsNegative() || s.Options.ChildDiscountPercent.GreaterThan(hundred) {
		return invalidf("child discount must be between 0 and 100")
	}
	if strings.TrimSpace(s.Currency) != "" {
		if _, ok := ParseCurrency(s.Currency); !ok {
			return invalidf("unknown currency %q", s.Currency)
		}
	}
	seen := make(map[string]struct{}, len(s.LineItems))
	for _, it := range s.LineItems {
		if strings.TrimSpace(it.ID) == "" {
			return invalidf("line item id is required")
		}
		if _, dup := seen[it.ID]; dup {
			return invalidf("duplicate line item %s", it.ID)
		}
		seen[it.ID] = struct{}{}
		if !it.Category.Valid() {
			return invalidf("line item %s has unknown category %q", it.ID, it.Category)
		}
		if it.BasePrice.IsNegative() {
			return invalidf("line item %s has a negative price", it.ID)
		}
		if it.StaffPrice != nil && it.StaffPrice.IsNegative() {
			return invalidf("line item %s has a negative staff price", it.ID)
		}
	}
	return nil
}

// Equal reports whether two breakdowns carry the same values. Decimal scale is
// ignored, so a breakdown read back from storage equals the one that was written.
func (b Breakdown) Equal(other Breakdown) bool {
	left, err := json.Marshal(b)
	if err != nil {
		return false
	}
	right, err := json.Marshal(other)
	if err != nil {
		return false
	}
	return bytes.Equal(left, right)
}
