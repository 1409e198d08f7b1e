package pricing

import "github.com/shopspring/decimal"

// PaxSplit divides a total between adults and children.
type PaxSplit struct {
	AdultShare    decimal.Decimal `json:"adultShare"`
	ChildShare    decimal.Decimal `json:"childShare"`
	PerAdult      decimal.Decimal `json:"perAdult"`
	PerChild      decimal.Decimal `json:"perChild"`
	ChildDiscount decimal.Decimal `json:"childDiscount"`
	Total         decimal.Decimal `json:"total"`
}

// SplitByPax splits total evenly per billable head, then discounts the
// children's portion. The adult share is whatever remains of total after the
// discounted child share. Without adults nobody carries the remainder and the
// child discount reduces the total. Zero billable pax yields an all-zero split.
func SplitByPax(total decimal.Decimal, pax PaxDetails, childDiscountPercent decimal.Decimal) PaxSplit {
	billable := pax.Billable()
	if billable <= 0 {
		return PaxSplit{
			AdultShare:    decimal.Zero,
			ChildShare:    decimal.Zero,
			PerAdult:      decimal.Zero,
			PerChild:      decimal.Zero,
			ChildDiscount: decimal.Zero,
			Total:         decimal.Zero,
		}
	}
	perHead := total.Div(decimal.NewFromInt(int64(billable)))
	childBase := round2(perHead.Mul(decimal.NewFromInt(int64(pax.Children))))
	childDiscount := round2(percentOf(childBase, childDiscountPercent))
	childShare := childBase.Sub(childDiscount)
	adultShare := decimal.Zero
	if pax.Adults > 0 {
		adultShare = total.Sub(childShare)
	}

	split := PaxSplit{
		AdultShare:    adultShare,
		ChildShare:    childShare,
		PerAdult:      decimal.Zero,
		PerChild:      decimal.Zero,
		ChildDiscount: childDiscount,
		Total:         adultShare.Add(childShare),
	}
	if pax.Adults > 0 {
		split.PerAdult = round2(adultShare.Div(decimal.NewFromInt(int64(pax.Adults))))
	}
	if pax.Children > 0 {
		split.PerChild = round2(childShare.Div(decimal.NewFromInt(int64(pax.Children))))
	}
	return split
}
