package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category identifies the kind of service a line item represents.
type Category string

const (
	CategoryTransport     Category = "transport"
	CategoryHotel         Category = "hotel"
	CategorySightseeing   Category = "sightseeing"
	CategoryRestaurant    Category = "restaurant"
	CategoryInsurance     Category = "insurance"
	CategoryTechnology    Category = "technology"
	CategoryLuxury        Category = "luxury"
	CategoryShopping      Category = "shopping"
	CategoryEntertainment Category = "entertainment"
	CategoryAirport       Category = "airport"
	CategoryAdditional    Category = "additional"
)

var knownCategories = map[Category]struct{}{
	CategoryTransport:     {},
	CategoryHotel:         {},
	CategorySightseeing:   {},
	CategoryRestaurant:    {},
	CategoryInsurance:     {},
	CategoryTechnology:    {},
	CategoryLuxury:        {},
	CategoryShopping:      {},
	CategoryEntertainment: {},
	CategoryAirport:       {},
	CategoryAdditional:    {},
}

// Valid reports whether c is one of the supported categories.
func (c Category) Valid() bool {
	_, ok := knownCategories[c]
	return ok
}

// QuantityContext carries the unit context a catalog price was resolved for.
type QuantityContext struct {
	Pax    *int `json:"pax,omitempty"`
	Nights *int `json:"nights,omitempty"`
	Days   *int `json:"days,omitempty"`
}

// LineItem is one selected bookable service with a resolved base price.
// Line items are replaced wholesale on edit and never mutated.
type LineItem struct {
	ID         string           `json:"id"`
	Category   Category         `json:"category"`
	BasePrice  decimal.Decimal  `json:"basePrice"`
	Currency   string           `json:"currency"`
	Quantity   *QuantityContext `json:"quantityContext,omitempty"`
	StaffPrice *decimal.Decimal `json:"staffPrice,omitempty"`
}

// PaxDetails holds traveler counts. Infants are never billed.
type PaxDetails struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

// Billable returns the number of travelers used for markup and per-person splits.
func (p PaxDetails) Billable() int {
	return p.Adults + p.Children
}

// TripContext describes the trip a proposal is priced for.
type TripContext struct {
	Country     string    `json:"country"`
	TravelStart time.Time `json:"travelStart"`
	TravelEnd   time.Time `json:"travelEnd"`
	TripDays    int       `json:"tripDays"`
}

// MarkupType selects how a slab's value is interpreted.
type MarkupType string

const (
	MarkupPercentage MarkupType = "percentage"
	MarkupFixed      MarkupType = "fixed"
)

// MarkupSlab maps an inclusive subtotal range to a markup rule.
type MarkupSlab struct {
	MinAmount   decimal.Decimal `json:"minAmount" yaml:"minAmount"`
	MaxAmount   decimal.Decimal `json:"maxAmount" yaml:"maxAmount"`
	MarkupType  MarkupType      `json:"markupType" yaml:"markupType"`
	MarkupValue decimal.Decimal `json:"markupValue" yaml:"markupValue"`
	IsActive    bool            `json:"isActive" yaml:"isActive"`
}

// Contains reports whether amount falls inside the slab's bounds, both ends inclusive.
func (s MarkupSlab) Contains(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(s.MinAmount) && amount.LessThanOrEqual(s.MaxAmount)
}

// Settings is the read-only pricing configuration snapshot.
type Settings struct {
	DefaultMarkupPercentage decimal.Decimal `json:"defaultMarkupPercentage" yaml:"defaultMarkupPercentage"`
	UseSlabPricing          bool            `json:"useSlabPricing" yaml:"useSlabPricing"`
	MarkupSlabs             []MarkupSlab    `json:"markupSlabs" yaml:"markupSlabs"`
	AllowStaffPricingEdit   bool            `json:"allowStaffPricingEdit" yaml:"allowStaffPricingEdit"`
	DefaultCurrency         string          `json:"defaultCurrency" yaml:"defaultCurrency"`
}

// DiscountType selects how a bundle discount value is interpreted.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// BundleDiscount is a discount unlocked by a combination of categories.
type BundleDiscount struct {
	Type        DiscountType    `json:"type"`
	Value       decimal.Decimal `json:"value"`
	Description string          `json:"description"`
}

// AppliedDiscount is a bundle discount together with the amount it removed.
type AppliedDiscount struct {
	BundleDiscount
	Amount decimal.Decimal `json:"amount"`
}

// DynamicFlags toggles the individual dynamic pricing adjustments.
type DynamicFlags struct {
	Seasonal       bool `json:"seasonal"`
	GroupDiscount  bool `json:"groupDiscount"`
	AdvanceBooking bool `json:"advanceBooking"`
	Demand         bool `json:"demand"`
}

// Any reports whether at least one adjustment is enabled.
func (f DynamicFlags) Any() bool {
	return f.Seasonal || f.GroupDiscount || f.AdvanceBooking || f.Demand
}

// Options carries per-computation choices made by the caller.
type Options struct {
	Dynamic              DynamicFlags    `json:"dynamic"`
	SplitByPax           bool            `json:"splitByPax"`
	ChildDiscountPercent decimal.Decimal `json:"childDiscountPercent"`
	ServiceType          string          `json:"serviceType"`
	TaxExempt            bool            `json:"taxExempt"`
}

// Snapshot is the complete, immutable input of one pricing pass.
type Snapshot struct {
	LineItems []LineItem  `json:"lineItems"`
	Trip      TripContext `json:"trip"`
	Pax       PaxDetails  `json:"pax"`
	Settings  *Settings   `json:"settings"`
	Taxes     TaxTable    `json:"taxes"`
	Currency  string      `json:"currency"`
	Options   Options     `json:"options"`
	Now       time.Time   `json:"now"`
}

// PricedItem records how a single line item was priced.
type PricedItem struct {
	ID            string          `json:"id"`
	Category      Category        `json:"category"`
	BasePrice     decimal.Decimal `json:"basePrice"`
	AdjustedPrice decimal.Decimal `json:"adjustedPrice"`
	StaffOverride bool            `json:"staffOverride"`
}

// Breakdown is the itemized result of a pricing pass.
type Breakdown struct {
	BasePrice         decimal.Decimal              `json:"basePrice"`
	Markup            decimal.Decimal              `json:"markup"`
	MarkupBasis       string                       `json:"markupBasis"`
	Adjustments       Adjustments                  `json:"adjustments"`
	Discounts         []AppliedDiscount            `json:"discounts"`
	DiscountTotal     decimal.Decimal              `json:"discountTotal"`
	Taxes             TaxResult                    `json:"taxes"`
	FinalPrice        decimal.Decimal              `json:"finalPrice"`
	Currency          string                       `json:"currency"`
	CurrencySymbol    string                       `json:"currencySymbol"`
	PerPerson         decimal.Decimal              `json:"perPerson"`
	PerCategoryTotals map[Category]decimal.Decimal `json:"perCategoryTotals"`
	Pax               *PaxSplit                    `json:"pax,omitempty"`
	Items             []PricedItem                 `json:"items"`
	Warnings          []Warning                    `json:"warnings,omitempty"`
}
