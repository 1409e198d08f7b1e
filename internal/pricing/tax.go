package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tax rule sources reported in TaxResult.Source.
const (
	TaxSourceRule           = "rule"
	TaxSourceCountryDefault = "country_default"
	TaxSourceNone           = "none"
	TaxSourceExempt         = "exempt"
)

// TaxRule is a percentage rate for a country and service type. An empty
// ServiceType marks the country's default rate.
type TaxRule struct {
	Country     string          `json:"country" yaml:"country"`
	ServiceType string          `json:"serviceType,omitempty" yaml:"serviceType"`
	Rate        decimal.Decimal `json:"rate" yaml:"rate"`
}

// TaxTable is the advisory tax rule data; rules are matched in order.
type TaxTable struct {
	Rules []TaxRule `json:"rules"`
}

// TaxResult is the outcome of a tax lookup.
type TaxResult struct {
	TaxAmount   decimal.Decimal `json:"taxAmount"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	RateApplied decimal.Decimal `json:"rateApplied"`
	Source      string          `json:"source"`
}

// Lookup finds the rate for country and serviceType, falling back to the
// country default. ok is false when neither exists.
func (t TaxTable) Lookup(country, serviceType string) (rate decimal.Decimal, source string, ok bool) {
	key := NormalizeCountry(country)
	if key == "" {
		return decimal.Zero, TaxSourceNone, false
	}
	svc := strings.ToLower(strings.TrimSpace(serviceType))
	var (
		fallback    decimal.Decimal
		hasFallback bool
	)
	for _, rule := range t.Rules {
		if NormalizeCountry(rule.Country) != key {
			continue
		}
		ruleSvc := strings.ToLower(strings.TrimSpace(rule.ServiceType))
		if ruleSvc == "" {
			if !hasFallback {
				fallback, hasFallback = rule.Rate, true
			}
			continue
		}
		if svc != "" && ruleSvc == svc {
			return rule.Rate, TaxSourceRule, true
		}
	}
	if hasFallback {
		return fallback, TaxSourceCountryDefault, true
	}
	return decimal.Zero, TaxSourceNone, false
}

// ComputeTax applies the matching rate to amount. Unknown combinations are
// taxed at zero rather than treated as errors.
func ComputeTax(amount decimal.Decimal, country, serviceType string, exempt bool, table TaxTable) TaxResult {
	amount = nonNegative(amount)
	if exempt {
		return TaxResult{TaxAmount: decimal.Zero, TotalAmount: amount, RateApplied: decimal.Zero, Source: TaxSourceExempt}
	}
	rate, source, _ := table.Lookup(country, serviceType)
	rate = nonNegative(rate)
	tax := round2(percentOf(amount, rate))
	return TaxResult{
		TaxAmount:   tax,
		TotalAmount: amount.Add(tax),
		RateApplied: rate,
		Source:      source,
	}
}

// NormalizeCountry canonicalises ISO region codes ("th", "THA" -> "TH") and
// case-folds country names so lookups are case-insensitive.
func NormalizeCountry(country string) string {
	trimmed := strings.TrimSpace(country)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 3 {
		if region, err := language.ParseRegion(trimmed); err == nil && region.IsCountry() {
			return region.String()
		}
	}
	return cases.Fold().String(trimmed)
}
