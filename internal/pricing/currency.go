package pricing

import (
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

// FallbackCurrency is used when neither the snapshot, the destination nor the
// settings name a usable currency.
const FallbackCurrency = "USD"

var currencySymbols = map[string]string{
	"AED": "د.إ",
	"AUD": "A$",
	"CNY": "¥",
	"EUR": "€",
	"GBP": "£",
	"IDR": "Rp",
	"INR": "₹",
	"JPY": "¥",
	"LKR": "Rs",
	"MYR": "RM",
	"NPR": "Rs",
	"SGD": "S$",
	"THB": "฿",
	"USD": "$",
	"VND": "₫",
}

// CurrencySymbol returns the display symbol for an ISO code, or the code itself.
func CurrencySymbol(code string) string {
	if sym, ok := currencySymbols[code]; ok {
		return sym
	}
	return code
}

// ParseCurrency validates and canonicalises an ISO 4217 code.
func ParseCurrency(code string) (string, bool) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return "", false
	}
	return unit.String(), true
}

// CountryCurrency resolves the local currency of a destination given as an ISO region code.
func CountryCurrency(country string) (string, bool) {
	key := NormalizeCountry(country)
	if key == "" {
		return "", false
	}
	region, err := language.ParseRegion(key)
	if err != nil {
		return "", false
	}
	unit, ok := currency.FromRegion(region)
	if !ok {
		return "", false
	}
	return unit.String(), true
}

// resolveCurrency picks the quote currency: the explicit trip currency, then the
// destination's currency, then the configured default.
func resolveCurrency(explicit, country string, settings *Settings) (string, []Warning) {
	var warnings []Warning
	if strings.TrimSpace(explicit) != "" {
		if code, ok := ParseCurrency(explicit); ok {
			return code, nil
		}
		warnings = append(warnings, warnf(WarnCurrencyUnknown, "currency %q is not a known ISO code", explicit))
	}
	if code, ok := CountryCurrency(country); ok {
		return code, warnings
	}
	if settings != nil {
		if code, ok := ParseCurrency(settings.DefaultCurrency); ok {
			return code, append(warnings, warnf(WarnCurrencyUnknown, "no currency known for country %q, using default %s", country, code))
		}
	}
	return FallbackCurrency, append(warnings, warnf(WarnCurrencyUnknown, "no currency known for country %q, using %s", country, FallbackCurrency))
}
