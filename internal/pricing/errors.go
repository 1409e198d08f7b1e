package pricing

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when the settings snapshot is absent. It is the only fatal pricing error.
	ErrConfiguration = errors.New("pricing: settings unavailable")
	// ErrInvalidInput is returned by Validate for inputs that must be rejected before aggregation.
	ErrInvalidInput = errors.New("pricing: invalid input")
)

// Warning codes attached to a breakdown when a lookup falls back to its documented default.
const (
	WarnSlabUnmatched     = "markup_slab_unmatched"
	WarnTaxRuleMissing    = "tax_rule_missing"
	WarnCurrencyUnknown   = "currency_unknown"
	WarnCurrencyMismatch  = "currency_mismatch"
	WarnStaffPriceIgnored = "staff_price_ignored"
	WarnTravelDateMissing = "travel_date_missing"
)

// Warning is a non-fatal data integrity finding. The computation always proceeds.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func warnf(code, format string, args ...any) Warning {
	return Warning{Code: code, Message: fmt.Sprintf(format, args...)}
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
