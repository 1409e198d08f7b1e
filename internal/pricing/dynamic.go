package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	factorOne         = decimal.NewFromInt(1)
	factorLargeGroup  = decimal.RequireFromString("0.90")
	factorSmallGroup  = decimal.RequireFromString("0.95")
	factorPeakSeason  = decimal.RequireFromString("1.20")
	factorLowSeason   = decimal.RequireFromString("0.85")
	factorEarlyBird   = decimal.RequireFromString("0.90")
	factorAdvanceBook = decimal.RequireFromString("0.95")
)

const day = 24 * time.Hour

// Adjustments lists the multipliers the dynamic modifier applies, in application order.
type Adjustments struct {
	Group          decimal.Decimal `json:"group"`
	Seasonal       decimal.Decimal `json:"seasonal"`
	AdvanceBooking decimal.Decimal `json:"advanceBooking"`
	Demand         decimal.Decimal `json:"demand"`
	DaysInAdvance  int             `json:"daysInAdvance"`
}

// Multipliers resolves the factors for the enabled flags. Disabled flags resolve to 1.
func Multipliers(trip TripContext, pax PaxDetails, flags DynamicFlags, now time.Time) Adjustments {
	adj := Adjustments{
		Group:          factorOne,
		Seasonal:       factorOne,
		AdvanceBooking: factorOne,
		// Demand pricing has no business rules yet.
		Demand: factorOne,
	}
	if flags.GroupDiscount {
		adj.Group = groupFactor(pax.Billable())
	}
	if flags.Seasonal && !trip.TravelStart.IsZero() {
		adj.Seasonal = seasonalFactor(trip.TravelStart.Month())
	}
	if !trip.TravelStart.IsZero() && !now.IsZero() {
		adj.DaysInAdvance = daysBetween(now, trip.TravelStart)
		if flags.AdvanceBooking {
			adj.AdvanceBooking = advanceFactor(adj.DaysInAdvance)
		}
	}
	return adj
}

// Apply runs the multipliers over price in their fixed order and rounds once at the end.
func (a Adjustments) Apply(price decimal.Decimal) decimal.Decimal {
	running := price.Mul(a.Group)
	running = running.Mul(a.Seasonal)
	running = running.Mul(a.AdvanceBooking)
	running = running.Mul(a.Demand)
	return round2(running)
}

// ApplyDynamicPricing adjusts a single line item price for group size, season and
// booking lead time. The order group, seasonal, advance booking is significant.
func ApplyDynamicPricing(price decimal.Decimal, trip TripContext, pax PaxDetails, flags DynamicFlags, now time.Time) decimal.Decimal {
	return Multipliers(trip, pax, flags, now).Apply(price)
}

func groupFactor(billable int) decimal.Decimal {
	switch {
	case billable >= 6:
		return factorLargeGroup
	case billable >= 4:
		return factorSmallGroup
	default:
		return factorOne
	}
}

func seasonalFactor(month time.Month) decimal.Decimal {
	switch month {
	case time.December, time.January, time.February:
		return factorPeakSeason
	case time.May, time.June, time.September, time.October:
		return factorLowSeason
	default:
		return factorOne
	}
}

func advanceFactor(days int) decimal.Decimal {
	switch {
	case days >= 60:
		return factorEarlyBird
	case days >= 30:
		return factorAdvanceBook
	default:
		return factorOne
	}
}

// daysBetween counts whole calendar days from a to b in UTC. Negative when b precedes a.
func daysBetween(a, b time.Time) int {
	from := civilDate(a)
	to := civilDate(b)
	return int(to.Sub(from) / day)
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
