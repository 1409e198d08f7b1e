package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestApplyDynamicPricingOrderAndRounding(t *testing.T) {
	t.Parallel()

	trip := TripContext{Country: "TH", TravelStart: date(2026, time.December, 20)}
	pax := PaxDetails{Adults: 4, Children: 2}
	flags := DynamicFlags{Seasonal: true, GroupDiscount: true, AdvanceBooking: true}
	now := date(2026, time.September, 1)

	// 6 pax -> 0.90, December -> 1.20, 110 days ahead -> 0.90
	got := ApplyDynamicPricing(dec("1234.56"), trip, pax, flags, now)
	require.True(t, got.Equal(dec("1199.99")), got.String())
}

func TestGroupFactorTiers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		billable int
		want     string
	}{
		{0, "1"}, {3, "1"}, {4, "0.95"}, {5, "0.95"}, {6, "0.90"}, {12, "0.90"},
	}
	for _, tc := range cases {
		require.True(t, groupFactor(tc.billable).Equal(dec(tc.want)), "billable %d", tc.billable)
	}
}

func TestGroupDiscountIgnoresInfants(t *testing.T) {
	t.Parallel()

	pax := PaxDetails{Adults: 3, Infants: 4}
	got := ApplyDynamicPricing(dec("1000"), TripContext{}, pax, DynamicFlags{GroupDiscount: true}, time.Time{})
	require.True(t, got.Equal(dec("1000")))
}

func TestSeasonalFactorByMonth(t *testing.T) {
	t.Parallel()

	peak := []time.Month{time.December, time.January, time.February}
	low := []time.Month{time.May, time.June, time.September, time.October}
	regular := []time.Month{time.March, time.April, time.July, time.August, time.November}
	for _, m := range peak {
		require.True(t, seasonalFactor(m).Equal(dec("1.20")), m.String())
	}
	for _, m := range low {
		require.True(t, seasonalFactor(m).Equal(dec("0.85")), m.String())
	}
	for _, m := range regular {
		require.True(t, seasonalFactor(m).Equal(dec("1")), m.String())
	}
}

func TestAdvanceBookingThresholds(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.January, 1, 22, 30, 0, 0, time.UTC)
	flags := DynamicFlags{AdvanceBooking: true}
	cases := []struct {
		start time.Time
		want  string
	}{
		{date(2026, time.March, 2), "900"},    // 60 days
		{date(2026, time.March, 1), "950"},    // 59 days
		{date(2026, time.January, 31), "950"}, // 30 days
		{date(2026, time.January, 30), "1000"},
		{date(2025, time.December, 1), "1000"},
	}
	for _, tc := range cases {
		got := ApplyDynamicPricing(dec("1000"), TripContext{TravelStart: tc.start}, PaxDetails{}, flags, now)
		require.True(t, got.Equal(dec(tc.want)), "%s: got %s", tc.start.Format(time.DateOnly), got)
	}
}

func TestDemandFlagIsNoOp(t *testing.T) {
	t.Parallel()

	got := ApplyDynamicPricing(dec("999.99"), TripContext{TravelStart: date(2026, time.July, 1)}, PaxDetails{Adults: 2}, DynamicFlags{Demand: true}, date(2026, time.June, 30))
	require.True(t, got.Equal(dec("999.99")))
}

func TestMultipliersReportDaysInAdvance(t *testing.T) {
	t.Parallel()

	adj := Multipliers(TripContext{TravelStart: date(2026, time.November, 15)}, PaxDetails{}, DynamicFlags{}, date(2026, time.October, 1))
	require.Equal(t, 45, adj.DaysInAdvance)
	require.True(t, adj.AdvanceBooking.Equal(dec("1")))
}
