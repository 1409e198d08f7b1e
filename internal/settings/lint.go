package settings

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/tour-quote/internal/pricing"
)

var hundred = decimal.NewFromInt(100)

// Lint reports rule file problems that Parse accepts but that would make
// quotes fall back to defaults at runtime.
func Lint(snap Snapshot) []string {
	var findings []string
	add := func(format string, args ...any) {
		findings = append(findings, fmt.Sprintf(format, args...))
	}

	cfg := snap.Settings
	if snap.Version == "" {
		add("version is empty; stored quotes cannot be traced to a rules revision")
	}
	if cfg.DefaultMarkupPercentage.IsNegative() {
		add("defaultMarkupPercentage %s is negative", cfg.DefaultMarkupPercentage)
	}
	if strings.TrimSpace(cfg.DefaultCurrency) == "" {
		add("defaultCurrency is empty")
	} else if _, ok := pricing.ParseCurrency(cfg.DefaultCurrency); !ok {
		add("defaultCurrency %q is not an ISO 4217 code", cfg.DefaultCurrency)
	}

	var active []pricing.MarkupSlab
	for i, slab := range cfg.MarkupSlabs {
		if slab.MarkupValue.IsNegative() {
			add("slab %d has negative markupValue %s", i, slab.MarkupValue)
		}
		if slab.MarkupType == pricing.MarkupPercentage && slab.MarkupValue.GreaterThan(hundred) {
			add("slab %d percentage %s exceeds 100", i, slab.MarkupValue)
		}
		if slab.IsActive {
			active = append(active, slab)
		}
	}
	if cfg.UseSlabPricing && len(active) == 0 {
		add("useSlabPricing is on but no slab is active; every quote gets zero markup")
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].MinAmount.LessThan(active[j].MinAmount) })
	for i := 1; i < len(active); i++ {
		prev, next := active[i-1], active[i]
		switch {
		case next.MinAmount.LessThan(prev.MaxAmount):
			add("active slabs %s-%s and %s-%s overlap", prev.MinAmount, prev.MaxAmount, next.MinAmount, next.MaxAmount)
		case next.MinAmount.GreaterThan(prev.MaxAmount):
			add("no active slab covers subtotals between %s and %s", prev.MaxAmount, next.MinAmount)
		}
		if next.MinAmount.LessThan(prev.MaxAmount) {
			continue
		}
		top := prev.MaxAmount.Add(slabMarkup(prev, prev.MaxAmount))
		bottom := next.MinAmount.Add(slabMarkup(next, next.MinAmount))
		if top.GreaterThan(bottom) {
			add("subtotal plus markup drops from %s to %s crossing from slab %s-%s to %s-%s; a higher base price quotes lower",
				top, bottom, prev.MinAmount, prev.MaxAmount, next.MinAmount, next.MaxAmount)
		}
	}

	seen := make(map[string]int, len(snap.Taxes.Rules))
	for i, rule := range snap.Taxes.Rules {
		country := pricing.NormalizeCountry(rule.Country)
		if country == "" {
			add("tax rule %d has no country", i)
			continue
		}
		if rule.Rate.IsNegative() || rule.Rate.GreaterThan(hundred) {
			add("tax rule %d (%s) rate %s outside 0-100", i, country, rule.Rate)
		}
		key := country + "/" + strings.ToLower(strings.TrimSpace(rule.ServiceType))
		if first, dup := seen[key]; dup {
			add("tax rule %d duplicates rule %d for %s; only the first applies", i, first, key)
			continue
		}
		seen[key] = i
	}
	return findings
}

func slabMarkup(slab pricing.MarkupSlab, amount decimal.Decimal) decimal.Decimal {
	if slab.MarkupType == pricing.MarkupFixed {
		return slab.MarkupValue
	}
	return amount.Mul(slab.MarkupValue).Div(hundred)
}
