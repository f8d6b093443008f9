// Package catalog serves the read-only subscription plan catalog: tier
// names, monthly/yearly prices, and the Stripe price identifiers each
// billing cycle maps to.
package catalog

import "time"

// BillingCycle selects which of a plan's two prices applies
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

// Valid reports whether the cycle is one of the two supported values
func (c BillingCycle) Valid() bool {
	return c == BillingCycleMonthly || c == BillingCycleYearly
}

// Interval returns the Stripe recurring interval the cycle must map to
func (c BillingCycle) Interval() string {
	switch c {
	case BillingCycleMonthly:
		return "month"
	case BillingCycleYearly:
		return "year"
	default:
		return ""
	}
}

// Plan is a subscription tier. Rows are immutable reference data.
type Plan struct {
	ID                   int64     `json:"id"`
	Name                 string    `json:"name"`
	MonthlyPriceCents    int64     `json:"monthly_price_cents"`
	YearlyPriceCents     int64     `json:"yearly_price_cents"`
	StripePriceIDMonthly string    `json:"stripe_price_id_monthly,omitempty"`
	StripePriceIDYearly  string    `json:"stripe_price_id_yearly,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// PriceID returns the Stripe price identifier for the given cycle,
// or "" when the catalog has no mapping
func (p *Plan) PriceID(cycle BillingCycle) string {
	switch cycle {
	case BillingCycleMonthly:
		return p.StripePriceIDMonthly
	case BillingCycleYearly:
		return p.StripePriceIDYearly
	default:
		return ""
	}
}

// BasePriceCents returns the catalog price for the given cycle
func (p *Plan) BasePriceCents(cycle BillingCycle) int64 {
	switch cycle {
	case BillingCycleMonthly:
		return p.MonthlyPriceCents
	case BillingCycleYearly:
		return p.YearlyPriceCents
	default:
		return 0
	}
}
