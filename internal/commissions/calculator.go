package commissions

import (
	"context"

	"github.com/shopspring/decimal"

	"paymang/paymang-backend/internal/settings"
)

// Cents is the number of decimal places every amount is rounded to
const Cents = 2

// RateSource supplies the tables the calculator reads on every call.
// *settings.Resolver satisfies it and never fails.
type RateSource interface {
	CommissionRates(ctx context.Context) settings.RateTable
	MilestoneShares(ctx context.Context) settings.MilestoneTable
}

// Result is a single role's commission for a base amount
type Result struct {
	Role       Role            `json:"role"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

// Calculator applies configured rates and milestone shares to sale amounts
type Calculator struct {
	rates              RateSource
	negativeCommission bool
}

// CalculatorOption configures a Calculator
type CalculatorOption func(*Calculator)

// WithNegativeCommissions lets negative (refund) amounts produce negative
// commissions. When disabled a negative amount yields zero commission.
func WithNegativeCommissions(enabled bool) CalculatorOption {
	return func(c *Calculator) {
		c.negativeCommission = enabled
	}
}

// NewCalculator creates a calculator backed by rates
func NewCalculator(rates RateSource, opts ...CalculatorOption) *Calculator {
	c := &Calculator{rates: rates}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NegativeCommissions reports whether refunds produce negative commissions
func (c *Calculator) NegativeCommissions() bool {
	return c.negativeCommission
}

// Round rounds to cents, half away from zero
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Cents)
}

// CommissionForRole returns amount times the role's configured rate.
// A role with no configured rate earns zero.
func (c *Calculator) CommissionForRole(ctx context.Context, amount decimal.Decimal, role Role) decimal.Decimal {
	return c.apply(amount, rateFor(c.rates.CommissionRates(ctx), role))
}

// CommissionsForSale returns one result per flagged role in coach, closer,
// setter order. The rate table is fetched once.
func (c *Calculator) CommissionsForSale(ctx context.Context, amount decimal.Decimal, roles RoleSet) []Result {
	if roles.Empty() {
		return []Result{}
	}
	return c.forRoles(amount, roles, c.rates.CommissionRates(ctx))
}

// MilestoneAmount returns the share of amount due at milestone m
func (c *Calculator) MilestoneAmount(ctx context.Context, amount decimal.Decimal, m Milestone) decimal.Decimal {
	share := decimal.NewFromFloat(c.rates.MilestoneShares(ctx).Share(m.Index()))
	return Round(amount.Mul(share))
}

// MilestoneCommissions computes the milestone sub-amount and then the
// per-role commissions on it
func (c *Calculator) MilestoneCommissions(ctx context.Context, amount decimal.Decimal, m Milestone, roles RoleSet) []Result {
	return c.CommissionsForSale(ctx, c.MilestoneAmount(ctx, amount, m), roles)
}

func (c *Calculator) forRoles(amount decimal.Decimal, roles RoleSet, table settings.RateTable) []Result {
	results := make([]Result, 0, 3)
	for _, role := range Roles() {
		if !roles.Has(role) {
			continue
		}
		rate := rateFor(table, role)
		results = append(results, Result{
			Role:       role,
			Amount:     c.apply(amount, rate),
			Percentage: rate,
		})
	}
	return results
}

func (c *Calculator) apply(amount, rate decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() && !c.negativeCommission {
		return decimal.Zero
	}
	return Round(amount.Mul(rate))
}

func rateFor(table settings.RateTable, role Role) decimal.Decimal {
	return decimal.NewFromFloat(table.Rate(string(role)))
}
