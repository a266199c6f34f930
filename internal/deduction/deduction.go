// Package deduction computes the claimable portion of each expense. Amounts
// are decimal throughout; float arithmetic never touches money.
package deduction

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/awhitfield/invoice-cataloger/constants"
)

// immediateDeductionCap is the ATO threshold under which a work asset can be
// claimed in full in the year of purchase rather than depreciated.
var immediateDeductionCap = decimal.NewFromInt(300)

// Deduction is the calculated claim for one expense.
type Deduction struct {
	Category       constants.Category
	Total          decimal.Decimal
	BusinessUsePct decimal.Decimal // 0..100, as applied
	Deductible     decimal.Decimal
	ClaimMethod    string
	Notes          string
}

// Calculator applies per-category claim rules. Business-use percentages come
// from configuration; the "" key is the default for categories without an
// explicit override.
type Calculator struct {
	businessUse map[string]decimal.Decimal
}

func NewCalculator(businessUsePercent map[string]float64) *Calculator {
	use := make(map[string]decimal.Decimal, len(businessUsePercent))
	for k, v := range businessUsePercent {
		use[k] = decimal.NewFromFloat(v)
	}
	if _, ok := use[""]; !ok {
		use[""] = decimal.NewFromInt(60)
	}
	return &Calculator{businessUse: use}
}

func (c *Calculator) businessUseFor(category constants.Category) decimal.Decimal {
	if pct, ok := c.businessUse[string(category)]; ok {
		return pct
	}
	return c.businessUse[""]
}

// Calculate returns the deduction for one categorized expense. Negative and
// zero totals claim nothing, and the deductible amount never exceeds the
// total. Results are rounded half-up to the currency's minor unit.
func (c *Calculator) Calculate(category constants.Category, total decimal.Decimal, currency string) Deduction {
	d := Deduction{
		Category:       category,
		Total:          total,
		BusinessUsePct: decimal.Zero,
		Deductible:     decimal.Zero,
	}
	places := minorUnits(currency)

	if total.Sign() <= 0 {
		d.ClaimMethod = "Not Claimable"
		d.Notes = "zero or negative amount"
		return d
	}

	pct := c.businessUseFor(category)
	scaled := func() decimal.Decimal {
		return total.Mul(pct).Div(decimal.NewFromInt(100))
	}

	switch category {
	case constants.Utilities, constants.Communications:
		d.BusinessUsePct = pct
		d.Deductible = scaled()
		d.ClaimMethod = "Actual Cost Method"
		d.Notes = "apportioned by business-use percentage"

	case constants.SoftwareSubscriptions:
		d.BusinessUsePct = pct
		if total.LessThanOrEqual(immediateDeductionCap) {
			d.Deductible = scaled()
			d.ClaimMethod = "Immediate Deduction"
		} else {
			// conservative two-year straight-line estimate
			d.Deductible = scaled().Div(decimal.NewFromInt(2))
			d.ClaimMethod = "Decline in Value"
			d.Notes = "over the immediate-deduction cap; depreciation estimate"
		}

	case constants.Equipment:
		d.BusinessUsePct = pct
		if total.LessThanOrEqual(immediateDeductionCap) {
			d.Deductible = scaled()
			d.ClaimMethod = "Immediate Deduction"
		} else {
			// conservative three-year straight-line estimate
			d.Deductible = scaled().Div(decimal.NewFromInt(3))
			d.ClaimMethod = "Decline in Value"
			d.Notes = "over the immediate-deduction cap; depreciation estimate"
		}

	case constants.ProfessionalDevelopment, constants.ProfessionalMembership:
		d.BusinessUsePct = decimal.NewFromInt(100)
		d.Deductible = total
		d.ClaimMethod = "Full Deduction"
		d.Notes = "must relate directly to current employment"

	default:
		d.ClaimMethod = "Not Claimable"
		d.Notes = "category has no automatic claim rule"
	}

	d.Deductible = roundHalfUp(d.Deductible, places)
	if d.Deductible.GreaterThan(total) {
		d.Deductible = total
	}
	return d
}

// roundHalfUp rounds to places with ties going up, the convention tax
// paperwork expects for positive amounts.
func roundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	// decimal.Round is half away from zero, which is half-up for the
	// non-negative amounts that reach here.
	return d.Round(places)
}

// minorUnits returns the decimal places for a currency. The handful of
// zero-decimal currencies matter; everything else is 2.
func minorUnits(currency string) int32 {
	switch strings.ToUpper(currency) {
	case "JPY", "KRW", "VND":
		return 0
	default:
		return 2
	}
}
