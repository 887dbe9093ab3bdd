package utils

import (
	"github.com/shopspring/decimal"
)

var decimalOneHundred = decimal.NewFromInt(100)

// CalculateDiscountAmount returns the discount on subTotal for a percentage
// discount. Negative input counts as no discount.
func CalculateDiscountAmount(subTotal decimal.Decimal, discountPercent decimal.Decimal) decimal.Decimal {
	if discountPercent.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return subTotal.Mul(discountPercent).DivRound(decimalOneHundred, 4)
}

// CalculateTaxAmount returns the tax-exclusive tax on totalAmount:
// (totalAmount / 100) * taxPercent.
func CalculateTaxAmount(totalAmount decimal.Decimal, taxPercent decimal.Decimal) decimal.Decimal {
	if taxPercent.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return totalAmount.DivRound(decimalOneHundred, 4).Mul(taxPercent)
}

// CalculateLineTotal computes qty * unitPrice - discount + tax for one
// invoice line, the same way the sales backend computes total_price.
func CalculateLineTotal(qty, unitPrice, discountPercent, taxPercent decimal.Decimal) decimal.Decimal {
	subTotal := qty.Mul(unitPrice)
	afterDiscount := subTotal.Sub(CalculateDiscountAmount(subTotal, discountPercent))
	return afterDiscount.Add(CalculateTaxAmount(afterDiscount, taxPercent))
}
