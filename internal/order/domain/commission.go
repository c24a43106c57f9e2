package domain

import "github.com/shopspring/decimal"

// DefaultCommissionRate is the platform's cut of a completed order.
var DefaultCommissionRate = decimal.NewFromFloat(0.10)

type CommissionSplit struct {
	Commission    decimal.Decimal
	SellerEarning decimal.Decimal
}

// SplitCommission rounds the commission to two decimals half-up and derives
// the seller earning as the exact complement, so the two parts always sum to
// the total with no rounding leak.
func SplitCommission(total, rate decimal.Decimal) CommissionSplit {
	commission := total.Mul(rate).Round(2)
	return CommissionSplit{
		Commission:    commission,
		SellerEarning: total.Sub(commission),
	}
}
