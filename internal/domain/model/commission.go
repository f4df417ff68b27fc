package model

import "github.com/shopspring/decimal"

// CommissionRate is the platform's fixed cut of every payment.
var CommissionRate = decimal.NewFromInt(5).Div(decimal.NewFromInt(100))

// SplitCommission splits a gross amount into the platform commission and the
// trainer's net earnings. Commission is rounded half-up to the currency's
// minor unit; earnings take the remainder, so the two always sum back to the
// gross amount exactly.
func SplitCommission(amount decimal.Decimal) (commission, earnings decimal.Decimal) {
	commission = amount.Mul(CommissionRate).Round(2)
	earnings = amount.Sub(commission)
	return commission, earnings
}
