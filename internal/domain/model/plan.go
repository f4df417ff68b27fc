package model

import "github.com/shopspring/decimal"

// Plan is read-only reference data: the engine consumes it to compute
// renewal and reactivation end dates.
type Plan struct {
	ID           string // UUID
	Name         string
	DurationDays int
	Price        decimal.Decimal
	Currency     string
}
