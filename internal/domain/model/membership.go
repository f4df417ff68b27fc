package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type MembershipType string

const (
	MembershipTypePayment  MembershipType = "PAYMENT"  // plan subscription
	MembershipTypeContract MembershipType = "CONTRACT" // trainer service contract
)

type MembershipStatus string

const (
	MembershipStatusActive    MembershipStatus = "ACTIVE"
	MembershipStatusExpired   MembershipStatus = "EXPIRED"
	MembershipStatusCancelled MembershipStatus = "CANCELLED"
	MembershipStatusPending   MembershipStatus = "PENDING"
)

// Membership represents a client's entitlement: either a plan subscription
// (PAYMENT) or a trainer contract (CONTRACT). Payments reference memberships
// by id and outlive renewals, so there is no cascading object graph here.
type Membership struct {
	ID              string // UUID
	UserID          string // UUID of the owning client
	Type            MembershipType
	Status          MembershipStatus
	StartDate       time.Time
	EndDate         time.Time        // invariant: EndDate >= StartDate
	TrainerID       *string          // CONTRACT only
	PlanID          *string          // PAYMENT only
	PaymentAmount   *decimal.Decimal // PAYMENT only; amount charged per period
	PaymentCurrency string
	Details         string
	AutoRenew       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ActiveAt reports whether the membership is active at t: status ACTIVE and
// EndDate strictly in the future.
func (m *Membership) ActiveAt(t time.Time) bool {
	return m.Status == MembershipStatusActive && m.EndDate.After(t)
}

// Renewable reports whether the membership can be renewed or reactivated
// against a plan.
func (m *Membership) Renewable() bool {
	return m.Type == MembershipTypePayment && m.PlanID != nil
}
