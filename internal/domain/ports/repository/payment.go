package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fitmarket-settlement/internal/domain/model"
)

// PaymentFilter narrows listing and export queries. Nil fields are ignored.
type PaymentFilter struct {
	Status           *model.PaymentStatus
	CollectionStatus *model.CollectionStatus
	Method           *model.PaymentMethod
	MembershipID     *string
	UserID           *string
	TrainerID        *string // resolved through the owning membership
	From             *time.Time
	To               *time.Time
	Offset           int
	Limit            int
}

// PaymentTotals carries the platform-wide aggregation for the summary view.
type PaymentTotals struct {
	TotalRevenue     decimal.Decimal // sum of completed payments
	PendingPayments  int             // count of payments still pending
	CompletedRevenue decimal.Decimal // completed but not yet collected
}

// TrainerTotals carries gross per-bucket sums for one trainer's contract
// payments; commission is deducted by the caller.
type TrainerTotals struct {
	CollectedGross decimal.Decimal
	AvailableGross decimal.Decimal
	PendingGross   decimal.Decimal // awaiting client approval or processing
}

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	// UpdateState persists the mutable state of p only when the stored row
	// still carries expectedVersion; it bumps the version on success and
	// reports whether a row was written.
	UpdateState(ctx context.Context, tx Tx, p *model.Payment, expectedVersion int) (bool, error)
	// List returns one page of payments plus the unpaginated total count.
	List(ctx context.Context, tx Tx, f PaymentFilter) ([]*model.Payment, int, error)
	SummaryTotals(ctx context.Context, tx Tx) (PaymentTotals, error)
	TrainerTotals(ctx context.Context, tx Tx, trainerID string) (TrainerTotals, error)
}
