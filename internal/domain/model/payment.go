package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fitmarket-settlement/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"   // created; awaiting gateway confirmation
	PaymentStatusCompleted PaymentStatus = "COMPLETED" // funds captured; collection axis becomes meaningful
	PaymentStatusRejected  PaymentStatus = "REJECTED"  // gateway failure or admin cancel pre-completion
)

// ParsePaymentStatus validates a raw status string coming from a caller.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch st := PaymentStatus(s); st {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusRejected:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown payment status %q", domain.ErrValidation, s)
	}
}

// CollectionStatus tracks the trainer-facing payout axis. It is only set once
// the payment axis reaches COMPLETED.
type CollectionStatus string

const (
	CollectionPendingClientApproval CollectionStatus = "PENDING_CLIENT_APPROVAL"
	CollectionAvailable             CollectionStatus = "AVAILABLE_FOR_COLLECTION"
	CollectionProcessing            CollectionStatus = "PROCESSING_COLLECTION"
	CollectionCollected             CollectionStatus = "COLLECTED"
	CollectionCancelling            CollectionStatus = "CANCELLING"
	CollectionObserved              CollectionStatus = "OBSERVED"
)

type PaymentMethod string

const (
	MethodCreditCard      PaymentMethod = "CREDIT_CARD"
	MethodDebitCard       PaymentMethod = "DEBIT_CARD"
	MethodPayPal          PaymentMethod = "PAYPAL"
	MethodBankTransfer    PaymentMethod = "BANK_TRANSFER"
	MethodStripe          PaymentMethod = "STRIPE"
	MethodContractPayment PaymentMethod = "CONTRACT_PAYMENT"
	MethodOther           PaymentMethod = "OTHER"
)

// ParsePaymentMethod validates a raw method string coming from a caller.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case MethodCreditCard, MethodDebitCard, MethodPayPal, MethodBankTransfer,
		MethodStripe, MethodContractPayment, MethodOther:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown payment method %q", domain.ErrValidation, s)
	}
}

const DefaultCurrency = "EUR"

// Payment records one monetary transaction funding a Membership.
type Payment struct {
	ID                    string // UUID
	MembershipID          string // UUID -> Membership
	ServiceContractID     *string
	UserID                string // UUID of the paying client
	Amount                decimal.Decimal
	Currency              string
	Method                PaymentMethod
	Gateway               string
	Description           string
	Status                PaymentStatus
	CollectionStatus      *CollectionStatus // nil until the payment axis completes
	FailureReason         *string
	TransactionID         *string // external reference; assigned on completion
	CreatedAt             time.Time
	ProcessedAt           *time.Time // set when the payment axis resolves
	CollectionRequestedAt *time.Time // set when the trainer requests payout
	CollectedAt           *time.Time // set when funds are marked collected
	Version               int        // optimistic write counter
}

// ValidateAxes enforces the dual-axis consistency rule: a collection status is
// present iff the payment axis reached COMPLETED. Repositories call this
// before every write.
func (p *Payment) ValidateAxes() error {
	if p.CollectionStatus != nil && p.Status != PaymentStatusCompleted {
		return fmt.Errorf("%w: collection status %s on %s payment", domain.ErrValidation, *p.CollectionStatus, p.Status)
	}
	return nil
}

// CollectionIs reports whether the payment currently sits in the given
// collection state.
func (p *Payment) CollectionIs(s CollectionStatus) bool {
	return p.CollectionStatus != nil && *p.CollectionStatus == s
}

// CollectionTerminal reports whether the collection axis can no longer move.
func (p *Payment) CollectionTerminal() bool {
	return p.CollectionIs(CollectionCollected) || p.CollectionIs(CollectionCancelling)
}

// ValidateAmount checks that an amount is positive and carries at most two
// decimal places. Trailing zeros are fine; 100.000 is a valid cent value.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", domain.ErrValidation, amount)
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: amount %s has more than two decimal places", domain.ErrValidation, amount)
	}
	return nil
}
