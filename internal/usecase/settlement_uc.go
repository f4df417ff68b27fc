// File: internal/usecase/settlement_uc.go
package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fitmarket-settlement/internal/domain"
	"fitmarket-settlement/internal/domain/model"
	"fitmarket-settlement/internal/domain/ports/repository"
	"fitmarket-settlement/internal/infra/logging"
	"fitmarket-settlement/internal/infra/metrics"
)

// Compile-time check
var _ SettlementUseCase = (*settlementUC)(nil)

// SettlementUseCase drives the dual-axis payment state machine. Every
// operation is atomic with respect to a single payment row: it runs in a
// transaction, re-reads the row under lock, checks transition legality, and
// writes through a version-checked update. A lost race surfaces as
// domain.ErrConflict and the row is left unchanged.
type SettlementUseCase interface {
	CreatePayment(ctx context.Context, membershipID, userID string, amount decimal.Decimal, method model.PaymentMethod, serviceContractID *string) (*model.Payment, error)
	// ApproveByClient confirms a contracted service was delivered; the funds
	// become available for trainer collection.
	ApproveByClient(ctx context.Context, paymentID string) (*model.Payment, error)
	// RequestCollection is the trainer asking for a payout of approved funds.
	RequestCollection(ctx context.Context, paymentID string) (*model.Payment, error)
	// MarkCollected records that funds were disbursed to the trainer.
	MarkCollected(ctx context.Context, paymentID string) (*model.Payment, error)
	// MarkPaidToTrainer is the admin-console verb for MarkCollected.
	MarkPaidToTrainer(ctx context.Context, paymentID string) (*model.Payment, error)
	// CompletePayment resolves a pending payment on asynchronous gateway
	// confirmation.
	CompletePayment(ctx context.Context, paymentID, transactionID string) (*model.Payment, error)
	// MarkObserved flags a payment for manual review without cancelling it.
	MarkObserved(ctx context.Context, paymentID, reason string) (*model.Payment, error)
	// ReleaseObserved routes an observed payment back to collection.
	ReleaseObserved(ctx context.Context, paymentID string) (*model.Payment, error)
	CancelPayment(ctx context.Context, paymentID, reason string) (*model.Payment, error)
}

type settlementUC struct {
	payments    repository.PaymentRepository
	memberships repository.MembershipRepository
	txm         repository.TransactionManager
	clock       Clock

	log *zerolog.Logger
}

func NewSettlementUseCase(
	payments repository.PaymentRepository,
	memberships repository.MembershipRepository,
	txm repository.TransactionManager,
	clock Clock,
	logger *zerolog.Logger,
) *settlementUC {
	l := logger.With().Str("component", "SettlementUC").Logger()
	return &settlementUC{payments: payments, memberships: memberships, txm: txm, clock: clock, log: &l}
}

func (u *settlementUC) CreatePayment(ctx context.Context, membershipID, userID string, amount decimal.Decimal, method model.PaymentMethod, serviceContractID *string) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "SettlementUC.CreatePayment")()
	if err := model.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if _, err := model.ParsePaymentMethod(string(method)); err != nil {
		return nil, err
	}

	var created *model.Payment
	err := u.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ms, err := u.memberships.FindByID(ctx, tx, membershipID)
		if err != nil {
			return fmt.Errorf("membership %s: %w", membershipID, err)
		}

		now := u.clock.Now()
		p := &model.Payment{
			ID:                uuid.NewString(),
			MembershipID:      ms.ID,
			ServiceContractID: serviceContractID,
			UserID:            userID,
			Amount:            amount,
			Currency:          model.DefaultCurrency,
			Method:            method,
			Status:            model.PaymentStatusCompleted,
			CreatedAt:         now,
			ProcessedAt:       &now,
		}
		if method == model.MethodContractPayment {
			// Contract money funds a trainer: it must pass client approval
			// before the trainer can claim it.
			txID := "CONTRACT_" + ulid.Make().String()
			cs := model.CollectionPendingClientApproval
			p.TransactionID = &txID
			p.CollectionStatus = &cs
			p.Description = "Contract payment - Pending service completion"
		} else {
			// Plan subscription revenue has no trainer counterpart and
			// settles immediately.
			txID := "PAYMENT_" + ulid.Make().String()
			cs := model.CollectionCollected
			p.TransactionID = &txID
			p.CollectionStatus = &cs
			collected := now
			p.CollectedAt = &collected
		}
		if err := p.ValidateAxes(); err != nil {
			return err
		}
		if err := u.payments.Save(ctx, tx, p); err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncPayment(string(created.Status))
	u.log.Info().
		Str("payment_id", created.ID).
		Str("membership_id", membershipID).
		Str("method", string(created.Method)).
		Str("amount", created.Amount.String()).
		Msg("payment created")
	return created, nil
}

func (u *settlementUC) ApproveByClient(ctx context.Context, paymentID string) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "SettlementUC.ApproveByClient")()
	return u.transition(ctx, paymentID, "client approval", func(p *model.Payment) error {
		if !p.CollectionIs(model.CollectionPendingClientApproval) {
			return invalidCollectionState(p, model.CollectionPendingClientApproval)
		}
		setCollection(p, model.CollectionAvailable)
		return nil
	})
}

func (u *settlementUC) RequestCollection(ctx context.Context, paymentID string) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "SettlementUC.RequestCollection")()
	return u.transition(ctx, paymentID, "collection request", func(p *model.Payment) error {
		if !p.CollectionIs(model.CollectionAvailable) {
			return invalidCollectionState(p, model.CollectionAvailable)
		}
		setCollection(p, model.CollectionProcessing)
		now := u.clock.Now()
		p.CollectionRequestedAt = &now
		return nil
	})
}

func (u *settlementUC) MarkCollected(ctx context.Context, paymentID string) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "SettlementUC.MarkCollected")()
	return u.transition(ctx, paymentID, "mark collected", func(p *model.Payment) error {
		if p.Status != model.PaymentStatusCompleted {
			return fmt.Errorf("%w: payment %s is %s, only completed payments can be collected", domain.ErrInvalidState, p.ID, p.Status)
		}
		if p.CollectionTerminal() {
			return invalidCollectionState(p, model.CollectionProcessing)
		}
		setCollection(p, model.CollectionCollected)
		now := u.clock.Now()
		p.CollectedAt = &now
		return nil
	})
}

func (u *settlementUC) MarkPaidToTrainer(ctx context.Context, paymentID string) (*model.Payment, error) {
	return u.MarkCollected(ctx, paymentID)
}

func (u *settlementUC) CompletePayment(ctx context.Context, paymentID, transactionID string) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "SettlementUC.CompletePayment")()
	return u.transition(ctx, paymentID, "gateway completion", func(p *model.Payment) error {
		if p.Status != model.PaymentStatusPending {
			return fmt.Errorf("%w: payment %s already resolved as %s", domain.ErrInvalidState, p.ID, p.Status)
		}
		now := u.clock.Now()
		p.Status = model.PaymentStatusCompleted
		p.TransactionID = &transactionID
		p.ProcessedAt = &now
		if p.Method == model.MethodContractPayment {
			setCollection(p, model.CollectionPendingClientApproval)
		} else {
			setCollection(p, model.CollectionCollected)
			p.CollectedAt = &now
		}
		return nil
	})
}

func (u *settlementUC) MarkObserved(ctx context.Context, paymentID, reason string) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "SettlementUC.MarkObserved")()
	return u.transition(ctx, paymentID, "observe", func(p *model.Payment) error {
		switch {
		case p.Status == model.PaymentStatusPending:
			// Pre-completion the payment axis is still open: reject outright.
			p.Status = model.PaymentStatusRejected
		case p.Status == model.PaymentStatusCompleted && !p.CollectionTerminal():
			setCollection(p, model.CollectionObserved)
		default:
			return invalidCollectionState(p, model.CollectionObserved)
		}
		p.FailureReason = &reason
		return nil
	})
}

func (u *settlementUC) ReleaseObserved(ctx context.Context, paymentID string) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "SettlementUC.ReleaseObserved")()
	return u.transition(ctx, paymentID, "release observed", func(p *model.Payment) error {
		if !p.CollectionIs(model.CollectionObserved) {
			return invalidCollectionState(p, model.CollectionObserved)
		}
		setCollection(p, model.CollectionAvailable)
		p.FailureReason = nil
		return nil
	})
}

func (u *settlementUC) CancelPayment(ctx context.Context, paymentID, reason string) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "SettlementUC.CancelPayment")()
	return u.transition(ctx, paymentID, "cancel", func(p *model.Payment) error {
		if p.CollectionIs(model.CollectionCollected) {
			return fmt.Errorf("%w: payment %s is already collected, disbursed funds cannot be cancelled", domain.ErrInvalidState, p.ID)
		}
		switch p.Status {
		case model.PaymentStatusPending:
			p.Status = model.PaymentStatusRejected
		case model.PaymentStatusCompleted:
			setCollection(p, model.CollectionCancelling)
		default:
			return fmt.Errorf("%w: payment %s is already %s", domain.ErrInvalidState, p.ID, p.Status)
		}
		p.FailureReason = &reason
		return nil
	})
}

// transition runs one guarded state change against a single payment row.
func (u *settlementUC) transition(ctx context.Context, paymentID, op string, mutate func(p *model.Payment) error) (*model.Payment, error) {
	var out *model.Payment
	err := u.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByID(ctx, tx, paymentID)
		if err != nil {
			return fmt.Errorf("payment %s: %w", paymentID, err)
		}
		expected := p.Version
		if err := mutate(p); err != nil {
			return err
		}
		if err := p.ValidateAxes(); err != nil {
			return err
		}
		ok, err := u.payments.UpdateState(ctx, tx, p, expected)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: payment %s changed underneath %s, retry", domain.ErrConflict, paymentID, op)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.CollectionStatus != nil {
		metrics.IncCollectionTransition(string(*out.CollectionStatus))
	}
	u.log.Info().Str("payment_id", out.ID).Str("op", op).Msg("payment transitioned")
	return out, nil
}

func setCollection(p *model.Payment, s model.CollectionStatus) {
	p.CollectionStatus = &s
}

func invalidCollectionState(p *model.Payment, wanted model.CollectionStatus) error {
	current := "none"
	if p.CollectionStatus != nil {
		current = string(*p.CollectionStatus)
	}
	return fmt.Errorf("%w: payment %s collection status is %s, expected %s", domain.ErrInvalidState, p.ID, current, wanted)
}
