// File: internal/usecase/membership_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fitmarket-settlement/internal/domain"
	"fitmarket-settlement/internal/domain/model"
	"fitmarket-settlement/internal/domain/ports/repository"
	"fitmarket-settlement/internal/infra/logging"
	"fitmarket-settlement/internal/infra/metrics"
)

// Compile-time check
var _ MembershipUseCase = (*membershipUC)(nil)

// ContractPaymentInput optionally attaches a payment to a new contract
// membership.
type ContractPaymentInput struct {
	Amount            decimal.Decimal
	Method            model.PaymentMethod
	ServiceContractID *string
}

type MembershipUseCase interface {
	// CreatePaymentMembership subscribes a user to a plan and charges the
	// first period.
	CreatePaymentMembership(ctx context.Context, userID, planID string, amount decimal.Decimal, method model.PaymentMethod) (*model.Membership, *model.Payment, error)
	// CreateContractMembership signs a trainer contract, optionally with an
	// up-front payment.
	CreateContractMembership(ctx context.Context, userID, trainerID string, startDate, endDate time.Time, details string, payment *ContractPaymentInput) (*model.Membership, *model.Payment, error)
	// RenewMembership extends a plan membership by one plan period.
	RenewMembership(ctx context.Context, membershipID string) (*model.Membership, error)
	// ReactivateExpiredMembership restarts the user's lapsed plan membership
	// from today and charges the stored amount.
	ReactivateExpiredMembership(ctx context.Context, userID string, method model.PaymentMethod) (*model.Membership, *model.Payment, error)
	// SweepExpired demotes ACTIVE memberships whose end date has passed to
	// EXPIRED. Idempotent; returns the number of rows changed.
	SweepExpired(ctx context.Context) (int, error)
}

type membershipUC struct {
	memberships repository.MembershipRepository
	plans       repository.PlanRepository
	settlement  SettlementUseCase
	txm         repository.TransactionManager
	clock       Clock

	log *zerolog.Logger
}

func NewMembershipUseCase(
	memberships repository.MembershipRepository,
	plans repository.PlanRepository,
	settlement SettlementUseCase,
	txm repository.TransactionManager,
	clock Clock,
	logger *zerolog.Logger,
) *membershipUC {
	l := logger.With().Str("component", "MembershipUC").Logger()
	return &membershipUC{memberships: memberships, plans: plans, settlement: settlement, txm: txm, clock: clock, log: &l}
}

func (u *membershipUC) CreatePaymentMembership(ctx context.Context, userID, planID string, amount decimal.Decimal, method model.PaymentMethod) (*model.Membership, *model.Payment, error) {
	defer logging.TraceDuration(u.log, "MembershipUC.CreatePaymentMembership")()
	if err := model.ValidateAmount(amount); err != nil {
		return nil, nil, err
	}
	plan, err := u.plans.FindByID(ctx, repository.NoTX, planID)
	if err != nil {
		return nil, nil, fmt.Errorf("plan %s: %w", planID, err)
	}

	now := u.clock.Now()
	ms := &model.Membership{
		ID:              uuid.NewString(),
		UserID:          userID,
		Type:            model.MembershipTypePayment,
		Status:          model.MembershipStatusActive,
		StartDate:       now,
		EndDate:         now.AddDate(0, 0, plan.DurationDays),
		PlanID:          &plan.ID,
		PaymentAmount:   &amount,
		PaymentCurrency: plan.Currency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := u.memberships.Save(ctx, repository.NoTX, ms); err != nil {
		return nil, nil, err
	}

	p, err := u.settlement.CreatePayment(ctx, ms.ID, userID, amount, method, nil)
	if err != nil {
		return nil, nil, err
	}
	u.log.Info().Str("membership_id", ms.ID).Str("plan_id", planID).Msg("payment membership created")
	return ms, p, nil
}

func (u *membershipUC) CreateContractMembership(ctx context.Context, userID, trainerID string, startDate, endDate time.Time, details string, payment *ContractPaymentInput) (*model.Membership, *model.Payment, error) {
	defer logging.TraceDuration(u.log, "MembershipUC.CreateContractMembership")()
	if endDate.Before(startDate) {
		return nil, nil, fmt.Errorf("%w: contract end date %s precedes start date %s", domain.ErrValidation, endDate.Format(time.DateOnly), startDate.Format(time.DateOnly))
	}

	now := u.clock.Now()
	ms := &model.Membership{
		ID:              uuid.NewString(),
		UserID:          userID,
		Type:            model.MembershipTypeContract,
		Status:          model.MembershipStatusActive,
		StartDate:       startDate,
		EndDate:         endDate,
		TrainerID:       &trainerID,
		PaymentCurrency: model.DefaultCurrency,
		Details:         details,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := u.memberships.Save(ctx, repository.NoTX, ms); err != nil {
		return nil, nil, err
	}

	var p *model.Payment
	if payment != nil {
		var err error
		p, err = u.settlement.CreatePayment(ctx, ms.ID, userID, payment.Amount, payment.Method, payment.ServiceContractID)
		if err != nil {
			return nil, nil, err
		}
	}
	u.log.Info().Str("membership_id", ms.ID).Str("trainer_id", trainerID).Msg("contract membership created")
	return ms, p, nil
}

func (u *membershipUC) RenewMembership(ctx context.Context, membershipID string) (*model.Membership, error) {
	defer logging.TraceDuration(u.log, "MembershipUC.RenewMembership")()
	var renewed *model.Membership
	err := u.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ms, err := u.memberships.FindByID(ctx, tx, membershipID)
		if err != nil {
			return fmt.Errorf("membership %s: %w", membershipID, err)
		}
		if !ms.Renewable() {
			return fmt.Errorf("%w: membership %s is %s without a plan, only plan memberships renew", domain.ErrInvalidState, ms.ID, ms.Type)
		}
		plan, err := u.plans.FindByID(ctx, tx, *ms.PlanID)
		if err != nil {
			return fmt.Errorf("plan %s: %w", *ms.PlanID, err)
		}
		ms.EndDate = ms.EndDate.AddDate(0, 0, plan.DurationDays)
		ms.Status = model.MembershipStatusActive
		ms.UpdatedAt = u.clock.Now()
		if err := u.memberships.Save(ctx, tx, ms); err != nil {
			return err
		}
		renewed = ms
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("membership_id", renewed.ID).Time("end_date", renewed.EndDate).Msg("membership renewed")
	return renewed, nil
}

func (u *membershipUC) ReactivateExpiredMembership(ctx context.Context, userID string, method model.PaymentMethod) (*model.Membership, *model.Payment, error) {
	defer logging.TraceDuration(u.log, "MembershipUC.ReactivateExpiredMembership")()
	var ms *model.Membership
	err := u.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		latest, err := u.memberships.FindLatestByUser(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("memberships of user %s: %w", userID, err)
		}
		now := u.clock.Now()
		if latest.ActiveAt(now) {
			return fmt.Errorf("%w: membership %s is still active", domain.ErrInvalidState, latest.ID)
		}
		if !latest.Renewable() {
			return fmt.Errorf("%w: membership %s is %s without a plan and cannot be reactivated", domain.ErrInvalidState, latest.ID, latest.Type)
		}
		if latest.PaymentAmount == nil {
			return fmt.Errorf("%w: membership %s has no stored payment amount", domain.ErrInvalidState, latest.ID)
		}
		plan, err := u.plans.FindByID(ctx, tx, *latest.PlanID)
		if err != nil {
			return fmt.Errorf("plan %s: %w", *latest.PlanID, err)
		}
		latest.StartDate = now
		latest.EndDate = now.AddDate(0, 0, plan.DurationDays)
		latest.Status = model.MembershipStatusActive
		latest.UpdatedAt = now
		if err := u.memberships.Save(ctx, tx, latest); err != nil {
			return err
		}
		ms = latest
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	p, err := u.settlement.CreatePayment(ctx, ms.ID, userID, *ms.PaymentAmount, method, nil)
	if err != nil {
		return nil, nil, err
	}
	u.log.Info().Str("membership_id", ms.ID).Msg("membership reactivated")
	return ms, p, nil
}

func (u *membershipUC) SweepExpired(ctx context.Context) (int, error) {
	defer logging.TraceDuration(u.log, "MembershipUC.SweepExpired")()
	const batch = 200

	now := u.clock.Now()
	changed := 0
	for {
		due, err := u.memberships.ListActiveExpired(ctx, repository.NoTX, now, batch)
		if err != nil {
			return changed, err
		}
		if len(due) == 0 {
			break
		}
		progressed := false
		for _, ms := range due {
			// Row-by-row conditional update: a concurrent sweep or renewal
			// simply makes this a no-op for the row.
			ok, err := u.memberships.UpdateStatusIf(ctx, repository.NoTX, ms.ID, model.MembershipStatusActive, model.MembershipStatusExpired)
			if err != nil {
				return changed, err
			}
			if ok {
				changed++
				progressed = true
			}
		}
		if !progressed || len(due) < batch {
			break
		}
	}
	if changed > 0 {
		metrics.AddMembershipsExpired(changed)
		u.log.Info().Int("count", changed).Msg("expired memberships swept")
	}
	return changed, nil
}
