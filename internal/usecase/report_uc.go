// File: internal/usecase/report_uc.go
package usecase

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fitmarket-settlement/internal/domain/model"
	"fitmarket-settlement/internal/domain/ports/repository"
	"fitmarket-settlement/internal/infra/logging"
)

// Compile-time check
var _ ReportUseCase = (*reportUC)(nil)

// PaymentSummary is the platform-wide aggregation for the admin console.
type PaymentSummary struct {
	TotalRevenue     decimal.Decimal
	PendingPayments  int
	CompletedRevenue decimal.Decimal
	TotalCommission  decimal.Decimal
}

// TrainerSummary reports one trainer's contract-payment money, net of the
// platform commission.
type TrainerSummary struct {
	CollectedNet decimal.Decimal
	AvailableNet decimal.Decimal
	PendingNet   decimal.Decimal
}

// PaymentRow is one listing row enriched with display names resolved through
// the owning membership.
type PaymentRow struct {
	Payment     *model.Payment
	ClientName  string
	ClientEmail string
	TrainerName string
}

// PaymentPage is one page of enriched rows plus the unpaginated total.
type PaymentPage struct {
	Items  []PaymentRow
	Total  int
	Offset int
	Limit  int
}

// ReportUseCase serves the read-side views. It only projects state and never
// mutates it.
type ReportUseCase interface {
	Summary(ctx context.Context) (*PaymentSummary, error)
	TrainerSummary(ctx context.Context, trainerID string) (*TrainerSummary, error)
	ListPayments(ctx context.Context, f repository.PaymentFilter) (*PaymentPage, error)
	// ExportCSV streams the filtered payments as CSV, one row per payment.
	ExportCSV(ctx context.Context, f repository.PaymentFilter, w io.Writer) error
}

type reportUC struct {
	payments    repository.PaymentRepository
	memberships repository.MembershipRepository
	users       repository.UserRepository

	log *zerolog.Logger
}

func NewReportUseCase(
	payments repository.PaymentRepository,
	memberships repository.MembershipRepository,
	users repository.UserRepository,
	logger *zerolog.Logger,
) *reportUC {
	l := logger.With().Str("component", "ReportUC").Logger()
	return &reportUC{payments: payments, memberships: memberships, users: users, log: &l}
}

func (u *reportUC) Summary(ctx context.Context) (*PaymentSummary, error) {
	defer logging.TraceDuration(u.log, "ReportUC.Summary")()
	totals, err := u.payments.SummaryTotals(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	commission, _ := model.SplitCommission(totals.TotalRevenue)
	return &PaymentSummary{
		TotalRevenue:     totals.TotalRevenue,
		PendingPayments:  totals.PendingPayments,
		CompletedRevenue: totals.CompletedRevenue,
		TotalCommission:  commission,
	}, nil
}

func (u *reportUC) TrainerSummary(ctx context.Context, trainerID string) (*TrainerSummary, error) {
	defer logging.TraceDuration(u.log, "ReportUC.TrainerSummary")()
	totals, err := u.payments.TrainerTotals(ctx, repository.NoTX, trainerID)
	if err != nil {
		return nil, err
	}
	_, collected := model.SplitCommission(totals.CollectedGross)
	_, available := model.SplitCommission(totals.AvailableGross)
	_, pending := model.SplitCommission(totals.PendingGross)
	return &TrainerSummary{CollectedNet: collected, AvailableNet: available, PendingNet: pending}, nil
}

func (u *reportUC) ListPayments(ctx context.Context, f repository.PaymentFilter) (*PaymentPage, error) {
	defer logging.TraceDuration(u.log, "ReportUC.ListPayments")()
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	payments, total, err := u.payments.List(ctx, repository.NoTX, f)
	if err != nil {
		return nil, err
	}

	rows, err := u.enrich(ctx, payments)
	if err != nil {
		return nil, err
	}
	return &PaymentPage{Items: rows, Total: total, Offset: f.Offset, Limit: f.Limit}, nil
}

// csvHeader is the fixed export layout consumed by the admin and trainer
// consoles.
var csvHeader = []string{
	"ID", "Client Name", "Client Email", "Trainer Name", "Amount", "Commission",
	"Status", "Payment Method", "Transaction ID", "Created At", "Processed At", "Description",
}

func (u *reportUC) ExportCSV(ctx context.Context, f repository.PaymentFilter, w io.Writer) error {
	defer logging.TraceDuration(u.log, "ReportUC.ExportCSV")()
	// Export ignores pagination: walk the filter in fixed-size pages.
	f.Offset = 0
	f.Limit = 500

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for {
		payments, total, err := u.payments.List(ctx, repository.NoTX, f)
		if err != nil {
			return err
		}
		rows, err := u.enrich(ctx, payments)
		if err != nil {
			return err
		}
		for _, r := range rows {
			commission, _ := model.SplitCommission(r.Payment.Amount)
			if err := cw.Write([]string{
				r.Payment.ID,
				r.ClientName,
				r.ClientEmail,
				r.TrainerName,
				r.Payment.Amount.StringFixed(2),
				commission.StringFixed(2),
				string(r.Payment.Status),
				string(r.Payment.Method),
				strOrEmpty(r.Payment.TransactionID),
				r.Payment.CreatedAt.Format(time.RFC3339),
				timeOrEmpty(r.Payment.ProcessedAt),
				r.Payment.Description,
			}); err != nil {
				return err
			}
		}
		f.Offset += len(payments)
		if f.Offset >= total || len(payments) == 0 {
			break
		}
	}
	cw.Flush()
	return cw.Error()
}

// enrich resolves client and trainer display names, memoizing lookups within
// one call.
func (u *reportUC) enrich(ctx context.Context, payments []*model.Payment) ([]PaymentRow, error) {
	memberships := map[string]*model.Membership{}
	users := map[string]*model.User{}

	lookupUser := func(id string) (*model.User, error) {
		if usr, ok := users[id]; ok {
			return usr, nil
		}
		usr, err := u.users.FindByID(ctx, repository.NoTX, id)
		if err != nil {
			return nil, fmt.Errorf("user %s: %w", id, err)
		}
		users[id] = usr
		return usr, nil
	}

	rows := make([]PaymentRow, 0, len(payments))
	for _, p := range payments {
		row := PaymentRow{Payment: p}
		if client, err := lookupUser(p.UserID); err == nil {
			row.ClientName = client.FullName
			row.ClientEmail = client.Email
		}

		ms, ok := memberships[p.MembershipID]
		if !ok {
			var err error
			ms, err = u.memberships.FindByID(ctx, repository.NoTX, p.MembershipID)
			if err != nil {
				u.log.Warn().Str("membership_id", p.MembershipID).Err(err).Msg("listing row without membership")
				ms = nil
			}
			memberships[p.MembershipID] = ms
		}
		if ms != nil && ms.TrainerID != nil {
			if trainer, err := lookupUser(*ms.TrainerID); err == nil {
				row.TrainerName = trainer.FullName
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func timeOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
