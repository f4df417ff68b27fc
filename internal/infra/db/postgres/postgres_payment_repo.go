package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"fitmarket-settlement/internal/domain"
	"fitmarket-settlement/internal/domain/model"
	"fitmarket-settlement/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

// paymentCols is the scan order shared by every payment SELECT. Amount is
// cast to text so it round-trips through decimal without float drift.
const paymentCols = `id, membership_id, service_contract_id, user_id, amount::text, currency, method, gateway, description, status, collection_status, failure_reason, transaction_id, created_at, processed_at, collection_requested_at, collected_at, version`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if err := p.ValidateAxes(); err != nil {
		return err
	}
	const q = `
INSERT INTO payments (
  id, membership_id, service_contract_id, user_id, amount, currency, method, gateway, description, status, collection_status, failure_reason, transaction_id, created_at, processed_at, collection_requested_at, collected_at, version
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
) ON CONFLICT (id) DO UPDATE SET
  membership_id=$2, service_contract_id=$3, user_id=$4, amount=$5, currency=$6, method=$7, gateway=$8, description=$9, status=$10, collection_status=$11, failure_reason=$12, transaction_id=$13, processed_at=$15, collection_requested_at=$16, collected_at=$17, version=$18;`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.MembershipID, p.ServiceContractID, p.UserID, p.Amount.StringFixed(2), p.Currency,
		string(p.Method), p.Gateway, p.Description, string(p.Status), collectionArg(p.CollectionStatus),
		p.FailureReason, p.TransactionID, p.CreatedAt, p.ProcessedAt, p.CollectionRequestedAt, p.CollectedAt, p.Version)
	if err != nil {
		if err == domain.ErrValidation || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentCols + ` FROM payments WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}

	p, err := scanPayment(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

// UpdateState persists the mutable columns only when the stored version still
// matches; the write bumps the version so a lost race shows up as zero rows.
func (r *paymentRepo) UpdateState(ctx context.Context, tx repository.Tx, p *model.Payment, expectedVersion int) (bool, error) {
	const q = `
UPDATE payments
   SET status=$2,
       collection_status=$3,
       failure_reason=$4,
       transaction_id=$5,
       processed_at=$6,
       collection_requested_at=$7,
       collected_at=$8,
       version=version+1
 WHERE id=$1
   AND version=$9;`

	cmd, err := execSQL(ctx, r.pool, tx, q,
		p.ID, string(p.Status), collectionArg(p.CollectionStatus), p.FailureReason, p.TransactionID,
		p.ProcessedAt, p.CollectionRequestedAt, p.CollectedAt, expectedVersion)
	if err != nil {
		if err == domain.ErrValidation || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return false, nil
	}
	p.Version = expectedVersion + 1
	return true, nil
}

func (r *paymentRepo) List(ctx context.Context, tx repository.Tx, f repository.PaymentFilter) ([]*model.Payment, int, error) {
	where, args := buildPaymentFilter(f)

	var total int
	countQ := `SELECT COUNT(*) FROM payments p` + where + `;`
	row, err := pickRow(ctx, r.pool, tx, countQ, args...)
	if err != nil {
		return nil, 0, err
	}
	if err := row.Scan(&total); err != nil {
		return nil, 0, domain.ErrReadDatabaseRow
	}

	q := `SELECT ` + prefixCols(paymentCols, "p.") + ` FROM payments p` + where +
		fmt.Sprintf(` ORDER BY p.created_at DESC OFFSET $%d LIMIT $%d;`, len(args)+1, len(args)+2)
	rows, err := queryRows(ctx, r.pool, tx, q, append(args, f.Offset, f.Limit)...)
	if err != nil {
		return nil, 0, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *paymentRepo) SummaryTotals(ctx context.Context, tx repository.Tx) (repository.PaymentTotals, error) {
	const q = `
SELECT
  COALESCE(SUM(amount) FILTER (WHERE status='COMPLETED'), 0)::text,
  COUNT(*) FILTER (WHERE status='PENDING'),
  COALESCE(SUM(amount) FILTER (WHERE status='COMPLETED' AND collection_status IS DISTINCT FROM 'COLLECTED'), 0)::text
FROM payments;`

	var totals repository.PaymentTotals
	row, err := pickRow(ctx, r.pool, tx, q)
	if err != nil {
		return totals, err
	}
	var revenue, completed string
	if err := row.Scan(&revenue, &totals.PendingPayments, &completed); err != nil {
		return totals, domain.ErrReadDatabaseRow
	}
	if totals.TotalRevenue, err = decimal.NewFromString(revenue); err != nil {
		return totals, domain.ErrReadDatabaseRow
	}
	if totals.CompletedRevenue, err = decimal.NewFromString(completed); err != nil {
		return totals, domain.ErrReadDatabaseRow
	}
	return totals, nil
}

func (r *paymentRepo) TrainerTotals(ctx context.Context, tx repository.Tx, trainerID string) (repository.TrainerTotals, error) {
	const q = `
SELECT
  COALESCE(SUM(p.amount) FILTER (WHERE p.collection_status='COLLECTED'), 0)::text,
  COALESCE(SUM(p.amount) FILTER (WHERE p.collection_status='AVAILABLE_FOR_COLLECTION'), 0)::text,
  COALESCE(SUM(p.amount) FILTER (WHERE p.collection_status IN ('PENDING_CLIENT_APPROVAL','PROCESSING_COLLECTION')), 0)::text
FROM payments p
JOIN memberships m ON m.id = p.membership_id
WHERE m.trainer_id=$1 AND m.type='CONTRACT' AND p.status='COMPLETED';`

	var totals repository.TrainerTotals
	row, err := pickRow(ctx, r.pool, tx, q, trainerID)
	if err != nil {
		return totals, err
	}
	var collected, available, pending string
	if err := row.Scan(&collected, &available, &pending); err != nil {
		return totals, domain.ErrReadDatabaseRow
	}
	if totals.CollectedGross, err = decimal.NewFromString(collected); err != nil {
		return totals, domain.ErrReadDatabaseRow
	}
	if totals.AvailableGross, err = decimal.NewFromString(available); err != nil {
		return totals, domain.ErrReadDatabaseRow
	}
	if totals.PendingGross, err = decimal.NewFromString(pending); err != nil {
		return totals, domain.ErrReadDatabaseRow
	}
	return totals, nil
}

func buildPaymentFilter(f repository.PaymentFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != nil {
		add("p.status=$%d", string(*f.Status))
	}
	if f.CollectionStatus != nil {
		add("p.collection_status=$%d", string(*f.CollectionStatus))
	}
	if f.Method != nil {
		add("p.method=$%d", string(*f.Method))
	}
	if f.MembershipID != nil {
		add("p.membership_id=$%d", *f.MembershipID)
	}
	if f.UserID != nil {
		add("p.user_id=$%d", *f.UserID)
	}
	if f.TrainerID != nil {
		add("p.membership_id IN (SELECT id FROM memberships WHERE trainer_id=$%d AND type='CONTRACT')", *f.TrainerID)
	}
	if f.From != nil {
		add("p.created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("p.created_at <= $%d", *f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func prefixCols(cols, prefix string) string {
	parts := strings.Split(cols, ", ")
	for i, c := range parts {
		parts[i] = prefix + c
	}
	return strings.Join(parts, ", ")
}

func scanPayment(row interface {
	Scan(dest ...interface{}) error
}) (*model.Payment, error) {
	p := &model.Payment{}
	var amount string
	var method, status string
	var collection *string
	if err := row.Scan(&p.ID, &p.MembershipID, &p.ServiceContractID, &p.UserID, &amount, &p.Currency,
		&method, &p.Gateway, &p.Description, &status, &collection, &p.FailureReason, &p.TransactionID,
		&p.CreatedAt, &p.ProcessedAt, &p.CollectionRequestedAt, &p.CollectedAt, &p.Version); err != nil {
		return nil, err
	}
	var err error
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	p.Method = model.PaymentMethod(method)
	p.Status = model.PaymentStatus(status)
	if collection != nil {
		cs := model.CollectionStatus(*collection)
		p.CollectionStatus = &cs
	}
	return p, nil
}

func collectionArg(cs *model.CollectionStatus) *string {
	if cs == nil {
		return nil
	}
	s := string(*cs)
	return &s
}
