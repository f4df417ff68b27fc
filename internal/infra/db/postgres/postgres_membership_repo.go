package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"fitmarket-settlement/internal/domain"
	"fitmarket-settlement/internal/domain/model"
	"fitmarket-settlement/internal/domain/ports/repository"
)

var _ repository.MembershipRepository = (*membershipRepo)(nil)

type membershipRepo struct{ pool *pgxpool.Pool }

func NewMembershipRepo(pool *pgxpool.Pool) *membershipRepo {
	return &membershipRepo{pool: pool}
}

const membershipCols = `id, user_id, type, status, start_date, end_date, trainer_id, plan_id, payment_amount::text, payment_currency, details, auto_renew, created_at, updated_at`

func (r *membershipRepo) Save(ctx context.Context, tx repository.Tx, m *model.Membership) error {
	const q = `
INSERT INTO memberships (
  id, user_id, type, status, start_date, end_date, trainer_id, plan_id, payment_amount, payment_currency, details, auto_renew, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
) ON CONFLICT (id) DO UPDATE SET
  user_id=$2, type=$3, status=$4, start_date=$5, end_date=$6, trainer_id=$7, plan_id=$8, payment_amount=$9, payment_currency=$10, details=$11, auto_renew=$12, updated_at=$14;`

	_, err := execSQL(ctx, r.pool, tx, q,
		m.ID, m.UserID, string(m.Type), string(m.Status), m.StartDate, m.EndDate, m.TrainerID, m.PlanID,
		amountArg(m.PaymentAmount), m.PaymentCurrency, m.Details, m.AutoRenew, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		if err == domain.ErrValidation || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *membershipRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Membership, error) {
	q := `SELECT ` + membershipCols + ` FROM memberships WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanMembershipRow(row)
}

func (r *membershipRepo) FindLatestByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Membership, error) {
	q := `SELECT ` + membershipCols + ` FROM memberships WHERE user_id=$1 ORDER BY created_at DESC LIMIT 1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	return scanMembershipRow(row)
}

func (r *membershipRepo) ListActiveExpired(ctx context.Context, tx repository.Tx, asOf time.Time, limit int) ([]*model.Membership, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + membershipCols + ` FROM memberships WHERE status='ACTIVE' AND end_date <= $1 ORDER BY end_date ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, asOf, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateStatusIf moves status only from the expected source state, so
// concurrent sweeps and renewals cannot clobber each other.
func (r *membershipRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, from, to model.MembershipStatus) (bool, error) {
	const q = `UPDATE memberships SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(from), string(to))
	if err != nil {
		if err == domain.ErrValidation || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func scanMembershipRow(row pgx.Row) (*model.Membership, error) {
	m, err := scanMembership(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return m, nil
}

func scanMembership(row interface {
	Scan(dest ...interface{}) error
}) (*model.Membership, error) {
	m := &model.Membership{}
	var typ, status string
	var amount *string
	if err := row.Scan(&m.ID, &m.UserID, &typ, &status, &m.StartDate, &m.EndDate, &m.TrainerID, &m.PlanID,
		&amount, &m.PaymentCurrency, &m.Details, &m.AutoRenew, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Type = model.MembershipType(typ)
	m.Status = model.MembershipStatus(status)
	if amount != nil {
		d, err := decimal.NewFromString(*amount)
		if err != nil {
			return nil, err
		}
		m.PaymentAmount = &d
	}
	return m, nil
}

func amountArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}
