package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"fitmarket-settlement/internal/domain"
	"fitmarket-settlement/internal/domain/model"
	"fitmarket-settlement/internal/domain/ports/repository"
)

var _ repository.PlanRepository = (*planRepo)(nil)

type planRepo struct{ pool *pgxpool.Pool }

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	const q = `SELECT id, name, duration_days, price::text, currency FROM plans WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	p, err := scanPlan(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *planRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	const q = `SELECT id, name, duration_days, price::text, currency FROM plans ORDER BY duration_days ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPlan(row interface {
	Scan(dest ...interface{}) error
}) (*model.Plan, error) {
	p := &model.Plan{}
	var price string
	if err := row.Scan(&p.ID, &p.Name, &p.DurationDays, &price, &p.Currency); err != nil {
		return nil, err
	}
	var err error
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	return p, nil
}
