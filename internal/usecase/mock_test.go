//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fitmarket-settlement/internal/domain"
	"fitmarket-settlement/internal/domain/model"
	"fitmarket-settlement/internal/domain/ports/repository"
)

// ---- fake clock ----

// fakeClock hands out a fixed instant; tests advance it explicitly.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// ---- Mock PaymentRepository ----

type MockPaymentRepo struct {
	mu   sync.Mutex
	data map[string]*model.Payment // by id

	SaveFunc          func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	FindByIDFunc      func(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error)
	UpdateStateFunc   func(ctx context.Context, tx repository.Tx, p *model.Payment, expectedVersion int) (bool, error)
	ListFunc          func(ctx context.Context, tx repository.Tx, f repository.PaymentFilter) ([]*model.Payment, int, error)
	SummaryTotalsFunc func(ctx context.Context, tx repository.Tx) (repository.PaymentTotals, error)
	TrainerTotalsFunc func(ctx context.Context, tx repository.Tx, trainerID string) (repository.TrainerTotals, error)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{data: map[string]*model.Payment{}}
}

func (r *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := *p
	r.data[p.ID] = &cp
	return nil
}

func (r *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MockPaymentRepo) UpdateState(ctx context.Context, tx repository.Tx, p *model.Payment, expectedVersion int) (bool, error) {
	if r.UpdateStateFunc != nil {
		return r.UpdateStateFunc(ctx, tx, p, expectedVersion)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.data[p.ID]
	if !ok || stored.Version != expectedVersion {
		return false, nil
	}
	p.Version = expectedVersion + 1
	cp := *p
	r.data[p.ID] = &cp
	return true, nil
}

func (r *MockPaymentRepo) List(ctx context.Context, tx repository.Tx, f repository.PaymentFilter) ([]*model.Payment, int, error) {
	if r.ListFunc != nil {
		return r.ListFunc(ctx, tx, f)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*model.Payment, 0, len(r.data))
	for _, p := range r.data {
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		if f.Method != nil && p.Method != *f.Method {
			continue
		}
		if f.UserID != nil && p.UserID != *f.UserID {
			continue
		}
		if f.MembershipID != nil && p.MembershipID != *f.MembershipID {
			continue
		}
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if f.Offset >= total {
		return nil, total, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (r *MockPaymentRepo) SummaryTotals(ctx context.Context, tx repository.Tx) (repository.PaymentTotals, error) {
	if r.SummaryTotalsFunc != nil {
		return r.SummaryTotalsFunc(ctx, tx)
	}
	return repository.PaymentTotals{TotalRevenue: decimal.Zero, CompletedRevenue: decimal.Zero}, nil
}

func (r *MockPaymentRepo) TrainerTotals(ctx context.Context, tx repository.Tx, trainerID string) (repository.TrainerTotals, error) {
	if r.TrainerTotalsFunc != nil {
		return r.TrainerTotalsFunc(ctx, tx, trainerID)
	}
	return repository.TrainerTotals{CollectedGross: decimal.Zero, AvailableGross: decimal.Zero, PendingGross: decimal.Zero}, nil
}

// ---- Mock MembershipRepository ----

type MockMembershipRepo struct {
	mu   sync.Mutex
	data map[string]*model.Membership

	SaveFunc           func(ctx context.Context, tx repository.Tx, m *model.Membership) error
	FindByIDFunc       func(ctx context.Context, tx repository.Tx, id string) (*model.Membership, error)
	UpdateStatusIfFunc func(ctx context.Context, tx repository.Tx, id string, from, to model.MembershipStatus) (bool, error)
}

var _ repository.MembershipRepository = (*MockMembershipRepo)(nil)

func NewMockMembershipRepo() *MockMembershipRepo {
	return &MockMembershipRepo{data: map[string]*model.Membership{}}
}

func (r *MockMembershipRepo) Save(ctx context.Context, tx repository.Tx, m *model.Membership) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, m)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	cp := *m
	r.data[m.ID] = &cp
	return nil
}

func (r *MockMembershipRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Membership, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *MockMembershipRepo) FindLatestByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *model.Membership
	for _, m := range r.data {
		if m.UserID != userID {
			continue
		}
		if latest == nil || m.CreatedAt.After(latest.CreatedAt) {
			latest = m
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *MockMembershipRepo) ListActiveExpired(ctx context.Context, tx repository.Tx, asOf time.Time, limit int) ([]*model.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Membership
	for _, m := range r.data {
		if m.Status != model.MembershipStatusActive || m.EndDate.After(asOf) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockMembershipRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, from, to model.MembershipStatus) (bool, error) {
	if r.UpdateStatusIfFunc != nil {
		return r.UpdateStatusIfFunc(ctx, tx, id, from, to)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.data[id]
	if !ok || m.Status != from {
		return false, nil
	}
	m.Status = to
	return true, nil
}

// ---- Mock PlanRepository ----

type MockPlanRepo struct {
	mu   sync.Mutex
	data map[string]*model.Plan

	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error)
}

var _ repository.PlanRepository = (*MockPlanRepo)(nil)

func NewMockPlanRepo() *MockPlanRepo {
	return &MockPlanRepo{data: map[string]*model.Plan{}}
}

// Put seeds a plan; plans are read-only through the port.
func (r *MockPlanRepo) Put(p *model.Plan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.data[p.ID] = &cp
}

func (r *MockPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MockPlanRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Plan, 0, len(r.data))
	for _, p := range r.data {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu   sync.Mutex
	data map[string]*model.User
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{data: map[string]*model.User{}}
}

func (r *MockUserRepo) Put(u *model.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.data[u.ID] = &cp
}

func (r *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

// WithTx runs the function immediately with NoTX unless a test overrides it.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// newTestLogger creates a silent zerolog.Logger so test output stays clean.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
