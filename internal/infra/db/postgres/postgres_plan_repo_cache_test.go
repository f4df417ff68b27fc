//go:build !integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fitmarket-settlement/internal/domain"
	"fitmarket-settlement/internal/domain/model"
	"fitmarket-settlement/internal/domain/ports/repository"
	red "fitmarket-settlement/internal/infra/redis"
)

// fakeRedis is an in-memory stand-in implementing the full client interface
// the decorator depends on.
type fakeRedis struct {
	store map[string]string
}

var _ red.RedisClient = (*fakeRedis)(nil)

func newFakeRedis() *fakeRedis { return &fakeRedis{store: map[string]string{}} }

func (f *fakeRedis) Ping(ctx context.Context) error { return nil }

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("unexpected value type")
	}
	f.store[key] = string(b)
	return nil
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	v, ok := f.store[key]
	if !ok {
		return "", errors.New("redis: nil")
	}
	return v, nil
}

func (f *fakeRedis) Close() error { return nil }

// fakePlanSource counts how often the decorator falls through to the source
// of truth.
type fakePlanSource struct {
	plans map[string]*model.Plan
	calls int
}

var _ repository.PlanRepository = (*fakePlanSource)(nil)

func (s *fakePlanSource) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	s.calls++
	p, ok := s.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakePlanSource) List(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	s.calls++
	out := make([]*model.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func TestPlanRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	plan := &model.Plan{
		ID:           "plan-1",
		Name:         "Monthly",
		DurationDays: 30,
		Price:        decimal.RequireFromString("29.90"),
		Currency:     "EUR",
	}

	t.Run("second lookup is served from the cache", func(t *testing.T) {
		source := &fakePlanSource{plans: map[string]*model.Plan{plan.ID: plan}}
		repo := NewPlanRepoCacheDecorator(source, newFakeRedis())

		for i := 0; i < 2; i++ {
			got, err := repo.FindByID(ctx, nil, plan.ID)
			if err != nil {
				t.Fatalf("lookup %d: %v", i, err)
			}
			if got.DurationDays != plan.DurationDays || !got.Price.Equal(plan.Price) {
				t.Errorf("lookup %d: plan did not round-trip: %+v", i, got)
			}
		}
		if source.calls != 1 {
			t.Errorf("expected one source hit, got %d", source.calls)
		}
	})

	t.Run("misses fall through to the source", func(t *testing.T) {
		source := &fakePlanSource{plans: map[string]*model.Plan{}}
		repo := NewPlanRepoCacheDecorator(source, newFakeRedis())

		if _, err := repo.FindByID(ctx, nil, "absent"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("list round-trips through the cache", func(t *testing.T) {
		source := &fakePlanSource{plans: map[string]*model.Plan{plan.ID: plan}}
		repo := NewPlanRepoCacheDecorator(source, newFakeRedis())

		for i := 0; i < 2; i++ {
			plans, err := repo.List(ctx, nil)
			if err != nil {
				t.Fatalf("list %d: %v", i, err)
			}
			if len(plans) != 1 || plans[0].ID != plan.ID {
				t.Errorf("list %d: unexpected result %+v", i, plans)
			}
		}
		if source.calls != 1 {
			t.Errorf("expected one source hit, got %d", source.calls)
		}
	})
}
