package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fitmarket-settlement/internal/domain/model"
	"fitmarket-settlement/internal/domain/ports/repository"
	"fitmarket-settlement/internal/infra/metrics"
	red "fitmarket-settlement/internal/infra/redis"
)

var _ repository.PlanRepository = (*planRepoCacheDecorator)(nil)

// planRepoCacheDecorator caches plan lookups. Plans are read-only reference
// data consumed on every renewal and reactivation, so a stale-by-TTL copy is
// acceptable.
type planRepoCacheDecorator struct {
	inner repository.PlanRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewPlanRepoCacheDecorator(inner repository.PlanRepository, cache red.RedisClient) repository.PlanRepository {
	return &planRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   1 * time.Hour,
	}
}

func (d *planRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	key := fmt.Sprintf("plan:%s", id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var plan model.Plan
		if json.Unmarshal([]byte(val), &plan) == nil {
			metrics.IncCacheRequest("plan", "hit")
			return &plan, nil
		}
	}

	// Cache miss or a Redis error: either way, hit the source of truth.
	metrics.IncCacheRequest("plan", "miss")
	plan, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(plan); err == nil {
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return plan, nil
}

func (d *planRepoCacheDecorator) List(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	const key = "plans:all"
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var plans []*model.Plan
		if json.Unmarshal([]byte(val), &plans) == nil {
			metrics.IncCacheRequest("plan", "hit")
			return plans, nil
		}
	}

	metrics.IncCacheRequest("plan", "miss")
	plans, err := d.inner.List(ctx, tx)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(plans); err == nil {
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return plans, nil
}
