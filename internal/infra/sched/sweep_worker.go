package sched

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"fitmarket-settlement/internal/usecase"
)

// SweepWorker runs the membership expiry sweep on a cron schedule. The sweep
// itself is idempotent, so an overlapping or repeated run is harmless.
type SweepWorker struct {
	spec        string
	memberships usecase.MembershipUseCase
	log         *zerolog.Logger
	cron        *cron.Cron
}

func NewSweepWorker(spec string, memberships usecase.MembershipUseCase, logger *zerolog.Logger) *SweepWorker {
	if spec == "" {
		spec = "@hourly"
	}
	l := logger.With().Str("component", "SweepWorker").Logger()
	return &SweepWorker{spec: spec, memberships: memberships, log: &l}
}

// Start schedules the sweep and returns immediately. The worker stops when
// ctx is cancelled.
func (w *SweepWorker) Start(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(w.spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		n, err := w.memberships.SweepExpired(runCtx)
		if err != nil {
			w.log.Error().Err(err).Msg("expiry sweep failed")
			return
		}
		if n > 0 {
			w.log.Info().Int("count", n).Msg("expired memberships swept")
		}
	})
	if err != nil {
		return err
	}
	w.cron = c
	c.Start()
	w.log.Info().Str("spec", w.spec).Msg("sweep worker started")

	go func() {
		<-ctx.Done()
		stopCtx := c.Stop()
		<-stopCtx.Done()
		w.log.Info().Msg("sweep worker stopped")
	}()
	return nil
}
