package wallet

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Reconciler finishes credited top-ups whose later steps did not complete.
type Reconciler struct {
	store  Store
	engine *Engine
	grace  time.Duration
	batch  int
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewReconciler only picks up top-ups untouched for at least grace, so in-flight
// settlements are left alone.
func NewReconciler(store Store, engine *Engine, grace time.Duration, batch int, logger *zap.SugaredLogger) *Reconciler {
	if batch <= 0 {
		batch = 50
	}
	return &Reconciler{
		store:  store,
		engine: engine,
		grace:  grace,
		batch:  batch,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run resumes one batch and returns how many top-ups were brought to completion.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	incomplete, err := r.store.ListIncompleteTopUps(ctx, r.now().Add(-r.grace), r.batch)
	if err != nil {
		return 0, fmt.Errorf("list incomplete top-ups: %w", err)
	}

	completed := 0
	for _, topUp := range incomplete {
		if ctx.Err() != nil {
			return completed, ctx.Err()
		}
		result, err := r.engine.Resume(ctx, topUp)
		if err != nil {
			r.logger.Warnw("top-up still incomplete", "order_ref", topUp.OrderRef, "pending", result.Pending, "err", err)
			continue
		}
		completed++
	}
	if len(incomplete) > 0 {
		r.logger.Infow("reconciled top-ups", "scanned", len(incomplete), "completed", completed)
	}
	return completed, nil
}

// RunOnce is the cron entry point.
func (r *Reconciler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := r.Run(ctx); err != nil {
		r.logger.Errorw("top-up reconciliation failed", "err", err)
	}
}
