package grievance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grievancenet/backend/internal/domain/grievance"
	"github.com/grievancenet/backend/internal/domain/shared"
	"github.com/grievancenet/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// abandonedReason is recorded on pending grievances the relay never reported on
const abandonedReason = "delivery outcome unknown, abandoned by reconciler"

// ReconcilerConfig holds configuration for the Reconciler
type ReconcilerConfig struct {
	// Interval is how often a pass runs
	Interval time.Duration
	// After is how long a grievance may stay pending before it is abandoned
	After time.Duration
	// Batch caps the pending grievances handled per pass
	Batch int
}

// DefaultReconcilerConfig returns default reconciler configuration
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Interval: time.Minute,
		After:    10 * time.Minute,
		Batch:    100,
	}
}

// ReconcileReport summarises one pass
type ReconcileReport struct {
	Promoted  int
	Abandoned int
	Retrying  int
}

// Reconciler resolves grievances left in the pending delivery state.
//
// A grievance whose mail was relayed but whose promotion could not be saved
// is queued with SchedulePromotion and promoted on the next pass. Anything
// else still pending after the configured age is marked failed; its mail is
// never sent again, so a citizen can retry under the same request id.
//
// The queue is not persisted. A restart before the next pass leaves a relayed
// grievance to be abandoned like any other stale one.
type Reconciler struct {
	config    ReconcilerConfig
	repo      grievance.Repository
	publisher shared.EventPublisher
	metrics   *telemetry.GrievanceMetrics
	logger    *zap.Logger
	now       func() time.Time

	queueMu sync.Mutex
	queue   map[uuid.UUID]struct{}

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

var _ PromotionScheduler = (*Reconciler)(nil)

// NewReconciler creates a new Reconciler
func NewReconciler(
	config ReconcilerConfig,
	repo grievance.Repository,
	publisher shared.EventPublisher,
	logger *zap.Logger,
) *Reconciler {
	defaults := DefaultReconcilerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.After <= 0 {
		config.After = defaults.After
	}
	if config.Batch <= 0 {
		config.Batch = defaults.Batch
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		config:    config,
		repo:      repo,
		publisher: publisher,
		logger:    logger.Named("reconciler"),
		now:       time.Now,
		queue:     make(map[uuid.UUID]struct{}),
	}
}

// SetMetrics records promoted and abandoned counts on m
func (r *Reconciler) SetMetrics(m *telemetry.GrievanceMetrics) {
	r.metrics = m
}

// SchedulePromotion queues a relayed grievance for promotion
func (r *Reconciler) SchedulePromotion(id uuid.UUID) {
	r.queueMu.Lock()
	r.queue[id] = struct{}{}
	r.queueMu.Unlock()
}

// Queued returns the number of promotions waiting for the next pass
func (r *Reconciler) Queued() int {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()
	return len(r.queue)
}

// Start starts the reconcile loop
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = true
	r.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.runLoop(ctx)

	r.logger.Info("Reconciler started",
		zap.Duration("interval", r.config.Interval),
		zap.Duration("reconcile_after", r.config.After),
		zap.Int("batch", r.config.Batch),
	)
	return nil
}

// Stop stops the reconcile loop and waits for a running pass to finish
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Reconciler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reconciler) runLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report := r.RunOnce(ctx)
			if report.Promoted+report.Abandoned > 0 {
				r.logger.Info("Reconcile pass finished",
					zap.Int("promoted", report.Promoted),
					zap.Int("abandoned", report.Abandoned),
					zap.Int("retrying", report.Retrying),
				)
			}
		}
	}
}

// RunOnce runs a single pass: queued promotions first, then stale pending
// grievances.
func (r *Reconciler) RunOnce(ctx context.Context) ReconcileReport {
	report := r.runOnce(ctx)
	r.metrics.RecordReconciled(ctx, telemetry.OutcomePromoted, report.Promoted)
	r.metrics.RecordReconciled(ctx, telemetry.OutcomeAbandoned, report.Abandoned)
	return report
}

func (r *Reconciler) runOnce(ctx context.Context) ReconcileReport {
	var report ReconcileReport

	for _, id := range r.drainQueue() {
		switch err := r.promote(ctx, id); {
		case err == nil:
			report.Promoted++
		case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrInvalidState):
			// Gone or already resolved.
		default:
			r.logger.Warn("Promotion retry failed", zap.String("grievance_id", id.String()), zap.Error(err))
			r.SchedulePromotion(id)
			report.Retrying++
		}
	}

	cutoff := r.now().Add(-r.config.After)
	stale, err := r.repo.FindPendingBefore(ctx, cutoff, r.config.Batch)
	if err != nil {
		r.logger.Error("Failed to load pending grievances", zap.Error(err))
		return report
	}
	for i := range stale {
		g := &stale[i]
		if r.isQueued(g.ID) {
			continue
		}
		if err := g.MarkDeliveryFailed(abandonedReason); err != nil {
			continue
		}
		if err := r.repo.Save(ctx, g); err != nil {
			r.logger.Warn("Failed to abandon pending grievance",
				zap.String("grievance_id", g.ID.String()), zap.Error(err))
			continue
		}
		r.logger.Warn("Abandoned pending grievance",
			zap.String("grievance_id", g.ID.String()),
			zap.Time("created_at", g.CreatedAt),
		)
		report.Abandoned++
	}
	return report
}

func (r *Reconciler) promote(ctx context.Context, id uuid.UUID) error {
	g, err := r.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := g.MarkDelivered(); err != nil {
		return err
	}
	if err := r.repo.Save(ctx, g); err != nil {
		return err
	}
	log := r.logger.With(zap.String("grievance_id", id.String()))
	log.Info("Promoted relayed grievance")
	publishEvents(ctx, r.publisher, g, log)
	return nil
}

func (r *Reconciler) drainQueue() []uuid.UUID {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()
	ids := make([]uuid.UUID, 0, len(r.queue))
	for id := range r.queue {
		ids = append(ids, id)
	}
	r.queue = make(map[uuid.UUID]struct{})
	return ids
}

func (r *Reconciler) isQueued(id uuid.UUID) bool {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()
	_, ok := r.queue[id]
	return ok
}
