// Package reconciler sweeps the automation ledger for attempts that stopped
// making progress and re-drives failed ones within the retry budget.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	auditdomain "github.com/smallbiznis/streamgate/internal/audit/domain"
	"github.com/smallbiznis/streamgate/internal/automation/domain"
	"github.com/smallbiznis/streamgate/internal/clock"
	"github.com/smallbiznis/streamgate/internal/config"
	"github.com/smallbiznis/streamgate/internal/lock"
	obscontext "github.com/smallbiznis/streamgate/internal/observability/context"
	"github.com/smallbiznis/streamgate/internal/observability/metrics"
	"github.com/smallbiznis/streamgate/internal/providers/slack"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const lockKey = "automation:reconcile"

const (
	defaultInterval    = time.Minute
	defaultStaleAfter  = 5 * time.Minute
	defaultRetryAfter  = 2 * time.Minute
	defaultMaxAttempts = 3
	defaultBatchSize   = 50
	defaultSagaTimeout = 30 * time.Second
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Cfg     config.Config
	Repo    domain.Repository
	Service domain.Service
	Locker  lock.Locker
	Audit   auditdomain.Service
	Alerts  slack.Provider `optional:"true"`

	SagaMetrics *metrics.SagaMetrics `optional:"true"`
}

type Reconciler struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	cfg     config.ReconcileConfig
	lockTTL time.Duration
	repo    domain.Repository
	service domain.Service
	locker  lock.Locker
	audit   auditdomain.Service
	alerts  slack.Provider
	channel string
	metrics *metrics.SagaMetrics
}

// Report summarizes one sweep.
type Report struct {
	Skipped bool
	Stalled int
	Retried int
	Failed  int
}

func New(p Params) *Reconciler {
	cfg := withDefaults(p.Cfg.Reconcile)
	return &Reconciler{
		db:      p.DB,
		log:     p.Log.Named("automation.reconciler"),
		clock:   p.Clock,
		cfg:     cfg,
		lockTTL: sweepLockTTL(cfg, p.Cfg.Automation.SagaTimeout),
		repo:    p.Repo,
		service: p.Service,
		locker:  p.Locker,
		audit:   p.Audit,
		alerts:  p.Alerts,
		channel: p.Cfg.Alerts.SlackChannel,
		metrics: p.SagaMetrics,
	}
}

func withDefaults(cfg config.ReconcileConfig) config.ReconcileConfig {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	if cfg.RetryAfter < 0 {
		cfg.RetryAfter = defaultRetryAfter
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return cfg
}

// sweepLockTTL covers a full batch of retries running back to back, so the
// lock cannot lapse while this instance is still sweeping.
func sweepLockTTL(cfg config.ReconcileConfig, sagaTimeout time.Duration) time.Duration {
	if sagaTimeout <= 0 {
		sagaTimeout = defaultSagaTimeout
	}
	ttl := cfg.Interval + time.Duration(cfg.BatchSize)*sagaTimeout
	if ttl < cfg.Interval {
		return cfg.Interval
	}
	return ttl
}

// Register starts the sweep loop with the application lifecycle.
func Register(lc fx.Lifecycle, cfg config.Config, r *Reconciler) {
	if !cfg.Reconcile.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})

			go func() {
				defer close(done)
				r.RunForever(ctx)
			}()

			lc.Append(fx.Hook{
				OnStop: func(stopCtx context.Context) error {
					cancel()
					select {
					case <-done:
					case <-stopCtx.Done():
					}
					return nil
				},
			})
			return nil
		},
	})
}

func (r *Reconciler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.log.Warn("reconcile sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep fails stalled processing records, then retries failed records that
// still have attempts left. Only one instance sweeps at a time.
func (r *Reconciler) Sweep(ctx context.Context) (Report, error) {
	token, ok, err := r.locker.TryLock(ctx, lockKey, r.lockTTL)
	if err != nil {
		return Report{}, fmt.Errorf("acquire reconcile lock: %w", err)
	}
	if !ok {
		r.metrics.IncReconcile(metrics.ReconcileActionSkipped, 1)
		return Report{Skipped: true}, nil
	}
	defer func() {
		if err := r.locker.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
			r.log.Warn("release reconcile lock", zap.Error(err))
		}
	}()

	started := time.Now()
	ctx = obscontext.WithActor(ctx, string(auditdomain.ActorTypeSystem), "reconciler")

	var report Report
	stalled, err := r.failStalled(ctx)
	report.Stalled = stalled
	if err != nil {
		return report, err
	}

	report.Retried, report.Failed, err = r.retryFailed(ctx)
	r.metrics.ObserveReconcile(time.Since(started))
	if report.Stalled+report.Retried+report.Failed > 0 {
		r.log.Info("reconcile sweep finished",
			zap.Int("stalled", report.Stalled),
			zap.Int("retried", report.Retried),
			zap.Int("failed", report.Failed),
		)
	}
	return report, err
}

func (r *Reconciler) failStalled(ctx context.Context) (int, error) {
	now := r.clock.Now()
	cutoff := now.Add(-r.cfg.StaleAfter)
	records, err := r.repo.ListStale(ctx, r.db, cutoff, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale automations: %w", err)
	}

	stalled := 0
	for _, record := range records {
		message := fmt.Sprintf("%s: stalled, no progress since %s", record.Step, record.UpdatedAt.UTC().Format(time.RFC3339))
		ok, err := r.repo.MarkStalled(ctx, r.db, record.ID, cutoff, message, now)
		if err != nil {
			r.log.Error("mark automation stalled", zap.String("automation_id", record.ID.String()), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		stalled++
		r.metrics.IncTransition(string(domain.StatusProcessing), string(domain.StatusFailed))
		r.auditStalled(ctx, record, message)
		r.alert(ctx, fmt.Sprintf("automation %s for payment %s stalled at %s", record.ID, record.PaymentID, record.Step))
		r.log.Warn("automation stalled",
			zap.String("automation_id", record.ID.String()),
			zap.String("payment_id", record.PaymentID),
			zap.String("step", string(record.Step)),
		)
	}
	r.metrics.IncReconcile(metrics.ReconcileActionStalled, stalled)
	return stalled, nil
}

func (r *Reconciler) retryFailed(ctx context.Context) (int, int, error) {
	cutoff := r.clock.Now().Add(-r.cfg.RetryAfter)
	records, err := r.repo.ListRetryable(ctx, r.db, cutoff, r.cfg.MaxAttempts, r.cfg.BatchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("list retryable automations: %w", err)
	}

	retried, failed := 0, 0
	for _, record := range records {
		if ctx.Err() != nil {
			return retried, failed, ctx.Err()
		}
		res, err := r.service.RetryAutomation(ctx, record.ID.String())
		switch {
		case err != nil:
			failed++
			r.log.Error("retry automation", zap.String("automation_id", record.ID.String()), zap.Error(err))
		case res.Success:
			retried++
		case res.Busy:
			// Another worker owns the record.
		default:
			failed++
			if record.Attempts+1 >= r.cfg.MaxAttempts {
				r.alert(ctx, fmt.Sprintf("automation %s for payment %s failed after %d attempts: %s",
					record.ID, record.PaymentID, record.Attempts+1, res.Error))
			}
		}
	}
	r.metrics.IncReconcile(metrics.ReconcileActionRetried, retried)
	r.metrics.IncReconcile(metrics.ReconcileActionFailed, failed)
	return retried, failed, nil
}

// alert notifies operators of records that need a human. Delivery failures
// are logged only.
func (r *Reconciler) alert(ctx context.Context, message string) {
	if r.alerts == nil {
		return
	}
	if err := r.alerts.PostMessage(context.WithoutCancel(ctx), r.channel, message); err != nil {
		r.log.Warn("operator alert failed", zap.Error(err))
	}
}

func (r *Reconciler) auditStalled(ctx context.Context, record domain.AutomationRecord, message string) {
	if r.audit == nil {
		return
	}
	target := record.ID.String()
	err := r.audit.AuditLog(ctx, string(auditdomain.ActorTypeSystem), nil, auditdomain.ActionAutomationStalled, auditdomain.TargetTypeAutomation, &target, map[string]any{
		"payment_id": record.PaymentID,
		"step":       string(record.Step),
		"attempts":   record.Attempts,
		"error":      message,
	})
	if err != nil {
		r.log.Warn("audit write failed", zap.String("action", auditdomain.ActionAutomationStalled), zap.Error(err))
	}
}
