package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/ayo6706/retail-ledger/internal/observability"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reconciler is the job the worker schedules.
type Reconciler interface {
	Run(ctx context.Context) error
}

// ReconciliationWorker runs ledger reconciliation on a cron schedule.
type ReconciliationWorker struct {
	svc      Reconciler
	schedule string
	timeout  time.Duration
}

// NewReconciliationWorker constructs a worker with an hourly schedule.
func NewReconciliationWorker(svc Reconciler) *ReconciliationWorker {
	return &ReconciliationWorker{
		svc:      svc,
		schedule: "@every 1h",
		timeout:  5 * time.Minute,
	}
}

// WithSchedule sets the cron spec, e.g. "0 3 * * *" or "@every 30m".
func (w *ReconciliationWorker) WithSchedule(spec string) *ReconciliationWorker {
	if spec != "" {
		w.schedule = spec
	}
	return w
}

// WithTimeout bounds a single run.
func (w *ReconciliationWorker) WithTimeout(d time.Duration) *ReconciliationWorker {
	if d > 0 {
		w.timeout = d
	}
	return w
}

// Run runs one check immediately, then registers the schedule and returns a
// stop function that waits for an in-flight run.
func (w *ReconciliationWorker) Run(ctx context.Context) (func(), error) {
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})))
	if _, err := c.AddFunc(w.schedule, func() { w.runOnce(ctx) }); err != nil {
		return nil, fmt.Errorf("invalid reconciliation schedule %q: %w", w.schedule, err)
	}

	zap.L().Info("reconciliation worker starting", zap.String("schedule", w.schedule))
	go w.runOnce(ctx)
	c.Start()

	return func() {
		<-c.Stop().Done()
		zap.L().Info("reconciliation worker stopped")
	}, nil
}

func (w *ReconciliationWorker) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	if err := w.svc.Run(runCtx); err != nil {
		observability.IncrementWorkerRun("reconciliation", "failed")
		zap.L().Error("reconciliation run failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return
	}
	observability.IncrementWorkerRun("reconciliation", "success")
	zap.L().Debug("reconciliation run finished", zap.Duration("duration", time.Since(start)))
}

// cronLogger routes cron's own messages to the global zap logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	zap.L().Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	zap.L().Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
