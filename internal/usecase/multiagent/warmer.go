package multiagent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"docroute/internal/infra/logger"
)

// refreshTimeout bounds a single scheduled reload.
const refreshTimeout = 30 * time.Second

// Refresher is implemented by Registry.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Warmer reloads a registry on a cron schedule so long-running callers do
// not pay the TTL reload on the question path.
type Warmer struct {
	target   Refresher
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// NewWarmer creates a Warmer. schedule is a standard cron expression or a
// descriptor such as "@every 4m".
func NewWarmer(target Refresher, schedule string, log *slog.Logger) (*Warmer, error) {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("warmer: invalid schedule %q: %w", schedule, err)
	}
	w := &Warmer{
		target:   target,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.Component(logger.OrDiscard(log), "warmer"),
	}
	w.cron.Schedule(sched, cron.FuncJob(w.run))
	return w, nil
}

func (w *Warmer) run() {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if ctx == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	start := time.Now()
	if err := w.target.Refresh(ctx); err != nil {
		w.logger.Warn("scheduled registry refresh failed", "error", err, "duration", time.Since(start))
		return
	}
	w.logger.Debug("scheduled registry refresh completed", "duration", time.Since(start))
}

// Start begins running the schedule. Calling Start twice is a no-op.
func (w *Warmer) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.cron.Start()
	w.started = true
	w.logger.Info("registry warmer started", "schedule", w.schedule)
}

// Stop cancels the schedule and waits for a running refresh to finish.
func (w *Warmer) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.cancel()
	w.started = false
	w.mu.Unlock()

	<-w.cron.Stop().Done()
}
