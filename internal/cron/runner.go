package cronrunner

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner schedules maintenance jobs. A job never overlaps with itself.
type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
	timeout time.Duration
}

func New(logger *zap.Logger, baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger:  logger,
		baseCtx: baseCtx,
		timeout: time.Minute,
	}
}

func (r *Runner) Add(name, spec string, job func(context.Context) error) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() { r.run(name, job) })
}

func (r *Runner) run(name string, job func(context.Context) error) {
	ctx, cancel := context.WithTimeout(r.baseCtx, r.timeout)
	defer cancel()
	start := time.Now()
	if err := job(ctx); err != nil {
		r.logger.Warn("cron job failed", zap.String("job", name), zap.Error(err))
		return
	}
	r.logger.Debug("cron job ok", zap.String("job", name), zap.Duration("took", time.Since(start)))
}

func (r *Runner) Start() {
	r.logger.Info("cron started", zap.Int("jobs", len(r.cron.Entries())))
	r.cron.Start()
}

func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("cron stopped")
}
