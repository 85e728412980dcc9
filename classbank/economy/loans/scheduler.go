package loans

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/teachertools/classbank/classbank/config"
)

// Scheduler drives the monthly collection cycle. Ticks are cheap and safe to
// repeat: each run asks the store only for loans whose last posted period
// differs from the current one, and PostPayment itself is idempotent per
// period, so an hourly cadence converges to exactly one attempt per loan per
// month even across restarts.
type Scheduler struct {
	engine  *Engine
	workers int64
	now     func() time.Time
}

func NewScheduler(engine *Engine) *Scheduler {
	return &Scheduler{
		engine:  engine,
		workers: config.LoanSchedulerWorkers,
		now:     time.Now,
	}
}

// WithClock overrides the scheduler clock. Used by tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	s.engine.WithClock(now)
	return s
}

// RunOnce processes every due loan for the current period with a bounded
// worker pool. Per-loan failures are logged and skipped so one bad loan
// cannot stall the rest of the class.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, config.SchedulerTimeout)
	defer cancel()

	periodKey := PeriodKey(s.now())
	due, err := s.engine.loans.ListDue(ctx, periodKey)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	slog.Info("Loan collection tick",
		slog.String("type", "sys"),
		slog.String("period", periodKey),
		slog.Int("due", len(due)))

	sem := semaphore.NewWeighted(s.workers)
	g, gctx := errgroup.WithContext(ctx)
	for _, loan := range due {
		loan := loan
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			if _, err := s.engine.PostPayment(gctx, loan.ID, periodKey); err != nil {
				slog.Error("Loan collection failed",
					slog.String("type", "op"),
					slog.Int64("loan_id", loan.ID),
					slog.String("period", periodKey),
					slog.Any("error", err))
			}
			return nil
		})
	}
	return g.Wait()
}

// Start runs the collection loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(config.LoanTickInterval)
	defer ticker.Stop()

	if err := s.RunOnce(ctx); err != nil {
		slog.Error("Loan scheduler run failed",
			slog.String("type", "sys"),
			slog.Any("error", err))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				slog.Error("Loan scheduler run failed",
					slog.String("type", "sys"),
					slog.Any("error", err))
			}
		}
	}
}
