package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BatchRunner is the unit of work the scheduler triggers.
type BatchRunner interface {
	ProcessBatch(ctx context.Context) (Summary, error)
}

// StartScheduler runs one batch immediately and then one per interval until
// ctx is cancelled. Batches never overlap within the process; overlap with
// other processes is resolved by the queue's claim leases. Each batch is
// bounded by timeout, which should not exceed the claim lease.
func StartScheduler(
	ctx context.Context,
	wg *sync.WaitGroup,
	interval time.Duration,
	timeout time.Duration,
	runner BatchRunner,
	logger *zap.Logger,
) {

	wg.Add(1)

	go func() {
		defer wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		logger.Info("queue scheduler started", zap.Duration("interval", interval))

		runBatch(ctx, timeout, runner, logger)

		for {
			select {

			case <-ctx.Done():
				logger.Info("queue scheduler shutting down")
				return

			case <-ticker.C:
				runBatch(ctx, timeout, runner, logger)
			}
		}
	}()
}

func runBatch(ctx context.Context, timeout time.Duration, runner BatchRunner, logger *zap.Logger) {
	batchCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		batchCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	summary, err := runner.ProcessBatch(batchCtx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("email batch failed", zap.Error(err))
		return
	}

	if summary.Processed+summary.Failed > 0 {
		logger.Info("scheduled email batch complete",
			zap.Int("processed", summary.Processed),
			zap.Int("failed", summary.Failed),
		)
	}
}
