package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StartCleanup periodically garbage-collects expired entries of every limiter.
func StartCleanup(
	ctx context.Context,
	wg *sync.WaitGroup,
	interval time.Duration,
	logger *zap.Logger,
	limiters ...*Limiter,
) {

	wg.Add(1)

	go func() {
		defer wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {

			case <-ctx.Done():
				return

			case <-ticker.C:
				for _, l := range limiters {
					n, err := l.Cleanup(ctx)
					if err != nil {
						logger.Warn("rate limit cleanup failed",
							zap.String("limiter", l.Name()),
							zap.Error(err),
						)
						continue
					}
					if n > 0 {
						logger.Debug("rate limit entries removed",
							zap.String("limiter", l.Name()),
							zap.Int("count", n),
						)
					}
				}
			}
		}
	}()
}
