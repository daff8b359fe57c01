package worker

import "time"

const maxBackoffExponent = 20

// RetryPolicy computes how long a failed message waits before its next attempt.
type RetryPolicy struct {
	Base time.Duration
}

// Delay returns 2^retryCount * Base; with the default 5m base that is
// 10m, 20m, 40m for retries 1, 2, 3.
func (p RetryPolicy) Delay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount > maxBackoffExponent {
		retryCount = maxBackoffExponent
	}
	return p.Base << uint(retryCount)
}
