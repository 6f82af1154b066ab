package mdc

import (
	"context"
	"errors"

	"github.com/rodoHasArrived/Market-Data-Collector-sub007/resilience"
)

// DefaultSinkRetryPolicy returns a resilience.RetryPolicy tuned for sink
// flush attempts: context cancellation and a closed orchestrator are never
// retryable, everything else (disk full, network blip, transient sink
// error) is. Pass the result to WithRetryPolicy.
func DefaultSinkRetryPolicy() *resilience.RetryPolicy {
	p := resilience.DefaultRetryPolicy()
	p.RetryableErrors = sinkFlushRetryable
	return p
}

func sinkFlushRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrOrchestratorClosed) {
		return false
	}
	return true
}
