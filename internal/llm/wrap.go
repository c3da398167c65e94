package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/quill/internal/metrics"
)

// Instrument bounds every call by timeout (when positive) and records call
// outcome and latency under name.
func Instrument(p Provider, name string, timeout time.Duration) Provider {
	return ProviderFunc(func(ctx context.Context, system, user string) (string, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		start := time.Now()
		out, err := p.Complete(ctx, system, user)
		metrics.CompletionDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

		switch {
		case err == nil:
			metrics.CompletionCalls.WithLabelValues(name, "ok").Inc()
		case errors.Is(err, context.DeadlineExceeded):
			metrics.CompletionCalls.WithLabelValues(name, "timeout").Inc()
		default:
			metrics.CompletionCalls.WithLabelValues(name, "error").Inc()
		}
		return out, err
	})
}

// Fallback tries primary and, on any error other than caller cancellation,
// secondary.
func Fallback(primary, secondary Provider) Provider {
	return ProviderFunc(func(ctx context.Context, system, user string) (string, error) {
		out, err := primary.Complete(ctx, system, user)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		out, err2 := secondary.Complete(ctx, system, user)
		if err2 != nil {
			return "", fmt.Errorf("primary: %v; fallback: %w", err, err2)
		}
		return out, nil
	})
}
