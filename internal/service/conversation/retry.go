package conversation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/zhouzirui/scatty/backend/internal/metrics"
	"github.com/zhouzirui/scatty/backend/internal/service/ai"
)

// Pause blocks for d or until ctx is done.
type Pause func(ctx context.Context, d time.Duration) error

// Sleep is the production Pause.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// generate runs the generator with a per-attempt deadline and retries retryable failures.
func (o *Orchestrator) generate(ctx context.Context, req ai.Request) (ai.Reply, error) {
	start := time.Now()
	attempts := max(o.cfg.MaxAttempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var reply ai.Reply
		reply, err = o.attempt(ctx, req)
		if err == nil {
			metrics.GenerationLatency.WithLabelValues("success").Observe(time.Since(start).Seconds())
			return reply, nil
		}

		metrics.GenerationFailures.WithLabelValues(failureReason(err)).Inc()
		if ctx.Err() != nil || !ai.IsRetryable(err) || attempt == attempts {
			break
		}

		wait := o.backoff(attempt)
		o.logger.Warn().
			Err(err).
			Str("session", req.SessionID).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("generation attempt failed, retrying")
		if pauseErr := o.pause(ctx, wait); pauseErr != nil {
			break
		}
	}

	metrics.GenerationLatency.WithLabelValues("failure").Observe(time.Since(start).Seconds())
	return ai.Reply{}, err
}

func (o *Orchestrator) attempt(ctx context.Context, req ai.Request) (ai.Reply, error) {
	attemptCtx := ctx
	cancel := func() {}
	if o.cfg.GenerationTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, o.cfg.GenerationTimeout)
	}
	defer cancel()

	reply, err := o.generator.Generate(attemptCtx, req)
	if err == nil {
		return reply, nil
	}

	timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	switch {
	case timedOut && !errors.Is(err, ai.ErrGenerationTimeout):
		return ai.Reply{}, ai.Fail("generator", fmt.Errorf("%w: %v", context.DeadlineExceeded, err), true)
	case !errors.Is(err, ai.ErrGenerationFailure):
		return ai.Reply{}, ai.Fail("generator", err, false)
	default:
		return ai.Reply{}, err
	}
}

// backoff returns a full-jitter delay for the given 1-based attempt.
func (o *Orchestrator) backoff(attempt int) time.Duration {
	base := o.cfg.RetryBackoff
	if base <= 0 {
		return 0
	}
	ceiling := o.cfg.RetryMaxBackoff
	if ceiling <= 0 {
		ceiling = base
	}

	d := base
	for i := 1; i < attempt && d < ceiling; i++ {
		d *= 2
	}
	d = min(d, ceiling)
	return time.Duration(o.jitter(int64(d) + 1))
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ai.ErrGenerationTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case ai.IsRetryable(err):
		return "transient"
	default:
		return "permanent"
	}
}

func defaultJitter(n int64) int64 {
	return rand.Int64N(n)
}
