package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Policy controls the retry wrapper. Sleep is injectable for tests.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Sleep       func(time.Duration)
}

// DefaultPolicy matches the service-wide retry contract.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second}
}

// Attempt records one call attempt for observability.
type Attempt struct {
	Number int
	Delay  time.Duration
	Err    error
}

// CallWithRetry invokes fn, retrying only rate-limited failures with
// exponential backoff (BaseDelay * 2^n before retry n+1). Quota failures
// are never retried and come back wrapped with remediation guidance.
// Refusals, truncations, and unclassified failures propagate immediately.
// Every attempt is returned in order, successes and failures alike.
func CallWithRetry(ctx context.Context, logger *zap.Logger, fn func(context.Context) (*Response, error), p Policy) (*Response, []Attempt, error) {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	attempts := make([]Attempt, 0, p.MaxAttempts)
	var lastErr error

	for i := 0; i < p.MaxAttempts; i++ {
		var delay time.Duration
		if i > 0 {
			delay = p.BaseDelay << uint(i-1)
			sleep(delay)
		}
		if err := ctx.Err(); err != nil {
			return nil, attempts, err
		}

		resp, err := fn(ctx)
		attempts = append(attempts, Attempt{Number: i + 1, Delay: delay, Err: err})
		if err == nil {
			logger.Debug("generation call succeeded",
				zap.Int("attempt", i+1), zap.Duration("delay", delay))
			return resp, attempts, nil
		}

		kind := KindOf(err)
		logger.Warn("generation call failed",
			zap.Int("attempt", i+1),
			zap.Duration("delay", delay),
			zap.String("kind", kind.String()),
			zap.Error(err))

		switch kind {
		case KindQuota:
			return nil, attempts, fmt.Errorf(
				"generation quota exhausted; check the account's plan and billing details before retrying: %w", err)
		case KindRateLimited:
			lastErr = err
			continue
		default:
			return nil, attempts, err
		}
	}

	return nil, attempts, fmt.Errorf("rate limited after %d attempts: %w", p.MaxAttempts, lastErr)
}
