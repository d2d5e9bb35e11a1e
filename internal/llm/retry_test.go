package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPolicy(slept *[]time.Duration) Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Sleep: func(d time.Duration) {
			*slept = append(*slept, d)
		},
	}
}

func TestRetryQuotaNeverRetried(t *testing.T) {
	var slept []time.Duration
	calls := 0
	_, attempts, err := CallWithRetry(context.Background(), zap.NewNop(), func(context.Context) (*Response, error) {
		calls++
		return nil, &CallError{Kind: KindQuota, Message: "quota exceeded for project"}
	}, testPolicy(&slept))

	require.Error(t, err)
	assert.Equal(t, 1, calls, "quota failures must not be retried")
	assert.Len(t, attempts, 1)
	assert.Empty(t, slept)
	assert.Contains(t, err.Error(), "plan and billing", "quota errors carry remediation guidance")
	assert.Equal(t, KindQuota, KindOf(err))
}

func TestRetryRateLimitedBacksOffThenSucceeds(t *testing.T) {
	var slept []time.Duration
	calls := 0
	resp, attempts, err := CallWithRetry(context.Background(), zap.NewNop(), func(context.Context) (*Response, error) {
		calls++
		if calls < 3 {
			return nil, &CallError{Kind: KindRateLimited, Message: "429"}
		}
		return &Response{Text: "ok"}, nil
	}, testPolicy(&slept))

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	require.Len(t, attempts, 3)

	// delay(n) = base * 2^n for retry n (0-based): 1s before attempt 2,
	// 2s before attempt 3.
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, slept)
	assert.Equal(t, time.Duration(0), attempts[0].Delay)
	assert.Equal(t, time.Second, attempts[1].Delay)
	assert.Equal(t, 2*time.Second, attempts[2].Delay)
}

func TestRetryRateLimitedExhausted(t *testing.T) {
	var slept []time.Duration
	calls := 0
	_, attempts, err := CallWithRetry(context.Background(), zap.NewNop(), func(context.Context) (*Response, error) {
		calls++
		return nil, &CallError{Kind: KindRateLimited, Message: "429"}
	}, testPolicy(&slept))

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, attempts, 3)
	assert.Equal(t, KindRateLimited, KindOf(err))
}

func TestRetryOtherFailsImmediately(t *testing.T) {
	var slept []time.Duration
	for _, kind := range []Kind{KindRefused, KindTruncated, KindOther} {
		calls := 0
		_, _, err := CallWithRetry(context.Background(), zap.NewNop(), func(context.Context) (*Response, error) {
			calls++
			return nil, &CallError{Kind: kind, Message: "boom"}
		}, testPolicy(&slept))
		require.Error(t, err)
		assert.Equal(t, 1, calls, "kind %s must not be retried", kind)
	}
	assert.Empty(t, slept)
}

func TestRetryPlainErrorNotRetried(t *testing.T) {
	var slept []time.Duration
	calls := 0
	_, _, err := CallWithRetry(context.Background(), zap.NewNop(), func(context.Context) (*Response, error) {
		calls++
		return nil, errors.New("unclassified network mess")
	}, testPolicy(&slept))
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var slept []time.Duration
	p := testPolicy(&slept)
	p.Sleep = func(time.Duration) { cancel() }

	_, _, err := CallWithRetry(ctx, zap.NewNop(), func(context.Context) (*Response, error) {
		return nil, &CallError{Kind: KindRateLimited, Message: "429"}
	}, p)
	require.ErrorIs(t, err, context.Canceled)
}
