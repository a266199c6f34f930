package resilience

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awhitfield/invoice-cataloger/constants"
	"github.com/awhitfield/invoice-cataloger/internal/common"
)

func transientErr() error {
	return common.NewStageError(constants.StageStructuring, common.KindServiceUnavailable, fmt.Errorf("down"))
}

func terminalErr() error {
	return common.NewStageError(constants.StageStructuring, common.KindInvalidJSON, fmt.Errorf("garbage"))
}

func newTestExecutor(cfg Config) (*Executor, *[]time.Duration) {
	e := NewExecutor(cfg, nil)
	var sleeps []time.Duration
	e.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return e, &sleeps
}

func TestExecutorRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("transient error retried until success", func(t *testing.T) {
		e, sleeps := newTestExecutor(Config{MaxAttempts: 4, BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second})

		calls := 0
		err := e.Execute(ctx, "op", func(context.Context) error {
			calls++
			if calls < 3 {
				return transientErr()
			}
			return nil
		}, TransientClassifier)

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Len(t, *sleeps, 2)
	})

	t.Run("backoff intervals strictly increase and cap at MaxDelay", func(t *testing.T) {
		e, sleeps := newTestExecutor(Config{
			MaxAttempts: 5,
			BaseDelay:   10 * time.Millisecond,
			MaxDelay:    40 * time.Millisecond,
			Jitter:      0.5,
		})

		_ = e.Execute(ctx, "op", func(context.Context) error { return transientErr() }, TransientClassifier)

		require.Len(t, *sleeps, 4)
		for i, d := range *sleeps {
			base := 10 * time.Millisecond << i
			if base > 40*time.Millisecond {
				base = 40 * time.Millisecond
			}
			assert.GreaterOrEqual(t, d, base, "sleep %d below its base delay", i)
			assert.LessOrEqual(t, d, base+base/2, "sleep %d exceeds base plus jitter", i)
		}
		for i := 1; i < 3; i++ {
			assert.Greater(t, (*sleeps)[i], (*sleeps)[i-1], "pre-cap intervals must strictly increase")
		}
	})

	t.Run("terminal error never retried", func(t *testing.T) {
		e, sleeps := newTestExecutor(Config{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: time.Second})

		calls := 0
		err := e.Execute(ctx, "op", func(context.Context) error {
			calls++
			return terminalErr()
		}, TransientClassifier)

		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.Empty(t, *sleeps)
	})

	t.Run("attempt cap returns the last error", func(t *testing.T) {
		e, _ := newTestExecutor(Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Second})

		calls := 0
		err := e.Execute(ctx, "op", func(context.Context) error {
			calls++
			return transientErr()
		}, TransientClassifier)

		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.True(t, common.IsTransient(err))
	})

	t.Run("canceled context stops retrying", func(t *testing.T) {
		e := NewExecutor(Config{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: time.Second}, nil)

		cancelCtx, cancel := context.WithCancel(ctx)
		calls := 0
		err := e.Execute(cancelCtx, "op", func(context.Context) error {
			calls++
			cancel()
			return transientErr()
		}, TransientClassifier)

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestExecutorBreaker(t *testing.T) {
	ctx := context.Background()

	cfg := Config{
		MaxAttempts:             1,
		BaseDelay:               time.Millisecond,
		MaxDelay:                time.Second,
		BreakerEnabled:          true,
		BreakerMinRequests:      3,
		BreakerFailureRatio:     0.6,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	}
	e, _ := newTestExecutor(cfg)

	fail := func(context.Context) error { return transientErr() }
	for i := 0; i < 3; i++ {
		_ = e.Execute(ctx, "llm", fail, TransientClassifier)
	}

	err := e.Execute(ctx, "llm", fail, TransientClassifier)
	require.Error(t, err)
	assert.True(t, IsCircuitOpen(err), "breaker should be open after repeated transient failures")

	t.Run("operations are isolated", func(t *testing.T) {
		err := e.Execute(ctx, "ocr", func(context.Context) error { return nil }, TransientClassifier)
		assert.NoError(t, err)
	})
}
