// Package resilience centralizes the retry/backoff policy consumed by the
// LLM structuring client and external OCR process invocations. Retryable
// failures are re-attempted with exponential backoff plus jitter; a circuit
// breaker guards each named operation so a dead endpoint fails fast instead
// of burning the whole batch on timeouts.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/awhitfield/invoice-cataloger/internal/common"
)

// Classifier decides whether an error is worth retrying and whether the
// circuit breaker should count it as a failure.
type Classifier func(err error) (retryable, recordFailure bool)

// TransientClassifier retries exactly the transient structuring kinds
// (timeout, service_unavailable) and counts only those against the breaker.
func TransientClassifier(err error) (bool, bool) {
	transient := common.IsTransient(err)
	return transient, transient
}

type Executor struct {
	cfg    Config
	logger *slog.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		cfg:      cfg.normalize(),
		logger:   logger,
		sleep:    sleepCtx,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Execute runs fn under the retry policy and the per-operation breaker.
func (e *Executor) Execute(ctx context.Context, operation string, fn func(context.Context) error, classifier Classifier) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classifier == nil {
		classifier = TransientClassifier
	}

	if !e.cfg.BreakerEnabled {
		return e.executeWithRetry(ctx, op, fn, classifier)
	}

	breaker := e.circuitBreaker(op, classifier)
	_, err := breaker.Execute(func() (any, error) {
		return nil, e.executeWithRetry(ctx, op, fn, classifier)
	})
	return err
}

func (e *Executor) executeWithRetry(ctx context.Context, operation string, fn func(context.Context) error, classifier Classifier) error {
	delay := e.cfg.BaseDelay

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		retryable, _ := classifier(err)
		if !retryable || attempt == e.cfg.MaxAttempts {
			return err
		}

		wait := e.withJitter(delay)
		e.logger.Warn("retry.attempt",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", e.cfg.MaxAttempts,
			"backoff_ms", wait.Milliseconds(),
			"error", err,
		)

		if sleepErr := e.sleep(ctx, wait); sleepErr != nil {
			return err
		}

		delay *= 2
		if delay > e.cfg.MaxDelay {
			delay = e.cfg.MaxDelay
		}
	}

	return nil
}

// withJitter spreads the delay by up to +Jitter fraction so concurrent
// workers retrying against the same endpoint do not stampede in lockstep.
// Jitter only ever adds, keeping successive intervals strictly increasing.
func (e *Executor) withJitter(d time.Duration) time.Duration {
	if e.cfg.Jitter <= 0 {
		return d
	}
	extra := time.Duration(rand.Float64() * e.cfg.Jitter * float64(d))
	return d + extra
}

func (e *Executor) circuitBreaker(operation string, classifier Classifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[operation]; ok {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:        operation,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			_, record := classifier(err)
			return !record
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			e.logger.Warn("breaker.state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	}

	breaker := gobreaker.NewCircuitBreaker[any](settings)
	e.breakers[operation] = breaker
	return breaker
}

// IsCircuitOpen reports whether err came from an open breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
