// Package failures tracks files that could not be processed, across runs.
// Each fingerprint carries an attempt count and a retry schedule; once the
// attempt cap is reached the file is EXHAUSTED and skipped until an operator
// intervenes.
package failures

import (
	"context"
	"log/slog"
	"time"

	"github.com/awhitfield/invoice-cataloger/constants"
	"github.com/awhitfield/invoice-cataloger/internal/common"
)

// Record is the tracked failure state for one fingerprint.
type Record struct {
	Fingerprint string
	SourcePath  string
	Stage       constants.Stage
	Kind        common.ErrorKind
	Message     string

	Attempts int
	State    constants.FailureState

	FirstFailedAt time.Time
	LastFailedAt  time.Time
	NextRetryAt   time.Time
}

// RetryDue reports whether a scheduled retry is due at now.
func (r *Record) RetryDue(now time.Time) bool {
	return r.State == constants.FailureRetryScheduled && !now.Before(r.NextRetryAt)
}

// store is the persistence seam shared by the memory and sqlite backends.
// The state machine itself lives in Tracker so both backends transition
// identically.
type store interface {
	get(ctx context.Context, fingerprint string) (*Record, error)
	upsert(ctx context.Context, rec Record) error
	all(ctx context.Context) ([]Record, error)
	close() error
}

// Tracker applies the failure state machine over a store.
type Tracker struct {
	store       store
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger

	// now is swapped out in tests
	now func() time.Time
}

func NewTracker(s store, maxAttempts int, baseDelay time.Duration, logger *slog.Logger) *Tracker {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: s, maxAttempts: maxAttempts, baseDelay: baseDelay, logger: logger, now: time.Now}
}

// NewMemoryTracker is the no-persistence variant used in tests and when no
// database path is configured.
func NewMemoryTracker(maxAttempts int, baseDelay time.Duration, logger *slog.Logger) *Tracker {
	return NewTracker(newMemoryStore(), maxAttempts, baseDelay, logger)
}

// Lookup returns the failure record for a fingerprint, or nil when the
// fingerprint has never failed. Callers gate on the record's state: exhausted
// fingerprints are never attempted, scheduled ones only once RetryDue.
func (t *Tracker) Lookup(ctx context.Context, fingerprint string) (*Record, error) {
	return t.store.get(ctx, fingerprint)
}

// RecordFailure registers a failed attempt, scheduling a retry with doubled
// delay per attempt or marking the fingerprint exhausted at the cap.
func (t *Tracker) RecordFailure(ctx context.Context, fingerprint, sourcePath string, cause error) (Record, error) {
	stage, kind := common.ClassifyError(cause)
	now := t.now().UTC()

	rec, err := t.store.get(ctx, fingerprint)
	if err != nil {
		return Record{}, err
	}
	if rec == nil || rec.State == constants.FailureResolved {
		rec = &Record{Fingerprint: fingerprint, FirstFailedAt: now}
	}

	rec.SourcePath = sourcePath
	rec.Stage = stage
	rec.Kind = kind
	rec.Message = cause.Error()
	rec.Attempts++
	rec.LastFailedAt = now

	if rec.Attempts >= t.maxAttempts {
		rec.State = constants.FailureExhausted
		rec.NextRetryAt = time.Time{}
		t.logger.Warn("failures.exhausted",
			"fingerprint", fingerprint,
			"path", sourcePath,
			"attempts", rec.Attempts,
			"stage", stage,
			"kind", kind,
		)
	} else {
		rec.State = constants.FailureRetryScheduled
		rec.NextRetryAt = now.Add(t.retryDelay(rec.Attempts))
		t.logger.Info("failures.retry_scheduled",
			"fingerprint", fingerprint,
			"attempts", rec.Attempts,
			"next_retry_at", rec.NextRetryAt,
			"kind", kind,
		)
	}

	if err := t.store.upsert(ctx, *rec); err != nil {
		return Record{}, err
	}
	return *rec, nil
}

// Resolve marks a previously failed fingerprint as recovered. A fingerprint
// with no failure history is a no-op.
func (t *Tracker) Resolve(ctx context.Context, fingerprint string) error {
	rec, err := t.store.get(ctx, fingerprint)
	if err != nil {
		return err
	}
	if rec == nil || rec.State == constants.FailureResolved {
		return nil
	}
	rec.State = constants.FailureResolved
	rec.NextRetryAt = time.Time{}
	return t.store.upsert(ctx, *rec)
}

// Exhausted lists fingerprints that hit the attempt cap.
func (t *Tracker) Exhausted(ctx context.Context) ([]Record, error) {
	return t.filtered(ctx, constants.FailureExhausted)
}

// Outstanding lists fingerprints still awaiting a successful run.
func (t *Tracker) Outstanding(ctx context.Context) ([]Record, error) {
	all, err := t.store.all(ctx)
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, rec := range all {
		if rec.State != constants.FailureResolved {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (t *Tracker) filtered(ctx context.Context, state constants.FailureState) ([]Record, error) {
	all, err := t.store.all(ctx)
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, rec := range all {
		if rec.State == state {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (t *Tracker) Close() error { return t.store.close() }

// retryDelay doubles per attempt: base, 2*base, 4*base, ...
func (t *Tracker) retryDelay(attempts int) time.Duration {
	delay := t.baseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
	}
	return delay
}
