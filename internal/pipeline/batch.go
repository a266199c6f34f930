package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/awhitfield/invoice-cataloger/internal/record"
)

// Summary aggregates the outcomes of one batch run.
type Summary struct {
	Total      int
	Cataloged  int
	CachedSkip int
	RetryWait  int
	Failed     int
	Exhausted  int

	// ExhaustedPaths enumerates the files skipped at the attempt cap so the
	// run report can surface them for manual intervention.
	ExhaustedPaths []string

	Duration time.Duration
}

// Batch fans file jobs out over a bounded worker pool. Workers stop picking
// up new files once the context is canceled; the file in flight finishes.
type Batch struct {
	proc    *Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration
}

type Option func(*Batch)

func WithWorkers(n int) Option {
	return func(b *Batch) {
		if n > 0 {
			b.workers = n
		}
	}
}

func WithFileTimeout(d time.Duration) Option {
	return func(b *Batch) {
		if d > 0 {
			b.timeout = d
		}
	}
}

func NewBatch(proc *Processor, logger *slog.Logger, opts ...Option) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Batch{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 5 * time.Minute,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Run processes every document and blocks until all workers drain. Outcomes
// are reported per file via the optional callback as they complete.
func (b *Batch) Run(ctx context.Context, docs []record.SourceDocument, force bool, onOutcome func(Outcome)) Summary {
	start := time.Now()
	jobs := make(chan record.SourceDocument)

	var mu sync.Mutex
	summary := Summary{Total: len(docs)}

	var wg sync.WaitGroup
	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			b.logger.Debug("batch.worker.started", "worker_id", workerID)

			for doc := range jobs {
				fileCtx, cancel := context.WithTimeout(ctx, b.timeout)
				outcome := b.proc.ProcessFile(fileCtx, doc, force)
				cancel()

				mu.Lock()
				switch outcome.Kind {
				case OutcomeCataloged:
					summary.Cataloged++
				case OutcomeCachedSkip:
					summary.CachedSkip++
				case OutcomeRetryWait:
					summary.RetryWait++
				case OutcomeExhausted:
					summary.Exhausted++
					summary.ExhaustedPaths = append(summary.ExhaustedPaths, doc.Path)
				case OutcomeFailed:
					summary.Failed++
				}
				mu.Unlock()

				if onOutcome != nil {
					onOutcome(outcome)
				}
			}

			b.logger.Debug("batch.worker.stopped", "worker_id", workerID)
		}(i + 1)
	}

feed:
	for i, doc := range docs {
		// checked before the send so an abort never feeds another file
		if ctx.Err() != nil {
			b.logger.Warn("batch.aborted", "remaining", len(docs)-i)
			break
		}
		select {
		case <-ctx.Done():
			b.logger.Warn("batch.aborted", "remaining", len(docs)-i)
			break feed
		case jobs <- doc:
		}
	}
	close(jobs)
	wg.Wait()

	summary.Duration = time.Since(start)
	b.logger.Info("batch.done",
		"total", summary.Total,
		"cataloged", summary.Cataloged,
		"cached_skip", summary.CachedSkip,
		"retry_wait", summary.RetryWait,
		"failed", summary.Failed,
		"exhausted", summary.Exhausted,
		"duration_ms", summary.Duration.Milliseconds(),
	)
	return summary
}
