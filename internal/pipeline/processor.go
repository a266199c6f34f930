// Package pipeline orchestrates the full catalog flow for each source file:
// fingerprint, cache check, extraction, structuring, categorization,
// deduction, validation, and the final cache write. Failures at any stage are
// classified and handed to the failure tracker; one bad file never stops the
// batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/awhitfield/invoice-cataloger/constants"
	"github.com/awhitfield/invoice-cataloger/internal/cache"
	"github.com/awhitfield/invoice-cataloger/internal/common"
	"github.com/awhitfield/invoice-cataloger/internal/deduction"
	"github.com/awhitfield/invoice-cataloger/internal/extract"
	"github.com/awhitfield/invoice-cataloger/internal/failures"
	"github.com/awhitfield/invoice-cataloger/internal/fingerprint"
	"github.com/awhitfield/invoice-cataloger/internal/llm"
	"github.com/awhitfield/invoice-cataloger/internal/record"
	"github.com/awhitfield/invoice-cataloger/internal/rules"
)

// OutcomeKind classifies what happened to one file.
type OutcomeKind string

const (
	OutcomeCataloged  OutcomeKind = "cataloged"
	OutcomeCachedSkip OutcomeKind = "cached_skip"
	OutcomeRetryWait  OutcomeKind = "retry_wait" // scheduled retry not yet due
	OutcomeExhausted  OutcomeKind = "exhausted"  // attempt cap reached, skipped
	OutcomeFailed     OutcomeKind = "failed"
)

// Outcome is the result of processing one file.
type Outcome struct {
	Path        string
	Fingerprint string
	Kind        OutcomeKind
	Record      *record.StructuredRecord
	Failure     *failures.Record
	Err         error
}

// Processor runs the per-file flow. All stage components are injected, so
// tests substitute fakes at any seam.
type Processor struct {
	registry    *extract.Registry
	structurer  llm.Structurer
	categorizer *rules.Categorizer
	calculator  *deduction.Calculator
	store       cache.Store
	tracker     *failures.Tracker
	locks       *cache.KeyedLock
	window      record.Window
	logger      *slog.Logger
}

func NewProcessor(
	registry *extract.Registry,
	structurer llm.Structurer,
	categorizer *rules.Categorizer,
	calculator *deduction.Calculator,
	store cache.Store,
	tracker *failures.Tracker,
	window record.Window,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		registry:    registry,
		structurer:  structurer,
		categorizer: categorizer,
		calculator:  calculator,
		store:       store,
		tracker:     tracker,
		locks:       cache.NewKeyedLock(),
		window:      window,
		logger:      logger,
	}
}

// ProcessFile runs one source document through the pipeline. When force is
// set the cache check is skipped and the result overwrites any existing entry.
func (p *Processor) ProcessFile(ctx context.Context, doc record.SourceDocument, force bool) Outcome {
	start := time.Now()
	path := doc.Path

	kind := doc.Kind
	if kind == "" {
		kind = constants.MapExtToKind(filepath.Ext(path))
	}
	if kind == "" {
		err := common.NewStageError(constants.StageExtraction, common.KindUnsupportedKind,
			fmt.Errorf("unsupported extension %q", filepath.Ext(path)))
		return p.fail(ctx, path, pathFingerprint(path), err)
	}

	fp, err := fingerprint.FromFile(path)
	if err != nil {
		// no content fingerprint; track the failure under a path-derived key
		return p.fail(ctx, path, pathFingerprint(path), err)
	}

	// serialize per fingerprint: two workers holding identical bytes do the
	// work once between them
	unlock := p.locks.Lock(fp)
	defer unlock()

	if !force {
		if entry, err := p.store.Get(ctx, fp); err != nil {
			p.logger.Error("pipeline.cache.read_failed", "path", path, "error", err)
		} else if entry != nil {
			p.logger.Info("pipeline.cache.hit", "path", path, "fingerprint", fp)
			return Outcome{Path: path, Fingerprint: fp, Kind: OutcomeCachedSkip, Record: &entry.Record}
		}

		if failRec, err := p.tracker.Lookup(ctx, fp); err != nil {
			p.logger.Error("pipeline.tracker.read_failed", "path", path, "error", err)
		} else if failRec != nil {
			switch {
			case failRec.State == constants.FailureExhausted:
				p.logger.Warn("pipeline.skip.exhausted", "path", path, "fingerprint", fp, "attempts", failRec.Attempts)
				return Outcome{Path: path, Fingerprint: fp, Kind: OutcomeExhausted, Failure: failRec}
			case failRec.State == constants.FailureRetryScheduled && !failRec.RetryDue(time.Now()):
				p.logger.Info("pipeline.skip.retry_wait", "path", path, "next_retry_at", failRec.NextRetryAt)
				return Outcome{Path: path, Fingerprint: fp, Kind: OutcomeRetryWait, Failure: failRec}
			}
		}
	}

	rec, err := p.catalog(ctx, path, kind, fp)
	if err != nil {
		return p.fail(ctx, path, fp, err)
	}

	put := p.store.Put
	if force {
		put = p.store.ForcePut
		if prev, err := p.store.Get(ctx, fp); err == nil && prev != nil && !cache.SameContent(prev.Record, *rec) {
			p.logger.Warn("pipeline.cache.overwrite",
				"path", path,
				"fingerprint", fp,
				"old_total", prev.Record.Total,
				"new_total", rec.Total,
			)
		}
	}
	if err := put(ctx, cache.Entry{Fingerprint: fp, Record: *rec}); err != nil {
		return p.fail(ctx, path, fp, err)
	}

	if err := p.tracker.Resolve(ctx, fp); err != nil {
		p.logger.Error("pipeline.tracker.resolve_failed", "fingerprint", fp, "error", err)
	}

	p.logger.Info("pipeline.cataloged",
		"path", path,
		"fingerprint", fp,
		"vendor", rec.Vendor,
		"category", rec.Category,
		"total", rec.Total,
		"deductible", rec.Deductible,
		"flags", rec.Flags,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return Outcome{Path: path, Fingerprint: fp, Kind: OutcomeCataloged, Record: rec}
}

// catalog runs the stage sequence that produces a structured record.
func (p *Processor) catalog(ctx context.Context, path string, kind constants.FileKind, fp string) (*record.StructuredRecord, error) {
	res, err := p.registry.Extract(ctx, kind, path)
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, common.NewStageError(constants.StageExtraction, common.KindNoText,
			fmt.Errorf("no strategy produced text: %s", strings.Join(res.Warnings, "; ")))
	}

	fields, raw, err := p.structurer.Structure(ctx, res.Text)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("pipeline.structured", "path", path, "raw_bytes", len(raw))

	total, err := decimal.NewFromString(fields.TotalAmount)
	if err != nil {
		return nil, common.NewStageError(constants.StageStructuring, common.KindInvalidJSON,
			fmt.Errorf("total_amount %q is not a decimal: %w", fields.TotalAmount, err))
	}
	subtotal := optionalDecimal(fields.Subtotal)
	tax := optionalDecimal(fields.Tax)

	category := p.categorizer.Categorize(fields.Vendor, fields.Description, fields.CategoryHint)
	ded := p.calculator.Calculate(category, total, fields.Currency)

	rec := &record.StructuredRecord{
		ID:          uuid.NewString(),
		Fingerprint: fp,
		SourcePath:  path,

		Vendor:         fields.Vendor,
		VendorABN:      fields.VendorABN,
		DocumentNumber: fields.DocumentNumber,
		DocumentDate:   fields.DocumentDate,
		Currency:       fields.Currency,

		Subtotal: subtotal,
		Tax:      tax,
		Total:    total,

		Description: fields.Description,
		Category:    category,

		BusinessUsePct: ded.BusinessUsePct,
		Deductible:     ded.Deductible,
		ClaimMethod:    ded.ClaimMethod,

		Confidence:         res.Tier,
		ExtractionStrategy: res.Strategy,

		ProcessedAt: time.Now().UTC(),
	}
	rec.Flags = record.Validate(rec, p.window)
	return rec, nil
}

// fail records the failure in the tracker and reports the resulting state.
// Operator aborts are logged but never written to the ledger; cancellation is
// not an attempt against the file.
func (p *Processor) fail(ctx context.Context, path, fp string, cause error) Outcome {
	if errors.Is(cause, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		p.logger.Warn("pipeline.interrupted", "path", path, "fingerprint", fp, "error", cause)
		return Outcome{Path: path, Fingerprint: fp, Kind: OutcomeFailed, Err: cause}
	}

	stage, kind := common.ClassifyError(cause)
	p.logger.Error("pipeline.failed",
		"path", path,
		"fingerprint", fp,
		"stage", stage,
		"kind", kind,
		"error", cause,
	)

	failRec, err := p.tracker.RecordFailure(ctx, fp, path, cause)
	if err != nil {
		p.logger.Error("pipeline.tracker.write_failed", "fingerprint", fp, "error", err)
		return Outcome{Path: path, Fingerprint: fp, Kind: OutcomeFailed, Err: cause}
	}
	return Outcome{Path: path, Fingerprint: fp, Kind: OutcomeFailed, Failure: &failRec, Err: cause}
}

// pathFingerprint keys failures for files whose content cannot be read.
func pathFingerprint(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return fingerprint.FromBytes([]byte("path:" + abs))
}

func optionalDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
