package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/awhitfield/invoice-cataloger/constants"
	"github.com/awhitfield/invoice-cataloger/internal/common"
	"github.com/awhitfield/invoice-cataloger/internal/resilience"
)

// Chain is an ordered list of strategies for one file kind.
type Chain struct {
	kind       constants.FileKind
	strategies []Strategy
	logger     *slog.Logger
}

func NewChain(kind constants.FileKind, logger *slog.Logger, strategies ...Strategy) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{kind: kind, strategies: strategies, logger: logger}
}

// Extract tries strategies strictly in declared order. Trivial or empty
// output causes fallthrough with a per-strategy warning. If every strategy
// fails the returned Result has empty text and one warning per strategy;
// the caller maps that to a no_text extraction failure.
func (c *Chain) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	var warnings []string

	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return Result{Warnings: warnings}, err
		}

		text, units, err := s.Extract(ctx, path)
		if err != nil {
			c.logger.Debug("extract.strategy.failed", "kind", c.kind, "strategy", s.Name(), "path", path, "error", err)
			warnings = append(warnings, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		if !usableText(text) {
			c.logger.Debug("extract.strategy.trivial_output", "kind", c.kind, "strategy", s.Name(), "path", path, "bytes", len(text))
			warnings = append(warnings, fmt.Sprintf("%s: trivial output (%d bytes)", s.Name(), len(text)))
			continue
		}

		c.logger.Debug("extract.strategy.ok", "kind", c.kind, "strategy", s.Name(), "path", path, "units", units, "tier", s.Tier())
		return Result{
			Text:     Normalize(text),
			Strategy: s.Name(),
			Tier:     s.Tier(),
			Units:    units,
			Duration: time.Since(start),
			Warnings: warnings,
		}, nil
	}

	return Result{Duration: time.Since(start), Warnings: warnings}, nil
}

// Registry holds the chain for each supported file kind.
type Registry struct {
	chains map[constants.FileKind]*Chain
	logger *slog.Logger
}

// NewRegistry wires the default strategy lists: embedded text, then layout
// extraction, then rasterize-and-OCR for PDFs; OCR only for images; native
// text pull for office documents; body plus nested attachments for email.
func NewRegistry(cfg common.ExtractionConfig, exec *resilience.Executor, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	runner := execRunner{}

	r := &Registry{chains: make(map[constants.FileKind]*Chain), logger: logger}

	pdfOCR := newPDFOCRStrategy(cfg, runner, exec)
	imageOCR := newImageOCRStrategy(cfg, runner, exec)

	r.chains[constants.PDF] = NewChain(constants.PDF, logger,
		&pdfTextStrategy{},
		newPDFLayoutStrategy(cfg, runner),
		pdfOCR,
	)
	r.chains[constants.Image] = NewChain(constants.Image, logger,
		imageOCR,
	)
	r.chains[constants.Document] = NewChain(constants.Document, logger,
		&wordStrategy{},
		&workbookStrategy{},
	)
	r.chains[constants.Email] = NewChain(constants.Email, logger,
		&emailStrategy{nested: r.Extract},
	)

	return r
}

// Extract runs the chain registered for kind. Unknown kinds are an
// unsupported_kind extraction failure.
func (r *Registry) Extract(ctx context.Context, kind constants.FileKind, path string) (Result, error) {
	chain, ok := r.chains[kind]
	if !ok {
		return Result{}, common.NewStageError(constants.StageExtraction, common.KindUnsupportedKind,
			fmt.Errorf("no extraction chain for kind %q (%s)", kind, filepath.Base(path)))
	}
	return chain.Extract(ctx, path)
}
