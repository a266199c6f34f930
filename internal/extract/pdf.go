package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/awhitfield/invoice-cataloger/constants"
	"github.com/awhitfield/invoice-cataloger/internal/common"
	"github.com/awhitfield/invoice-cataloger/internal/resilience"
)

// pdfTextStrategy pulls the embedded text layer. Fast and high confidence,
// but yields nothing for scanned documents.
type pdfTextStrategy struct{}

func (pdfTextStrategy) Name() string { return "pdf-text" }
func (pdfTextStrategy) Tier() constants.ConfidenceTier { return constants.TierHigh }

func (pdfTextStrategy) Extract(_ context.Context, path string) (text string, units int, err error) {
	// the pdf reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", 0, fmt.Errorf("read text layer: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", 0, fmt.Errorf("read text layer: %w", err)
	}
	return buf.String(), reader.NumPage(), nil
}

// pdfLayoutStrategy shells out to pdftotext in layout mode, which preserves
// the column structure of tabular invoices the embedded-text pull flattens.
type pdfLayoutStrategy struct {
	bin    string
	runner Runner
}

func newPDFLayoutStrategy(cfg common.ExtractionConfig, runner Runner) *pdfLayoutStrategy {
	bin := cfg.Pdftotext
	if bin == "" {
		bin = "pdftotext"
	}
	return &pdfLayoutStrategy{bin: bin, runner: runner}
}

func (s *pdfLayoutStrategy) Name() string { return "pdf-layout" }
func (s *pdfLayoutStrategy) Tier() constants.ConfidenceTier { return constants.TierHigh }

func (s *pdfLayoutStrategy) Extract(ctx context.Context, path string) (string, int, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := s.runner.Run(ctx, s.bin, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, fmt.Errorf("pdftotext: %w (%s)", err, truncate(string(errb), 256))
	}
	text := string(out)
	// A form-feed \f is used as page separator by default
	pages := 1 + strings.Count(text, "\f")
	return text, pages, nil
}

// pdfOCRStrategy rasterizes each page with pdftoppm and OCRs it with
// tesseract. Last resort for scanned documents; low confidence.
type pdfOCRStrategy struct {
	cfg    common.ExtractionConfig
	runner Runner
	exec   *resilience.Executor
}

func newPDFOCRStrategy(cfg common.ExtractionConfig, runner Runner, exec *resilience.Executor) *pdfOCRStrategy {
	return &pdfOCRStrategy{cfg: cfg, runner: runner, exec: exec}
}

func (s *pdfOCRStrategy) Name() string { return "pdf-ocr" }
func (s *pdfOCRStrategy) Tier() constants.ConfidenceTier { return constants.TierLow }

func (s *pdfOCRStrategy) Extract(ctx context.Context, path string) (string, int, error) {
	tmpDir, err := os.MkdirTemp("", "ic-pp-*")
	if err != nil {
		return "", 0, err
	}
	defer os.RemoveAll(tmpDir)

	dpi := s.cfg.DPI
	if dpi <= 0 {
		dpi = 300
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	if _, errb, err := s.runner.Run(ctx, s.binPdftoppm(), "-r", fmt.Sprintf("%d", dpi), "-png", path, prefix); err != nil {
		return "", 0, fmt.Errorf("pdftoppm: %w (%s)", err, truncate(string(errb), 256))
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if s.cfg.MaxPages > 0 && len(matches) > s.cfg.MaxPages {
		matches = matches[:s.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, fmt.Errorf("pdftoppm produced no images")
	}

	var b strings.Builder
	for _, img := range matches {
		txt, err := runTesseract(ctx, s.exec, s.runner, s.cfg, img)
		if err != nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(txt)
	}
	return b.String(), len(matches), nil
}

func (s *pdfOCRStrategy) binPdftoppm() string {
	if s.cfg.Pdftoppm != "" {
		return s.cfg.Pdftoppm
	}
	return "pdftoppm"
}
