package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/awhitfield/invoice-cataloger/constants"
	"github.com/awhitfield/invoice-cataloger/internal/common"
	"github.com/awhitfield/invoice-cataloger/internal/resilience"
)

// imageOCRStrategy is the only strategy for image kinds: tesseract over the
// file as-is.
type imageOCRStrategy struct {
	cfg    common.ExtractionConfig
	runner Runner
	exec   *resilience.Executor
}

func newImageOCRStrategy(cfg common.ExtractionConfig, runner Runner, exec *resilience.Executor) *imageOCRStrategy {
	return &imageOCRStrategy{cfg: cfg, runner: runner, exec: exec}
}

func (s *imageOCRStrategy) Name() string { return "image-ocr" }
func (s *imageOCRStrategy) Tier() constants.ConfidenceTier { return constants.TierLow }

func (s *imageOCRStrategy) Extract(ctx context.Context, path string) (string, int, error) {
	txt, err := runTesseract(ctx, s.exec, s.runner, s.cfg, path)
	if err != nil {
		return "", 0, err
	}
	return txt, 1, nil
}

// runTesseract invokes the OCR binary under the shared retry executor so a
// wedged subprocess (timeout) is re-attempted with backoff like any other
// transient failure.
func runTesseract(ctx context.Context, exec *resilience.Executor, runner Runner, cfg common.ExtractionConfig, path string) (string, error) {
	bin := cfg.Tesseract
	if bin == "" {
		bin = "tesseract"
	}
	lang := cfg.TesseractLang
	if lang == "" {
		lang = "eng"
	}
	timeout := cfg.OCRTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	var text string
	run := func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		// tesseract <file> stdout -l <lang>
		out, errb, err := runner.Run(callCtx, bin, path, "stdout", "-l", lang)
		if err != nil {
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return common.NewStageError(constants.StageExtraction, common.KindTimeout,
					fmt.Errorf("tesseract timed out after %s", timeout))
			}
			return fmt.Errorf("tesseract: %w (%s)", err, truncate(string(errb), 256))
		}
		text = string(out)
		return nil
	}

	var err error
	if exec != nil {
		err = exec.Execute(ctx, "ocr.tesseract", run, resilience.TransientClassifier)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return "", err
	}
	return reBoxNoise.ReplaceAllString(text, ""), nil
}
