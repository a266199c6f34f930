package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/awhitfield/invoice-cataloger/constants"
	"github.com/awhitfield/invoice-cataloger/internal/common"
	"github.com/awhitfield/invoice-cataloger/internal/resilience"
)

// maxPromptChars caps the document text shipped to the model. Invoices carry
// their identifying fields near the top; tail pages of a long statement add
// tokens without adding signal.
const maxPromptChars = 12000

const systemPrompt = `You are a meticulous bookkeeping assistant. You extract structured invoice and receipt data from raw document text. Respond with a single JSON object and nothing else. Never invent values: omit optional fields you cannot find. Dates are YYYY-MM-DD. Amounts are plain decimal strings without currency symbols. Currency is the ISO 4217 code.`

// Client structures extracted document text through a local OpenAI-compatible
// chat completions endpoint. All calls are rate limited and run under the
// shared retry executor; transient failures (timeouts, connection errors,
// 5xx) are retried, malformed model output is not.
type Client struct {
	cfg     common.LLMConfig
	http    *http.Client
	limiter *rate.Limiter
	exec    *resilience.Executor
	logger  *slog.Logger
}

func NewClient(cfg common.LLMConfig, exec *resilience.Executor, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 2
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		exec:    exec,
		logger:  logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Structure sends the document text to the model and returns the validated
// invoice fields plus the raw sanitized JSON for audit storage.
func (c *Client) Structure(ctx context.Context, text string) (InvoiceFields, []byte, error) {
	requestID := uuid.NewString()
	start := time.Now()

	text = truncateRunes(text, maxPromptChars)

	c.logger.Info("llm.structure.start",
		"request_id", requestID,
		"model", c.cfg.Model,
		"text_chars", len(text),
	)

	var content string
	call := func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		content, err = c.complete(ctx, requestID, text)
		return err
	}

	var err error
	if c.exec != nil {
		err = c.exec.Execute(ctx, "llm.structure", call, resilience.TransientClassifier)
	} else {
		err = call(ctx)
	}
	if err != nil {
		c.logger.Error("llm.structure.failed", "request_id", requestID, "error", err)
		return InvoiceFields{}, nil, err
	}

	fields, raw, err := c.parseCompletion(content)
	if err != nil {
		c.logger.Error("llm.structure.rejected", "request_id", requestID, "error", err)
		return InvoiceFields{}, nil, err
	}

	c.logger.Info("llm.structure.ok",
		"request_id", requestID,
		"vendor", fields.Vendor,
		"total", fields.TotalAmount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return fields, raw, nil
}

// complete performs one chat completion round trip, classifying failures so
// the retry executor can tell transient from terminal.
func (c *Client) complete(ctx context.Context, requestID, text string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Extract the invoice fields from this document text:\n\n" + text},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return "", common.NewStageError(constants.StageStructuring, common.KindTimeout,
				fmt.Errorf("chat completion timed out: %w", err))
		}
		return "", common.NewStageError(constants.StageStructuring, common.KindServiceUnavailable,
			fmt.Errorf("chat completion request: %w", err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", common.NewStageError(constants.StageStructuring, common.KindServiceUnavailable,
			fmt.Errorf("read chat response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", common.NewStageError(constants.StageStructuring, common.KindServiceUnavailable,
			fmt.Errorf("chat endpoint returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return "", common.NewStageError(constants.StageStructuring, common.KindInvalidJSON,
			fmt.Errorf("chat endpoint rejected request: %d: %s", resp.StatusCode, truncateBody(payload)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", common.NewStageError(constants.StageStructuring, common.KindInvalidJSON,
			fmt.Errorf("decode chat envelope: %w", err))
	}
	if parsed.Error != nil {
		return "", common.NewStageError(constants.StageStructuring, common.KindServiceUnavailable,
			fmt.Errorf("chat endpoint error: %s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", common.NewStageError(constants.StageStructuring, common.KindInvalidJSON,
			fmt.Errorf("chat response has no choices"))
	}
	return parsed.Choices[0].Message.Content, nil
}

// parseCompletion turns raw model output into validated fields. Every failure
// here is deterministic for the same input, so none of it is retried.
func (c *Client) parseCompletion(content string) (InvoiceFields, []byte, error) {
	jsonText, err := ExtractJSON(content)
	if err != nil {
		return InvoiceFields{}, nil, common.NewStageError(constants.StageStructuring, common.KindInvalidJSON, err)
	}

	fields, err := SanitizeFields(jsonText)
	if err != nil {
		return InvoiceFields{}, nil, common.NewStageError(constants.StageStructuring, common.KindInvalidJSON, err)
	}

	if missing, err := ValidateFields(fields); err != nil {
		kind := common.KindInvalidJSON
		if len(missing) > 0 {
			kind = common.KindMissingField
		}
		return InvoiceFields{}, nil, common.NewStageError(constants.StageStructuring, kind, err)
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return InvoiceFields{}, nil, common.NewStageError(constants.StageStructuring, common.KindInvalidJSON, err)
	}
	var out InvoiceFields
	if err := json.Unmarshal(raw, &out); err != nil {
		return InvoiceFields{}, nil, common.NewStageError(constants.StageStructuring, common.KindInvalidJSON, err)
	}
	return out, raw, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// truncateRunes cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func truncateBody(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
