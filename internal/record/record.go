// Package record defines the structured output of the pipeline and the
// validation that flags suspect records without rejecting them. A record with
// flags still reaches the catalog; a human decides what to do with it.
package record

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/awhitfield/invoice-cataloger/constants"
)

// Validation flag values carried on records.
const (
	FlagOutOfPeriod     = "out_of_period"
	FlagNegativeAmount  = "negative_amount"
	FlagUnparseableDate = "unparseable_date"
)

// SourceDocument describes one input file selected by discovery. The content
// fingerprint is computed by the pipeline when the file is first read, not
// here; discovery never opens file contents.
type SourceDocument struct {
	Path       string
	Kind       constants.FileKind
	SizeBytes  int64
	ModifiedAt time.Time
}

// StructuredRecord is one cataloged expense: the model's structured fields,
// the rule categorization, and the calculated deduction, stamped with the
// provenance needed to audit it later.
type StructuredRecord struct {
	ID          string `json:"id"`
	Fingerprint string `json:"fingerprint"`
	SourcePath  string `json:"source_path"`

	Vendor         string `json:"vendor"`
	VendorABN      string `json:"vendor_abn,omitempty"`
	DocumentNumber string `json:"document_number,omitempty"`
	DocumentDate   string `json:"document_date"`
	Currency       string `json:"currency"`

	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`

	Description string             `json:"description,omitempty"`
	Category    constants.Category `json:"category"`

	BusinessUsePct decimal.Decimal `json:"business_use_pct"`
	Deductible     decimal.Decimal `json:"deductible"`
	ClaimMethod    string          `json:"claim_method"`

	Confidence         constants.ConfidenceTier `json:"confidence"`
	ExtractionStrategy string                   `json:"extraction_strategy"`

	Flags       []string  `json:"flags,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// HasFlag reports whether the record carries the given validation flag.
func (r *StructuredRecord) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Window is an inclusive financial-year date range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window, date-granular.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// ParseWindow converts a "2024-2025" financial year label into its date
// window: 1 July of the first year through 30 June of the second.
func ParseWindow(financialYear string) (Window, error) {
	if len(financialYear) != 9 || financialYear[4] != '-' {
		return Window{}, fmt.Errorf("financial year %q is not of the form YYYY-YYYY", financialYear)
	}
	startYear, err := strconv.Atoi(financialYear[:4])
	if err != nil {
		return Window{}, fmt.Errorf("financial year %q: %w", financialYear, err)
	}
	endYear, err := strconv.Atoi(financialYear[5:])
	if err != nil {
		return Window{}, fmt.Errorf("financial year %q: %w", financialYear, err)
	}
	if endYear != startYear+1 {
		return Window{}, fmt.Errorf("financial year %q: years are not consecutive", financialYear)
	}
	return Window{
		Start: time.Date(startYear, time.July, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(endYear, time.June, 30, 0, 0, 0, 0, time.UTC),
	}, nil
}

// Validate computes the record's flags against the reporting window. Flags
// mark the record for review; they never fail the pipeline.
func Validate(r *StructuredRecord, window Window) []string {
	var flags []string

	if t, err := time.Parse("2006-01-02", r.DocumentDate); err != nil {
		flags = append(flags, FlagUnparseableDate)
	} else if !window.Contains(t) {
		flags = append(flags, FlagOutOfPeriod)
	}

	if r.Total.Sign() < 0 {
		flags = append(flags, FlagNegativeAmount)
	}

	return flags
}
