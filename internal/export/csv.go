package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/awhitfield/invoice-cataloger/internal/record"
)

// catalogRow flattens one record into the shared header order.
func catalogRow(rec record.StructuredRecord) []string {
	return []string{
		rec.DocumentDate,
		rec.Vendor,
		string(rec.Category),
		rec.Description,
		rec.Total.StringFixed(2),
		rec.BusinessUsePct.String(),
		rec.Deductible.StringFixed(2),
		rec.ClaimMethod,
		rec.Currency,
		string(rec.Confidence),
		strings.Join(rec.Flags, ";"),
		rec.SourcePath,
	}
}

// CatalogCSV renders the catalog in the same column order as the workbook.
func (s *Service) CatalogCSV(ctx context.Context) ([]byte, error) {
	start := time.Now()

	records, err := s.sortedRecords(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(catalogHeaders); err != nil {
		return nil, fmt.Errorf("csv write: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(catalogRow(rec)); err != nil {
			return nil, fmt.Errorf("csv write: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("csv flush: %w", err)
	}

	s.logger.Info("export.csv.ok",
		"rows", len(records),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
