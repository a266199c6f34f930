// Package export renders the catalog and the failure report into files an
// accountant can actually open: an XLSX workbook and a CSV.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/awhitfield/invoice-cataloger/internal/cache"
	"github.com/awhitfield/invoice-cataloger/internal/failures"
	"github.com/awhitfield/invoice-cataloger/internal/record"
)

// Service produces export artifacts from the catalog store and the failure
// tracker.
type Service struct {
	store   cache.Store
	tracker *failures.Tracker
	logger  *slog.Logger
}

func NewService(store cache.Store, tracker *failures.Tracker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, tracker: tracker, logger: logger}
}

var catalogHeaders = []string{
	"Document Date",
	"Vendor",
	"Category",
	"Description",
	"Total",
	"Business Use %",
	"Deduction Amount",
	"Claim Method",
	"Currency",
	"Confidence",
	"Flags",
	"Source File",
}

// CatalogXLSX returns the catalog as an XLSX workbook: one Catalog sheet plus
// a Failures sheet when any fingerprint is still outstanding.
func (s *Service) CatalogXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	records, err := s.sortedRecords(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	const sheet = "Catalog"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if index, _ := f.GetSheetIndex("Sheet1"); index != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	for i, h := range catalogHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, rec := range records {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		for i, v := range catalogRow(rec) {
			write(i+1, v)
		}
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 14) // date
	_ = f.SetColWidth(sheet, "B", "B", 28) // vendor
	_ = f.SetColWidth(sheet, "C", "C", 24) // category
	_ = f.SetColWidth(sheet, "D", "D", 40) // description
	_ = f.SetColWidth(sheet, "E", "G", 14) // amounts
	_ = f.SetColWidth(sheet, "H", "H", 24) // claim method
	_ = f.SetColWidth(sheet, "K", "K", 24) // flags
	_ = f.SetColWidth(sheet, "L", "L", 60) // path

	if err := s.addFailuresSheet(ctx, f); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(records),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (s *Service) addFailuresSheet(ctx context.Context, f *excelize.File) error {
	outstanding, err := s.tracker.Outstanding(ctx)
	if err != nil {
		return fmt.Errorf("list outstanding failures: %w", err)
	}
	if len(outstanding) == 0 {
		return nil
	}

	const sheet = "Failures"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := []string{"Source File", "Stage", "Kind", "Attempts", "State", "Last Failed", "Error"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, rec := range outstanding {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, i+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, rec.SourcePath)
		write(2, string(rec.Stage))
		write(3, string(rec.Kind))
		write(4, rec.Attempts)
		write(5, string(rec.State))
		write(6, rec.LastFailedAt.Format("2006-01-02 15:04"))
		write(7, truncate(rec.Message, 200))
	}

	_ = f.SetColWidth(sheet, "A", "A", 60)
	_ = f.SetColWidth(sheet, "G", "G", 80)
	return nil
}

// sortedRecords loads the catalog sorted by document date, then vendor, which
// is the order a reviewer reads a year's expenses in.
func (s *Service) sortedRecords(ctx context.Context) ([]record.StructuredRecord, error) {
	entries, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	records := make([]record.StructuredRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, e.Record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].DocumentDate != records[j].DocumentDate {
			return records[i].DocumentDate < records[j].DocumentDate
		}
		return records[i].Vendor < records[j].Vendor
	})
	return records, nil
}

// truncate caps s at n bytes, cutting on a rune boundary before the ellipsis.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n - 1
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
