package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/awhitfield/invoice-cataloger/constants"
)

// wordStrategy pulls native text out of a .docx (a zip of WordprocessingML).
// Legacy binary .doc has no native Go reader; it falls through with a warning.
type wordStrategy struct{}

func (wordStrategy) Name() string { return "word-text" }
func (wordStrategy) Tier() constants.ConfidenceTier { return constants.TierHigh }

func (wordStrategy) Extract(_ context.Context, path string) (string, int, error) {
	ext := constants.NormalizeExt(filepath.Ext(path))
	switch ext {
	case "docx":
	case "doc":
		return "", 0, fmt.Errorf("legacy .doc format has no native reader")
	default:
		return "", 0, fmt.Errorf("not a word document: .%s", ext)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", 0, fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", 0, fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()
		text, paragraphs, err := wordXMLText(rc)
		if err != nil {
			return "", 0, err
		}
		return text, paragraphs, nil
	}
	return "", 0, fmt.Errorf("docx has no word/document.xml")
}

// wordXMLText walks WordprocessingML tokens, keeping run text and turning
// paragraph/tab/break elements into whitespace.
func wordXMLText(r io.Reader) (string, int, error) {
	dec := xml.NewDecoder(r)
	var b strings.Builder
	paragraphs := 0
	inText := false

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", 0, fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte(' ')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
				paragraphs++
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), paragraphs, nil
}

// workbookStrategy pulls cell text out of .xlsx workbooks.
type workbookStrategy struct{}

func (workbookStrategy) Name() string { return "workbook-text" }
func (workbookStrategy) Tier() constants.ConfidenceTier { return constants.TierHigh }

func (workbookStrategy) Extract(_ context.Context, path string) (string, int, error) {
	ext := constants.NormalizeExt(filepath.Ext(path))
	switch ext {
	case "xlsx":
	case "xls":
		return "", 0, fmt.Errorf("legacy .xls format has no native reader")
	default:
		return "", 0, fmt.Errorf("not a workbook: .%s", ext)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", 0, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	sheets := f.GetSheetList()
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", 0, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(sheets) > 1 {
			fmt.Fprintf(&b, "[%s]\n", sheet)
		}
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, " "))
			if line == "" {
				continue
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String(), len(sheets), nil
}
