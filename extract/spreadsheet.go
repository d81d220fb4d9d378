package extract

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SpreadsheetExtractor renders the first sheet of a workbook as a markdown
// table. The first non-blank row is the header and fully blank rows are
// skipped.
type SpreadsheetExtractor struct{}

// Extract implements Extractor.
func (SpreadsheetExtractor) Extract(ctx context.Context, r io.ReaderAt, size int64) (string, error) {
	f, err := excelize.OpenReader(io.NewSectionReader(r, 0, size))
	if err != nil {
		return "", err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", errors.New("workbook has no sheets")
	}
	all, err := f.GetRows(sheets[0])
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	width := 0
	rows := make([][]string, 0, len(all))
	for _, row := range all {
		if blankRow(row) {
			continue
		}
		width = max(width, len(row))
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return "", nil
	}

	header := make([]string, width)
	copy(header, rows[0])
	return renderTable(header, rows[1:]), nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
