package extract

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

const utf8BOM = "\ufeff"

// CSVExtractor renders a CSV file as a markdown table. The first record is
// the header.
type CSVExtractor struct{}

// Extract implements Extractor.
func (CSVExtractor) Extract(ctx context.Context, r io.ReaderAt, size int64) (string, error) {
	reader := csv.NewReader(io.NewSectionReader(r, 0, size))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = false

	var header []string
	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if header == nil {
			record[0] = strings.TrimPrefix(record[0], utf8BOM)
			header = record
			continue
		}
		rows = append(rows, record)
	}
	return renderTable(header, rows), nil
}
