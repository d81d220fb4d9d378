package extract

import (
	"context"
	"io"
	"strings"
)

// Extractor turns the bytes of one upload into canonical text.
type Extractor interface {
	Extract(ctx context.Context, r io.ReaderAt, size int64) (string, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, r io.ReaderAt, size int64) (string, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, r io.ReaderAt, size int64) (string, error) {
	return f(ctx, r, size)
}

// defaultExtractors maps a lower-cased file extension to its extractor.
func defaultExtractors() map[string]Extractor {
	sheet := SpreadsheetExtractor{}
	return map[string]Extractor{
		".pdf":  PDFExtractor{},
		".csv":  CSVExtractor{},
		".xlsx": sheet,
		".xls":  sheet,
	}
}

// SupportedExtensions returns the file tags with a built-in extractor.
func SupportedExtensions() []string {
	return []string{".pdf", ".csv", ".xlsx", ".xls"}
}

// IsSupported reports whether ext has a built-in extractor.
func IsSupported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, s := range SupportedExtensions() {
		if s == ext {
			return true
		}
	}
	return false
}

// renderTable renders a header and rows as a markdown table.
// Rows shorter than the header get empty cells; cells beyond it are dropped.
// A table without data rows renders as the empty string.
func renderTable(header []string, rows [][]string) string {
	if len(rows) == 0 || len(header) == 0 {
		return ""
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		sb.WriteString("|")
		for i := range header {
			sb.WriteString(" ")
			if i < len(cells) {
				sb.WriteString(cells[i])
			}
			sb.WriteString(" |")
		}
	}

	writeRow(header)
	sb.WriteString("\n|")
	for range header {
		sb.WriteString(" --- |")
	}
	for _, row := range rows {
		sb.WriteString("\n")
		writeRow(row)
	}
	return sb.String()
}
