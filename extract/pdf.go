package extract

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/dslipak/pdf"
)

// PDFExtractor returns the text of a PDF one visual line per text line,
// pages in order.
type PDFExtractor struct{}

// Extract implements Extractor. The parser panics on some malformed
// documents; those panics are returned as errors.
func (PDFExtractor) Extract(ctx context.Context, r io.ReaderAt, size int64) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("pdf parser panic: %v", p)
		}
	}()

	doc, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var lines []string
	for i := 1; i <= doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		lines = append(lines, pageLines(page.Content().Text)...)
	}
	return strings.Join(lines, "\n"), nil
}

// pageLines groups positioned glyphs into lines. A glyph whose baseline
// differs from the previous one by more than half its font size starts a
// new line.
func pageLines(glyphs []pdf.Text) []string {
	var (
		lines []string
		line  strings.Builder
		lastY = math.NaN()
	)
	for _, g := range glyphs {
		if !math.IsNaN(lastY) && math.Abs(g.Y-lastY) > max(g.FontSize/2, 1) {
			lines = append(lines, line.String())
			line.Reset()
		}
		line.WriteString(g.S)
		lastY = g.Y
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}
