package extract

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func extractString(t *testing.T, ext Extractor, content []byte) (string, error) {
	t.Helper()
	return ext.Extract(context.Background(), bytes.NewReader(content), int64(len(content)))
}

func TestRenderTable(t *testing.T) {
	got := renderTable([]string{"a", "b"}, [][]string{{"1", "2"}, {"3"}, {"4", "5", "6"}})
	assert.Equal(t, "| a | b |\n| --- | --- |\n| 1 | 2 |\n| 3 |  |\n| 4 | 5 |", got)

	assert.Equal(t, "", renderTable([]string{"a"}, nil))
	assert.Equal(t, "", renderTable(nil, [][]string{{"1"}}))
}

func TestCSVExtractor(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"header and one row", "a,b\n1,2\n", "| a | b |\n| --- | --- |\n| 1 | 2 |"},
		{"header only", "a,b\n", ""},
		{"empty file", "", ""},
		{"ragged rows", "a,b,c\n1\n1,2,3,4\n", "| a | b | c |\n| --- | --- | --- |\n| 1 |  |  |\n| 1 | 2 | 3 |"},
		{"quoted comma", "name,note\nx,\"hello, world\"\n", "| name | note |\n| --- | --- |\n| x | hello, world |"},
		{"byte order mark", "\ufeffa,b\n1,2\n", "| a | b |\n| --- | --- |\n| 1 | 2 |"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractString(t, CSVExtractor{}, []byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func workbook(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestSpreadsheetExtractor(t *testing.T) {
	content := workbook(t,
		[]any{"region", "revenue"},
		[]any{"", ""},
		[]any{"north", 120},
		[]any{"south"},
	)

	got, err := extractString(t, SpreadsheetExtractor{}, content)
	require.NoError(t, err)
	assert.Equal(t, "| region | revenue |\n| --- | --- |\n| north | 120 |\n| south |  |", got)
}

func TestSpreadsheetExtractor_HeaderOnly(t *testing.T) {
	got, err := extractString(t, SpreadsheetExtractor{}, workbook(t, []any{"a", "b"}))
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestSpreadsheetExtractor_NotAWorkbook(t *testing.T) {
	_, err := extractString(t, SpreadsheetExtractor{}, []byte("plain text"))
	assert.Error(t, err)
}

// reportPDFText is the expected text of testdata/report.pdf: two pages whose
// lines are positioned with Td, TD and Tm.
const reportPDFText = "Quarterly revenue grew by twelve percent\n" +
	"short\n" +
	"Operating costs held flat across regions\n" +
	"Second page headline for the board\n" +
	"Closing remarks"

func TestPDFExtractor_LinesAndPages(t *testing.T) {
	content, err := os.ReadFile(filepath.Join("testdata", "report.pdf"))
	require.NoError(t, err)

	got, err := extractString(t, PDFExtractor{}, content)
	require.NoError(t, err)
	assert.Equal(t, reportPDFText, got)
}

func TestPDFExtractor_Cancelled(t *testing.T) {
	content, err := os.ReadFile(filepath.Join("testdata", "report.pdf"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = PDFExtractor{}.Extract(ctx, bytes.NewReader(content), int64(len(content)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPDFExtractor_Malformed(t *testing.T) {
	_, err := extractString(t, PDFExtractor{}, []byte("%PDF-1.4\nthis is not really a pdf"))
	assert.Error(t, err)
}

func TestIsSupported(t *testing.T) {
	for _, ext := range []string{".pdf", ".CSV", ".xlsx", ".xls"} {
		assert.True(t, IsSupported(ext), ext)
	}
	for _, ext := range []string{".txt", ".docx", ""} {
		assert.False(t, IsSupported(ext), ext)
	}
	assert.True(t, strings.HasPrefix(SupportedExtensions()[0], "."))
}
