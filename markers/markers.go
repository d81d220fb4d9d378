// Package markers derives structured field records from canonical text.
package markers

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docpipe/core"
)

const (
	// MinLineLength is the length a trimmed line must exceed to become a marker.
	MinLineLength = 20
	// MaxFields caps the markers taken from one document.
	MaxFields = 10
)

// Derive returns the first MaxFields trimmed lines of text longer than
// MinLineLength runes, named Field_1 through Field_n in document order.
// Text without a qualifying line yields an empty, non-nil slice.
func Derive(text string) []core.Marker {
	markers := make([]core.Marker, 0, MaxFields)
	for line := range strings.SplitSeq(text, "\n") {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) <= MinLineLength {
			continue
		}
		markers = append(markers, core.Marker{
			Field: FieldName(len(markers) + 1),
			Value: line,
		})
		if len(markers) == MaxFields {
			break
		}
	}
	return markers
}

// FieldName returns the name of the n-th marker, counting from 1.
func FieldName(n int) string {
	return fmt.Sprintf("Field_%d", n)
}
