// Package export serializes view results as CSV downloads.
package export

import (
	"io"
	"regexp"
	"strings"
)

// MIMEType is the content type of an exported file.
const MIMEType = "text/csv;charset=utf-8"

// Column describes one exported column: its header and how a row renders in it.
type Column[E any] struct {
	Header    string
	Formatter func(E) string
}

// Serialize renders rows as CSV text. Every field is double-quoted with inner
// quotes doubled, and rows are separated by "\n" without a trailing newline.
// With no rows only the header line is produced.
func Serialize[E any](rows []E, columns []Column[E]) string {
	var sb strings.Builder
	writeHeader(&sb, columns)
	for _, row := range rows {
		sb.WriteByte('\n')
		writeRow(&sb, row, columns)
	}
	return sb.String()
}

// Write streams the same output as Serialize to w.
func Write[E any](w io.Writer, rows []E, columns []Column[E]) error {
	var sb strings.Builder
	writeHeader(&sb, columns)
	if _, err := io.WriteString(w, sb.String()); err != nil {
		return err
	}
	for _, row := range rows {
		sb.Reset()
		sb.WriteByte('\n')
		writeRow(&sb, row, columns)
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

// Headers returns the column headers in order.
func Headers[E any](columns []Column[E]) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.Header
	}
	return out
}

var whitespace = regexp.MustCompile(`\s+`)

// Filename derives a download name from a page title: runs of whitespace
// become a single underscore and ".csv" is appended.
func Filename(title string) string {
	return whitespace.ReplaceAllString(title, "_") + ".csv"
}

func writeHeader[E any](sb *strings.Builder, columns []Column[E]) {
	for i, c := range columns {
		if i > 0 {
			sb.WriteByte(',')
		}
		quote(sb, c.Header)
	}
}

func writeRow[E any](sb *strings.Builder, row E, columns []Column[E]) {
	for i, c := range columns {
		if i > 0 {
			sb.WriteByte(',')
		}
		value := ""
		if c.Formatter != nil {
			value = c.Formatter(row)
		}
		quote(sb, value)
	}
}

func quote(sb *strings.Builder, value string) {
	sb.WriteByte('"')
	sb.WriteString(strings.ReplaceAll(value, `"`, `""`))
	sb.WriteByte('"')
}
