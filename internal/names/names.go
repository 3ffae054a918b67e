// Package names reads the list of names to render from a CSV table.
//
// Input may carry a UTF-8 or UTF-16 byte order mark (as Excel exports do).
// Values are trimmed and NFC-normalized. Every data row produces exactly one
// [Record]; rows whose name is blank or that fail to parse are kept with an
// empty Value so callers can report them.
package names

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultColumn is the header looked up when no column is configured.
const DefaultColumn = "name"

// ErrColumnNotFound is returned when the header row lacks the name column.
var ErrColumnNotFound = errors.New("name column not found")

// Record is one data row of the input table.
type Record struct {
	// Value is the trimmed, normalized name. Empty for blank or unparseable rows.
	Value string
	// Row is the 0-based index among data rows (the header is not counted).
	Row int
	// Problem describes why Value is empty when the row could not be parsed.
	Problem string
}

// Blank reports whether the record has no name to render.
func (r Record) Blank() bool { return r.Value == "" }

// Read parses a CSV table from r and returns one record per data row, taking
// names from the column whose header matches column case-insensitively
// (DefaultColumn if empty). A comma or semicolon delimiter is detected from
// the header line.
func Read(r io.Reader, column string) ([]Record, error) {
	if column == "" {
		column = DefaultColumn
	}

	br := bufio.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr := csv.NewReader(br)
	cr.Comma = sniffDelimiter(br)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("table is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := columnIndex(header, column)
	if col < 0 {
		return nil, fmt.Errorf("%w: want %q, have [%s]", ErrColumnNotFound, column, strings.Join(trimAll(header), ", "))
	}

	// encoding/csv skips empty lines; each one between records still
	// becomes a blank record so later row indexes don't shift.
	var out []Record
	prevEnd := endLine(cr, header)
	skipEmpty := func(start int) {
		for ; prevEnd+1 < start; prevEnd++ {
			out = append(out, Record{Row: len(out), Problem: "empty line"})
		}
	}
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipEmpty(perr.StartLine)
				out = append(out, Record{Row: len(out), Problem: perr.Err.Error()})
				prevEnd = perr.Line
				continue
			}
			return nil, fmt.Errorf("read row %d: %w", len(out), err)
		}
		start, _ := cr.FieldPos(0)
		skipEmpty(start)
		prevEnd = endLine(cr, fields)

		row := len(out)
		if col >= len(fields) {
			out = append(out, Record{Row: row, Problem: fmt.Sprintf("row has %d fields, name is field %d", len(fields), col+1)})
			continue
		}
		out = append(out, Record{Row: row, Value: Normalize(fields[col])})
	}
	return out, nil
}

// endLine returns the line the record just read by cr ends on. Quoted
// fields may span lines.
func endLine(cr *csv.Reader, fields []string) int {
	last := len(fields) - 1
	line, _ := cr.FieldPos(last)
	return line + strings.Count(fields[last], "\n")
}

// ReadFile opens path and calls [Read].
func ReadFile(path, column string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()
	recs, err := Read(f, column)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

// FromStrings builds records from a plain list of names.
func FromStrings(values []string) []Record {
	out := make([]Record, len(values))
	for i, v := range values {
		out[i] = Record{Value: Normalize(v), Row: i}
	}
	return out
}

// Normalize trims surrounding whitespace and applies Unicode NFC.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// columnIndex returns the index of the header matching column, or -1.
func columnIndex(header []string, column string) int {
	want := strings.TrimSpace(column)
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), want) {
			return i
		}
	}
	return -1
}

func trimAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

// sniffDelimiter picks ';' when the first line has semicolons but no commas
// (spreadsheet exports in comma-decimal locales), ',' otherwise.
func sniffDelimiter(br *bufio.Reader) rune {
	head, _ := br.Peek(4096)
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	if bytes.IndexByte(head, ',') < 0 && bytes.IndexByte(head, ';') >= 0 {
		return ';'
	}
	return ','
}
