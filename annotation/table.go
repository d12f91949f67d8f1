package annotation

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/lewtec/mosaico/internal/domain"
)

// Table is a delimited table whose first column is the row key
type Table struct {
	Index   string
	Columns []string
	Rows    []TableRow
}

// TableRow is one record of a Table, cells addressed by column name
type TableRow struct {
	Key   string
	Cells map[string]string
}

// HasColumn reports whether the table carries the named column
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

func delimiterRune(delimiter string) (rune, error) {
	if delimiter == "" {
		return ',', nil
	}
	r, size := utf8.DecodeRuneInString(delimiter)
	if size != len(delimiter) || r == '"' || r == '\n' || r == '\r' {
		return 0, &domain.ConfigurationError{Option: "delimiter", Reason: fmt.Sprintf("%q must be a single character", delimiter)}
	}
	return r, nil
}

// ReadTable parses a delimited table with a header line
func ReadTable(r io.Reader, delimiter string) (*Table, error) {
	comma, err := delimiterRune(delimiter)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.LazyQuotes = true
	header, err := reader.Read()
	if err == io.EOF {
		return nil, &domain.SchemaError{Reason: "table has no header"}
	}
	if err != nil {
		return nil, fmt.Errorf("while reading table header: %w", err)
	}
	t := &Table{Index: header[0], Columns: append([]string(nil), header[1:]...)}
	seen := map[string]bool{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while reading table: %w", err)
		}
		row := TableRow{Key: record[0], Cells: make(map[string]string, len(t.Columns))}
		if seen[row.Key] {
			return nil, &domain.SchemaError{Column: t.Index, Reason: fmt.Sprintf("duplicate row key %q", row.Key)}
		}
		seen[row.Key] = true
		for i, col := range t.Columns {
			row.Cells[col] = record[i+1]
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// ReadTableFile reads a delimited table from disk
func ReadTableFile(path string, delimiter string) (*Table, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, &domain.InputNotFoundError{Path: path}
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := ReadTable(f, delimiter)
	if err != nil {
		return nil, fmt.Errorf("while reading '%s': %w", path, err)
	}
	return t, nil
}

// WriteTable writes the table with its key column first
func WriteTable(w io.Writer, t *Table, delimiter string) error {
	comma, err := delimiterRune(delimiter)
	if err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	writer.Comma = comma
	if err := writer.Write(append([]string{t.Index}, t.Columns...)); err != nil {
		return err
	}
	record := make([]string, len(t.Columns)+1)
	for _, row := range t.Rows {
		record[0] = row.Key
		for i, col := range t.Columns {
			record[i+1] = row.Cells[col]
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// parseIntTuple reads "(1, 2, 3)", "[1, 2, 3]" or "1,2,3"
func parseIntTuple(s string) ([]int, bool) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && ((s[0] == '(' && s[len(s)-1] == ')') || (s[0] == '[' && s[len(s)-1] == ']')) {
		s = s[1 : len(s)-1]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), ",")
	if s == "" {
		return nil, false
	}
	parts := strings.Split(s, ",")
	ret := make([]int, len(parts))
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, false
		}
		ret[i] = v
	}
	return ret, true
}

func formatIntTuple(values ...int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}
