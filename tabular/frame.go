// Package tabular builds classification data modules and models from
// row-oriented tabular data: CSV files (optionally xz-compressed), SQL query
// results, or in-memory records.
package tabular

import (
	"database/sql"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	// Registers the sqlite3 driver for ReadSQLite.
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

// Frame is a small row-major table of strings with named columns. It is the
// in-memory form every tabular loader normalizes to.
type Frame struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// FromRecords builds a frame from a header and data rows. Every row must
// match the header width.
func FromRecords(header []string, rows [][]string) (*Frame, error) {
	if len(header) == 0 {
		return nil, errors.New("tabular: frame header is empty")
	}
	f := &Frame{
		columns: make([]string, len(header)),
		index:   make(map[string]int, len(header)),
	}
	for i, col := range header {
		name := strings.TrimSpace(col)
		if _, dup := f.index[name]; dup {
			return nil, errors.Errorf("tabular: duplicate column %q", name)
		}
		f.columns[i] = name
		f.index[name] = i
	}
	for i, row := range rows {
		if len(row) != len(header) {
			return nil, errors.Errorf("tabular: row %d has %d fields, header has %d",
				i, len(row), len(header))
		}
	}
	f.rows = rows
	return f, nil
}

// ReadCSV reads a CSV file into a frame. Files ending in .xz are
// decompressed transparently.
func ReadCSV(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(path, ".xz") {
		if r, err = xz.NewReader(file); err != nil {
			return nil, errors.Wrapf(err, "opening xz stream %s", path)
		}
	}

	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrapf(err, "reading header of %s", path)
	}
	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", path)
		}
		rows = append(rows, record)
	}
	return FromRecords(header, rows)
}

// ReadSQL runs a query and collects the result set into a frame. Every
// column is scanned as text.
func ReadSQL(db *sql.DB, query string, args ...any) (*Frame, error) {
	result, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "querying %q", query)
	}
	defer result.Close()

	columns, err := result.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "reading result columns")
	}
	var rows [][]string
	for result.Next() {
		raw := make([]sql.NullString, len(columns))
		dest := make([]any, len(columns))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := result.Scan(dest...); err != nil {
			return nil, errors.Wrap(err, "scanning row")
		}
		row := make([]string, len(columns))
		for i, v := range raw {
			if v.Valid {
				row[i] = v.String
			}
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating result")
	}
	return FromRecords(columns, rows)
}

// ReadSQLite opens a SQLite database file and reads a query result.
func ReadSQLite(path, query string, args ...any) (*Frame, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening sqlite database %s", path)
	}
	defer db.Close()
	return ReadSQL(db, query, args...)
}

// Columns returns the column names in declaration order.
func (f *Frame) Columns() []string { return f.columns }

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.rows) }

// Row returns the i-th row.
func (f *Frame) Row(i int) []string { return f.rows[i] }

// ColIndex returns the position of a named column.
func (f *Frame) ColIndex(name string) (int, bool) {
	i, ok := f.index[name]
	return i, ok
}

// Col returns all values of a named column.
func (f *Frame) Col(name string) ([]string, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, errors.Errorf("tabular: no column %q (have %s)", name, strings.Join(f.columns, ", "))
	}
	out := make([]string, len(f.rows))
	for r, row := range f.rows {
		out[r] = row[i]
	}
	return out, nil
}

func parseFloat32(s string) (float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty string")
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}
