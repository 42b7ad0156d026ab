package table

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/sfomuseum/go-csvdict"
)

// Row maps a column name to its raw cell value. Cells are never parsed on
// read, so an empty cell stays empty rather than becoming a missing value.
type Row map[string]string

type Table struct {
	Columns []string
	Rows    []Row
}

func New(columns ...string) *Table {
	return &Table{Columns: columns}
}

func (t *Table) Len() int {
	return len(t.Rows)
}

func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// AddColumn appends name to the columns if it is not already present.
func (t *Table) AddColumn(name string) {
	if !t.HasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
}

func (t *Table) Append(row Row) {
	t.Rows = append(t.Rows, row)
}

// Float parses the cell at col as a float. ok is false for empty cells.
func (t *Table) Float(row Row, col string) (v float64, ok bool, err error) {
	s, present := row[col]
	if !present || s == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("column %s: %w", col, err)
	}
	return v, true, nil
}

func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

func Read(r io.Reader) (*Table, error) {
	csvR, err := csvdict.NewReader(r)
	if err != nil {
		return nil, err
	}

	t := &Table{Columns: csvR.Fieldnames}
	for {
		row, err := csvR.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func WriteCSV(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := Write(f, t); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func Write(w io.Writer, t *Table) error {
	if len(t.Columns) == 0 {
		return errors.New("table has no columns")
	}

	csvW, err := csvdict.NewWriter(w, t.Columns)
	if err != nil {
		return err
	}
	csvW.WriteHeader()

	for _, row := range t.Rows {
		out := make(map[string]string, len(t.Columns))
		for _, c := range t.Columns {
			out[c] = row[c]
		}
		if err := csvW.WriteRow(out); err != nil {
			return err
		}
	}

	csvW.Flush()
	return nil
}

// Concat returns a table holding the rows of every input in order. Columns
// are the union of the inputs' columns in first-seen order.
func Concat(tables ...*Table) *Table {
	out := &Table{}
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.Columns {
			out.AddColumn(c)
		}
		out.Rows = append(out.Rows, t.Rows...)
	}
	return out
}

// ListCSV returns the names of the CSV files directly inside dir, sorted.
// Hidden files are skipped.
func ListCSV(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Stem returns name without its directory and extension.
func Stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
