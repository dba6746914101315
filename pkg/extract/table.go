// Package extract loads the tabular inputs (order lines, cost pools and
// settlement rows) from CSV, tab-separated or XLSX files. Columns are bound
// by header name; only the shape of the data is checked here.
package extract

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ErrMissingColumn is wrapped when a required header is absent.
var ErrMissingColumn = errors.New("missing required column")

// table is a header-indexed set of rows.
type table struct {
	source string
	header map[string]int
	rows   [][]string
}

// readTable reads path by extension: .csv, .tsv/.txt (tab separated) or .xlsx.
func readTable(path string) (*table, error) {
	var records [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		records, err = readDelimited(path, ',')
	case ".tsv", ".txt":
		records, err = readDelimited(path, '\t')
	case ".xlsx":
		records, err = readWorkbook(path)
	default:
		return nil, fmt.Errorf("%s: unsupported extract format", path)
	}
	if err != nil {
		return nil, err
	}
	return newTable(filepath.Base(path), records)
}

func readDelimited(path string, comma rune) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open extract: %w", err)
	}
	defer f.Close()
	return parseDelimited(f, comma)
}

func parseDelimited(r io.Reader, comma rune) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return records, nil
}

// readWorkbook returns the rows of the first sheet.
func readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: workbook has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("unable to read sheet: %w", err)
	}
	return rows, nil
}

func newTable(source string, records [][]string) (*table, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: no header row", source)
	}
	t := &table{source: source, header: make(map[string]int)}
	for i, name := range records[0] {
		key := normalize(name)
		if key == "" {
			continue
		}
		if _, dup := t.header[key]; dup {
			return nil, fmt.Errorf("%s: duplicate column %q", source, name)
		}
		t.header[key] = i
	}
	for _, r := range records[1:] {
		if blank(r) {
			continue
		}
		t.rows = append(t.rows, r)
	}
	return t, nil
}

// normalize folds header spellings: "Order ID", "order-id" and "order_id"
// all become "order_id". A UTF-8 BOM is dropped.
func normalize(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(name)
}

func blank(r []string) bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func (t *table) require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if _, ok := t.header[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: %w: %s", t.source, ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// row reads typed cells of one record. The first conversion error sticks.
type row struct {
	t    *table
	line int // 1-based, header is line 1
	r    []string
	err  error
}

func (t *table) each(fn func(*row) error) error {
	for i, r := range t.rows {
		rw := &row{t: t, line: i + 2, r: r}
		if err := fn(rw); err != nil {
			return err
		}
		if rw.err != nil {
			return rw.err
		}
	}
	return nil
}

func (r *row) str(col string) string {
	i, ok := r.t.header[col]
	if !ok || i >= len(r.r) {
		return ""
	}
	return strings.TrimSpace(r.r[i])
}

func (r *row) fail(col string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%s line %d, column %s: %w", r.t.source, r.line, col, err)
	}
}

// decimal parses an amount, accepting thousands separators. Empty is zero.
func (r *row) decimal(col string) decimal.Decimal {
	s := strings.ReplaceAll(r.str(col), ",", "")
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		r.fail(col, err)
		return decimal.Zero
	}
	return d
}

func (r *row) int(col string) int {
	s := r.str(col)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		r.fail(col, err)
	}
	return n
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"02.01.2006 15:04:05 MST",
	"02.01.2006",
}

// date parses the supported date layouts. Times without a zone are UTC.
func (r *row) date(col string) time.Time {
	s := r.str(col)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	r.fail(col, fmt.Errorf("unrecognized date %q", s))
	return time.Time{}
}
