// Package workbook reads and writes spreadsheet tables.
package workbook

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/TobiSchelling/surveyscore/internal/survey"
)

// PlaceholderPrefix marks generated headers for blank header cells.
const PlaceholderPrefix = "Unnamed"

// Table is a header row plus string cells. Every row has len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// Width returns the number of columns.
func (t *Table) Width() int {
	return len(t.Header)
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Column returns every value of the named column, or nil if absent.
func (t *Table) Column(name string) []string {
	idx := t.Index(name)
	if idx < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out
}

// Require returns the positions of the named columns, failing with every
// missing name at once.
func (t *Table) Require(names ...string) (map[string]int, error) {
	idx := make(map[string]int, len(names))
	var missing []string
	for _, n := range names {
		i := t.Index(n)
		if i < 0 {
			missing = append(missing, n)
			continue
		}
		idx[n] = i
	}
	if len(missing) > 0 {
		return nil, &survey.SchemaMismatchError{Reason: "expected columns absent", Missing: missing}
	}
	return idx, nil
}

// Key returns a value identifying a row by the exact contents of all cells.
func Key(row []string) string {
	return strings.Join(row, "\x1f")
}

// IsPlaceholder reports whether a header was generated for a blank cell.
func IsPlaceholder(header string) bool {
	return strings.HasPrefix(header, PlaceholderPrefix)
}

// Read loads a sheet (the first one when sheet is empty), skips headerOffset
// leading rows and uses the next row as header. Cells are raw values, so
// dates come back as Excel serial numbers.
func Read(path, sheet string, headerOffset int) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &survey.MissingFileError{Path: path}
		}
		return nil, fmt.Errorf("checking workbook: %w", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, &survey.MissingFileError{Path: path, Sheet: "(first sheet)"}
		}
		sheet = sheets[0]
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, &survey.MissingFileError{Path: path, Sheet: sheet}
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheet, err)
	}
	return FromRows(rows, headerOffset)
}

// FromRows builds a Table from raw rows the same way Read does.
func FromRows(rows [][]string, headerOffset int) (*Table, error) {
	if len(rows) <= headerOffset {
		return nil, &survey.SchemaMismatchError{Reason: fmt.Sprintf("no header row after skipping %d rows", headerOffset)}
	}
	body := rows[headerOffset:]

	width := 0
	for _, r := range body {
		if len(r) > width {
			width = len(r)
		}
	}

	t := &Table{Header: normalizeHeader(body[0], width)}
	for _, r := range body[1:] {
		if blank(r) {
			continue
		}
		row := make([]string, width)
		for i, cell := range r {
			row[i] = strings.TrimSpace(cell)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// normalizeHeader names blank headers "Unnamed: <i>" and suffixes repeats
// with ".1", ".2", ... so every column name is unique.
func normalizeHeader(raw []string, width int) []string {
	header := make([]string, width)
	seen := make(map[string]int, width)
	for i := 0; i < width; i++ {
		name := ""
		if i < len(raw) {
			name = strings.TrimSpace(raw[i])
		}
		if name == "" {
			name = PlaceholderPrefix + ": " + strconv.Itoa(i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n+1)
		} else {
			seen[name] = 0
		}
		header[i] = name
	}
	return header
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Write saves header and rows into a new workbook with a single named sheet.
func Write(path, sheet string, header []string, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	head := make([]any, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := r
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook %s: %w", path, err)
	}
	return nil
}
