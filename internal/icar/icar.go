// Package icar precomputes norm tables for the ICAR cognitive batteries from
// published sample data.
package icar

import (
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/TobiSchelling/surveyscore/internal/workbook"
)

// Item key columns.
const (
	colDimension = "dimension"
	col16        = "ICAR16"
	col60Orig    = "ICAR60_original"
	col60        = "ICAR60"
)

// Norm table columns.
const (
	ColAge     = "age"
	ColTotal16 = "ICAR16_Total"
	ColTotal60 = "ICAR60_Total"

	// Suffix60 marks a dimension score scaled to the 60-item battery.
	Suffix60 = "_60"
)

// ItemsPerDimension16 is how many items each dimension has in the 16-item
// battery. 60-scaled scores multiply a raw sum by items/ItemsPerDimension16.
const ItemsPerDimension16 = 4

// Key maps ICAR dimensions to their item columns in each sample.
type Key struct {
	Dimensions []string

	items map[string]map[string][]string // column -> dimension -> items
	all60 []string
}

// LoadKey reads the item key from the first sheet of a workbook.
func LoadKey(path string) (*Key, error) {
	t, err := workbook.Read(path, "", 0)
	if err != nil {
		return nil, fmt.Errorf("loading ICAR item key: %w", err)
	}
	return ParseKey(t)
}

// ParseKey builds a Key. Item lists per dimension are de-duplicated and keep
// first-appearance order; blank cells are ignored.
func ParseKey(t *workbook.Table) (*Key, error) {
	idx, err := t.Require(colDimension, col16, col60Orig, col60)
	if err != nil {
		return nil, fmt.Errorf("ICAR item key: %w", err)
	}

	k := &Key{items: map[string]map[string][]string{
		col16:     {},
		col60Orig: {},
		col60:     {},
	}}
	seenDim := make(map[string]bool)
	seen := make(map[string]bool)
	seen60 := make(map[string]bool)
	for _, row := range t.Rows {
		d := row[idx[colDimension]]
		if d == "" {
			continue
		}
		if !seenDim[d] {
			seenDim[d] = true
			k.Dimensions = append(k.Dimensions, d)
		}
		for _, col := range []string{col16, col60Orig, col60} {
			item := row[idx[col]]
			if item == "" || seen[col+"\x00"+d+"\x00"+item] {
				continue
			}
			seen[col+"\x00"+d+"\x00"+item] = true
			k.items[col][d] = append(k.items[col][d], item)
		}
		if item := row[idx[col60]]; item != "" && !seen60[item] {
			seen60[item] = true
			k.all60 = append(k.all60, item)
		}
	}
	return k, nil
}

// Header returns the norm table columns: age, both totals, raw dimension
// scores, then 60-scaled dimension scores.
func (k *Key) Header() []string {
	h := []string{ColAge, ColTotal16, ColTotal60}
	h = append(h, k.Dimensions...)
	for _, d := range k.Dimensions {
		h = append(h, d+Suffix60)
	}
	return h
}

// Norms is a computed norm table.
type Norms struct {
	Header []string
	Rows   [][]any
}

// Write saves the table as CSV.
func (n *Norms) Write(path string) error {
	return workbook.WriteCSV(path, n.Header, n.Rows)
}

// Sample16 scores the 16-item sample: raw dimension scores from the ICAR16
// items, 60-scaled scores from the ICAR60_original items.
func (k *Key) Sample16(data *workbook.Table) (*Norms, error) {
	return k.score(data, col16, col60Orig, nil)
}

// Sample60 scores the 60-item sample. Both raw and scaled dimension scores
// use the ICAR60 items; ICAR16_Total is the sum over every ICAR60 item.
func (k *Key) Sample60(data *workbook.Table) (*Norms, error) {
	return k.score(data, col60, col60, k.all60)
}

// score computes one norm table. When totalItems is nil, ICAR16_Total is the
// sum of the raw dimension scores.
func (k *Key) score(data *workbook.Table, rawCol, scaledCol string, totalItems []string) (*Norms, error) {
	ageIdx, err := data.Require(ColAge)
	if err != nil {
		return nil, err
	}

	type dimCols struct {
		raw, scaled []int
		factor      float64
	}
	dims := make([]dimCols, len(k.Dimensions))
	for i, d := range k.Dimensions {
		scaledItems := k.items[scaledCol][d]
		dims[i] = dimCols{
			raw:    present(data, k.items[rawCol][d]),
			scaled: present(data, scaledItems),
			factor: float64(len(scaledItems)) / ItemsPerDimension16,
		}
	}
	var totalCols []int
	if totalItems != nil {
		totalCols = present(data, totalItems)
	}

	n := &Norms{Header: k.Header()}
	for _, row := range data.Rows {
		raw := make([]any, len(dims))
		scaled := make([]any, len(dims))
		var total16, total60 float64
		for i, dc := range dims {
			r := sum(row, dc.raw)
			s := sum(row, dc.scaled) * dc.factor
			raw[i], scaled[i] = r, s
			total16 += r
			total60 += s
		}
		if totalItems != nil {
			total16 = sum(row, totalCols)
		}

		out := []any{row[ageIdx[ColAge]], total16, total60}
		out = append(out, raw...)
		out = append(out, scaled...)
		n.Rows = append(n.Rows, out)
	}
	return n, nil
}

func present(t *workbook.Table, items []string) []int {
	var cols []int
	for _, item := range items {
		if i := t.Index(item); i >= 0 {
			cols = append(cols, i)
		}
	}
	return cols
}

// sum adds the numeric cells; blanks and NA markers count as missing.
func sum(row []string, cols []int) float64 {
	var total float64
	for _, c := range cols {
		if v, err := strconv.ParseFloat(row[c], 64); err == nil && !math.IsNaN(v) {
			total += v
		}
	}
	return total
}

// Paths locates the inputs and outputs of a norm build.
type Paths struct {
	Key      string
	Sample16 string
	Sample60 string
	Output16 string
	Output60 string
}

// Build loads the key and both samples, computes the norm tables and writes
// them. The 60-item table is the one the scoring side consumes.
func Build(p Paths, logger *zap.Logger) (n16, n60 *Norms, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	key, err := LoadKey(p.Key)
	if err != nil {
		return nil, nil, err
	}

	s16, err := workbook.ReadCSV(p.Sample16)
	if err != nil {
		return nil, nil, fmt.Errorf("loading ICAR16 sample: %w", err)
	}
	if n16, err = key.Sample16(s16); err != nil {
		return nil, nil, fmt.Errorf("ICAR16 sample: %w", err)
	}

	s60, err := workbook.ReadCSV(p.Sample60)
	if err != nil {
		return nil, nil, fmt.Errorf("loading ICAR60 sample: %w", err)
	}
	if n60, err = key.Sample60(s60); err != nil {
		return nil, nil, fmt.Errorf("ICAR60 sample: %w", err)
	}

	if p.Output16 != "" {
		if err := n16.Write(p.Output16); err != nil {
			return nil, nil, err
		}
	}
	if err := n60.Write(p.Output60); err != nil {
		return nil, nil, err
	}

	logger.Info("ICAR norms built",
		zap.Strings("dimensions", key.Dimensions),
		zap.Int("sample16_rows", len(n16.Rows)),
		zap.Int("sample60_rows", len(n60.Rows)),
		zap.String("output", p.Output60))
	return n16, n60, nil
}
