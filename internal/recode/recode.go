// Package recode turns Likert labels into ordinal scores and applies
// reverse-keying from the codebook.
package recode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/TobiSchelling/surveyscore/internal/codebook"
	"github.com/TobiSchelling/surveyscore/internal/survey"
	"github.com/TobiSchelling/surveyscore/internal/workbook"
)

// VariantThreshold separates the 120-item and 300-item inventories by
// response-column count.
const VariantThreshold = 300

// ScaleMax is the top of the five-point scale; reverse-keying maps v to
// ScaleMax+1-v.
const ScaleMax = 5

// Labels maps the five categorical answers to ordinal scores.
var Labels = map[string]float64{
	"Inaccurate":            1,
	"Moderately Inaccurate": 2,
	"Neither":               3,
	"Moderately Accurate":   4,
	"Accurate":              5,
}

// ErrAlreadyReversed is returned when reverse-keying is applied to a matrix
// a second time.
var ErrAlreadyReversed = errors.New("reverse keying already applied")

// Value is one recoded cell. Numeric is false for blanks and unrecognized
// labels; Missing is set only for blanks. Raw keeps the original text.
type Value struct {
	Raw     string
	Score   float64
	Numeric bool
	Missing bool
}

// Map converts a raw cell. Known labels map to 1..5 and numbers pass through.
// A blank cell is a skipped answer, not an error.
func Map(raw string) Value {
	if strings.TrimSpace(raw) == "" {
		return Value{Raw: raw, Missing: true}
	}
	if s, ok := Labels[raw]; ok {
		return Value{Raw: raw, Score: s, Numeric: true}
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return Value{Raw: raw, Score: f, Numeric: true}
	}
	return Value{Raw: raw}
}

// Reflect mirrors a score on the five-point scale. Applying it twice returns
// the original value.
func Reflect(v float64) float64 {
	return ScaleMax + 1 - v
}

// SelectVariant picks the inventory by response-column count: fewer than 300
// is the 120-item form, more than 300 the 300-item form.
func SelectVariant(columns int) (codebook.Variant, error) {
	switch {
	case columns < VariantThreshold:
		return codebook.Short120, nil
	case columns > VariantThreshold:
		return codebook.Full300, nil
	}
	return 0, &survey.SchemaMismatchError{
		Reason: fmt.Sprintf("%d response columns is ambiguous between the 120 and 300 item inventories", columns),
	}
}

// Matrix holds the recoded responses of a batch. Columns are the
// non-placeholder columns of the export, in order.
type Matrix struct {
	Columns []string
	Variant codebook.Variant

	// Ordinal holds label-mapped values before reverse-keying.
	Ordinal [][]Value
	// Scored holds the values after reverse-keying.
	Scored [][]Value

	index    map[string]int
	reversed bool
}

// Index returns the position of a column, or -1.
func (m *Matrix) Index(col string) int {
	if i, ok := m.index[col]; ok {
		return i
	}
	return -1
}

// Reversed reports whether reverse-keying has been applied.
func (m *Matrix) Reversed() bool { return m.reversed }

// ApplyReverse reflects every reverse-keyed item of the schema present in the
// matrix. It may run once per matrix.
func (m *Matrix) ApplyReverse(schema *codebook.Schema) (int, error) {
	if m.reversed {
		return 0, ErrAlreadyReversed
	}
	m.reversed = true

	flipped := 0
	for _, item := range schema.ReverseItems() {
		col := m.Index(item)
		if col < 0 {
			continue
		}
		for _, row := range m.Scored {
			if row[col].Numeric {
				row[col].Score = Reflect(row[col].Score)
			}
		}
		flipped++
	}
	return flipped, nil
}

// Recoder prepares export tables for aggregation.
type Recoder struct {
	cb     *codebook.Codebook
	logger *zap.Logger
}

// New creates a recoder for a codebook.
func New(cb *codebook.Codebook, logger *zap.Logger) *Recoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recoder{cb: cb, logger: logger}
}

// Recode drops placeholder columns, maps labels, selects the variant and
// reverse-keys the variant's items.
func (r *Recoder) Recode(t *workbook.Table) (*Matrix, error) {
	var keep []int
	var cols []string
	for i, h := range t.Header {
		if workbook.IsPlaceholder(h) {
			continue
		}
		keep = append(keep, i)
		cols = append(cols, h)
	}

	variant, err := SelectVariant(len(cols))
	if err != nil {
		return nil, err
	}

	m := &Matrix{
		Columns: cols,
		Variant: variant,
		Ordinal: make([][]Value, len(t.Rows)),
		Scored:  make([][]Value, len(t.Rows)),
		index:   make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		m.index[c] = i
	}
	for i, row := range t.Rows {
		ord := make([]Value, len(keep))
		for j, src := range keep {
			ord[j] = Map(row[src])
		}
		scored := make([]Value, len(ord))
		copy(scored, ord)
		m.Ordinal[i] = ord
		m.Scored[i] = scored
	}

	flipped, err := m.ApplyReverse(r.cb.Schema(variant))
	if err != nil {
		return nil, err
	}
	r.logger.Info("responses recoded",
		zap.String("variant", variant.String()),
		zap.Int("columns", len(cols)),
		zap.Int("respondents", len(t.Rows)),
		zap.Int("reversed_items", flipped))
	return m, nil
}
