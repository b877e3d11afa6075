// Package aggregate rolls recoded item scores up into facets and dimensions.
package aggregate

import (
	"math"

	"go.uber.org/zap"

	"github.com/TobiSchelling/surveyscore/internal/codebook"
	"github.com/TobiSchelling/surveyscore/internal/recode"
	"github.com/TobiSchelling/surveyscore/internal/survey"
)

// ColumnKind tells a dimension column from a facet column in the layout.
type ColumnKind int

const (
	DimensionColumn ColumnKind = iota
	FacetColumn
)

// Column is one entry of the grouped score layout.
type Column struct {
	Name      string
	Kind      ColumnKind
	Dimension codebook.Dimension
}

// Scores holds one respondent's aggregated results.
type Scores struct {
	Dimensions  map[codebook.Dimension]int
	Facets      map[string]int
	Personality int
}

// Value returns the score shown under a layout column.
func (s *Scores) Value(c Column) int {
	if c.Kind == DimensionColumn {
		return s.Dimensions[c.Dimension]
	}
	return s.Facets[c.Name]
}

type itemRef struct {
	name string
	col  int
}

// Aggregator scores rows of one recoded export. Item positions are resolved
// once in New.
type Aggregator struct {
	schema *codebook.Schema
	layout []Column

	facetItems     map[string][]itemRef
	dimensionItems map[codebook.Dimension][]itemRef
	allItems       []itemRef
}

// New resolves the schema against the export columns. Codebook items the
// export lacks are logged and contribute nothing.
func New(schema *codebook.Schema, m *recode.Matrix, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Aggregator{
		schema:         schema,
		facetItems:     make(map[string][]itemRef),
		dimensionItems: make(map[codebook.Dimension][]itemRef),
	}

	var missing []string
	for _, item := range schema.Items() {
		col := m.Index(item)
		if col < 0 {
			missing = append(missing, item)
			continue
		}
		ref := itemRef{name: item, col: col}
		facet, _ := schema.Facet(item)
		a.facetItems[facet] = append(a.facetItems[facet], ref)
		d := schema.DimensionOf(facet)
		a.dimensionItems[d] = append(a.dimensionItems[d], ref)
		a.allItems = append(a.allItems, ref)
	}
	if len(missing) > 0 {
		logger.Warn("codebook items absent from export",
			zap.String("variant", schema.Variant.String()),
			zap.Int("missing", len(missing)),
			zap.Strings("items", missing))
	}

	for _, d := range schema.Dimensions() {
		a.layout = append(a.layout, Column{Name: string(d), Kind: DimensionColumn, Dimension: d})
		for _, f := range schema.DimensionFacets(d) {
			a.layout = append(a.layout, Column{Name: f, Kind: FacetColumn, Dimension: d})
		}
	}
	return a
}

// Layout returns the grouped column order: each dimension followed by its
// facets, dimensions in declaration order.
func (a *Aggregator) Layout() []Column {
	return a.layout
}

// Items returns how many codebook items were found in the export.
func (a *Aggregator) Items() int {
	return len(a.allItems)
}

// Score aggregates one row of recoded values. Skipped items contribute
// nothing; any other non-numeric item fails the row with an
// UnscorableResponseError.
func (a *Aggregator) Score(row []recode.Value) (*Scores, error) {
	var bad survey.UnscorableResponseError
	for _, ref := range a.allItems {
		if v := row[ref.col]; !v.Numeric && !v.Missing {
			bad.Items = append(bad.Items, ref.name)
			bad.Values = append(bad.Values, v.Raw)
		}
	}
	if len(bad.Items) > 0 {
		return nil, &bad
	}

	s := &Scores{
		Dimensions:  make(map[codebook.Dimension]int),
		Facets:      make(map[string]int),
		Personality: round(sum(row, a.allItems)),
	}
	for _, f := range a.schema.Facets() {
		s.Facets[f] = round(sum(row, a.facetItems[f]))
	}
	for _, d := range a.schema.Dimensions() {
		s.Dimensions[d] = DimensionScore(sum(row, a.dimensionItems[d]), len(a.schema.DimensionFacets(d)))
	}
	return s, nil
}

// DimensionScore normalizes a dimension's item total by its facet count and
// rounds half to even.
func DimensionScore(total float64, facets int) int {
	if facets == 0 {
		return 0
	}
	return round(total / float64(facets))
}

func sum(row []recode.Value, refs []itemRef) float64 {
	var total float64
	for _, ref := range refs {
		if v := row[ref.col]; v.Numeric {
			total += v.Score
		}
	}
	return total
}

func round(v float64) int {
	return int(math.RoundToEven(v))
}
