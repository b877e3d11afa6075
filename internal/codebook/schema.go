package codebook

import (
	"fmt"

	"github.com/TobiSchelling/surveyscore/internal/survey"
)

// Variant identifies the inventory length.
type Variant int

const (
	Short120 Variant = iota
	Full300
)

func (v Variant) String() string {
	switch v {
	case Short120:
		return "NEO-IPIP 120"
	case Full300:
		return "NEO-IPIP 300"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// Items returns the nominal item count of the variant.
func (v Variant) Items() int {
	if v == Full300 {
		return 300
	}
	return 120
}

// Schema is the static item → facet → dimension mapping of one variant.
// Entries without a dimension are not part of it.
type Schema struct {
	Variant Variant

	items           []string
	facets          []string
	itemFacet       map[string]string
	itemReverse     map[string]bool
	facetDimension  map[string]Dimension
	facetItems      map[string][]string
	dimensionFacets map[Dimension][]string
	dimensionItems  map[Dimension][]string
}

func buildSchema(v Variant, entries []Entry) (*Schema, error) {
	s := &Schema{
		Variant:         v,
		itemFacet:       make(map[string]string),
		itemReverse:     make(map[string]bool),
		facetDimension:  make(map[string]Dimension),
		facetItems:      make(map[string][]string),
		dimensionFacets: make(map[Dimension][]string),
		dimensionItems:  make(map[Dimension][]string),
	}

	for _, e := range entries {
		if e.Dimension == "" {
			continue
		}
		if v == Short120 && !e.ShortForm {
			continue
		}

		if facet, ok := s.itemFacet[e.ItemID]; ok {
			if facet != e.Facet || s.facetDimension[facet] != e.Dimension || s.itemReverse[e.ItemID] != e.Reverse {
				return nil, &survey.SchemaMismatchError{
					Reason: fmt.Sprintf("%s: item %q has conflicting codebook entries", v, e.ItemID),
				}
			}
			continue
		}

		if d, ok := s.facetDimension[e.Facet]; ok && d != e.Dimension {
			return nil, &survey.SchemaMismatchError{
				Reason: fmt.Sprintf("%s: facet %q spans %s and %s", v, e.Facet, d, e.Dimension),
			}
		}

		if _, ok := s.facetDimension[e.Facet]; !ok {
			s.facetDimension[e.Facet] = e.Dimension
			s.facets = append(s.facets, e.Facet)
			s.dimensionFacets[e.Dimension] = append(s.dimensionFacets[e.Dimension], e.Facet)
		}
		s.items = append(s.items, e.ItemID)
		s.itemFacet[e.ItemID] = e.Facet
		s.itemReverse[e.ItemID] = e.Reverse
		s.facetItems[e.Facet] = append(s.facetItems[e.Facet], e.ItemID)
		s.dimensionItems[e.Dimension] = append(s.dimensionItems[e.Dimension], e.ItemID)
	}
	return s, nil
}

// Len returns the number of scored items.
func (s *Schema) Len() int { return len(s.items) }

// Items returns the scored items in codebook order.
func (s *Schema) Items() []string { return s.items }

// Facets returns every facet in first-appearance order.
func (s *Schema) Facets() []string { return s.facets }

// Facet returns the facet an item belongs to.
func (s *Schema) Facet(item string) (string, bool) {
	f, ok := s.itemFacet[item]
	return f, ok
}

// Reverse reports whether an item is reverse-keyed.
func (s *Schema) Reverse(item string) bool { return s.itemReverse[item] }

// DimensionOf returns the dimension a facet rolls up to.
func (s *Schema) DimensionOf(facet string) Dimension { return s.facetDimension[facet] }

// FacetItems returns the items of a facet.
func (s *Schema) FacetItems(facet string) []string { return s.facetItems[facet] }

// DimensionFacets returns the facets of a dimension in first-appearance order.
func (s *Schema) DimensionFacets(d Dimension) []string { return s.dimensionFacets[d] }

// DimensionItems returns every item under a dimension.
func (s *Schema) DimensionItems(d Dimension) []string { return s.dimensionItems[d] }

// Dimensions returns the dimensions that have items in this variant, in
// declaration order.
func (s *Schema) Dimensions() []Dimension {
	var out []Dimension
	for _, d := range Dimensions {
		if len(s.dimensionItems[d]) > 0 {
			out = append(out, d)
		}
	}
	return out
}

// ReverseItems returns the reverse-keyed items in codebook order.
func (s *Schema) ReverseItems() []string {
	var out []string
	for _, item := range s.items {
		if s.itemReverse[item] {
			out = append(out, item)
		}
	}
	return out
}
