// Package codebook loads the IPIP-NEO scoring key and resolves it into
// per-variant lookup tables.
package codebook

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/TobiSchelling/surveyscore/internal/workbook"
)

// Sheet and column names of the scoring-key workbook.
const (
	ItemKeySheet      = "IPIP-NEO-ItemKey"
	DesirabilitySheet = "Social_Desirability"

	colKey       = "Key"
	colSign      = "Sign"
	colFacet     = "Facet"
	colItem      = "Item"
	colShortForm = "Short#"
)

// Dimension is one of the five broad personality traits.
type Dimension string

const (
	Openness          Dimension = "Openness"
	Conscientiousness Dimension = "Conscientiousness"
	Extroversion      Dimension = "Extroversion"
	Agreeableness     Dimension = "Agreeableness"
	Neuroticism       Dimension = "Neuroticism"
)

// Dimensions lists the traits in declaration order. Key markers are tested
// in this order too, so the first match wins.
var Dimensions = []Dimension{Openness, Conscientiousness, Extroversion, Agreeableness, Neuroticism}

var markers = map[Dimension]string{
	Openness:          "O",
	Conscientiousness: "C",
	Extroversion:      "E",
	Agreeableness:     "A",
	Neuroticism:       "N",
}

// DimensionFromKey derives the dimension from an item key such as "N1" or
// "E3". The second result is false when no marker is present.
func DimensionFromKey(key string) (Dimension, bool) {
	for _, d := range Dimensions {
		if strings.Contains(key, markers[d]) {
			return d, true
		}
	}
	return "", false
}

// Entry is one row of the personality item key.
type Entry struct {
	ItemID    string
	Key       string
	Facet     string
	Dimension Dimension // empty when the key carries no marker
	Reverse   bool
	ShortForm bool
}

// Codebook holds the parsed item key, the social-desirability items and the
// schema for each survey variant.
type Codebook struct {
	Entries      []Entry
	Desirability []string

	schemas map[Variant]*Schema
}

// Load reads both sheets of the scoring-key workbook. A missing workbook,
// sheet or column is fatal.
func Load(path string, logger *zap.Logger) (*Codebook, error) {
	items, err := workbook.Read(path, ItemKeySheet, 0)
	if err != nil {
		return nil, fmt.Errorf("loading item key: %w", err)
	}
	sds, err := workbook.Read(path, DesirabilitySheet, 0)
	if err != nil {
		return nil, fmt.Errorf("loading social desirability key: %w", err)
	}
	return Parse(items, sds, logger)
}

// Parse builds a Codebook from the two key tables.
func Parse(items, desirability *workbook.Table, logger *zap.Logger) (*Codebook, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	idx, err := items.Require(colKey, colSign, colFacet, colItem)
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", ItemKeySheet, err)
	}
	shortCol := items.Index(colShortForm)
	if shortCol < 0 {
		logger.Warn("item key has no short-form column; the 120-item variant will be empty")
	}
	sdIdx, err := desirability.Require(colItem)
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", DesirabilitySheet, err)
	}

	cb := &Codebook{}
	unmarked := 0
	for _, row := range items.Rows {
		item := row[idx[colItem]]
		if item == "" {
			continue
		}
		e := Entry{
			ItemID:    item,
			Key:       row[idx[colKey]],
			Facet:     row[idx[colFacet]],
			Reverse:   strings.Contains(row[idx[colSign]], "-"),
			ShortForm: shortCol >= 0 && row[shortCol] != "",
		}
		if d, ok := DimensionFromKey(e.Key); ok {
			e.Dimension = d
		} else {
			unmarked++
		}
		cb.Entries = append(cb.Entries, e)
	}
	if unmarked > 0 {
		logger.Warn("codebook entries without a dimension marker are excluded from scoring",
			zap.Int("entries", unmarked))
	}

	seen := make(map[string]bool)
	for _, row := range desirability.Rows {
		item := row[sdIdx[colItem]]
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		cb.Desirability = append(cb.Desirability, item)
	}

	cb.schemas = make(map[Variant]*Schema, 2)
	for _, v := range []Variant{Short120, Full300} {
		s, err := buildSchema(v, cb.Entries)
		if err != nil {
			return nil, err
		}
		cb.schemas[v] = s
	}

	logger.Debug("codebook loaded",
		zap.Int("entries", len(cb.Entries)),
		zap.Int("short_form_items", cb.schemas[Short120].Len()),
		zap.Int("full_items", cb.schemas[Full300].Len()),
		zap.Int("desirability_items", len(cb.Desirability)))
	return cb, nil
}

// Schema returns the resolved lookup tables for a variant.
func (cb *Codebook) Schema(v Variant) *Schema {
	return cb.schemas[v]
}
