package snapshot

import (
	"fmt"

	"github.com/TobiSchelling/surveyscore/internal/survey"
)

// Category is the survey family an export belongs to, judged by its width.
type Category int

const (
	ICAR16 Category = iota
	ICAR60
	NEOIPIP120
	NEOIPIP300
)

// Categories lists every category.
var Categories = []Category{ICAR16, ICAR60, NEOIPIP120, NEOIPIP300}

// Dir returns the folder name exports of this category are filed under.
func (c Category) Dir() string {
	switch c {
	case ICAR16:
		return "ICAR 16"
	case ICAR60:
		return "ICAR 60"
	case NEOIPIP120:
		return "NEO-IPIP 120"
	case NEOIPIP300:
		return "NEO-IPIP 300"
	default:
		return fmt.Sprintf("category-%d", int(c))
	}
}

func (c Category) String() string { return c.Dir() }

// Personality reports whether the category is an IPIP-NEO inventory.
func (c Category) Personality() bool {
	return c == NEOIPIP120 || c == NEOIPIP300
}

// Classify buckets an export by column count: <50 ICAR 16, 50<x<120 ICAR 60,
// 120<x<300 NEO-IPIP 120, >300 NEO-IPIP 300. The boundary values themselves
// match no bucket.
func Classify(columns int) (Category, error) {
	switch {
	case columns < 50:
		return ICAR16, nil
	case columns > 50 && columns < 120:
		return ICAR60, nil
	case columns > 120 && columns < 300:
		return NEOIPIP120, nil
	case columns > 300:
		return NEOIPIP300, nil
	}
	return 0, &survey.SchemaMismatchError{
		Reason: fmt.Sprintf("export has %d columns, which matches no survey format", columns),
	}
}
