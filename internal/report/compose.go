package report

import (
	"fmt"
	"strings"

	"github.com/TobiSchelling/surveyscore/internal/aggregate"
	"github.com/TobiSchelling/surveyscore/internal/engine"
)

const barGlyph = "█"

// Compose writes a respondent's report as Markdown. Dimensions and facets
// follow the batch layout.
func Compose(b *engine.Batch, r *engine.Record) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Personality Report: %s\n\n", escape(displayName(r)))
	if r.Email != "" {
		fmt.Fprintf(&sb, "**Email:** %s  \n", escape(r.Email))
	}
	fmt.Fprintf(&sb, "**Completed:** %s  \n", r.CompletionTime)
	fmt.Fprintf(&sb, "**Time to completion:** %s\n\n", r.ResponseTime)

	sb.WriteString("| Measure | Score |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Personality Score | %d (Out of %d Total) |\n", r.Personality, b.MaxPersonality())
	fmt.Fprintf(&sb, "| Social Desirability Score | %d |\n", r.SocialDesirability)
	fmt.Fprintf(&sb, "| Variation Score | %d |\n", r.ResponseVariance)

	var open bool
	for _, c := range b.Layout {
		if c.Kind == aggregate.DimensionColumn {
			fmt.Fprintf(&sb, "\n## %s: %d\n\n", c.Name, r.Dimensions[c.Dimension])
			sb.WriteString("| Facet | Score | |\n|---|---|---|\n")
			open = true
			continue
		}
		if !open {
			continue
		}
		score := r.Facets[c.Name]
		fmt.Fprintf(&sb, "| %s | %d | %s |\n", escape(c.Name), score, bar(score))
	}
	return sb.String()
}

func displayName(r *engine.Record) string {
	if r.FullName != "" {
		return r.FullName
	}
	return fmt.Sprintf("Respondent %d", r.Row)
}

func bar(score int) string {
	if score <= 0 {
		return ""
	}
	return strings.Repeat(barGlyph, score)
}

var mdEscaper = strings.NewReplacer(`|`, `\|`, `*`, `\*`, `_`, `\_`, "`", "\\`", `#`, `\#`, `<`, `&lt;`)

func escape(s string) string {
	return mdEscaper.Replace(s)
}
