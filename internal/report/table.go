package report

import (
	"github.com/TobiSchelling/surveyscore/internal/engine"
	"github.com/TobiSchelling/surveyscore/internal/workbook"
)

// ScoreSheet is the sheet name of the exported score table.
const ScoreSheet = "Scores"

// WriteTable exports the batch as a workbook with one row per scored
// respondent.
func WriteTable(path string, b *engine.Batch) error {
	rows := make([][]any, len(b.Records))
	for i := range b.Records {
		rows[i] = b.Row(&b.Records[i])
	}
	return workbook.Write(path, ScoreSheet, b.Header(), rows)
}
