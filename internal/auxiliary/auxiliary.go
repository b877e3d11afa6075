// Package auxiliary computes the per-respondent metrics reported next to the
// personality scores: time to completion, completion timestamp, response
// variance and social desirability.
package auxiliary

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/stat"

	"github.com/TobiSchelling/surveyscore/internal/recode"
	"github.com/TobiSchelling/surveyscore/internal/survey"
)

// MinResponses is the fewest numeric responses response variance accepts.
const MinResponses = 4

// CompletionLayout renders completion timestamps, e.g. "03/14/2024 09:05AM PDT".
const CompletionLayout = "01/02/2006 03:04PM MST"

// ParseTimestamp reads an export timestamp. Excel serial numbers and
// free-form date strings are accepted; times without a zone are wall-clock
// times in loc.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %q: %w", raw, err)
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc), nil
	}
	t, err := dateparse.ParseIn(raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", raw, err)
	}
	return t, nil
}

// ResponseTime formats end-start as HH:MM:SS. The elapsed time is rebuilt from
// fractional minutes and truncated to whole seconds; hours wrap at 24.
func ResponseTime(start, end time.Time) (string, error) {
	elapsed := end.Sub(start)
	if elapsed < 0 {
		return "", fmt.Errorf("end %s is before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	minutes := elapsed.Seconds() / 60
	d := time.Duration(math.Round(minutes * float64(time.Minute))).Truncate(time.Second)
	return time.Unix(0, 0).UTC().Add(d).Format("15:04:05"), nil
}

// CompletionTime formats the end timestamp in loc.
func CompletionTime(end time.Time, loc *time.Location) string {
	return end.In(loc).Format(CompletionLayout)
}

// ResponseVariance returns round(sample stdev × 10). Fewer than MinResponses
// values is an InsufficientDataError.
func ResponseVariance(values []float64) (int, error) {
	if len(values) < MinResponses {
		return 0, &survey.InsufficientDataError{
			Reason: "response variance",
			Have:   len(values),
			Need:   MinResponses,
		}
	}
	return int(math.RoundToEven(stat.StdDev(values, nil) * 10)), nil
}

// Columns is a fixed set of matrix positions resolved once per export.
type Columns struct {
	names []string
	cols  []int
}

// Len returns the number of resolved columns.
func (c Columns) Len() int { return len(c.cols) }

// Resolve selects the named columns present in the matrix, each once, in
// the order given. Names the export lacks are skipped.
func Resolve(m *recode.Matrix, groups ...[]string) Columns {
	var c Columns
	seen := make(map[int]bool)
	for _, items := range groups {
		for _, item := range items {
			col := m.Index(item)
			if col < 0 || seen[col] {
				continue
			}
			seen[col] = true
			c.names = append(c.names, item)
			c.cols = append(c.cols, col)
		}
	}
	return c
}

// Sum adds the values at the columns, skipping blanks. Any other non-numeric
// value fails with an UnscorableResponseError.
func (c Columns) Sum(row []recode.Value) (int, error) {
	var bad survey.UnscorableResponseError
	var total float64
	for i, col := range c.cols {
		v := row[col]
		if v.Missing {
			continue
		}
		if !v.Numeric {
			bad.Items = append(bad.Items, c.names[i])
			bad.Values = append(bad.Values, v.Raw)
			continue
		}
		total += v.Score
	}
	if len(bad.Items) > 0 {
		return 0, &bad
	}
	return int(math.RoundToEven(total)), nil
}

// Numeric returns the numeric values at the columns, skipping blanks and
// text.
func (c Columns) Numeric(row []recode.Value) []float64 {
	out := make([]float64, 0, len(c.cols))
	for _, col := range c.cols {
		if v := row[col]; v.Numeric {
			out = append(out, v.Score)
		}
	}
	return out
}
