// Package engine assembles scored records from a working set of export rows.
//
// Score is pure: it takes a codebook and a table and returns a Batch. Path
// resolution, file moves and rendering live in the pipeline and report
// packages.
package engine

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/TobiSchelling/surveyscore/internal/aggregate"
	"github.com/TobiSchelling/surveyscore/internal/auxiliary"
	"github.com/TobiSchelling/surveyscore/internal/codebook"
	"github.com/TobiSchelling/surveyscore/internal/recode"
	"github.com/TobiSchelling/surveyscore/internal/survey"
	"github.com/TobiSchelling/surveyscore/internal/workbook"
)

// DefaultTimezone is the civil zone completion times are reported in.
const DefaultTimezone = "America/Los_Angeles"

// TimestampLayout formats start and end times in the score table.
const TimestampLayout = "2006-01-02 15:04:05"

// Options configures a scoring run.
type Options struct {
	Identity ColumnRefs
	Location *time.Location
	Logger   *zap.Logger
}

// Record is one respondent's scored result. Records are not modified after
// Score returns.
type Record struct {
	Row int
	Identity

	// Started and Ended are the parsed start and end timestamps in the
	// reporting zone.
	Started time.Time
	Ended   time.Time

	ResponseTime       string
	CompletionTime     string
	ResponseVariance   int
	SocialDesirability int
	Personality        int

	Dimensions map[codebook.Dimension]int
	Facets     map[string]int
}

// Batch is the scored output of one run.
type Batch struct {
	Variant  codebook.Variant
	Layout   []aggregate.Column
	Items    int
	Records  []Record
	Failures []*survey.RespondentError
}

// Err combines every respondent failure, or returns nil.
func (b *Batch) Err() error {
	var err error
	for _, f := range b.Failures {
		err = multierr.Append(err, f)
	}
	return err
}

// MaxPersonality is the highest attainable personality score.
func (b *Batch) MaxPersonality() int {
	return recode.ScaleMax * b.Variant.Items()
}

var fixedColumns = []string{
	"Start Date", "End Date", "IP Address",
	"First name", "Last name", "Middle name", "Full Name", "Email address",
	"Response Time", "Completion Time", "Response Variance",
	"Social Desirability Score", "Personality Score",
}

// Header returns the score table header: identity and auxiliary columns,
// then the grouped dimension and facet columns.
func (b *Batch) Header() []string {
	h := append([]string(nil), fixedColumns...)
	for _, c := range b.Layout {
		h = append(h, c.Name)
	}
	return h
}

// Row returns a record as score table cells, in Header order.
func (b *Batch) Row(r *Record) []any {
	row := []any{
		stamp(r.Started, r.Start), stamp(r.Ended, r.End), r.IP,
		r.FirstName, r.LastName, r.MiddleName, r.FullName, r.Email,
		r.ResponseTime, r.CompletionTime, r.ResponseVariance,
		r.SocialDesirability, r.Personality,
	}
	for _, c := range b.Layout {
		if c.Kind == aggregate.DimensionColumn {
			row = append(row, r.Dimensions[c.Dimension])
		} else {
			row = append(row, r.Facets[c.Name])
		}
	}
	return row
}

// Score recodes and aggregates every row of t. Structural problems (identity
// columns, variant, codebook coverage) abort with an error; problems with a
// single respondent are collected in Batch.Failures.
func Score(cb *codebook.Codebook, t *workbook.Table, opts Options) (*Batch, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := opts.Location
	if loc == nil {
		var err error
		if loc, err = time.LoadLocation(DefaultTimezone); err != nil {
			return nil, fmt.Errorf("loading timezone: %w", err)
		}
	}

	ids, err := opts.Identity.resolve(t)
	if err != nil {
		return nil, err
	}

	m, err := recode.New(cb, logger).Recode(t)
	if err != nil {
		return nil, fmt.Errorf("recoding responses: %w", err)
	}
	schema := cb.Schema(m.Variant)
	agg := aggregate.New(schema, m, logger)
	if agg.Items() == 0 {
		return nil, &survey.SchemaMismatchError{
			Reason: fmt.Sprintf("no %s codebook items found among %d export columns", m.Variant, len(m.Columns)),
		}
	}

	responses := auxiliary.Resolve(m, schema.Items(), cb.Desirability)
	desirability := auxiliary.Resolve(m, cb.Desirability)
	if desirability.Len() == 0 {
		logger.Warn("no social desirability items found in export")
	}

	batch := &Batch{
		Variant: m.Variant,
		Layout:  agg.Layout(),
		Items:   agg.Items(),
	}
	for i, raw := range t.Rows {
		rec := Record{Row: i + 1, Identity: ids.read(raw)}
		var rowErr error

		start, err := auxiliary.ParseTimestamp(rec.Start, loc)
		rowErr = multierr.Append(rowErr, wrap("start time", err))
		end, err := auxiliary.ParseTimestamp(rec.End, loc)
		rowErr = multierr.Append(rowErr, wrap("end time", err))
		if rowErr == nil {
			rec.Started, rec.Ended = start.In(loc), end.In(loc)
			rec.ResponseTime, err = auxiliary.ResponseTime(start, end)
			rowErr = multierr.Append(rowErr, wrap("response time", err))
			rec.CompletionTime = auxiliary.CompletionTime(end, loc)
		}

		rec.ResponseVariance, err = auxiliary.ResponseVariance(responses.Numeric(m.Ordinal[i]))
		rowErr = multierr.Append(rowErr, err)

		rec.SocialDesirability, err = desirability.Sum(m.Scored[i])
		rowErr = multierr.Append(rowErr, wrap("social desirability", err))

		scores, err := agg.Score(m.Scored[i])
		rowErr = multierr.Append(rowErr, err)

		if rowErr != nil {
			f := &survey.RespondentError{Row: rec.Row, Name: rec.FullName, Err: rowErr}
			batch.Failures = append(batch.Failures, f)
			logger.Warn("respondent not scored", zap.Int("row", rec.Row), zap.String("name", rec.FullName), zap.Error(rowErr))
			continue
		}
		rec.Personality = scores.Personality
		rec.Dimensions = scores.Dimensions
		rec.Facets = scores.Facets
		batch.Records = append(batch.Records, rec)
	}

	logger.Info("batch scored",
		zap.String("variant", batch.Variant.String()),
		zap.Int("items", batch.Items),
		zap.Int("scored", len(batch.Records)),
		zap.Int("failed", len(batch.Failures)))
	return batch, nil
}

func stamp(t time.Time, raw string) string {
	if t.IsZero() {
		return raw
	}
	return t.Format(TimestampLayout)
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", what, err)
}
