package engine

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/stat"

	"github.com/TobiSchelling/surveyscore/internal/aggregate"
	"github.com/TobiSchelling/surveyscore/internal/codebook"
	"github.com/TobiSchelling/surveyscore/internal/recode"
	"github.com/TobiSchelling/surveyscore/internal/survey"
	"github.com/TobiSchelling/surveyscore/internal/workbook"
)

var labels = []string{"Inaccurate", "Moderately Inaccurate", "Neither", "Moderately Accurate", "Accurate"}

var codes = []string{"O", "C", "E", "A", "N"}

// shortFormCodebook builds 5 dimensions × 6 facets × 4 items. The first item
// of each dimension is reverse-keyed. Two extra items belong only to the
// 300-item form.
func shortFormCodebook(t *testing.T) *codebook.Codebook {
	t.Helper()
	key := &workbook.Table{Header: []string{"Short#", "Item", "Sign", "Key", "Facet"}}
	for d, code := range codes {
		for f := 0; f < 6; f++ {
			for k := 0; k < 4; k++ {
				idx := d*24 + f*4 + k
				sign := "+"
				if f == 0 && k == 0 {
					sign = "-"
				}
				facetKey := fmt.Sprintf("%s%d", code, f+1)
				key.Rows = append(key.Rows, []string{
					fmt.Sprint(idx + 1),
					fmt.Sprintf("q%d", idx+1),
					sign + facetKey,
					facetKey,
					fmt.Sprintf("%s-facet-%d", code, f+1),
				})
			}
		}
	}
	key.Rows = append(key.Rows,
		[]string{"", "x1", "+N1", "N1", "N-facet-1"},
		[]string{"", "x2", "-O1", "O1", "O-facet-1"},
	)
	sds := &workbook.Table{Header: []string{"Item"}, Rows: [][]string{{"sd1"}, {"sd2"}, {"sd1"}}}

	cb, err := codebook.Parse(key, sds, nil)
	if err != nil {
		t.Fatalf("parsing codebook: %v", err)
	}
	return cb
}

func exportHeader() []string {
	h := []string{
		"Unnamed: 0", "Unnamed: 1", "Start Date", "End Date", "IP Address",
		"First name", "Last name", "Middle name", "Email address",
	}
	for i := 1; i <= 120; i++ {
		h = append(h, fmt.Sprintf("q%d", i))
	}
	return append(h, "sd1", "sd2")
}

func exportRow(start, end, first string, override map[int]string) []string {
	row := []string{"", "", start, end, "10.0.0.1", first, "Lovelace", "", first + "@example.com"}
	for i := 0; i < 120; i++ {
		label := labels[i%5]
		if v, ok := override[i]; ok {
			label = v
		}
		row = append(row, label)
	}
	return append(row, "Accurate", "Neither")
}

func pacific(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		t.Fatalf("loading zone: %v", err)
	}
	return loc
}

func TestScoreShortFormEndToEnd(t *testing.T) {
	cb := shortFormCodebook(t)
	tbl := &workbook.Table{
		Header: exportHeader(),
		Rows: [][]string{
			exportRow("2024-03-14 09:00:00", "2024-03-14 09:12:34", "Ada", nil),
		},
	}

	batch, err := Score(cb, tbl, Options{Identity: DefaultColumnRefs(), Location: pacific(t)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Variant != codebook.Short120 {
		t.Fatalf("expected 120-item variant, got %v", batch.Variant)
	}
	if batch.Items != 120 {
		t.Errorf("expected 120 items resolved, got %d", batch.Items)
	}
	if len(batch.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", batch.Err())
	}
	if len(batch.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(batch.Records))
	}
	rec := batch.Records[0]

	// Expected scores from the generated answers.
	var personality float64
	var ordinal []float64
	dimTotals := make(map[codebook.Dimension]float64)
	for i := 0; i < 120; i++ {
		v := float64(i%5 + 1)
		ordinal = append(ordinal, v)
		if i%24 == 0 {
			v = recode.Reflect(v)
		}
		personality += v
		dimTotals[codebook.Dimensions[i/24]] += v
	}
	ordinal = append(ordinal, 5, 3)

	if rec.Personality != int(personality) {
		t.Errorf("expected personality %v, got %d", personality, rec.Personality)
	}
	for d, total := range dimTotals {
		if want := int(math.RoundToEven(total / 6)); rec.Dimensions[d] != want {
			t.Errorf("%s: expected %d, got %d", d, want, rec.Dimensions[d])
		}
	}
	// q1..q4 answered 1,2,3,4 with q1 reversed.
	if got := rec.Facets["O-facet-1"]; got != 14 {
		t.Errorf("expected O-facet-1 14, got %d", got)
	}
	if want := int(math.RoundToEven(stat.StdDev(ordinal, nil) * 10)); rec.ResponseVariance != want {
		t.Errorf("expected variance %d, got %d", want, rec.ResponseVariance)
	}
	if rec.SocialDesirability != 8 {
		t.Errorf("expected social desirability 8, got %d", rec.SocialDesirability)
	}
	if rec.ResponseTime != "00:12:34" {
		t.Errorf("unexpected response time %q", rec.ResponseTime)
	}
	if rec.CompletionTime != "03/14/2024 09:12AM PDT" {
		t.Errorf("unexpected completion time %q", rec.CompletionTime)
	}
	if rec.FullName != "Ada Lovelace" {
		t.Errorf("unexpected full name %q", rec.FullName)
	}

	row := batch.Row(&rec)
	if row[0] != "2024-03-14 09:00:00" || row[1] != "2024-03-14 09:12:34" {
		t.Errorf("unexpected start and end cells %v", row[:2])
	}

	if len(batch.Layout) != 35 {
		t.Fatalf("expected 5 dimensions + 30 facets, got %d columns", len(batch.Layout))
	}
	var dims []string
	for i, c := range batch.Layout {
		if i%7 == 0 {
			if c.Kind != aggregate.DimensionColumn {
				t.Errorf("column %d (%s) should be a dimension", i, c.Name)
			}
			dims = append(dims, c.Name)
		} else if c.Kind != aggregate.FacetColumn || c.Dimension != batch.Layout[i-i%7].Dimension {
			t.Errorf("column %d (%s) should be a facet of %s", i, c.Name, batch.Layout[i-i%7].Name)
		}
	}
	want := []string{"Openness", "Conscientiousness", "Extroversion", "Agreeableness", "Neuroticism"}
	if diff := cmp.Diff(want, dims); diff != "" {
		t.Errorf("dimension order mismatch (-want +got):\n%s", diff)
	}
}

// expectedAnswers returns the ordinal answers exportRow generates for the
// 120 short-form items, leaving out skipped positions.
func expectedAnswers(skip map[int]bool) []float64 {
	var out []float64
	for i := 0; i < 120; i++ {
		if !skip[i] {
			out = append(out, float64(i%5+1))
		}
	}
	return out
}

func variance(values []float64) int {
	return int(math.RoundToEven(stat.StdDev(values, nil) * 10))
}

func TestScoreFullFormEndToEnd(t *testing.T) {
	cb := shortFormCodebook(t)
	header := append(exportHeader(), "x1", "x2")
	row := append(exportRow("2024-03-14 09:00:00", "2024-03-14 09:40:00", "Ada", nil), "Accurate", "Accurate")
	for i := 1; i <= 175; i++ {
		header = append(header, fmt.Sprintf("Comment %d", i))
		row = append(row, "")
	}
	tbl := &workbook.Table{Header: header, Rows: [][]string{row}}

	batch, err := Score(cb, tbl, Options{Identity: DefaultColumnRefs(), Location: pacific(t)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Variant != codebook.Full300 {
		t.Fatalf("expected 300-item variant, got %v", batch.Variant)
	}
	if batch.Items != 122 {
		t.Errorf("expected 122 items resolved, got %d", batch.Items)
	}
	if batch.MaxPersonality() != 1500 {
		t.Errorf("expected maximum 1500, got %d", batch.MaxPersonality())
	}
	if len(batch.Records) != 1 {
		t.Fatalf("expected 1 record, got %d (%v)", len(batch.Records), batch.Err())
	}
	rec := batch.Records[0]

	// x2 is reverse-keyed into O-facet-1; x1 joins N-facet-1 as given.
	if got := rec.Facets["O-facet-1"]; got != 15 {
		t.Errorf("expected O-facet-1 15, got %d", got)
	}
	if got := rec.Facets["N-facet-1"]; got != 21 {
		t.Errorf("expected N-facet-1 21, got %d", got)
	}

	var personality float64
	for i, v := range expectedAnswers(nil) {
		if i%24 == 0 {
			v = recode.Reflect(v)
		}
		personality += v
	}
	if want := int(personality) + 5 + 1; rec.Personality != want {
		t.Errorf("expected personality %d, got %d", want, rec.Personality)
	}
	if want := variance(append(expectedAnswers(nil), 5, 5, 5, 3)); rec.ResponseVariance != want {
		t.Errorf("expected variance %d, got %d", want, rec.ResponseVariance)
	}
}

func TestResponseVarianceIgnoresMetadataColumns(t *testing.T) {
	cb := shortFormCodebook(t)
	opts := Options{Identity: DefaultColumnRefs(), Location: pacific(t)}
	start, end := "2024-03-14 09:00:00", "2024-03-14 09:12:34"

	plain, err := Score(cb, &workbook.Table{
		Header: exportHeader(),
		Rows:   [][]string{exportRow(start, end, "Ada", nil)},
	}, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	withMeta, err := Score(cb, &workbook.Table{
		Header: append(exportHeader(), "Duration (in seconds)", "Progress"),
		Rows:   [][]string{append(exportRow(start, end, "Ada", nil), "754", "100")},
	}, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := variance(append(expectedAnswers(nil), 5, 3))
	for name, b := range map[string]*Batch{"plain": plain, "with metadata": withMeta} {
		if len(b.Records) != 1 {
			t.Fatalf("%s: expected 1 record, got %d", name, len(b.Records))
		}
		if got := b.Records[0].ResponseVariance; got != want {
			t.Errorf("%s: expected variance %d, got %d", name, want, got)
		}
	}
}

func TestScoreSkipsBlankAnswers(t *testing.T) {
	cb := shortFormCodebook(t)
	tbl := &workbook.Table{
		Header: exportHeader(),
		Rows: [][]string{
			exportRow("2024-03-14 09:00:00", "2024-03-14 09:12:34", "Ada", map[int]string{7: ""}),
		},
	}

	batch, err := Score(cb, tbl, Options{Identity: DefaultColumnRefs(), Location: pacific(t)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Failures) != 0 || len(batch.Records) != 1 {
		t.Fatalf("expected Ada scored, got %d records and %v", len(batch.Records), batch.Err())
	}
	rec := batch.Records[0]

	// q5..q8 answered 5,1,2 and blank.
	if got := rec.Facets["O-facet-2"]; got != 8 {
		t.Errorf("expected O-facet-2 8, got %d", got)
	}
	if want := variance(append(expectedAnswers(map[int]bool{7: true}), 5, 3)); rec.ResponseVariance != want {
		t.Errorf("expected variance %d, got %d", want, rec.ResponseVariance)
	}
}

func TestScoreTableTimestampsFromExcelSerials(t *testing.T) {
	cb := shortFormCodebook(t)
	tbl := &workbook.Table{
		Header: exportHeader(),
		Rows:   [][]string{exportRow("45365.375", "45365.5", "Ada", nil)},
	}

	batch, err := Score(cb, tbl, Options{Identity: DefaultColumnRefs(), Location: pacific(t)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Records) != 1 {
		t.Fatalf("expected 1 record, got %v", batch.Err())
	}
	rec := batch.Records[0]
	row := batch.Row(&rec)
	if diff := cmp.Diff([]any{"2024-03-14 09:00:00", "2024-03-14 12:00:00"}, row[:2]); diff != "" {
		t.Errorf("start and end cells mismatch (-want +got):\n%s", diff)
	}
	if rec.ResponseTime != "03:00:00" {
		t.Errorf("unexpected response time %q", rec.ResponseTime)
	}
}

func TestScoreCollectsRespondentFailures(t *testing.T) {
	cb := shortFormCodebook(t)
	tbl := &workbook.Table{
		Header: exportHeader(),
		Rows: [][]string{
			exportRow("2024-03-14 09:00:00", "2024-03-14 09:12:34", "Ada", nil),
			exportRow("yesterday-ish", "2024-03-14 09:12:34", "Bob", map[int]string{3: "Kinda"}),
		},
	}

	batch, err := Score(cb, tbl, Options{Identity: DefaultColumnRefs(), Location: pacific(t)})
	if err != nil {
		t.Fatalf("structural error not expected: %v", err)
	}
	if len(batch.Records) != 1 || batch.Records[0].FirstName != "Ada" {
		t.Fatalf("expected only Ada scored, got %+v", batch.Records)
	}
	if len(batch.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(batch.Failures))
	}
	f := batch.Failures[0]
	if f.Row != 2 || f.Name != "Bob Lovelace" {
		t.Errorf("unexpected failure identity: row %d name %q", f.Row, f.Name)
	}
	err = batch.Err()
	if !errors.Is(err, survey.ErrUnscorable) {
		t.Errorf("expected unscorable response in %v", err)
	}
	var re *survey.RespondentError
	if !errors.As(err, &re) {
		t.Errorf("expected RespondentError in %v", err)
	}
}

func TestScoreReportsAllMissingIdentityColumns(t *testing.T) {
	cb := shortFormCodebook(t)
	tbl := &workbook.Table{Header: exportHeader(), Rows: [][]string{}}

	refs := DefaultColumnRefs()
	refs.Email = "E-mail"
	refs.IP = "@500"
	refs.MiddleName = "Nickname"

	_, err := Score(cb, tbl, Options{Identity: refs, Location: time.UTC})
	var se *survey.SchemaMismatchError
	if !errors.As(err, &se) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
	if len(se.Missing) != 2 {
		t.Errorf("expected ip and email reported together, got %v", se.Missing)
	}
}

func TestScoreRejectsExportWithoutCodebookItems(t *testing.T) {
	cb := shortFormCodebook(t)
	tbl := &workbook.Table{
		Header: []string{"a", "b", "c", "d", "e", "First name", "Last name", "Email address"},
		Rows:   [][]string{{"", "", "x", "y", "z", "A", "B", "C"}},
	}
	_, err := Score(cb, tbl, Options{Identity: DefaultColumnRefs(), Location: time.UTC})
	if !errors.Is(err, survey.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestBatchRowFollowsHeader(t *testing.T) {
	b := &Batch{
		Variant: codebook.Short120,
		Layout: []aggregate.Column{
			{Name: "Openness", Kind: aggregate.DimensionColumn, Dimension: codebook.Openness},
			{Name: "Imagination", Kind: aggregate.FacetColumn, Dimension: codebook.Openness},
		},
	}
	rec := &Record{
		Identity:   Identity{FullName: "Ada Lovelace"},
		Dimensions: map[codebook.Dimension]int{codebook.Openness: 11},
		Facets:     map[string]int{"Imagination": 13},
	}
	header, row := b.Header(), b.Row(rec)
	if len(header) != len(row) {
		t.Fatalf("header has %d columns, row %d", len(header), len(row))
	}
	if row[len(row)-2] != 11 || row[len(row)-1] != 13 {
		t.Errorf("unexpected score cells %v", row[len(row)-2:])
	}
	if b.MaxPersonality() != 600 {
		t.Errorf("expected 600, got %d", b.MaxPersonality())
	}
}

func TestFullName(t *testing.T) {
	cases := []struct {
		parts []string
		want  string
	}{
		{[]string{"Ada", "Lovelace", ""}, "Ada Lovelace"},
		{[]string{"Ada", "Lovelace", "King"}, "Ada Lovelace King"},
		{[]string{" Ada ", "", ""}, "Ada"},
	}
	for _, c := range cases {
		if got := FullName(c.parts...); got != c.want {
			t.Errorf("FullName(%q) = %q, want %q", c.parts, got, c.want)
		}
	}
}
