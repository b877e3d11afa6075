package icar

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/TobiSchelling/surveyscore/internal/survey"
	"github.com/TobiSchelling/surveyscore/internal/workbook"
)

var keyHeader = []string{"dimension", "ICAR16", "ICAR60_original", "ICAR60"}

var keyRows = [][]string{
	{"Verbal", "VR.4", "VR.4", "VR.4"},
	{"Verbal", "VR.16", "VR.16", "VR.16"},
	{"Verbal", "", "VR.17", "VR.17"},
	{"Verbal", "", "VR.19", "VR.19"},
	{"Matrix", "MR.45", "MR.45", "MR.45"},
	{"Matrix", "MR.46", "", "MR.46"},
}

var sampleHeader = []string{"age", "VR.4", "VR.16", "VR.17", "VR.19", "MR.45", "MR.46"}

func testKey(t *testing.T) *Key {
	t.Helper()
	k, err := ParseKey(&workbook.Table{Header: keyHeader, Rows: keyRows})
	if err != nil {
		t.Fatalf("parsing key: %v", err)
	}
	return k
}

func sample() *workbook.Table {
	return &workbook.Table{
		Header: sampleHeader,
		Rows:   [][]string{{"30", "1", "0", "1", "1", "1", "NA"}},
	}
}

func TestHeader(t *testing.T) {
	want := []string{"age", "ICAR16_Total", "ICAR60_Total", "Verbal", "Matrix", "Verbal_60", "Matrix_60"}
	if diff := cmp.Diff(want, testKey(t).Header()); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
}

func TestSample16(t *testing.T) {
	n, err := testKey(t).Sample16(sample())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [][]any{{"30", 2.0, 3.25, 1.0, 1.0, 3.0, 0.25}}
	if diff := cmp.Diff(want, n.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestSample60(t *testing.T) {
	n, err := testKey(t).Sample60(sample())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [][]any{{"30", 4.0, 3.5, 3.0, 1.0, 3.0, 0.5}}
	if diff := cmp.Diff(want, n.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestSampleRequiresAge(t *testing.T) {
	data := &workbook.Table{Header: []string{"VR.4"}, Rows: [][]string{{"1"}}}
	if _, err := testKey(t).Sample60(data); !errors.Is(err, survey.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestParseKeyMissingColumns(t *testing.T) {
	_, err := ParseKey(&workbook.Table{Header: []string{"dimension", "ICAR16"}})
	var se *survey.SchemaMismatchError
	if !errors.As(err, &se) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
	if diff := cmp.Diff([]string{"ICAR60_original", "ICAR60"}, se.Missing); diff != "" {
		t.Errorf("missing columns mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	p := Paths{
		Key:      filepath.Join(dir, "ICAR Item Key.xlsx"),
		Sample16: filepath.Join(dir, "sample16.csv"),
		Sample60: filepath.Join(dir, "sample60.csv"),
		Output16: filepath.Join(dir, "ICAR16_Norm_Data.csv"),
		Output60: filepath.Join(dir, "ICAR_Norm_Data.csv"),
	}

	rows := make([][]any, len(keyRows))
	for i, r := range keyRows {
		rows[i] = []any{r[0], r[1], r[2], r[3]}
	}
	if err := workbook.Write(p.Key, "Sheet1", keyHeader, rows); err != nil {
		t.Fatalf("writing key: %v", err)
	}
	data := [][]any{{30, 1, 0, 1, 1, 1, "NA"}, {41, 1, 1, 1, 1, 1, 1}}
	for _, path := range []string{p.Sample16, p.Sample60} {
		if err := workbook.WriteCSV(path, sampleHeader, data); err != nil {
			t.Fatalf("writing sample: %v", err)
		}
	}

	_, n60, err := Build(p, nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(n60.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(n60.Rows))
	}

	out, err := workbook.ReadCSV(p.Output60)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	want := [][]string{
		{"30", "4", "3.5", "3", "1", "3", "0.5"},
		{"41", "6", "5", "4", "2", "4", "1"},
	}
	if diff := cmp.Diff(want, out.Rows); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if _, err := workbook.ReadCSV(p.Output16); err != nil {
		t.Errorf("expected ICAR16 norm table: %v", err)
	}
}

func TestBuildMissingKey(t *testing.T) {
	_, _, err := Build(Paths{Key: filepath.Join(t.TempDir(), "absent.xlsx")}, nil)
	if !errors.Is(err, survey.ErrMissingFile) {
		t.Fatalf("expected missing file error, got %v", err)
	}
}
