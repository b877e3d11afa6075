package snapshot

import (
	"fmt"

	"github.com/TobiSchelling/surveyscore/internal/workbook"
)

// DuplicatePolicy decides what happens to rows repeated inside one export.
type DuplicatePolicy string

const (
	// DropAll removes every row that occurs more than once across both
	// snapshots, so a submission repeated within the new export is dropped
	// entirely.
	DropAll DuplicatePolicy = "drop-all"
	// KeepOne keeps a single copy of rows repeated within one export, while
	// still dropping rows present in both exports.
	KeepOne DuplicatePolicy = "keep-one"
)

// ParsePolicy validates a policy name. Empty means DropAll.
func ParsePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case "", DropAll:
		return DropAll, nil
	case KeepOne:
		return KeepOne, nil
	}
	return "", fmt.Errorf("unknown duplicate policy %q (want %q or %q)", s, DropAll, KeepOne)
}

// DiffStats describes a snapshot comparison.
type DiffStats struct {
	Previous int
	Latest   int
	Kept     int
	// Shared counts distinct rows present in both snapshots.
	Shared int
	// WithinFileDuplicates counts extra copies of rows repeated inside a
	// single snapshot.
	WithinFileDuplicates int
}

// Diff returns the rows present in exactly one of the two snapshots, previous
// rows first. The result uses the latest header; previous rows are aligned to
// it by column name. A column one snapshot lacks reads as blank there, so a
// filled cell in a column only one snapshot has sets its row apart.
func Diff(previous, latest *workbook.Table, policy DuplicatePolicy) (*workbook.Table, DiffStats) {
	prevRows := align(previous, latest.Header)
	dropped := droppedColumns(previous, latest.Header)

	prevKeys := make([]string, len(prevRows))
	prevCount := make(map[string]int, len(prevRows))
	for i, r := range prevRows {
		prevKeys[i] = workbook.Key(withDropped(r, previous.Rows[i], dropped))
		prevCount[prevKeys[i]]++
	}
	latestKeys := make([]string, len(latest.Rows))
	latestCount := make(map[string]int, len(latest.Rows))
	for i, r := range latest.Rows {
		latestKeys[i] = workbook.Key(withDropped(r, nil, dropped))
		latestCount[latestKeys[i]]++
	}

	stats := DiffStats{Previous: len(prevRows), Latest: len(latest.Rows)}
	for k, n := range prevCount {
		if latestCount[k] > 0 {
			stats.Shared++
		}
		if n > 1 {
			stats.WithinFileDuplicates += n - 1
		}
	}
	for _, n := range latestCount {
		if n > 1 {
			stats.WithinFileDuplicates += n - 1
		}
	}

	out := &workbook.Table{Header: latest.Header}
	emitted := make(map[string]bool)
	keep := func(row []string, k string) {
		switch policy {
		case KeepOne:
			if prevCount[k] > 0 && latestCount[k] > 0 || emitted[k] {
				return
			}
		default:
			if prevCount[k]+latestCount[k] != 1 {
				return
			}
		}
		emitted[k] = true
		out.Rows = append(out.Rows, row)
	}
	for i, r := range prevRows {
		keep(r, prevKeys[i])
	}
	for i, r := range latest.Rows {
		keep(r, latestKeys[i])
	}

	stats.Kept = len(out.Rows)
	return out, stats
}

func align(t *workbook.Table, header []string) [][]string {
	src := make([]int, len(header))
	same := len(t.Header) == len(header)
	for i, h := range header {
		src[i] = t.Index(h)
		if src[i] != i {
			same = false
		}
	}
	if same {
		return t.Rows
	}

	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		row := make([]string, len(header))
		for j, s := range src {
			if s >= 0 && s < len(r) {
				row[j] = r[s]
			}
		}
		rows[i] = row
	}
	return rows
}

// droppedColumns returns the positions of t's columns missing from header.
func droppedColumns(t *workbook.Table, header []string) []int {
	want := make(map[string]bool, len(header))
	for _, h := range header {
		want[h] = true
	}
	var cols []int
	for i, h := range t.Header {
		if !want[h] {
			cols = append(cols, i)
		}
	}
	return cols
}

// withDropped extends row with the cells of src at cols; cells src lacks are
// blank.
func withDropped(row, src []string, cols []int) []string {
	if len(cols) == 0 {
		return row
	}
	out := make([]string, len(row), len(row)+len(cols))
	copy(out, row)
	for _, c := range cols {
		var v string
		if c < len(src) {
			v = src[c]
		}
		out = append(out, v)
	}
	return out
}
