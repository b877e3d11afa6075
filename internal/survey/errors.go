// Package survey holds the error kinds shared by the scoring packages.
package survey

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds. The typed errors below match these with errors.Is.
var (
	ErrMissingFile      = errors.New("missing file")
	ErrSchemaMismatch   = errors.New("schema mismatch")
	ErrInsufficientData = errors.New("insufficient data")
	ErrUnscorable       = errors.New("unscorable response")
)

// MissingFileError reports an absent intake file, codebook workbook or sheet.
type MissingFileError struct {
	Path  string
	Sheet string
}

func (e *MissingFileError) Error() string {
	if e.Sheet != "" {
		return fmt.Sprintf("sheet %q not found in %s", e.Sheet, e.Path)
	}
	return fmt.Sprintf("file not found: %s", e.Path)
}

func (e *MissingFileError) Is(target error) bool { return target == ErrMissingFile }

// SchemaMismatchError reports input whose shape matches no known layout.
// Missing lists every expected column that was absent.
type SchemaMismatchError struct {
	Reason  string
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	if len(e.Missing) == 0 {
		return "schema mismatch: " + e.Reason
	}
	return fmt.Sprintf("schema mismatch: %s: missing %s", e.Reason, strings.Join(e.Missing, ", "))
}

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }

// InsufficientDataError reports too few columns or values for a computation.
type InsufficientDataError struct {
	Reason string
	Have   int
	Need   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %s (have %d, need %d)", e.Reason, e.Have, e.Need)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// UnscorableResponseError reports item values that are not numeric after
// label mapping, typically an unrecognized Likert label.
type UnscorableResponseError struct {
	Items  []string
	Values []string
}

func (e *UnscorableResponseError) Error() string {
	pairs := make([]string, len(e.Items))
	for i, item := range e.Items {
		pairs[i] = fmt.Sprintf("%q=%q", item, e.Values[i])
	}
	return "unscorable response: " + strings.Join(pairs, ", ")
}

func (e *UnscorableResponseError) Is(target error) bool { return target == ErrUnscorable }

// RespondentError ties a failure to one respondent row so a batch can report
// it without aborting the rest.
type RespondentError struct {
	Row  int
	Name string
	Err  error
}

func (e *RespondentError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("respondent %d (%s): %v", e.Row, e.Name, e.Err)
	}
	return fmt.Sprintf("respondent %d: %v", e.Row, e.Err)
}

func (e *RespondentError) Unwrap() error { return e.Err }
