package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/TobiSchelling/surveyscore/internal/survey"
	"github.com/TobiSchelling/surveyscore/internal/workbook"
)

// ColumnRefs names the identity columns of an export. A reference is a header
// name, or "@N" for the zero-based position N after the header offset.
type ColumnRefs struct {
	Start      string `yaml:"start"`
	End        string `yaml:"end"`
	IP         string `yaml:"ip"`
	FirstName  string `yaml:"first_name"`
	LastName   string `yaml:"last_name"`
	MiddleName string `yaml:"middle_name"`
	Email      string `yaml:"email"`
}

// DefaultColumnRefs matches the survey platform's export layout.
func DefaultColumnRefs() ColumnRefs {
	return ColumnRefs{
		Start:      "@2",
		End:        "@3",
		IP:         "@4",
		FirstName:  "First name",
		LastName:   "Last name",
		MiddleName: "Middle name",
		Email:      "Email address",
	}
}

// identityColumns holds resolved positions; -1 marks an absent optional column.
type identityColumns struct {
	start, end, ip, first, last, middle, email int
}

// resolve finds every referenced column, reporting all missing ones together.
// The middle name is optional.
func (r ColumnRefs) resolve(t *workbook.Table) (identityColumns, error) {
	var missing []string
	lookup := func(label, ref string, required bool) int {
		col, err := locate(t, ref)
		if err != nil {
			if required {
				missing = append(missing, fmt.Sprintf("%s (%s)", label, err))
			}
			return -1
		}
		return col
	}

	cols := identityColumns{
		start:  lookup("start", r.Start, true),
		end:    lookup("end", r.End, true),
		ip:     lookup("ip", r.IP, true),
		first:  lookup("first name", r.FirstName, true),
		last:   lookup("last name", r.LastName, true),
		middle: lookup("middle name", r.MiddleName, false),
		email:  lookup("email", r.Email, true),
	}
	if len(missing) > 0 {
		return cols, &survey.SchemaMismatchError{Reason: "identity columns", Missing: missing}
	}
	return cols, nil
}

func locate(t *workbook.Table, ref string) (int, error) {
	if ref == "" {
		return -1, errors.New("no reference")
	}
	if pos, ok := strings.CutPrefix(ref, "@"); ok {
		n, err := strconv.Atoi(pos)
		if err != nil || n < 0 {
			return -1, fmt.Errorf("bad position %q", ref)
		}
		if n >= t.Width() {
			return -1, fmt.Errorf("position %d beyond %d columns", n, t.Width())
		}
		return n, nil
	}
	if i := t.Index(ref); i >= 0 {
		return i, nil
	}
	return -1, fmt.Errorf("no column %q", ref)
}

// Identity holds a respondent's raw identity fields.
type Identity struct {
	Start      string
	End        string
	IP         string
	FirstName  string
	LastName   string
	MiddleName string
	FullName   string
	Email      string
}

func (c identityColumns) read(row []string) Identity {
	cell := func(i int) string {
		if i < 0 {
			return ""
		}
		return row[i]
	}
	id := Identity{
		Start:      cell(c.start),
		End:        cell(c.end),
		IP:         cell(c.ip),
		FirstName:  cell(c.first),
		LastName:   cell(c.last),
		MiddleName: cell(c.middle),
		Email:      cell(c.email),
	}
	id.FullName = FullName(id.FirstName, id.LastName, id.MiddleName)
	return id
}

// FullName joins the non-empty name parts with single spaces.
func FullName(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
