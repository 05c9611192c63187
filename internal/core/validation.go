package core

// validation.go checks wide tables before they are published.
//
// A wide table must satisfy, in this order:
//  1. Schema: "date" is utf8, every other column is float64
//  2. The date column has no nulls and no duplicates
//  3. At least one row
//  4. Every date matches the frequency pattern
//  5. Dates are in ascending order
//  6. At least one data column
//
// A failure means the pivot or the upstream data broke a structural contract.
// The caller must drop that table/frequency pair; Validate never repairs.

import (
	"fmt"
	"regexp"

	"github.com/apache/arrow/go/v7/arrow"
	"github.com/apache/arrow/go/v7/arrow/array"
)

// Validation check names, reported in ValidationError.Check.
const (
	CheckSchema      = "schema"
	CheckNotNull     = "not_null"
	CheckUnique      = "unique"
	CheckMinRows     = "min_rows"
	CheckDateFormat  = "date_format"
	CheckSorted      = "sorted"
	CheckDataColumns = "data_columns"
)

// datePatterns holds the canonical date format per frequency.
// Monthly only checks shape: "2023-13" passes.
var datePatterns = map[Frequency]*regexp.Regexp{
	Annual:    regexp.MustCompile(`^\d{4}$`),
	Quarterly: regexp.MustCompile(`^\d{4}-Q[1-4]$`),
	Monthly:   regexp.MustCompile(`^\d{4}-\d{2}$`),
}

// ValidationError describes the first invariant a table violated.
type ValidationError struct {
	Check   string // Which invariant failed
	Column  string // Offending column, if any
	Value   string // Offending value, if any
	Message string // Human-readable description
}

func (e *ValidationError) Error() string {
	msg := "invalid table: " + e.Check + ": " + e.Message
	if e.Column != "" {
		msg += fmt.Sprintf(" (column %q", e.Column)
		if e.Value != "" {
			msg += fmt.Sprintf(", value %q", e.Value)
		}
		msg += ")"
	}
	return msg
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(check, column, value, format string, args ...any) error {
	return &ValidationError{
		Check:   check,
		Column:  column,
		Value:   value,
		Message: fmt.Sprintf(format, args...),
	}
}

// Validate checks a wide table against the invariants for frequency f and
// returns the first violation as a *ValidationError.
func Validate(t *WideTable, f Frequency) error {
	if t == nil || t.record == nil {
		return invalid(CheckMinRows, "", "", "no table")
	}

	pattern, ok := datePatterns[f]
	if !ok {
		return invalid(CheckDateFormat, DateColumn, string(f), "unknown frequency")
	}

	if err := validateSchema(t.record.Schema()); err != nil {
		return err
	}

	dates := t.column(DateColumn).(*array.String)

	seen := make(map[string]bool, dates.Len())
	for i := 0; i < dates.Len(); i++ {
		if dates.IsNull(i) {
			return invalid(CheckNotNull, DateColumn, "", "null date at row %d", i)
		}
		d := dates.Value(i)
		if seen[d] {
			return invalid(CheckUnique, DateColumn, d, "duplicate date at row %d", i)
		}
		seen[d] = true
	}

	if dates.Len() < 1 {
		return invalid(CheckMinRows, "", "", "table has no rows")
	}

	for i := 0; i < dates.Len(); i++ {
		if d := dates.Value(i); !pattern.MatchString(d) {
			return invalid(CheckDateFormat, DateColumn, d, "invalid %s date format", f)
		}
	}

	for i := 1; i < dates.Len(); i++ {
		if dates.Value(i) < dates.Value(i-1) {
			return invalid(CheckSorted, DateColumn, dates.Value(i),
				"dates not ascending: %q follows %q", dates.Value(i), dates.Value(i-1))
		}
	}

	if len(t.Columns()) < 1 {
		return invalid(CheckDataColumns, "", "", "table must have at least one data column")
	}

	return nil
}

// validateSchema requires a utf8 date column and float64 data columns.
func validateSchema(schema *arrow.Schema) error {
	if len(schema.FieldIndices(DateColumn)) == 0 {
		return invalid(CheckSchema, DateColumn, "", "missing date column")
	}
	for _, field := range schema.Fields() {
		want := arrow.FLOAT64
		if field.Name == DateColumn {
			want = arrow.STRING
		}
		if field.Type.ID() != want {
			return invalid(CheckSchema, field.Name, field.Type.Name(), "want %s", want)
		}
	}
	return nil
}
