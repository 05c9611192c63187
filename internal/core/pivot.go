package core

// pivot.go reshapes long BEA records into wide tables.
//
// Input is one record per (period, line item). Output is one row per date
// and one float64 column per distinct line item, in first-seen order.
// Cells with no observation are null; a sparse table is normal.

import (
	"fmt"
	"sort"

	"github.com/apache/arrow/go/v7/arrow"
	"github.com/apache/arrow/go/v7/arrow/array"
	"github.com/apache/arrow/go/v7/arrow/memory"
)

// DateColumn is the name of the key column of every wide table.
const DateColumn = "date"

// WideTable is an immutable wide table backed by an Arrow record.
// Call Release when the table is no longer needed.
type WideTable struct {
	Frequency Frequency
	record    arrow.Record
}

// NewWideTable wraps an existing Arrow record. The table takes ownership of
// one reference to rec.
func NewWideTable(f Frequency, rec arrow.Record) *WideTable {
	return &WideTable{Frequency: f, record: rec}
}

// Record returns the underlying Arrow record.
func (t *WideTable) Record() arrow.Record { return t.record }

// Schema returns the Arrow schema.
func (t *WideTable) Schema() *arrow.Schema { return t.record.Schema() }

// NumRows returns the number of dates.
func (t *WideTable) NumRows() int { return int(t.record.NumRows()) }

// Columns returns the non-date column names in table order.
func (t *WideTable) Columns() []string {
	fields := t.record.Schema().Fields()
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Name != DateColumn {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

// Dates returns the date column. Null entries are returned as "".
// Returns nil when the table has no string date column.
func (t *WideTable) Dates() []string {
	col, ok := t.column(DateColumn).(*array.String)
	if !ok {
		return nil
	}
	dates := make([]string, col.Len())
	for i := range dates {
		if !col.IsNull(i) {
			dates[i] = col.Value(i)
		}
	}
	return dates
}

// MaxDate returns the greatest date string, or "" for an empty table.
func (t *WideTable) MaxDate() string {
	var maxDate string
	for _, d := range t.Dates() {
		if d > maxDate {
			maxDate = d
		}
	}
	return maxDate
}

// Value returns the cell at (row, column); ok is false for null cells and
// unknown columns.
func (t *WideTable) Value(row int, column string) (float64, bool) {
	col, ok := t.column(column).(*array.Float64)
	if !ok || row < 0 || row >= col.Len() || col.IsNull(row) {
		return 0, false
	}
	return col.Value(row), true
}

// Release frees the Arrow buffers. Safe to call on a nil table.
func (t *WideTable) Release() {
	if t != nil && t.record != nil {
		t.record.Release()
		t.record = nil
	}
}

func (t *WideTable) column(name string) arrow.Array {
	idx := t.record.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return nil
	}
	return t.record.Column(idx[0])
}

// Pivot builds the wide table for one frequency from a table's records.
// Records whose period does not classify as f are ignored, as are records
// with an empty date or a line description that slugifies to nothing.
// Returns (nil, nil) when no row survives; that is a normal "no data for
// this frequency" outcome.
func Pivot(records []RawRecord, f Frequency) (*WideTable, error) {
	rows := make(map[string]map[string]*float64)
	var columns []string
	seen := make(map[string]bool)

	for _, r := range records {
		if DetectFrequency(r.TimePeriod) != f {
			continue
		}

		date := NormalizeDate(r.TimePeriod, f)
		col := Slugify(r.LineDescription)
		if date == "" || col == "" {
			continue
		}

		if !seen[col] {
			seen[col] = true
			columns = append(columns, col)
		}

		row, ok := rows[date]
		if !ok {
			row = make(map[string]*float64)
			rows[date] = row
		}

		var cell *float64
		if v, ok := ParseValue(r.DataValue); ok {
			cell = &v
		}
		row[col] = cell
	}

	if len(rows) == 0 {
		return nil, nil
	}

	dates := make([]string, 0, len(rows))
	for d := range rows {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	values := make([][]*float64, len(dates))
	for i, d := range dates {
		values[i] = make([]*float64, len(columns))
		for j, c := range columns {
			values[i][j] = rows[d][c]
		}
	}

	return BuildWideTable(f, dates, columns, values)
}

// BuildWideTable materializes dates and a dense row-major value matrix as a
// WideTable. values[i][j] is the cell for dates[i] and columns[j]; nil is null.
// No ordering or format checks are applied here; see Validate.
func BuildWideTable(f Frequency, dates, columns []string, values [][]*float64) (*WideTable, error) {
	if len(values) != len(dates) {
		return nil, fmt.Errorf("build wide table: %d value rows for %d dates", len(values), len(dates))
	}

	fields := make([]arrow.Field, 0, len(columns)+1)
	fields = append(fields, arrow.Field{Name: DateColumn, Type: arrow.BinaryTypes.String, Nullable: false})
	for _, c := range columns {
		fields = append(fields, arrow.Field{Name: c, Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer b.Release()

	dateBuilder := b.Field(0).(*array.StringBuilder)
	dateBuilder.AppendValues(dates, nil)

	for j := range columns {
		fb := b.Field(j + 1).(*array.Float64Builder)
		fb.Reserve(len(dates))
		for i, row := range values {
			if len(row) != len(columns) {
				return nil, fmt.Errorf("build wide table: row %d (%s) has %d cells, want %d",
					i, dates[i], len(row), len(columns))
			}
			if row[j] == nil {
				fb.AppendNull()
			} else {
				fb.Append(*row[j])
			}
		}
	}

	return NewWideTable(f, b.NewRecord()), nil
}
