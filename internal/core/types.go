package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by a Source when no raw data exists for a table.
	ErrNotFound = errors.New("raw data not found")

	// ErrValidation is wrapped by every ValidationError.
	ErrValidation = errors.New("table validation failed")

	// ErrDuplicateDataset is returned when a dataset id would be issued twice in one run.
	ErrDuplicateDataset = errors.New("duplicate dataset id")
)

// Frequency is the observation granularity of a table.
type Frequency string

const (
	Annual    Frequency = "annual"
	Quarterly Frequency = "quarterly"
	Monthly   Frequency = "monthly"
)

// Frequencies lists every frequency in the order tables are produced.
var Frequencies = []Frequency{Annual, Quarterly, Monthly}

// Code returns the single-letter BEA API code for the frequency.
func (f Frequency) Code() string {
	switch f {
	case Quarterly:
		return "Q"
	case Monthly:
		return "M"
	default:
		return "A"
	}
}

// Title returns the capitalized frequency name.
func (f Frequency) Title() string {
	return titleWords(string(f))
}

// ParseFrequency parses a frequency name or BEA letter code.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "annual", "a":
		return Annual, nil
	case "quarterly", "q":
		return Quarterly, nil
	case "monthly", "m":
		return Monthly, nil
	}
	return "", fmt.Errorf("unknown frequency %q", s)
}

// RawRecord is one observation as returned by the BEA GetData method.
type RawRecord struct {
	TableName       string  `json:"TableName"`
	SeriesCode      string  `json:"SeriesCode,omitempty"`
	LineNumber      string  `json:"LineNumber,omitempty"`
	LineDescription string  `json:"LineDescription"`
	TimePeriod      string  `json:"TimePeriod"`
	Unit            string  `json:"CL_UNIT,omitempty"`
	UnitMultiplier  string  `json:"UNIT_MULT,omitempty"`
	DataValue       *string `json:"DataValue"`
}

// RawData is the stored document for one table: its records split by the
// frequency they were requested with.
type RawData struct {
	TableName   string      `json:"table_name"`
	Description string      `json:"description"`
	Annual      []RawRecord `json:"annual"`
	Quarterly   []RawRecord `json:"quarterly"`
	Monthly     []RawRecord `json:"monthly"`
}

// All returns annual, quarterly and monthly records concatenated in that order.
func (d *RawData) All() []RawRecord {
	if d == nil {
		return nil
	}
	out := make([]RawRecord, 0, len(d.Annual)+len(d.Quarterly)+len(d.Monthly))
	out = append(out, d.Annual...)
	out = append(out, d.Quarterly...)
	out = append(out, d.Monthly...)
	return out
}

// Records returns the slice requested with the given frequency.
func (d *RawData) Records(f Frequency) []RawRecord {
	switch f {
	case Quarterly:
		return d.Quarterly
	case Monthly:
		return d.Monthly
	default:
		return d.Annual
	}
}

// SetRecords stores records under the given frequency.
func (d *RawData) SetRecords(f Frequency, recs []RawRecord) {
	switch f {
	case Quarterly:
		d.Quarterly = recs
	case Monthly:
		d.Monthly = recs
	default:
		d.Annual = recs
	}
}

// CatalogEntry describes one source table.
type CatalogEntry struct {
	TableName   string `json:"TableName"`
	Description string `json:"Description"`
}

// Metadata accompanies a WideTable to its publisher.
type Metadata struct {
	ID                 string            `json:"id"`
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	ColumnDescriptions map[string]string `json:"column_descriptions"`
}

// PublishMode controls how a publisher treats an existing dataset.
type PublishMode string

const (
	ModeOverwrite PublishMode = "overwrite"
)

// Source loads the catalog and raw records. Implementations return an error
// wrapping ErrNotFound when a table has no stored data.
type Source interface {
	LoadCatalog(ctx context.Context) ([]CatalogEntry, error)
	LoadRawRecords(ctx context.Context, tableName string) (*RawData, error)
}

// Publisher persists a validated wide table under its dataset id.
type Publisher interface {
	Publish(ctx context.Context, table *WideTable, meta Metadata, mode PublishMode) error
}

// Stage names the step of a table/frequency pair that failed.
type Stage string

const (
	StageLoad     Stage = "load"
	StagePivot    Stage = "pivot"
	StageIdentify Stage = "identify"
	StageValidate Stage = "validate"
	StagePublish  Stage = "publish"
)

// SkipReason explains why a table or table/frequency pair produced no dataset.
type SkipReason string

const (
	SkipMissing SkipReason = "missing"
	SkipEmpty   SkipReason = "empty"
	SkipStale   SkipReason = "stale"
)

// TableFailure records one failed table or table/frequency pair.
type TableFailure struct {
	Table     string    `json:"table"`
	Frequency Frequency `json:"frequency,omitempty"`
	DatasetID string    `json:"dataset_id,omitempty"`
	Stage     Stage     `json:"stage"`
	Error     string    `json:"error"`
	Code      string    `json:"code"`
}

// RunReport summarizes one transform pass over the catalog.
type RunReport struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Tables     int            `json:"tables"`
	Created    int            `json:"created"`
	Skipped    int            `json:"skipped"`
	Empty      int            `json:"empty"`
	Stale      int            `json:"stale"`
	Failed     int            `json:"failed"`
	Datasets   []string       `json:"datasets"`
	Failures   []TableFailure `json:"failures,omitempty"`
}

// Duration returns how long the run took.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Recorder receives run events. It is satisfied by the Prometheus metrics
// in internal/metrics; a nil Recorder disables reporting.
type Recorder interface {
	DatasetPublished(f Frequency)
	TableSkipped(reason SkipReason)
	StageFailed(stage Stage)
	RunFinished(report *RunReport)
}
