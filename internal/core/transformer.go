package core

// transformer.go drives the transform engine over the whole catalog.
//
// The flow for one run:
//  1. Load the catalog (the only failure that aborts the run)
//  2. Resolve collision suffixes across the full catalog
//  3. For each table: load raw records, then for each frequency
//     pivot -> recency filter -> dataset id -> validate -> publish
//  4. Return a RunReport with created/skipped/failed counts
//
// Per-table and per-frequency problems are recorded in the report and the
// run continues. Tables can be processed in parallel because the suffix map
// is computed up front and only read afterwards.

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/JonMunkholm/nipa/internal/logging"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultCutoffYear discards tables whose newest observation predates 2024.
const DefaultCutoffYear = 2024

// Options configures a Transformer.
type Options struct {
	Prefix     string      // Dataset id prefix (default: "bea")
	CutoffYear int         // Tables with no data from this year on are stale; <= 0 disables
	Workers    int         // Tables processed concurrently (default: 1)
	Mode       PublishMode // Publish mode (default: overwrite)
	Recorder   Recorder    // Optional metrics sink
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Prefix:     DefaultPrefix,
		CutoffYear: DefaultCutoffYear,
		Workers:    1,
		Mode:       ModeOverwrite,
	}
}

// Transformer turns every catalog table into published wide datasets.
type Transformer struct {
	source    Source
	publisher Publisher
	opts      Options
}

// NewTransformer creates a Transformer. Zero option fields take defaults,
// except CutoffYear where zero disables the recency filter.
func NewTransformer(source Source, publisher Publisher, opts Options) *Transformer {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Mode == "" {
		opts.Mode = ModeOverwrite
	}
	return &Transformer{source: source, publisher: publisher, opts: opts}
}

// Run performs one full catalog pass. The returned error is non-nil only
// when the catalog cannot be loaded or ctx is cancelled; in the latter case
// the partial report is returned alongside the error. A run ID already
// attached with logging.WithRunID is reused; otherwise a new one is generated.
func (t *Transformer) Run(ctx context.Context) (*RunReport, error) {
	runID := logging.RunIDFromContext(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = logging.WithRunID(ctx, runID)
	}
	logger := logging.FromContext(ctx)

	report := &RunReport{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		Datasets:  []string{},
	}

	catalog, err := t.source.LoadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	report.Tables = len(catalog)
	logger.Info("processing NIPA tables", "tables", len(catalog), "workers", t.opts.Workers)

	suffixes := ResolveCollisions(catalog)
	logger.Debug("collision suffixes resolved", "suffixed_tables", len(suffixes))

	state := &runState{
		report:   report,
		issued:   make(map[string]string),
		recorder: t.opts.Recorder,
	}

	var g errgroup.Group
	g.SetLimit(t.opts.Workers)
	for _, entry := range catalog {
		if ctx.Err() != nil {
			break
		}
		entry := entry
		g.Go(func() error {
			t.processTable(ctx, state, entry, suffixes.Suffix(entry.TableName))
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = time.Now().UTC()
	sort.Strings(report.Datasets)
	sort.SliceStable(report.Failures, func(i, j int) bool {
		if report.Failures[i].Table != report.Failures[j].Table {
			return report.Failures[i].Table < report.Failures[j].Table
		}
		return report.Failures[i].Frequency < report.Failures[j].Frequency
	})

	if t.opts.Recorder != nil {
		t.opts.Recorder.RunFinished(report)
	}

	logger.Info("transform complete",
		"created", report.Created,
		"skipped", report.Skipped,
		"empty", report.Empty,
		"stale", report.Stale,
		"failed", report.Failed,
		"duration_ms", report.Duration().Milliseconds(),
	)

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("transform interrupted: %w", err)
	}
	return report, nil
}

// processTable loads one table and produces its datasets for every frequency.
func (t *Transformer) processTable(ctx context.Context, state *runState, entry CatalogEntry, suffix string) {
	logger := logging.WithFields(ctx, "table", entry.TableName)

	data, err := t.source.LoadRawRecords(ctx, entry.TableName)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.Info("no raw data found, skipping")
			state.skip(SkipMissing)
			return
		}
		logger.Error("load raw records failed", "error", err)
		state.fail(TableFailure{Table: entry.TableName, Stage: StageLoad}, err)
		return
	}

	records := data.All()
	id := Classify(entry.TableName, entry.Description)

	for _, f := range Frequencies {
		if ctx.Err() != nil {
			return
		}
		t.processFrequency(ctx, state, entry, id, suffix, records, f)
	}
}

// processFrequency pivots, validates and publishes one table/frequency pair.
func (t *Transformer) processFrequency(ctx context.Context, state *runState, entry CatalogEntry, id Identity, suffix string, records []RawRecord, f Frequency) {
	logger := logging.WithFields(ctx, "table", entry.TableName, "frequency", f)
	failure := TableFailure{Table: entry.TableName, Frequency: f}

	table, err := Pivot(records, f)
	if err != nil {
		logger.Error("pivot failed", "error", err)
		failure.Stage = StagePivot
		state.fail(failure, err)
		return
	}
	if table == nil {
		logger.Debug("no records for frequency")
		state.skip(SkipEmpty)
		return
	}
	defer table.Release()

	if maxDate := table.MaxDate(); t.isStale(maxDate) {
		logger.Info("skipping stale table", "last_date", maxDate)
		state.skip(SkipStale)
		return
	}

	datasetID := DatasetID(t.opts.Prefix, id, f, suffix)
	failure.DatasetID = datasetID
	if err := state.claim(datasetID, entry.TableName); err != nil {
		logger.Error("dataset id already issued", "dataset_id", datasetID, "error", err)
		failure.Stage = StageIdentify
		state.fail(failure, err)
		return
	}

	columns := table.Columns()
	logger.Info("dataset built", "dataset_id", datasetID, "rows", table.NumRows(), "columns", len(columns))

	if err := Validate(table, f); err != nil {
		logger.Error("validation failed", "dataset_id", datasetID, "error", err)
		failure.Stage = StageValidate
		state.fail(failure, err)
		return
	}

	meta := BuildMetadata(datasetID, entry, id, f, columns)
	if err := t.publisher.Publish(ctx, table, meta, t.opts.Mode); err != nil {
		logger.Error("publish failed", "dataset_id", datasetID, "error", err)
		failure.Stage = StagePublish
		state.fail(failure, err)
		return
	}

	state.created(datasetID, f)
}

// isStale reports whether a table's newest date predates the cutoff year.
// Dates compare as strings, so "2023-Q4" < "2024" and "2024-01" >= "2024".
func (t *Transformer) isStale(maxDate string) bool {
	if t.opts.CutoffYear <= 0 {
		return false
	}
	return maxDate < strconv.Itoa(t.opts.CutoffYear)
}

// runState accumulates the report across worker goroutines.
type runState struct {
	mu       sync.Mutex
	report   *RunReport
	issued   map[string]string // dataset id -> table name
	recorder Recorder
}

func (s *runState) claim(datasetID, tableName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.issued[datasetID]; ok {
		return fmt.Errorf("%w: %s already issued to table %s", ErrDuplicateDataset, datasetID, owner)
	}
	s.issued[datasetID] = tableName
	return nil
}

func (s *runState) created(datasetID string, f Frequency) {
	s.mu.Lock()
	s.report.Created++
	s.report.Datasets = append(s.report.Datasets, datasetID)
	s.mu.Unlock()

	if s.recorder != nil {
		s.recorder.DatasetPublished(f)
	}
}

func (s *runState) skip(reason SkipReason) {
	s.mu.Lock()
	switch reason {
	case SkipMissing:
		s.report.Skipped++
	case SkipEmpty:
		s.report.Empty++
	case SkipStale:
		s.report.Stale++
	}
	s.mu.Unlock()

	if s.recorder != nil {
		s.recorder.TableSkipped(reason)
	}
}

func (s *runState) fail(f TableFailure, err error) {
	f.Error = err.Error()
	f.Code = MapError(err).Code

	s.mu.Lock()
	s.report.Failed++
	s.report.Failures = append(s.report.Failures, f)
	s.mu.Unlock()

	if s.recorder != nil {
		s.recorder.StageFailed(f.Stage)
	}
}
