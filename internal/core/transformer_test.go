package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"testing"

	"github.com/JonMunkholm/nipa/internal/logging"
)

// ----------------------------------------------------------------------------
// Test doubles
// ----------------------------------------------------------------------------

type fakeSource struct {
	catalog    []CatalogEntry
	catalogErr error
	tables     map[string]*RawData
	loadErrs   map[string]error
}

func (s *fakeSource) LoadCatalog(ctx context.Context) ([]CatalogEntry, error) {
	return s.catalog, s.catalogErr
}

func (s *fakeSource) LoadRawRecords(ctx context.Context, tableName string) (*RawData, error) {
	if err, ok := s.loadErrs[tableName]; ok {
		return nil, err
	}
	data, ok := s.tables[tableName]
	if !ok {
		return nil, fmt.Errorf("load %s: %w", tableName, ErrNotFound)
	}
	return data, nil
}

type published struct {
	meta  Metadata
	dates []string
	cols  []string
}

type fakePublisher struct {
	mu      sync.Mutex
	got     map[string]published
	failFor map[string]error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{got: make(map[string]published), failFor: make(map[string]error)}
}

func (p *fakePublisher) Publish(ctx context.Context, table *WideTable, meta Metadata, mode PublishMode) error {
	if err, ok := p.failFor[meta.ID]; ok {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got[meta.ID] = published{meta: meta, dates: table.Dates(), cols: table.Columns()}
	return nil
}

func (p *fakePublisher) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.got))
	for id := range p.got {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type fakeRecorder struct {
	mu        sync.Mutex
	published map[Frequency]int
	skipped   map[SkipReason]int
	failed    map[Stage]int
	finished  *RunReport
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		published: make(map[Frequency]int),
		skipped:   make(map[SkipReason]int),
		failed:    make(map[Stage]int),
	}
}

func (r *fakeRecorder) DatasetPublished(f Frequency) {
	r.mu.Lock()
	r.published[f]++
	r.mu.Unlock()
}

func (r *fakeRecorder) TableSkipped(reason SkipReason) {
	r.mu.Lock()
	r.skipped[reason]++
	r.mu.Unlock()
}

func (r *fakeRecorder) StageFailed(stage Stage) {
	r.mu.Lock()
	r.failed[stage]++
	r.mu.Unlock()
}

func (r *fakeRecorder) RunFinished(report *RunReport) {
	r.mu.Lock()
	r.finished = report
	r.mu.Unlock()
}

func rawTable(name string, annual, quarterly, monthly []RawRecord) *RawData {
	return &RawData{TableName: name, Annual: annual, Quarterly: quarterly, Monthly: monthly}
}

const gdpDescription = "Table 1.1.5. Gross Domestic Product (A) (Q)"

func gdpTable() *RawData {
	return rawTable("T10105",
		[]RawRecord{
			rec("2023", "Gross domestic product", "27,360.9"),
			rec("2024", "Gross domestic product", "29,184.9"),
			rec("2024", "Exports", "(NA)"),
		},
		[]RawRecord{
			rec("2024Q1", "Gross domestic product", "28,624.1"),
			rec("2024Q2", "Gross domestic product", "29,016.7"),
		},
		nil,
	)
}

// ----------------------------------------------------------------------------
// Transformer Tests
// ----------------------------------------------------------------------------

func TestTransformerRun(t *testing.T) {
	source := &fakeSource{
		catalog: []CatalogEntry{{TableName: "T10105", Description: gdpDescription}},
		tables:  map[string]*RawData{"T10105": gdpTable()},
	}
	pub := newFakePublisher()
	recorder := newFakeRecorder()

	opts := DefaultOptions()
	opts.Recorder = recorder
	report, err := NewTransformer(source, pub, opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantIDs := []string{"bea_gdp_level_annual", "bea_gdp_level_quarterly"}
	if !reflect.DeepEqual(report.Datasets, wantIDs) {
		t.Errorf("Datasets = %v, want %v", report.Datasets, wantIDs)
	}
	if !reflect.DeepEqual(pub.ids(), wantIDs) {
		t.Errorf("published = %v, want %v", pub.ids(), wantIDs)
	}
	if report.Created != 2 || report.Empty != 1 || report.Failed != 0 || report.Skipped != 0 || report.Stale != 0 {
		t.Errorf("counts = %+v", report)
	}
	if report.Tables != 1 {
		t.Errorf("Tables = %d, want 1", report.Tables)
	}
	if report.RunID == "" || report.FinishedAt.IsZero() {
		t.Error("report should carry run id and finish time")
	}

	annual := pub.got["bea_gdp_level_annual"]
	if !reflect.DeepEqual(annual.dates, []string{"2023", "2024"}) {
		t.Errorf("annual dates = %v", annual.dates)
	}
	if !reflect.DeepEqual(annual.cols, []string{"gross_domestic_product", "exports"}) {
		t.Errorf("annual columns = %v", annual.cols)
	}
	if annual.meta.Title != "BEA Gdp - Level (Annual)" {
		t.Errorf("annual title = %q", annual.meta.Title)
	}

	quarterly := pub.got["bea_gdp_level_quarterly"]
	if !reflect.DeepEqual(quarterly.dates, []string{"2024-Q1", "2024-Q2"}) {
		t.Errorf("quarterly dates = %v", quarterly.dates)
	}

	if recorder.published[Annual] != 1 || recorder.published[Quarterly] != 1 || recorder.skipped[SkipEmpty] != 1 {
		t.Errorf("recorder = %+v", recorder)
	}
	if recorder.finished != report {
		t.Error("recorder should receive the final report")
	}
}

func TestTransformerSkipsAndFailures(t *testing.T) {
	loadErr := errors.New("decode raw data T30100: unexpected EOF")

	source := &fakeSource{
		catalog: []CatalogEntry{
			{TableName: "T10105", Description: gdpDescription},
			{TableName: "T99999", Description: "Table 9.9.9. Missing Table (A)"},
			{TableName: "T30100", Description: "Table 3.1. Government Current Receipts and Expenditures (A) (Q)"},
			{TableName: "T50100", Description: "Table 5.1. Saving and Investment by Sector (A) (Q)"},
			{TableName: "T60100", Description: "Table 6.1. Broken Periods (A)"},
		},
		tables: map[string]*RawData{
			"T10105": gdpTable(),
			"T50100": rawTable("T50100", []RawRecord{rec("2019", "Gross saving", "1")}, nil, nil),
			"T60100": rawTable("T60100", []RawRecord{rec("garbage", "Line", "1")}, nil, nil),
		},
		loadErrs: map[string]error{"T30100": loadErr},
	}
	pub := newFakePublisher()
	pub.failFor["bea_gdp_level_quarterly"] = errors.New("publish dataset bea_gdp_level_quarterly: disk full")

	report, err := NewTransformer(source, pub, DefaultOptions()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.Created != 1 {
		t.Errorf("Created = %d, want 1", report.Created)
	}
	if report.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1 (missing table)", report.Skipped)
	}
	if report.Stale != 1 {
		t.Errorf("Stale = %d, want 1", report.Stale)
	}
	if report.Failed != 3 {
		t.Fatalf("Failed = %d, want 3: %+v", report.Failed, report.Failures)
	}

	// Failures are sorted by table then frequency
	wantStages := []struct {
		table string
		stage Stage
		code  string
	}{
		{"T10105", StagePublish, "PUB003"},
		{"T30100", StageLoad, "SRC002"},
		{"T60100", StageValidate, "VAL005"},
	}
	for i, want := range wantStages {
		got := report.Failures[i]
		if got.Table != want.table || got.Stage != want.stage || got.Code != want.code {
			t.Errorf("Failures[%d] = %+v, want table=%s stage=%s code=%s", i, got, want.table, want.stage, want.code)
		}
	}
	if report.Failures[0].DatasetID != "bea_gdp_level_quarterly" {
		t.Errorf("publish failure dataset = %q", report.Failures[0].DatasetID)
	}
	if report.Failures[1].Frequency != "" {
		t.Errorf("load failure should not carry a frequency, got %q", report.Failures[1].Frequency)
	}
}

func TestTransformerCollisionSuffixes(t *testing.T) {
	source := &fakeSource{
		catalog: []CatalogEntry{
			{TableName: "T20105", Description: "Table 2.1.5. Personal Income Detail (A)"},
			{TableName: "T20100", Description: "Table 2.1. Personal Income and Its Disposition (A)"},
		},
		tables: map[string]*RawData{
			"T20100": rawTable("T20100", []RawRecord{rec("2024", "Personal income", "1")}, nil, nil),
			"T20105": rawTable("T20105", []RawRecord{rec("2024", "Wages", "2")}, nil, nil),
		},
	}
	pub := newFakePublisher()

	report, err := NewTransformer(source, pub, DefaultOptions()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"bea_personal_income_level_annual_1", "bea_personal_income_level_annual_2"}
	if !reflect.DeepEqual(report.Datasets, want) {
		t.Errorf("Datasets = %v, want %v", report.Datasets, want)
	}
	if got := pub.got["bea_personal_income_level_annual_1"].cols; !reflect.DeepEqual(got, []string{"personal_income"}) {
		t.Errorf("suffix 1 should belong to T20100, got columns %v", got)
	}
}

func TestTransformerIdenticalDescriptions(t *testing.T) {
	source := &fakeSource{
		catalog: []CatalogEntry{
			{TableName: "T10106", Description: gdpDescription},
			{TableName: "T10105", Description: gdpDescription},
		},
		tables: map[string]*RawData{
			"T10105": gdpTable(),
			"T10106": rawTable("T10106", []RawRecord{rec("2024", "Real GDP", "23,000.1")}, nil, nil),
		},
	}
	pub := newFakePublisher()

	report, err := NewTransformer(source, pub, DefaultOptions()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"bea_gdp_level_annual_1", "bea_gdp_level_annual_2", "bea_gdp_level_quarterly_1"}
	if !reflect.DeepEqual(report.Datasets, want) {
		t.Errorf("Datasets = %v, want %v", report.Datasets, want)
	}
	if report.Failed != 0 {
		t.Errorf("Failed = %d, want 0: %+v", report.Failed, report.Failures)
	}
	if got := pub.got["bea_gdp_level_annual_2"].cols; !reflect.DeepEqual(got, []string{"real_gdp"}) {
		t.Errorf("suffix 2 should belong to T10106, got columns %v", got)
	}
}

func TestTransformerDuplicateCatalogRow(t *testing.T) {
	entry := CatalogEntry{TableName: "T10105", Description: gdpDescription}
	source := &fakeSource{
		catalog: []CatalogEntry{entry, entry},
		tables:  map[string]*RawData{"T10105": rawTable("T10105", []RawRecord{rec("2024", "GDP", "1")}, nil, nil)},
	}

	report, err := NewTransformer(source, newFakePublisher(), DefaultOptions()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.Created != 1 || report.Failed != 1 {
		t.Fatalf("Created=%d Failed=%d, want 1 and 1", report.Created, report.Failed)
	}
	f := report.Failures[0]
	if f.Stage != StageIdentify || f.Code != "PUB001" {
		t.Errorf("failure = %+v, want identify/PUB001", f)
	}
}

func TestTransformerCutoffDisabled(t *testing.T) {
	source := &fakeSource{
		catalog: []CatalogEntry{{TableName: "T10105", Description: gdpDescription}},
		tables:  map[string]*RawData{"T10105": rawTable("T10105", []RawRecord{rec("1999", "GDP", "1")}, nil, nil)},
	}

	opts := DefaultOptions()
	opts.CutoffYear = 0
	report, err := NewTransformer(source, newFakePublisher(), opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Created != 1 || report.Stale != 0 {
		t.Errorf("Created=%d Stale=%d, want 1 and 0", report.Created, report.Stale)
	}
}

func TestTransformerStaleBoundary(t *testing.T) {
	tests := []struct {
		name      string
		records   *RawData
		wantStale bool
	}{
		{"last quarter of 2023 is stale", rawTable("T", nil, []RawRecord{rec("2023Q4", "GDP", "1")}, nil), true},
		{"first month of 2024 is current", rawTable("T", nil, nil, []RawRecord{rec("2024M01", "GDP", "1")}), false},
		{"2024 annual is current", rawTable("T", []RawRecord{rec("2024", "GDP", "1")}, nil, nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeSource{
				catalog: []CatalogEntry{{TableName: "T", Description: gdpDescription}},
				tables:  map[string]*RawData{"T": tt.records},
			}
			report, err := NewTransformer(source, newFakePublisher(), DefaultOptions()).Run(context.Background())
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if gotStale := report.Stale == 1; gotStale != tt.wantStale {
				t.Errorf("Stale = %d, wantStale %v", report.Stale, tt.wantStale)
			}
		})
	}
}

func TestTransformerCatalogError(t *testing.T) {
	source := &fakeSource{catalogErr: errors.New("catalog file missing")}

	report, err := NewTransformer(source, newFakePublisher(), DefaultOptions()).Run(context.Background())
	if err == nil {
		t.Fatal("Run() should fail when the catalog cannot be loaded")
	}
	if report != nil {
		t.Errorf("report = %+v, want nil", report)
	}
}

func TestTransformerCancelled(t *testing.T) {
	source := &fakeSource{
		catalog: []CatalogEntry{{TableName: "T10105", Description: gdpDescription}},
		tables:  map[string]*RawData{"T10105": gdpTable()},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewTransformer(source, newFakePublisher(), DefaultOptions()).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if report == nil || report.Created != 0 {
		t.Errorf("report = %+v, want partial report with nothing created", report)
	}
}

func TestTransformerParallelMatchesSequential(t *testing.T) {
	catalog := make([]CatalogEntry, 0, 20)
	tables := make(map[string]*RawData)
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("T1%02d00", i+1)
		catalog = append(catalog, CatalogEntry{
			TableName:   name,
			Description: fmt.Sprintf("Table 1.%d. Table Number %d (A)", i+1, i+1),
		})
		tables[name] = rawTable(name, []RawRecord{rec("2024", "Line", fmt.Sprint(i))}, nil, nil)
	}

	run := func(workers int) *RunReport {
		opts := DefaultOptions()
		opts.Workers = workers
		report, err := NewTransformer(&fakeSource{catalog: catalog, tables: tables}, newFakePublisher(), opts).Run(context.Background())
		if err != nil {
			t.Fatalf("Run(workers=%d) error = %v", workers, err)
		}
		return report
	}

	seq, par := run(1), run(8)
	if !reflect.DeepEqual(seq.Datasets, par.Datasets) {
		t.Errorf("parallel datasets differ:\n seq=%v\n par=%v", seq.Datasets, par.Datasets)
	}
	if seq.Created != par.Created || seq.Created != 20 {
		t.Errorf("Created seq=%d par=%d, want 20", seq.Created, par.Created)
	}
}

func TestTransformerReusesContextRunID(t *testing.T) {
	source := &fakeSource{catalog: []CatalogEntry{}}
	ctx := logging.WithRunID(context.Background(), "run-123")

	report, err := NewTransformer(source, newFakePublisher(), DefaultOptions()).Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.RunID != "run-123" {
		t.Errorf("RunID = %q, want run-123", report.RunID)
	}
}

func TestNewTransformerDefaults(t *testing.T) {
	tr := NewTransformer(&fakeSource{}, newFakePublisher(), Options{})
	if tr.opts.Prefix != DefaultPrefix || tr.opts.Workers != 1 || tr.opts.Mode != ModeOverwrite {
		t.Errorf("opts = %+v", tr.opts)
	}
	if tr.opts.CutoffYear != 0 {
		t.Error("zero CutoffYear should stay disabled")
	}
}
