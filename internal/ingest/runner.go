// Package ingest downloads the NIPA catalog and raw table data into the raw store.
//
// Ingestion is resumable: after every saved table the state file is updated,
// and later runs only fetch tables not yet marked completed.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/nipa/internal/core"
	"github.com/JonMunkholm/nipa/internal/logging"
	"github.com/JonMunkholm/nipa/internal/store"
)

// API is the subset of the BEA client the runner needs.
type API interface {
	GetNIPATables(ctx context.Context) ([]core.CatalogEntry, error)
	GetNIPAData(ctx context.Context, tableName string, f core.Frequency, year string) ([]core.RawRecord, error)
}

// Options configures a Runner.
type Options struct {
	StateFile string // Path of the completed-tables state file
	Year      string // GetData Year parameter (default: X, all years)
	Refresh   bool   // Forget completed tables and fetch everything again
}

// Report summarizes one ingest pass.
type Report struct {
	Tables     int           `json:"tables"`
	Pending    int           `json:"pending"`
	Fetched    int           `json:"fetched"`
	Failed     int           `json:"failed"`
	FailedList []string      `json:"failed_tables,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Runner fetches raw data for every catalog table.
type Runner struct {
	api  API
	raw  *store.RawStore
	opts Options
}

// NewRunner creates a Runner.
func NewRunner(api API, raw *store.RawStore, opts Options) *Runner {
	if opts.Year == "" {
		opts.Year = "X"
	}
	return &Runner{api: api, raw: raw, opts: opts}
}

// Run fetches the catalog, saves it, then fetches every pending table.
// Catalog and state errors abort the run; a table that fails to download is
// logged, counted and retried on the next run.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	logger := logging.FromContext(ctx)
	start := time.Now()

	catalog, err := r.api.GetNIPATables(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	if err := r.raw.SaveCatalog(ctx, catalog); err != nil {
		return nil, fmt.Errorf("save catalog: %w", err)
	}
	logger.Info("NIPA catalog saved", "tables", len(catalog))

	state, err := store.LoadState(r.opts.StateFile)
	if err != nil {
		return nil, err
	}
	if r.opts.Refresh {
		logger.Info("refresh requested, clearing ingest state", "previously_completed", state.Len())
		state.Reset()
	}

	pending := pendingTables(catalog, state)
	report := &Report{Tables: len(catalog), Pending: len(pending)}

	if len(pending) == 0 {
		logger.Info("all tables up to date")
		report.Duration = time.Since(start)
		return report, nil
	}
	logger.Info("fetching tables", "pending", len(pending))

	for i, entry := range pending {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			return report, fmt.Errorf("ingest interrupted: %w", err)
		}

		tableLogger := logging.WithFields(ctx, "table", entry.TableName, "progress", fmt.Sprintf("%d/%d", i+1, len(pending)))

		data, err := r.fetchTable(ctx, entry)
		if err == nil {
			err = r.raw.SaveTable(ctx, data)
		}
		if err != nil {
			if ctx.Err() != nil {
				report.Duration = time.Since(start)
				return report, fmt.Errorf("ingest interrupted: %w", ctx.Err())
			}
			tableLogger.Error("table ingest failed", "error", err)
			report.Failed++
			report.FailedList = append(report.FailedList, entry.TableName)
			continue
		}

		state.MarkCompleted(entry.TableName)
		if err := state.Save(); err != nil {
			return report, err
		}
		report.Fetched++
		tableLogger.Info("table saved",
			"annual", len(data.Annual),
			"quarterly", len(data.Quarterly),
			"monthly", len(data.Monthly))
	}

	report.Duration = time.Since(start)
	logger.Info("ingest complete",
		"fetched", report.Fetched,
		"failed", report.Failed,
		"duration_ms", report.Duration.Milliseconds())
	return report, nil
}

// fetchTable downloads one table at every frequency.
func (r *Runner) fetchTable(ctx context.Context, entry core.CatalogEntry) (*core.RawData, error) {
	data := &core.RawData{TableName: entry.TableName, Description: entry.Description}
	for _, f := range core.Frequencies {
		records, err := r.api.GetNIPAData(ctx, entry.TableName, f, r.opts.Year)
		if err != nil {
			return nil, err
		}
		data.SetRecords(f, records)
	}
	return data, nil
}

// pendingTables returns catalog entries not yet completed, first occurrence only.
func pendingTables(catalog []core.CatalogEntry, state *store.State) []core.CatalogEntry {
	seen := make(map[string]bool, len(catalog))
	pending := make([]core.CatalogEntry, 0, len(catalog))
	for _, entry := range catalog {
		if seen[entry.TableName] || state.IsCompleted(entry.TableName) {
			continue
		}
		seen[entry.TableName] = true
		pending = append(pending, entry)
	}
	return pending
}
