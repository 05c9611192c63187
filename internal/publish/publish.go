// Package publish writes validated wide tables to their destination.
//
// Two targets exist: FilePublisher writes an Arrow IPC file plus a JSON
// metadata sidecar per dataset, and PostgresPublisher replaces one table per
// dataset and upserts a row into dataset_metadata. Both list what they hold
// through the Catalog interface used by the HTTP status server.
package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/nipa/internal/config"
	"github.com/JonMunkholm/nipa/internal/core"
)

// ErrDatasetNotFound is returned by Catalog.GetDataset for unknown ids.
var ErrDatasetNotFound = errors.New("dataset not found")

// DatasetInfo summarizes one published dataset.
type DatasetInfo struct {
	ID                 string            `json:"id"`
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	Frequency          core.Frequency    `json:"frequency,omitempty"`
	ColumnDescriptions map[string]string `json:"column_descriptions,omitempty"`
	Columns            []string          `json:"columns,omitempty"`
	RowCount           int               `json:"row_count"`
	PublishedAt        time.Time         `json:"published_at"`
}

// Catalog lists published datasets.
type Catalog interface {
	ListDatasets(ctx context.Context) ([]DatasetInfo, error)
	GetDataset(ctx context.Context, id string) (*DatasetInfo, error)
}

// TableReader loads a published dataset's values. Only the file target
// implements it.
type TableReader interface {
	ReadTable(id string) (*core.WideTable, error)
}

// Target is a publisher that can also list what it has published.
type Target interface {
	core.Publisher
	Catalog
}

func checkMode(mode core.PublishMode) error {
	if mode != "" && mode != core.ModeOverwrite {
		return fmt.Errorf("unsupported publish mode %q", mode)
	}
	return nil
}

func newInfo(table *core.WideTable, meta core.Metadata) DatasetInfo {
	return DatasetInfo{
		ID:                 meta.ID,
		Title:              meta.Title,
		Description:        meta.Description,
		Frequency:          table.Frequency,
		ColumnDescriptions: meta.ColumnDescriptions,
		Columns:            table.Columns(),
		RowCount:           table.NumRows(),
		PublishedAt:        time.Now().UTC(),
	}
}

// Open builds the configured target. The returned close function releases
// any connection pool and is never nil.
func Open(ctx context.Context, cfg *config.Config) (Target, func(), error) {
	switch strings.ToLower(cfg.Publish.Target) {
	case config.TargetFile, "":
		return NewFilePublisher(cfg.Publish.Dir), func() {}, nil
	case config.TargetPostgres:
		pool, err := NewPostgresPool(ctx, cfg.Database)
		if err != nil {
			return nil, func() {}, err
		}
		p := NewPostgresPublisher(pool)
		if err := p.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, func() {}, err
		}
		return p, pool.Close, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown publish target %q", cfg.Publish.Target)
	}
}
