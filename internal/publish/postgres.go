package publish

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/JonMunkholm/nipa/internal/config"
	"github.com/JonMunkholm/nipa/internal/core"
	"github.com/apache/arrow/go/v7/arrow/array"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// maxIdentLen is PostgreSQL's NAMEDATALEN-1. Longer names are silently
// truncated by the server, so they are shortened here instead.
const maxIdentLen = 63

const createMetadataSQL = `CREATE TABLE IF NOT EXISTS dataset_metadata (
	id                  text PRIMARY KEY,
	title               text NOT NULL,
	description         text NOT NULL,
	frequency           text NOT NULL,
	column_descriptions jsonb NOT NULL,
	row_count           integer NOT NULL,
	published_at        timestamptz NOT NULL
)`

const upsertMetadataSQL = `INSERT INTO dataset_metadata
	(id, title, description, frequency, column_descriptions, row_count, published_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	frequency = EXCLUDED.frequency,
	column_descriptions = EXCLUDED.column_descriptions,
	row_count = EXCLUDED.row_count,
	published_at = EXCLUDED.published_at`

const selectMetadataSQL = `SELECT id, title, description, frequency, column_descriptions, row_count, published_at
FROM dataset_metadata`

// DB is the subset of *pgxpool.Pool the publisher uses.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresPublisher stores each dataset as its own table keyed by date.
type PostgresPublisher struct {
	db DB
}

// NewPostgresPool opens and pings a pgx pool.
func NewPostgresPool(ctx context.Context, dbCfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dbCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	cfg.MaxConns = int32(dbCfg.MaxConns)
	cfg.MinConns = int32(dbCfg.MinConns)
	cfg.MaxConnLifetime = dbCfg.MaxConnLifetime
	cfg.MaxConnIdleTime = dbCfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// NewPostgresPublisher wraps a pool. Call EnsureSchema before the first Publish.
func NewPostgresPublisher(db DB) *PostgresPublisher {
	return &PostgresPublisher{db: db}
}

// EnsureSchema creates the dataset_metadata table if needed.
func (p *PostgresPublisher) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, createMetadataSQL); err != nil {
		return fmt.Errorf("create dataset_metadata: %w", err)
	}
	return nil
}

// Publish replaces the dataset's table and metadata row in one transaction.
func (p *PostgresPublisher) Publish(ctx context.Context, table *core.WideTable, meta core.Metadata, mode core.PublishMode) error {
	if err := checkMode(mode); err != nil {
		return err
	}
	if meta.ID == "" {
		return fmt.Errorf("invalid dataset id %q", meta.ID)
	}

	if err := p.publish(ctx, table, meta); err != nil {
		return fmt.Errorf("publish dataset %s: %w", meta.ID, err)
	}
	return nil
}

func (p *PostgresPublisher) publish(ctx context.Context, table *core.WideTable, meta core.Metadata) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }() // no-op after Commit

	tableIdent := pgx.Identifier{pgName(meta.ID)}
	columns := pgColumns(table)

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+tableIdent.Sanitize()); err != nil {
		return fmt.Errorf("drop table: %w", err)
	}
	if _, err := tx.Exec(ctx, createTableSQL(tableIdent, columns)); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	rows, err := tableRows(table)
	if err != nil {
		return err
	}
	n, err := tx.CopyFrom(ctx, tableIdent, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy rows: %w", err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("copy rows: wrote %d of %d", n, len(rows))
	}

	info := newInfo(table, meta)
	descriptions := info.ColumnDescriptions
	if descriptions == nil {
		descriptions = map[string]string{}
	}
	if _, err := tx.Exec(ctx, upsertMetadataSQL,
		info.ID, info.Title, info.Description, string(info.Frequency),
		descriptions, info.RowCount, info.PublishedAt,
	); err != nil {
		return fmt.Errorf("upsert metadata: %w", err)
	}

	return tx.Commit(ctx)
}

// ListDatasets returns every metadata row, sorted by id.
func (p *PostgresPublisher) ListDatasets(ctx context.Context) ([]DatasetInfo, error) {
	rows, err := p.db.Query(ctx, selectMetadataSQL+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	infos, err := pgx.CollectRows(rows, scanInfo)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return infos, nil
}

// GetDataset returns one metadata row, or an error wrapping ErrDatasetNotFound.
func (p *PostgresPublisher) GetDataset(ctx context.Context, id string) (*DatasetInfo, error) {
	rows, err := p.db.Query(ctx, selectMetadataSQL+" WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("get dataset %s: %w", id, err)
	}
	info, err := pgx.CollectExactlyOneRow(rows, scanInfo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("dataset %s: %w", id, ErrDatasetNotFound)
		}
		return nil, fmt.Errorf("get dataset %s: %w", id, err)
	}
	return &info, nil
}

func scanInfo(row pgx.CollectableRow) (DatasetInfo, error) {
	var (
		info DatasetInfo
		freq string
	)
	err := row.Scan(&info.ID, &info.Title, &info.Description, &freq,
		&info.ColumnDescriptions, &info.RowCount, &info.PublishedAt)
	info.Frequency = core.Frequency(freq)
	return info, err
}

// pgColumns returns the table's column names, shortened to fit PostgreSQL.
func pgColumns(table *core.WideTable) []string {
	cols := make([]string, 0, len(table.Columns())+1)
	cols = append(cols, core.DateColumn)
	for _, c := range table.Columns() {
		cols = append(cols, pgName(c))
	}
	return cols
}

func createTableSQL(table pgx.Identifier, columns []string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(table.Sanitize())
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgx.Identifier{c}.Sanitize())
		if c == core.DateColumn {
			b.WriteString(" text PRIMARY KEY")
		} else {
			b.WriteString(" double precision")
		}
	}
	b.WriteString(")")
	return b.String()
}

// tableRows converts the record to COPY rows: the date string, then a
// float64 or nil per column.
func tableRows(table *core.WideTable) ([][]any, error) {
	rec := table.Record()
	dates, ok := rec.Column(0).(*array.String)
	if !ok {
		return nil, fmt.Errorf("date column has type %s", rec.Column(0).DataType())
	}

	ncols := int(rec.NumCols())
	values := make([]*array.Float64, ncols)
	for j := 1; j < ncols; j++ {
		col, ok := rec.Column(j).(*array.Float64)
		if !ok {
			return nil, fmt.Errorf("column %q has type %s", rec.ColumnName(j), rec.Column(j).DataType())
		}
		values[j] = col
	}

	rows := make([][]any, table.NumRows())
	for i := range rows {
		row := make([]any, ncols)
		row[0] = dates.Value(i)
		for j := 1; j < ncols; j++ {
			if values[j].IsNull(i) {
				row[j] = nil
			} else {
				row[j] = values[j].Value(i)
			}
		}
		rows[i] = row
	}
	return rows, nil
}

// pgName returns name unchanged when it fits in an identifier, otherwise a
// prefix plus a hash of the full name so distinct long names stay distinct.
func pgName(name string) string {
	if len(name) <= maxIdentLen {
		return name
	}
	h := fnv.New32a()
	h.Write([]byte(name))
	suffix := fmt.Sprintf("_%08x", h.Sum32())
	return name[:maxIdentLen-len(suffix)] + suffix
}
