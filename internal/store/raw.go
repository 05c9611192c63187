// Package store persists raw BEA documents and ingest state on local disk.
//
// Layout under the raw directory:
//
//	nipa_tables.json        catalog, a JSON array of {TableName, Description}
//	nipa/<TableName>.json   one RawData document per table
//
// Every write goes to a temp file in the target directory and is renamed into
// place, so readers never observe a partial document.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/nipa/internal/core"
)

const (
	catalogFile = "nipa_tables.json"
	tablesDir   = "nipa"
)

// RawStore reads and writes raw documents. It implements core.Source.
type RawStore struct {
	dir string
}

// NewRawStore returns a store rooted at dir. The directory is created on first write.
func NewRawStore(dir string) *RawStore {
	return &RawStore{dir: dir}
}

// Dir returns the root directory.
func (s *RawStore) Dir() string { return s.dir }

// LoadCatalog reads the saved table catalog.
func (s *RawStore) LoadCatalog(ctx context.Context) ([]core.CatalogEntry, error) {
	var entries []core.CatalogEntry
	path := filepath.Join(s.dir, catalogFile)
	if err := readJSON(path, &entries); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("catalog %s: %w", path, core.ErrNotFound)
		}
		return nil, fmt.Errorf("decode raw catalog: %w", err)
	}
	return entries, nil
}

// SaveCatalog replaces the saved catalog.
func (s *RawStore) SaveCatalog(ctx context.Context, entries []core.CatalogEntry) error {
	if entries == nil {
		entries = []core.CatalogEntry{}
	}
	return writeJSONAtomic(filepath.Join(s.dir, catalogFile), entries)
}

// LoadRawRecords reads one table document. A missing document yields an
// error wrapping core.ErrNotFound.
func (s *RawStore) LoadRawRecords(ctx context.Context, tableName string) (*core.RawData, error) {
	path, err := s.tablePath(tableName)
	if err != nil {
		return nil, err
	}

	var data core.RawData
	if err := readJSON(path, &data); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("table %s: %w", tableName, core.ErrNotFound)
		}
		return nil, fmt.Errorf("decode raw data %s: %w", tableName, err)
	}
	if data.TableName == "" {
		data.TableName = tableName
	}
	return &data, nil
}

// SaveTable writes one table document, replacing any previous version.
func (s *RawStore) SaveTable(ctx context.Context, data *core.RawData) error {
	if data == nil {
		return errors.New("save table: nil document")
	}
	path, err := s.tablePath(data.TableName)
	if err != nil {
		return err
	}
	return writeJSONAtomic(path, data)
}

// tablePath maps a table name to its document path, rejecting names that
// would escape the tables directory.
func (s *RawStore) tablePath(tableName string) (string, error) {
	if tableName == "" || strings.ContainsAny(tableName, `/\`) || strings.Contains(tableName, "..") {
		return "", fmt.Errorf("invalid table name %q", tableName)
	}
	return filepath.Join(s.dir, tablesDir, tableName+".json"), nil
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(v)
}

// writeJSONAtomic encodes v to a temp file next to path and renames it over path.
func writeJSONAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
