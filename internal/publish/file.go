package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JonMunkholm/nipa/internal/core"
	"github.com/apache/arrow/go/v7/arrow/ipc"
	"github.com/apache/arrow/go/v7/arrow/memory"
)

const (
	arrowExt = ".arrow"
	metaExt  = ".json"
)

// FilePublisher writes <dir>/<id>.arrow and <dir>/<id>.json per dataset.
// Republishing an id replaces both files.
type FilePublisher struct {
	dir string
	mem memory.Allocator
}

// NewFilePublisher returns a publisher rooted at dir.
func NewFilePublisher(dir string) *FilePublisher {
	return &FilePublisher{dir: dir, mem: memory.NewGoAllocator()}
}

// Publish writes the table and its metadata.
func (p *FilePublisher) Publish(ctx context.Context, table *core.WideTable, meta core.Metadata, mode core.PublishMode) error {
	if err := checkMode(mode); err != nil {
		return err
	}
	if err := validID(meta.ID); err != nil {
		return err
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("publish dataset %s: %w", meta.ID, err)
	}

	if err := p.writeArrow(table, filepath.Join(p.dir, meta.ID+arrowExt)); err != nil {
		return fmt.Errorf("publish dataset %s: %w", meta.ID, err)
	}

	info := newInfo(table, meta)
	if err := writeFileAtomic(filepath.Join(p.dir, meta.ID+metaExt), func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}); err != nil {
		return fmt.Errorf("publish dataset %s: %w", meta.ID, err)
	}
	return nil
}

func (p *FilePublisher) writeArrow(table *core.WideTable, path string) error {
	return writeFileAtomic(path, func(f *os.File) error {
		w, err := ipc.NewFileWriter(f, ipc.WithSchema(table.Schema()), ipc.WithAllocator(p.mem))
		if err != nil {
			return err
		}
		if err := w.Write(table.Record()); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	})
}

// ReadTable loads a published dataset back into a WideTable. The caller
// must Release it.
func (p *FilePublisher) ReadTable(id string) (*core.WideTable, error) {
	if err := validID(id); err != nil {
		return nil, fmt.Errorf("dataset %q: %w", id, ErrDatasetNotFound)
	}
	info, err := p.readInfo(id)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(p.dir, id+arrowExt))
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", id, err)
	}
	defer f.Close()

	r, err := ipc.NewFileReader(f, ipc.WithAllocator(p.mem))
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", id, err)
	}
	defer r.Close()

	if r.NumRecords() != 1 {
		return nil, fmt.Errorf("read dataset %s: %d record batches, want 1", id, r.NumRecords())
	}
	rec, err := r.Record(0)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", id, err)
	}
	rec.Retain()
	return core.NewWideTable(info.Frequency, rec), nil
}

// ListDatasets returns every published dataset's metadata, sorted by id.
func (p *FilePublisher) ListDatasets(ctx context.Context) ([]DatasetInfo, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []DatasetInfo{}, nil
		}
		return nil, fmt.Errorf("list datasets: %w", err)
	}

	infos := make([]DatasetInfo, 0, len(entries)/2)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != metaExt {
			continue
		}
		info, err := p.readInfo(strings.TrimSuffix(name, metaExt))
		if err != nil {
			return nil, err
		}
		infos = append(infos, *info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

// GetDataset returns one dataset's metadata, or an error wrapping ErrDatasetNotFound.
func (p *FilePublisher) GetDataset(ctx context.Context, id string) (*DatasetInfo, error) {
	if err := validID(id); err != nil {
		return nil, fmt.Errorf("dataset %q: %w", id, ErrDatasetNotFound)
	}
	return p.readInfo(id)
}

func (p *FilePublisher) readInfo(id string) (*DatasetInfo, error) {
	data, err := os.ReadFile(filepath.Join(p.dir, id+metaExt))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("dataset %s: %w", id, ErrDatasetNotFound)
		}
		return nil, fmt.Errorf("read dataset %s: %w", id, err)
	}
	var info DatasetInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode dataset metadata %s: %w", id, err)
	}
	return &info, nil
}

func validID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("invalid dataset id %q", id)
	}
	return nil
}

// writeFileAtomic lets write fill a temp file next to path, then renames it into place.
func writeFileAtomic(path string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
