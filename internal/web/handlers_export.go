package web

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/nipa/internal/core"
	"github.com/JonMunkholm/nipa/internal/publish"
	"github.com/go-chi/chi/v5"
)

// exportFlushInterval is the number of CSV rows written between flushes.
const exportFlushInterval = 500

// handleExportDataset streams a published dataset as CSV: a date column
// followed by one column per series, empty cells for nulls.
func (s *Server) handleExportDataset(w http.ResponseWriter, r *http.Request) {
	reader, ok := s.catalog.(publish.TableReader)
	if !ok {
		writeError(w, http.StatusNotImplemented, "export is only available for the file publish target")
		return
	}

	id := chi.URLParam(r, "datasetID")
	table, err := reader.ReadTable(id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, publish.ErrDatasetNotFound) {
			status = http.StatusNotFound
		}
		s.respondError(w, r, err, status)
		return
	}
	defer table.Release()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, id))

	if err := writeTableCSV(w, table); err != nil {
		// Headers are sent; all that is left is to log
		s.logExportError(r, id, err)
	}
}

func writeTableCSV(w http.ResponseWriter, table *core.WideTable) error {
	cw := csv.NewWriter(w)
	columns := table.Columns()

	header := append([]string{core.DateColumn}, columns...)
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for i, date := range table.Dates() {
		record[0] = date
		for j, col := range columns {
			if v, ok := table.Value(i, col); ok {
				record[j+1] = strconv.FormatFloat(v, 'f', -1, 64)
			} else {
				record[j+1] = ""
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}

		if (i+1)%exportFlushInterval == 0 {
			cw.Flush()
			if err := cw.Error(); err != nil {
				return err
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}

	cw.Flush()
	return cw.Error()
}
