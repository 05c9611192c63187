package core

import "fmt"

// DefaultPrefix is the dataset id prefix for BEA tables.
const DefaultPrefix = "bea"

// maxColumnDescriptions caps the column descriptions kept in metadata so the
// serialized record stays under the catalog's 4000 character limit.
const maxColumnDescriptions = 30

// DatasetID builds {prefix}_{subject}_{measurement}_{frequency}[_{suffix}].
func DatasetID(prefix string, id Identity, f Frequency, suffix string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	dsID := fmt.Sprintf("%s_%s_%s_%s", prefix, id.Subject, id.Measurement, f)
	if suffix != "" {
		dsID += "_" + suffix
	}
	return dsID
}

// BuildMetadata describes a dataset for its publisher.
func BuildMetadata(datasetID string, entry CatalogEntry, id Identity, f Frequency, columns []string) Metadata {
	ref, title := ParseTableRef(entry.TableName, entry.Description)

	descs := map[string]string{
		DateColumn: dateUnit(f) + " of observation",
	}
	n := len(columns)
	if n > maxColumnDescriptions {
		n = maxColumnDescriptions
	}
	for _, col := range columns[:n] {
		descs[col] = titleWords(col)
	}

	return Metadata{
		ID: datasetID,
		Title: fmt.Sprintf("BEA %s - %s (%s)",
			titleWords(id.Subject), titleWords(string(id.Measurement)), f.Title()),
		Description:        fmt.Sprintf("%s. Source: BEA NIPA Table %s.", title, ref),
		ColumnDescriptions: descs,
	}
}

func dateUnit(f Frequency) string {
	switch f {
	case Annual:
		return "Year"
	case Quarterly:
		return "Quarter"
	default:
		return "Month"
	}
}
