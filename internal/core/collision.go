package core

import (
	"sort"
	"strconv"
)

// SuffixMap maps table names to their disambiguating dataset suffix.
// Tables whose base key is unique have no entry.
type SuffixMap map[string]string

// Suffix returns the suffix for a table, or "" if it needs none.
func (m SuffixMap) Suffix(tableName string) string {
	return m[tableName]
}

// ResolveCollisions groups the catalog by base key (subject_measurement) and
// numbers the tables of every group with more than one member: "1", "2", ...
// in lexicographic table-name order. It depends on the whole catalog, so it
// must run once per pass before any table is transformed.
func ResolveCollisions(catalog []CatalogEntry) SuffixMap {
	groups := make(map[string][]string)
	seen := make(map[string]bool)

	for _, entry := range catalog {
		if seen[entry.TableName] {
			continue
		}
		seen[entry.TableName] = true

		key := Classify(entry.TableName, entry.Description).BaseKey()
		groups[key] = append(groups[key], entry.TableName)
	}

	suffixes := make(SuffixMap)
	for _, names := range groups {
		if len(names) < 2 {
			continue
		}
		sort.Strings(names)
		for i, name := range names {
			suffixes[name] = strconv.Itoa(i + 1)
		}
	}
	return suffixes
}
