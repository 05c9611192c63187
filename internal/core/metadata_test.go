package core

import "testing"

// ----------------------------------------------------------------------------
// Metadata Tests
// ----------------------------------------------------------------------------

func TestDatasetID(t *testing.T) {
	id := Identity{Subject: "pce_by_type_u", Measurement: MeasureLevel}

	tests := []struct {
		name   string
		prefix string
		freq   Frequency
		suffix string
		want   string
	}{
		{"no suffix", "bea", Monthly, "", "bea_pce_by_type_u_level_monthly"},
		{"with suffix", "bea", Annual, "2", "bea_pce_by_type_u_level_annual_2"},
		{"default prefix", "", Quarterly, "", "bea_pce_by_type_u_level_quarterly"},
		{"custom prefix", "nipa", Annual, "", "nipa_pce_by_type_u_level_annual"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DatasetID(tt.prefix, id, tt.freq, tt.suffix); got != tt.want {
				t.Errorf("DatasetID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildMetadata(t *testing.T) {
	entry := CatalogEntry{TableName: "T10101", Description: "Table 1.1.1. Percent Change From Preceding Period in Real Gross Domestic Product (A) (Q)"}
	id := Classify(entry.TableName, entry.Description)

	meta := BuildMetadata("bea_gdp_percent_change_quarterly", entry, id, Quarterly,
		[]string{"gross_domestic_product", "personal_consumption_expenditures"})

	if meta.ID != "bea_gdp_percent_change_quarterly" {
		t.Errorf("ID = %q", meta.ID)
	}
	if want := "BEA Gdp - Percent Change (Quarterly)"; meta.Title != want {
		t.Errorf("Title = %q, want %q", meta.Title, want)
	}
	if want := "Percent Change From Preceding Period in Real Gross Domestic Product. Source: BEA NIPA Table 1.1.1."; meta.Description != want {
		t.Errorf("Description = %q, want %q", meta.Description, want)
	}
	if got := meta.ColumnDescriptions[DateColumn]; got != "Quarter of observation" {
		t.Errorf("date description = %q", got)
	}
	if got := meta.ColumnDescriptions["gross_domestic_product"]; got != "Gross Domestic Product" {
		t.Errorf("column description = %q", got)
	}
}

func TestBuildMetadataCapsColumnDescriptions(t *testing.T) {
	cols := make([]string, 45)
	for i := range cols {
		cols[i] = "line_" + string(rune('a'+i%26)) + string(rune('a'+i/26))
	}

	meta := BuildMetadata("bea_x_level_annual", CatalogEntry{TableName: "X"}, Identity{Subject: "x", Measurement: MeasureLevel}, Annual, cols)

	// 30 data columns plus the date column
	if got := len(meta.ColumnDescriptions); got != maxColumnDescriptions+1 {
		t.Errorf("len(ColumnDescriptions) = %d, want %d", got, maxColumnDescriptions+1)
	}
	if _, ok := meta.ColumnDescriptions[cols[len(cols)-1]]; ok {
		t.Error("columns beyond the cap should not be described")
	}
	if got := meta.ColumnDescriptions[DateColumn]; got != "Year of observation" {
		t.Errorf("date description = %q", got)
	}
	// Unparseable descriptions fall back to the table name
	if want := ". Source: BEA NIPA Table X."; meta.Description != want {
		t.Errorf("Description = %q, want %q", meta.Description, want)
	}
}
