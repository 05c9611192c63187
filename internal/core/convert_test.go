package core

import (
	"testing"
)

func strPtr(s string) *string { return &s }

// ----------------------------------------------------------------------------
// ParseValue Tests
// ----------------------------------------------------------------------------

func TestParseValue(t *testing.T) {
	tests := []struct {
		name   string
		input  *string
		want   float64
		wantOK bool
	}{
		// Valid: plain numbers
		{name: "integer", input: strPtr("123"), want: 123, wantOK: true},
		{name: "decimal", input: strPtr("123.45"), want: 123.45, wantOK: true},
		{name: "negative", input: strPtr("-0.7"), want: -0.7, wantOK: true},
		{name: "explicit plus", input: strPtr("+2.5"), want: 2.5, wantOK: true},
		{name: "leading decimal point", input: strPtr(".5"), want: 0.5, wantOK: true},
		{name: "scientific notation", input: strPtr("1.5e3"), want: 1500, wantOK: true},

		// Valid: cleanup
		{name: "thousands separators", input: strPtr("1,234.5"), want: 1234.5, wantOK: true},
		{name: "millions", input: strPtr("27,360,935"), want: 27360935, wantOK: true},
		{name: "surrounding whitespace", input: strPtr("  42.0 "), want: 42, wantOK: true},

		// Null: missing
		{name: "nil", input: nil, wantOK: false},
		{name: "empty", input: strPtr(""), wantOK: false},
		{name: "whitespace only", input: strPtr("   "), wantOK: false},

		// Null: sentinels
		{name: "n/a", input: strPtr("n/a"), wantOK: false},
		{name: "NA", input: strPtr("NA"), wantOK: false},
		{name: "(NA)", input: strPtr("(NA)"), wantOK: false},
		{name: "(NM)", input: strPtr("(NM)"), wantOK: false},
		{name: "ellipsis", input: strPtr("..."), wantOK: false},
		{name: "dashes", input: strPtr("----"), wantOK: false},
		{name: "n.a.", input: strPtr("n.a."), wantOK: false},
		{name: "padded sentinel", input: strPtr(" (NA) "), wantOK: false},

		// Null: unparseable
		{name: "text", input: strPtr("abc"), wantOK: false},
		{name: "only commas", input: strPtr(",,,"), wantOK: false},
		{name: "NaN", input: strPtr("NaN"), wantOK: false},
		{name: "Inf", input: strPtr("Inf"), wantOK: false},
		{name: "overflow", input: strPtr("1e999"), wantOK: false},
		{name: "footnote marker", input: strPtr("12.3(p)"), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseValue(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseValue() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Slugify Tests
// ----------------------------------------------------------------------------

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Gross domestic product", "gross_domestic_product"},
		{"Gross domestic product (GDP)", "gross_domestic_product_gdp"},
		{"Goods and services, net", "goods_and_services_net"},
		{"  Personal   consumption  ", "personal_consumption"},
		{"Equals: Net domestic product", "equals_net_domestic_product"},
		{"Less: Consumption of fixed capital", "less_consumption_of_fixed_capital"},
		{"Motor vehicles & parts", "motor_vehicles_parts"},
		{"Line 1\tand\nline 2", "line_1_and_line_2"},
		{"Gross\u00a0domestic product", "gross_domestic_product"},
		{"\u2003Exports\u2009of goods\u00a0", "exports_of_goods"},
		{"!!!", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTitleWords(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"gdp", "Gdp"},
		{"pce_by_type", "Pce By Type"},
		{"percent_change_yoy", "Percent Change Yoy"},
		{"1st_quarter", "1St Quarter"},
		{"line_2b", "Line 2B"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := titleWords(tt.input); got != tt.want {
			t.Errorf("titleWords(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
