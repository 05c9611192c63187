package core

import (
	"regexp"
	"strings"
)

// Measurement is the kind of quantity a NIPA table reports.
type Measurement string

const (
	MeasureContributionsReal  Measurement = "contributions_real"
	MeasureContributionsPrice Measurement = "contributions_price"
	MeasureContributions      Measurement = "contributions"
	MeasurePercentChangeYoY   Measurement = "percent_change_yoy"
	MeasurePricePercentChange Measurement = "price_percent_change"
	MeasurePercentChange      Measurement = "percent_change"
	MeasureQuantityIndex      Measurement = "quantity_index"
	MeasurePriceIndex         Measurement = "price_index"
	MeasureDeflator           Measurement = "deflator"
	MeasureChainedDollars     Measurement = "chained_dollars"
	MeasureShares             Measurement = "shares"
	MeasureCurrentDollars     Measurement = "current_dollars"
	MeasureRelation           Measurement = "relation"
	MeasureTransactions       Measurement = "transactions"
	MeasureLevel              Measurement = "level"

	// MeasureData is used when the description cannot be parsed at all.
	MeasureData Measurement = "data"
)

// Identity is the semantic name of a source table.
type Identity struct {
	Subject     string
	Measurement Measurement
	Variant     string // lowercased variant letter, already appended to Subject
}

// BaseKey identifies the dataset family ignoring frequency and suffix.
func (id Identity) BaseKey() string {
	return id.Subject + "_" + string(id.Measurement)
}

// tableDescRegex extracts section, subsection, variant letter and title from
// descriptions like "Table 1.1.5. Gross Domestic Product (A) (Q)".
var tableDescRegex = regexp.MustCompile(`Table (\d+)\.(\d+)\.?\d*([A-Z])?\. (.+?) \([AQM]`)

// tableRefRegex captures the full table reference for metadata.
var tableRefRegex = regexp.MustCompile(`Table (\d+\.\d+\.?\d*[A-Z]?)\. (.+?) \([AQM]`)

// measurementRule maps a title predicate to a measurement.
type measurementRule struct {
	match       func(title string) bool
	measurement Measurement
}

func contains(phrases ...string) func(string) bool {
	return func(title string) bool {
		for _, p := range phrases {
			if strings.Contains(title, p) {
				return true
			}
		}
		return false
	}
}

// measurementRules is evaluated in order against the lowercased title.
// More specific phrases must precede the general ones they contain.
var measurementRules = []measurementRule{
	{contains("contributions to percent change in real"), MeasureContributionsReal},
	{func(t string) bool {
		return strings.Contains(t, "contributions to percent change in") && strings.Contains(t, "price")
	}, MeasureContributionsPrice},
	{contains("contributions to percent change"), MeasureContributions},
	{contains("percent change from quarter one year ago"), MeasurePercentChangeYoY},
	{contains("percent change from preceding period in prices"), MeasurePricePercentChange},
	{contains("percent change"), MeasurePercentChange},
	{contains("quantity indexes", "quantity index"), MeasureQuantityIndex},
	{contains("price indexes", "price index"), MeasurePriceIndex},
	{contains("implicit price deflator"), MeasureDeflator},
	{contains("chained dollars"), MeasureChainedDollars},
	{contains("percentage shares"), MeasureShares},
	{contains("current dollars"), MeasureCurrentDollars},
	{contains("relation of"), MeasureRelation},
	{contains("transactions of"), MeasureTransactions},
}

// Classify derives the semantic identity of a table from its catalog
// description. It never fails: descriptions that do not follow the
// "Table N.N.N. Title (A)" convention yield {lower(tableName), data}.
func Classify(tableName, description string) Identity {
	m := tableDescRegex.FindStringSubmatch(description)
	if m == nil {
		return Identity{Subject: strings.ToLower(tableName), Measurement: MeasureData}
	}

	section, subsection, variant, title := m[1], m[2], m[3], m[4]

	id := Identity{
		Subject:     lookupSubject(section, subsection),
		Measurement: classifyMeasurement(title),
	}
	if variant != "" {
		id.Variant = strings.ToLower(variant)
		id.Subject += "_" + id.Variant
	}
	return id
}

// classifyMeasurement applies measurementRules to a table title.
func classifyMeasurement(title string) Measurement {
	title = strings.ToLower(title)
	for _, rule := range measurementRules {
		if rule.match(title) {
			return rule.measurement
		}
	}
	return MeasureLevel
}

// ParseTableRef returns the table reference (e.g. "2.4.5U") and clean title
// from a description, falling back to the table name and raw description.
func ParseTableRef(tableName, description string) (ref, title string) {
	if m := tableRefRegex.FindStringSubmatch(description); m != nil {
		return m[1], strings.TrimSpace(m[2])
	}
	return tableName, description
}
