// Package core provides the transform engine that turns raw BEA NIPA records
// into wide, frequency-split, semantically named tables.
//
// This package contains all domain logic independent of how records are
// fetched or where tables end up. It can be driven by the CLI, the HTTP
// server's run trigger, or tests without modification.
//
// # Architecture
//
// The engine is organized leaf-first:
//
//   - Value parsing: [ParseValue] coerces BEA data values (thousands separators,
//     sentinel strings) to nullable floats.
//   - Periods: [DetectFrequency] and [NormalizeDate] classify and rewrite
//     TimePeriod tokens.
//   - Classification: [Classify] maps a table name and its catalog description
//     to a stable [Identity] (subject, measurement).
//   - Pivot: [Pivot] groups long records into a [WideTable] with one row per
//     date and one column per line item.
//   - Collisions: [ResolveCollisions] assigns numeric suffixes to tables that
//     share a base key, once per catalog pass.
//   - Validation: [Validate] enforces structural invariants before publish.
//   - Orchestration: [Transformer.Run] drives the whole catalog.
//
// # Dataset Naming
//
// Dataset identifiers have the form
//
//	{prefix}_{subject}_{measurement}_{frequency}[_{suffix}]
//
// for example bea_gdp_percent_change_quarterly or bea_pce_by_type_chained_dollars_monthly_2.
//
// # Error Handling
//
// Expected outcomes (pattern misses, empty pivots, stale tables, missing raw
// data) never surface as errors from the engine. Structural violations are
// reported as [*ValidationError] wrapping [ErrValidation] and stop the
// affected table/frequency pair only. [MapError] maps errors to coded
// messages for operators:
//
//   - VAL001-VAL007: Validation failures
//   - SRC001-SRC002: Raw data source errors
//   - PUB001-PUB003: Publish errors
//   - API001-API003: BEA API errors
//   - RUN001-RUN002: Run control errors
package core
