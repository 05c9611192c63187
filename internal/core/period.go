package core

import "regexp"

var (
	quarterlyPeriodRegex = regexp.MustCompile(`^(\d{4})Q([1-4])$`)
	monthlyPeriodRegex   = regexp.MustCompile(`^(\d{4})M(\d{2})$`)
	compactMonthRegex    = regexp.MustCompile(`^(\d{4})(\d{2})$`)
)

// DetectFrequency classifies a BEA TimePeriod token.
// Anything that is not quarterly (2023Q2) or monthly (2023M05) is annual,
// including malformed tokens.
func DetectFrequency(period string) Frequency {
	switch {
	case quarterlyPeriodRegex.MatchString(period):
		return Quarterly
	case monthlyPeriodRegex.MatchString(period):
		return Monthly
	default:
		return Annual
	}
}

// NormalizeDate rewrites a TimePeriod for a known target frequency:
// 2023Q2 -> 2023-Q2, 2023M05 (or 202305) -> 2023-05. Annual periods and
// tokens that do not match the target pattern are returned unchanged;
// Validate catches anything that slips through.
func NormalizeDate(period string, f Frequency) string {
	switch f {
	case Quarterly:
		if m := quarterlyPeriodRegex.FindStringSubmatch(period); m != nil {
			return m[1] + "-Q" + m[2]
		}
	case Monthly:
		if m := monthlyPeriodRegex.FindStringSubmatch(period); m != nil {
			return m[1] + "-" + m[2]
		}
		if m := compactMonthRegex.FindStringSubmatch(period); m != nil {
			return m[1] + "-" + m[2]
		}
	}
	return period
}
