package core

// error_messages.go maps technical errors to coded operator messages.
//
// Codes appear in run reports, CLI summaries and HTTP error bodies so a
// failure can be looked up without reading logs first.
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Schema mismatch: a column has the wrong Arrow type
//	VAL002 - Null date
//	VAL003 - Duplicate date
//	VAL004 - Empty table
//	VAL005 - Date format does not match the frequency
//	VAL006 - Dates not ascending
//	VAL007 - No data columns
//
// # Source Errors (SRC001-SRC099)
//
//	SRC001 - Raw data not found for a table
//	SRC002 - Raw document could not be decoded
//
// # Publish Errors (PUB001-PUB099)
//
//	PUB001 - Dataset id issued twice in one run
//	PUB002 - Database unavailable
//	PUB003 - Dataset could not be written
//	PUB004 - Dataset has not been published
//
// # BEA API Errors (API001-API099)
//
//	API001 - API returned an error object
//	API002 - Rate limited by the API
//	API003 - Unexpected HTTP status
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - A run is already in progress
//	RUN002 - Run cancelled or timed out
//	RUN003 - Ingest requested without a BEA API key
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Check the logs for the original error.
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so more specific patterns come first.

import (
	"fmt"
	"strings"
)

// UserMessage provides operator-facing error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for reference
}

// errorPattern defines a pattern to match and its corresponding message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// =========================================================================
	// Validation Errors (VAL001-VAL007)
	// =========================================================================
	{
		pattern: "invalid table: schema",
		msg: UserMessage{
			Message: "Table column has an unexpected type",
			Action:  "Check the pivot output schema; date must be text and data columns float",
			Code:    "VAL001",
		},
	},
	{
		pattern: "invalid table: not_null",
		msg: UserMessage{
			Message: "Table contains a null date",
			Action:  "Inspect the raw TimePeriod values for this table",
			Code:    "VAL002",
		},
	},
	{
		pattern: "invalid table: unique",
		msg: UserMessage{
			Message: "Table contains duplicate dates",
			Action:  "Inspect the raw TimePeriod values for this table",
			Code:    "VAL003",
		},
	},
	{
		pattern: "invalid table: min_rows",
		msg: UserMessage{
			Message: "Table has no rows",
			Action:  "Re-ingest the table; the raw document may be empty",
			Code:    "VAL004",
		},
	},
	{
		pattern: "invalid table: date_format",
		msg: UserMessage{
			Message: "Date does not match the frequency format",
			Action:  "Inspect the raw TimePeriod values; the period may be malformed",
			Code:    "VAL005",
		},
	},
	{
		pattern: "invalid table: sorted",
		msg: UserMessage{
			Message: "Dates are not in ascending order",
			Action:  "Report this as a pivot bug",
			Code:    "VAL006",
		},
	},
	{
		pattern: "invalid table: data_columns",
		msg: UserMessage{
			Message: "Table has no data columns",
			Action:  "Inspect the raw LineDescription values for this table",
			Code:    "VAL007",
		},
	},

	// =========================================================================
	// Source Errors (SRC001-SRC002)
	// =========================================================================
	{
		pattern: "raw data not found",
		msg: UserMessage{
			Message: "No raw data stored for this table",
			Action:  "Run the ingest phase for this table",
			Code:    "SRC001",
		},
	},
	{
		pattern: "decode raw",
		msg: UserMessage{
			Message: "Raw document could not be decoded",
			Action:  "Delete the raw document and re-ingest the table",
			Code:    "SRC002",
		},
	},

	// =========================================================================
	// Publish Errors (PUB001-PUB004)
	// =========================================================================
	{
		pattern: "duplicate dataset id",
		msg: UserMessage{
			Message: "Dataset id was issued twice in one run",
			Action:  "Check the catalog for duplicate table entries",
			Code:    "PUB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "PUB002",
		},
	},
	{
		pattern: "publish dataset",
		msg: UserMessage{
			Message: "Dataset could not be written",
			Action:  "Check the publish target's permissions and free space",
			Code:    "PUB003",
		},
	},
	{
		pattern: "dataset not found",
		msg: UserMessage{
			Message: "No dataset with this id has been published",
			Action:  "List datasets with GET /api/datasets",
			Code:    "PUB004",
		},
	},

	// =========================================================================
	// BEA API Errors (API001-API003)
	// =========================================================================
	{
		pattern: "bea api error",
		msg: UserMessage{
			Message: "The BEA API rejected the request",
			Action:  "Check the API key and request parameters",
			Code:    "API001",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests to the BEA API",
			Action:  "Increase BEA_REQUEST_INTERVAL and retry",
			Code:    "API002",
		},
	},
	{
		pattern: "unexpected status",
		msg: UserMessage{
			Message: "The BEA API returned an unexpected response",
			Action:  "Retry later; the API may be unavailable",
			Code:    "API003",
		},
	},

	// =========================================================================
	// Run Errors (RUN001-RUN003)
	// =========================================================================
	{
		pattern: "run already in progress",
		msg: UserMessage{
			Message: "A pipeline run is already in progress",
			Action:  "Wait for the current run to finish",
			Code:    "RUN001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Run was cancelled",
			Action:  "Start a new run when ready",
			Code:    "RUN002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Run timed out",
			Action:  "Retry, or raise the timeout",
			Code:    "RUN002",
		},
	},
	{
		pattern: "ingest unavailable",
		msg: UserMessage{
			Message: "Ingest is not configured",
			Action:  "Set BEA_API_KEY, or run the transform phase only",
			Code:    "RUN003",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the logs for the original error",
	Code:    "ERR000",
}

// MapError converts a technical error to a coded message.
// Returns an empty message for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError formats an error as "Message (Code: X). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether an error matches a specific pattern rather
// than the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
