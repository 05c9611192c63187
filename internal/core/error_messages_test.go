package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "nil error returns empty", err: nil, wantCode: ""},
		{name: "schema violation", err: invalid(CheckSchema, "x", "int64", "want float64"), wantCode: "VAL001"},
		{name: "null date", err: invalid(CheckNotNull, DateColumn, "", "null date"), wantCode: "VAL002"},
		{name: "duplicate date", err: invalid(CheckUnique, DateColumn, "2023", "dup"), wantCode: "VAL003"},
		{name: "empty table", err: invalid(CheckMinRows, "", "", "no rows"), wantCode: "VAL004"},
		{name: "bad date format", err: invalid(CheckDateFormat, DateColumn, "2023Q1", "bad"), wantCode: "VAL005"},
		{name: "unsorted dates", err: invalid(CheckSorted, DateColumn, "2022", "bad"), wantCode: "VAL006"},
		{name: "no data columns", err: invalid(CheckDataColumns, "", "", "none"), wantCode: "VAL007"},
		{name: "wrapped not found", err: fmt.Errorf("load T10101: %w", ErrNotFound), wantCode: "SRC001"},
		{name: "decode failure", err: errors.New("decode raw data T10101: unexpected EOF"), wantCode: "SRC002"},
		{name: "duplicate dataset", err: fmt.Errorf("%w: bea_gdp_level_annual", ErrDuplicateDataset), wantCode: "PUB001"},
		{name: "database down", err: errors.New("dial tcp 127.0.0.1:5432: connection refused"), wantCode: "PUB002"},
		{name: "publish write failure", err: errors.New("publish dataset bea_gdp: disk full"), wantCode: "PUB003"},
		{name: "api error object", err: errors.New("BEA API error 3: invalid key"), wantCode: "API001"},
		{name: "rate limited", err: errors.New("rate limit exceeded"), wantCode: "API002"},
		{name: "bad status", err: errors.New("unexpected status 503"), wantCode: "API003"},
		{name: "run in progress", err: errors.New("run already in progress"), wantCode: "RUN001"},
		{name: "cancelled", err: fmt.Errorf("transform interrupted: %w", context.Canceled), wantCode: "RUN002"},
		{name: "deadline", err: context.DeadlineExceeded, wantCode: "RUN002"},
		{name: "ingest unavailable", err: errors.New("ingest unavailable: BEA_API_KEY is not set"), wantCode: "RUN003"},
		{name: "dataset missing", err: errors.New("dataset bea_x_annual: dataset not found"), wantCode: "PUB004"},
		{name: "unknown falls back", err: errors.New("something odd"), wantCode: "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.err != nil && got.Action == "" {
				t.Error("MapError() action should not be empty")
			}
		})
	}
}

func TestMapErrorCaseInsensitive(t *testing.T) {
	if got := MapError(errors.New("RATE LIMIT hit")); got.Code != "API002" {
		t.Errorf("MapError() code = %q, want API002", got.Code)
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}

	got := FormatUserError(fmt.Errorf("load: %w", ErrNotFound))
	if !strings.Contains(got, "(Code: SRC001)") {
		t.Errorf("FormatUserError() = %q, want code SRC001", got)
	}
	if !strings.HasPrefix(got, "No raw data stored") {
		t.Errorf("FormatUserError() = %q, want message first", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"known pattern", ErrDuplicateDataset, true},
		{"unknown", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}
