// Package bea provides a rate-limited client for the BEA data API.
package bea

import (
	"fmt"
	"time"

	"github.com/JonMunkholm/nipa/internal/core"
)

// API method names.
const (
	MethodGetParameterValues = "GETPARAMETERVALUES"
	MethodGetData            = "GETDATA"
)

// DatasetNIPA is the National Income and Product Accounts dataset.
const DatasetNIPA = "NIPA"

// CodeNoData is the API error code returned when a table has no data for the
// requested frequency or years.
const CodeNoData = "101"

// Config holds configuration for the BEA client.
type Config struct {
	APIKey          string
	BaseURL         string
	Timeout         time.Duration // Per-request timeout
	RequestInterval time.Duration // Minimum gap between requests; 0 disables limiting
	CacheTTL        time.Duration // Parameter-value cache lifetime
	MaxRetries      int           // Retries for 429, 5xx and transport errors
}

// DefaultConfig returns a Config with the limits the BEA API publishes.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "https://apps.bea.gov/api/data",
		Timeout:         120 * time.Second,
		RequestInterval: 2 * time.Second,
		CacheTTL:        time.Hour,
		MaxRetries:      2,
	}
}

// APIError is an error object returned inside a BEA response body.
type APIError struct {
	Code        string `json:"APIErrorCode"`
	Description string `json:"APIErrorDescription"`

	// Some endpoints prefix attribute names with "@".
	AltCode        string `json:"@APIErrorCode"`
	AltDescription string `json:"@APIErrorDescription"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("BEA API error %s: %s", e.code(), e.description())
}

// IsNoData reports whether the error means "nothing to return" rather than a failure.
func (e *APIError) IsNoData() bool {
	return e.code() == CodeNoData
}

func (e *APIError) code() string {
	if e.Code != "" {
		return e.Code
	}
	return e.AltCode
}

func (e *APIError) description() string {
	if e.Description != "" {
		return e.Description
	}
	return e.AltDescription
}

// envelope is the outer shape of every BEA JSON response.
type envelope struct {
	BEAAPI struct {
		Error   *APIError `json:"Error"`
		Results results   `json:"Results"`
	} `json:"BEAAPI"`
}

type results struct {
	Error      *APIError        `json:"Error"`
	ParamValue []paramValue     `json:"ParamValue"`
	Data       []core.RawRecord `json:"Data"`
}

// err returns the first error object found in the envelope.
func (e *envelope) err() *APIError {
	if e.BEAAPI.Error != nil {
		return e.BEAAPI.Error
	}
	return e.BEAAPI.Results.Error
}

// paramValue is one GETPARAMETERVALUES entry. Field names vary by dataset.
type paramValue struct {
	TableName   string `json:"TableName"`
	TableID     string `json:"TableID"`
	Key         string `json:"Key"`
	Description string `json:"Description"`
	Desc        string `json:"Desc"`
}

func (p paramValue) entry() core.CatalogEntry {
	name := p.TableName
	if name == "" {
		name = p.TableID
	}
	if name == "" {
		name = p.Key
	}
	desc := p.Description
	if desc == "" {
		desc = p.Desc
	}
	return core.CatalogEntry{TableName: name, Description: desc}
}

// Observer receives one call per HTTP request. status is the HTTP status
// code, or "error" when no response was received.
type Observer interface {
	ObserveRequest(method, status string)
}
