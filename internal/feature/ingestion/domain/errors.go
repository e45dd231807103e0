// Package domain defines domain-level errors for the ingestion feature.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for ingestion. Upper layers match them with errors.Is.
var (
	// ErrConfiguration indicates a bad or missing asset list or an unrecognized data source.
	// It aborts a run before any asset is touched.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidRange indicates a time range whose start is not strictly before its end,
	// or a bound that cannot be resolved to UTC. It skips only the affected asset.
	ErrInvalidRange = errors.New("invalid time range")

	// ErrAssetNotFound is returned by stores when no asset matches a symbol.
	ErrAssetNotFound = errors.New("asset not found")
)

// ProviderError is a failed provider call for one window. It is recoverable:
// only that window is lost.
type ProviderError struct {
	Symbol string
	Start  time.Time
	End    time.Time
	Err    error
}

// NewProviderError wraps err with the symbol and window it occurred for.
func NewProviderError(symbol string, start, end time.Time, err error) *ProviderError {
	return &ProviderError{Symbol: symbol, Start: start, End: end, Err: err}
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error for %s [%s, %s): %v",
		e.Symbol, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339), e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// StoreError is a failed unit of work against the observation store.
// The unit is rolled back; sibling windows and assets continue.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
