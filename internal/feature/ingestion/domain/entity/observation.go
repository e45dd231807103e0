package entity

import "time"

// Observation is one OHLCV candle for an asset.
// (AssetID, Timestamp) is unique; price and volume never take part in deduplication.
type Observation struct {
	AssetID   uint
	Timestamp time.Time // UTC, second precision
	Source    string    // data source tag (e.g. "bitfinex")
	Open      float64
	Close     float64
	High      float64
	Low       float64
	Volume    float64
}

// TimestampSet holds observation timestamps as Unix seconds.
type TimestampSet map[int64]struct{}

// NewTimestampSet builds a set from the given timestamps.
func NewTimestampSet(ts ...time.Time) TimestampSet {
	s := make(TimestampSet, len(ts))
	for _, t := range ts {
		s.Add(t)
	}
	return s
}

// Add records t in the set.
func (s TimestampSet) Add(t time.Time) {
	s[t.Unix()] = struct{}{}
}

// Contains reports whether t is in the set.
func (s TimestampSet) Contains(t time.Time) bool {
	_, ok := s[t.Unix()]
	return ok
}
