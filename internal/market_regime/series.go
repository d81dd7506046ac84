package market_regime

import "time"

// Series is OHLCV bar history with a monotonically increasing UTC timestamp
// index, supplied by the caller.
type Series struct {
	Time   []time.Time
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

// Len returns the number of bars in the series.
func (s Series) Len() int {
	return len(s.Close)
}
