// Package returns maintains bounded per-symbol price and return history and
// computes correlation matrices and portfolio VaR/CVaR from it.
package returns

import (
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/quantgate/quantgate/pkg/formulas"
)

const (
	// DefaultMaxHistory is one year of daily returns.
	DefaultMaxHistory = 252

	// MinObservations is the minimum number of aligned return observations
	// required before a symbol participates in correlation or VaR output.
	MinObservations = 20
)

// boundedSeries is a fixed-capacity append-only buffer that drops its oldest
// value once full.
type boundedSeries struct {
	capacity int
	values   []float64
}

func newBoundedSeries(capacity int) *boundedSeries {
	return &boundedSeries{capacity: capacity, values: make([]float64, 0, capacity)}
}

func (s *boundedSeries) append(v float64) {
	if len(s.values) == s.capacity {
		s.values = s.values[:copy(s.values, s.values[1:])]
	}
	s.values = append(s.values, v)
}

func (s *boundedSeries) last() (float64, bool) {
	if len(s.values) == 0 {
		return 0, false
	}
	return s.values[len(s.values)-1], true
}

// Tracker records per-symbol prices and derived simple returns. Buffers are
// created lazily on the first observed price per symbol. Not safe for
// concurrent mutation; callers serialize per portfolio.
type Tracker struct {
	maxHistory int
	prices     map[string]*boundedSeries
	returns    map[string]*boundedSeries
	log        zerolog.Logger
}

// New creates a tracker holding up to maxHistory returns per symbol.
// maxHistory <= 0 selects DefaultMaxHistory.
func New(maxHistory int, log zerolog.Logger) *Tracker {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Tracker{
		maxHistory: maxHistory,
		prices:     make(map[string]*boundedSeries),
		returns:    make(map[string]*boundedSeries),
		log:        log.With().Str("component", "return_tracker").Logger(),
	}
}

// RecordPrice appends a price observation for symbol and, once at least two
// prices exist, the derived simple return.
func (t *Tracker) RecordPrice(symbol string, price float64) {
	prices, ok := t.prices[symbol]
	if !ok {
		prices = newBoundedSeries(t.maxHistory + 1)
		t.prices[symbol] = prices
		t.returns[symbol] = newBoundedSeries(t.maxHistory)
		t.log.Debug().Str("symbol", symbol).Msg("Tracking new symbol")
	}

	prev, hasPrev := prices.last()
	prices.append(price)

	if hasPrev && prev != 0 {
		t.returns[symbol].append((price - prev) / prev)
	}
}

// Returns gives a copy of the stored return series for symbol, empty for
// unknown symbols.
func (t *Tracker) Returns(symbol string) []float64 {
	series, ok := t.returns[symbol]
	if !ok {
		return []float64{}
	}
	out := make([]float64, len(series.values))
	copy(out, series.values)
	return out
}

// Symbols lists all tracked symbols in sorted order.
func (t *Tracker) Symbols() []string {
	symbols := make([]string, 0, len(t.prices))
	for symbol := range t.prices {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// CorrelationPair holds the correlation between two symbols.
type CorrelationPair struct {
	A    string
	B    string
	Corr float64
}

// CorrelationMatrix is a symmetric Pearson correlation matrix over a set of
// symbols, with unit diagonal.
type CorrelationMatrix struct {
	Symbols []string
	Matrix  *mat.SymDense
}

// Corr returns the correlation between symbols a and b, false if either is
// not part of the matrix.
func (m *CorrelationMatrix) Corr(a, b string) (float64, bool) {
	ia, ib := -1, -1
	for i, s := range m.Symbols {
		if s == a {
			ia = i
		}
		if s == b {
			ib = i
		}
	}
	if ia < 0 || ib < 0 {
		return 0, false
	}
	return m.Matrix.At(ia, ib), true
}

// Pairs returns the upper triangle of the matrix as symbol pairs.
func (m *CorrelationMatrix) Pairs() []CorrelationPair {
	var pairs []CorrelationPair
	for i := 0; i < len(m.Symbols); i++ {
		for j := i + 1; j < len(m.Symbols); j++ {
			pairs = append(pairs, CorrelationPair{
				A:    m.Symbols[i],
				B:    m.Symbols[j],
				Corr: m.Matrix.At(i, j),
			})
		}
	}
	return pairs
}

// CorrelationMatrix computes the Pearson correlation matrix over the given
// symbols (all tracked symbols when nil). Symbols with fewer than
// MinObservations returns are excluded; nil is returned when fewer than two
// symbols qualify. All qualifying series are aligned to the shortest common
// length using their most recent observations.
func (t *Tracker) CorrelationMatrix(symbols []string) *CorrelationMatrix {
	if symbols == nil {
		symbols = t.Symbols()
	}

	qualified := make([]string, 0, len(symbols))
	minLen := 0
	for _, symbol := range symbols {
		series, ok := t.returns[symbol]
		if !ok || len(series.values) < MinObservations {
			continue
		}
		qualified = append(qualified, symbol)
		if minLen == 0 || len(series.values) < minLen {
			minLen = len(series.values)
		}
	}
	if len(qualified) < 2 {
		return nil
	}
	sort.Strings(qualified)

	aligned := make([][]float64, len(qualified))
	for i, symbol := range qualified {
		values := t.returns[symbol].values
		aligned[i] = values[len(values)-minLen:]
	}

	matrix := mat.NewSymDense(len(qualified), nil)
	for i := range qualified {
		matrix.SetSym(i, i, 1.0)
		for j := i + 1; j < len(qualified); j++ {
			matrix.SetSym(i, j, formulas.Correlation(aligned[i], aligned[j]))
		}
	}

	return &CorrelationMatrix{Symbols: qualified, Matrix: matrix}
}
