package market_regime

import (
	"math"
	"sort"

	"github.com/markcheno/go-talib"

	"github.com/quantgate/quantgate/pkg/formulas"
)

// bbWidthWindow caps the rolling window used for the band-width percentile
// rank; bbWidthMinObs is the minimum number of widths before a rank is
// emitted.
const (
	bbWidthWindow = 100
	bbWidthMinObs = 20
)

// indicatorSet holds the per-bar sub-indicator columns. Warmup positions are
// NaN except for the structure score, which defaults to 0 when undefined.
// go-talib fills warmup positions with zeros, so validity is tracked here by
// explicit lookback indices rather than by inspecting output values.
type indicatorSet struct {
	adx       []float64
	bbPct     []float64
	emaSlope  []float64
	alignment []float64
	structure []float64
}

// valid reports whether every NaN-able sub-indicator is defined at bar i.
func (ind indicatorSet) valid(i int) bool {
	return !math.IsNaN(ind.adx[i]) &&
		!math.IsNaN(ind.bbPct[i]) &&
		!math.IsNaN(ind.emaSlope[i]) &&
		!math.IsNaN(ind.alignment[i])
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// computeIndicators builds all five sub-indicator columns for the series.
func (d *Detector) computeIndicators(s Series) indicatorSet {
	n := s.Len()
	return indicatorSet{
		adx:       d.computeADX(s, n),
		bbPct:     d.computeBBWidthPercentile(s, n),
		emaSlope:  d.computeEMASlope(s, n),
		alignment: d.computeTrendAlignment(s, n),
		structure: d.computeStructureScore(s, n),
	}
}

// computeADX is the Wilder Average Directional Index; first valid value is
// at index 2*period-1.
func (d *Detector) computeADX(s Series, n int) []float64 {
	out := nanSlice(n)
	warmup := 2*d.cfg.ADXPeriod - 1
	if n <= warmup {
		return out
	}
	adx := talib.Adx(s.High, s.Low, s.Close, d.cfg.ADXPeriod)
	for i := warmup; i < n; i++ {
		out[i] = adx[i]
	}
	return out
}

// computeBBWidthPercentile ranks the current Bollinger band width against a
// trailing window of up to bbWidthWindow prior widths (0-100 scale).
func (d *Detector) computeBBWidthPercentile(s Series, n int) []float64 {
	out := nanSlice(n)
	if n < d.cfg.BBPeriod {
		return out
	}

	upper, middle, lower := talib.BBands(s.Close, d.cfg.BBPeriod, d.cfg.BBStd, d.cfg.BBStd, 0)

	first := d.cfg.BBPeriod - 1
	widths := nanSlice(n)
	for i := first; i < n; i++ {
		if middle[i] != 0 {
			widths[i] = (upper[i] - lower[i]) / middle[i]
		}
	}

	for i := first; i < n; i++ {
		if math.IsNaN(widths[i]) {
			continue
		}
		start := i - bbWidthWindow + 1
		if start < first {
			start = first
		}
		count, leq := 0, 0
		for j := start; j <= i; j++ {
			if math.IsNaN(widths[j]) {
				continue
			}
			count++
			if widths[j] <= widths[i] {
				leq++
			}
		}
		if count < bbWidthMinObs {
			continue
		}
		out[i] = 100 * float64(leq) / float64(count)
	}
	return out
}

// computeEMASlope is the relative change of the EMA over the configured
// lookback: (EMA_t - EMA_{t-lb}) / EMA_{t-lb}.
func (d *Detector) computeEMASlope(s Series, n int) []float64 {
	out := nanSlice(n)
	if n < d.cfg.EMASlopePeriod+d.cfg.EMASlopeLookback {
		return out
	}
	ema := talib.Ema(s.Close, d.cfg.EMASlopePeriod)
	first := d.cfg.EMASlopePeriod - 1 + d.cfg.EMASlopeLookback
	for i := first; i < n; i++ {
		prev := ema[i-d.cfg.EMASlopeLookback]
		if prev != 0 {
			out[i] = (ema[i] - prev) / prev
		}
	}
	return out
}

// computeTrendAlignment averages sign(fastEMA - slowEMA) over every ordered
// pair from the configured EMA period set, yielding a [-1, 1] score.
func (d *Detector) computeTrendAlignment(s Series, n int) []float64 {
	out := nanSlice(n)

	periods := append([]int(nil), d.cfg.AlignmentEMAPeriods...)
	if len(periods) == 0 {
		periods = DefaultConfig().AlignmentEMAPeriods
	}
	sort.Ints(periods)
	if len(periods) < 2 {
		return out
	}
	maxPeriod := periods[len(periods)-1]
	if n < maxPeriod {
		return out
	}

	emas := make([][]float64, len(periods))
	for i, p := range periods {
		emas[i] = talib.Ema(s.Close, p)
	}

	pairCount := len(periods) * (len(periods) - 1) / 2
	for i := maxPeriod - 1; i < n; i++ {
		sum := 0.0
		for a := 0; a < len(periods); a++ {
			for b := a + 1; b < len(periods); b++ {
				diff := emas[a][i] - emas[b][i]
				switch {
				case diff > 0:
					sum++
				case diff < 0:
					sum--
				}
			}
		}
		out[i] = sum / float64(pairCount)
	}
	return out
}

// computeStructureScore places the close within the rolling high/low range:
// 2*(close-mid)/(high-low), clipped to [-1, 1]. Undefined values (warmup or
// a flat window) become 0.
func (d *Detector) computeStructureScore(s Series, n int) []float64 {
	out := make([]float64, n)
	lb := d.cfg.StructureLookback
	for i := lb - 1; i < n; i++ {
		hh := s.High[i-lb+1]
		ll := s.Low[i-lb+1]
		for j := i - lb + 2; j <= i; j++ {
			hh = math.Max(hh, s.High[j])
			ll = math.Min(ll, s.Low[j])
		}
		if hh == ll {
			continue
		}
		mid := (hh + ll) / 2
		out[i] = formulas.Clamp(2*(s.Close[i]-mid)/(hh-ll), -1, 1)
	}
	return out
}
