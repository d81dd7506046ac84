package market_regime

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	return NewDetector(DefaultConfig(), zerolog.Nop())
}

// trendingSeries builds n bars of steady growthPerBar compounding, with
// highs and lows bracketing the close.
func trendingSeries(n int, growthPerBar float64) Series {
	s := Series{
		Time:   make([]time.Time, n),
		Open:   make([]float64, n),
		High:   make([]float64, n),
		Low:    make([]float64, n),
		Close:  make([]float64, n),
		Volume: make([]float64, n),
	}
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := 0; i < n; i++ {
		open := price
		price *= 1 + growthPerBar
		s.Time[i] = start.Add(time.Duration(i) * time.Hour)
		s.Open[i] = open
		s.Close[i] = price
		s.High[i] = price * 1.005
		s.Low[i] = open * 0.995
		s.Volume[i] = 1000
	}
	return s
}

func TestClassifyRegimeHighVolatilityScenario(t *testing.T) {
	d := newTestDetector(t)

	regime, confidence := d.classifyRegime(20, 90, 0.001, 0.1, 0.1)
	assert.Equal(t, RegimeHighVolatility, regime)
	assert.GreaterOrEqual(t, confidence, 0.3)
	assert.LessOrEqual(t, confidence, 1.0)
}

func TestClassifyRegimeDirectionalCases(t *testing.T) {
	d := newTestDetector(t)

	tests := []struct {
		name                                   string
		adx, bbPct, slope, alignment, structure float64
		want                                   Regime
	}{
		{"strong uptrend", 45, 50, 0.008, 0.9, 0.6, RegimeStrongTrendUp},
		{"strong downtrend", 45, 50, -0.008, -0.9, -0.6, RegimeStrongTrendDown},
		{"weak uptrend", 30, 40, 0.004, 0.4, 0.3, RegimeWeakTrendUp},
		{"weak downtrend", 30, 40, -0.004, -0.4, -0.3, RegimeWeakTrendDown},
		{"quiet range", 15, 40, 0.0005, 0.05, 0.0, RegimeRanging},
		{"volatile chop", 18, 95, 0.0, 0.0, 0.0, RegimeHighVolatility},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			regime, confidence := d.classifyRegime(tt.adx, tt.bbPct, tt.slope, tt.alignment, tt.structure)
			assert.Equal(t, tt.want, regime)
			assert.GreaterOrEqual(t, confidence, 0.3)
			assert.LessOrEqual(t, confidence, 1.0)
		})
	}
}

func TestConfidenceAlwaysWithinBounds(t *testing.T) {
	d := newTestDetector(t)

	for _, adx := range []float64{0, 15, 25, 40, 80, 100} {
		for _, bb := range []float64{0, 50, 100} {
			for _, slope := range []float64{-0.05, 0, 0.05} {
				for _, align := range []float64{-1, 0, 1} {
					_, confidence := d.classifyRegime(adx, bb, slope, align, 0)
					assert.GreaterOrEqual(t, confidence, 0.3)
					assert.LessOrEqual(t, confidence, 1.0)
				}
			}
		}
	}
}

func TestUnknownNeverWinsByScoring(t *testing.T) {
	d := newTestDetector(t)

	scores := d.computeRegimeScores(20, 90, 0.001, 0.1, 0.1)
	assert.Zero(t, scores[RegimeUnknown])

	regime, _ := d.classifyRegime(0, 0, 0, 0, 0)
	assert.NotEqual(t, RegimeUnknown, regime)
}

func TestDetectWarmupReturnsUnknown(t *testing.T) {
	d := newTestDetector(t)

	state := d.Detect(trendingSeries(50, 0.01))
	assert.Equal(t, RegimeUnknown, state.Regime)
	assert.Zero(t, state.Confidence)
	assert.Empty(t, state.TransitionProbabilities)
}

func TestDetectEmptySeries(t *testing.T) {
	d := newTestDetector(t)

	state := d.Detect(Series{})
	assert.Equal(t, RegimeUnknown, state.Regime)
	assert.Zero(t, state.Confidence)
}

func TestDetectStrongUptrend(t *testing.T) {
	d := newTestDetector(t)

	state := d.Detect(trendingSeries(280, 0.01))
	assert.Equal(t, RegimeStrongTrendUp, state.Regime)
	assert.GreaterOrEqual(t, state.Confidence, 0.3)
	assert.LessOrEqual(t, state.Confidence, 1.0)
	assert.Greater(t, state.ADXValue, DefaultConfig().ADXStrong)
	assert.Greater(t, state.TrendAlignment, 0.9)
	assert.Greater(t, state.EMASlope, 0.0)

	// Steady single-regime history: everything transitions to itself
	require.NotEmpty(t, state.TransitionProbabilities)
	sum := 0.0
	for _, p := range state.TransitionProbabilities {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 0.01)
	assert.InDelta(t, 1.0, state.TransitionProbabilities[string(RegimeStrongTrendUp)], 0.001)
}

func TestDetectSeriesWarmupRowsUnknown(t *testing.T) {
	d := newTestDetector(t)

	points := d.DetectSeries(trendingSeries(280, 0.01))
	require.Len(t, points, 280)

	assert.Equal(t, RegimeUnknown, points[0].Regime)
	assert.Zero(t, points[0].Confidence)
	assert.Equal(t, RegimeUnknown, points[100].Regime)

	last := points[len(points)-1]
	assert.Equal(t, RegimeStrongTrendUp, last.Regime)
	assert.GreaterOrEqual(t, last.Confidence, 0.3)
}

func TestApplyHysteresisSwitchAfterConsecutiveBars(t *testing.T) {
	d := newTestDetector(t)

	raw := rawPoints(
		RegimeRanging, RegimeRanging,
		// Two dissenting bars are not enough
		RegimeHighVolatility, RegimeHighVolatility,
		RegimeRanging,
		// Three consecutive dissenting bars switch on the third
		RegimeHighVolatility, RegimeHighVolatility, RegimeHighVolatility,
		RegimeHighVolatility,
	)

	held := d.applyHysteresis(raw)
	want := []Regime{
		RegimeRanging, RegimeRanging,
		RegimeRanging, RegimeRanging,
		RegimeRanging,
		RegimeRanging, RegimeRanging, RegimeHighVolatility,
		RegimeHighVolatility,
	}
	for i, w := range want {
		assert.Equal(t, w, held[i].Regime, "bar %d", i)
	}
}

func TestApplyHysteresisInterruptedRunResets(t *testing.T) {
	d := newTestDetector(t)

	// The dissenting run is broken each time it reaches two bars, so the
	// held regime never switches.
	raw := rawPoints(
		RegimeRanging,
		RegimeWeakTrendUp, RegimeWeakTrendUp, RegimeRanging,
		RegimeWeakTrendUp, RegimeWeakTrendUp, RegimeRanging,
	)

	held := d.applyHysteresis(raw)
	for i, p := range held {
		assert.Equal(t, RegimeRanging, p.Regime, "bar %d", i)
	}
}

func TestApplyHysteresisAcceptsFirstValidImmediately(t *testing.T) {
	d := newTestDetector(t)

	raw := rawPoints(RegimeUnknown, RegimeUnknown, RegimeWeakTrendDown, RegimeWeakTrendDown)
	held := d.applyHysteresis(raw)

	assert.Equal(t, RegimeUnknown, held[0].Regime)
	assert.Equal(t, RegimeUnknown, held[1].Regime)
	assert.Equal(t, RegimeWeakTrendDown, held[2].Regime)
	assert.Equal(t, RegimeWeakTrendDown, held[3].Regime)
}

func TestApplyHysteresisUnknownGapReaccepts(t *testing.T) {
	d := newTestDetector(t)

	// After an Unknown gap the next valid classification is accepted
	// immediately even though it differs from the prior held regime.
	raw := rawPoints(RegimeRanging, RegimeRanging, RegimeUnknown, RegimeStrongTrendUp)
	held := d.applyHysteresis(raw)

	assert.Equal(t, RegimeRanging, held[1].Regime)
	assert.Equal(t, RegimeUnknown, held[2].Regime)
	assert.Equal(t, RegimeStrongTrendUp, held[3].Regime)
}

func TestTransitionProbabilities(t *testing.T) {
	d := newTestDetector(t)

	points := rawPoints(
		RegimeRanging, RegimeRanging, RegimeHighVolatility,
		RegimeRanging, RegimeRanging, RegimeHighVolatility,
		RegimeRanging, RegimeRanging,
	)

	probs := d.transitionProbabilities(points, RegimeRanging)
	require.NotEmpty(t, probs)

	// From Ranging: 3 self-transitions, 2 into HighVolatility
	assert.InDelta(t, 0.6, probs[string(RegimeRanging)], 0.001)
	assert.InDelta(t, 0.4, probs[string(RegimeHighVolatility)], 0.001)

	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 0.01)
}

func TestTransitionProbabilitiesInsufficientSamples(t *testing.T) {
	d := newTestDetector(t)

	assert.Empty(t, d.transitionProbabilities(rawPoints(RegimeRanging), RegimeRanging))
	assert.Empty(t, d.transitionProbabilities(
		rawPoints(RegimeRanging, RegimeHighVolatility, RegimeHighVolatility), RegimeRanging))
	assert.Empty(t, d.transitionProbabilities(
		rawPoints(RegimeUnknown, RegimeUnknown, RegimeUnknown), RegimeUnknown))
}

func TestStructureScore(t *testing.T) {
	d := newTestDetector(t)

	n := 30
	s := trendingSeries(n, 0.01)
	scores := d.computeStructureScore(s, n)

	// Warmup rows default to zero
	assert.Zero(t, scores[0])
	assert.Zero(t, scores[17])

	// In a steady uptrend the close sits near the top of the rolling range
	assert.Greater(t, scores[n-1], 0.5)
	assert.LessOrEqual(t, scores[n-1], 1.0)
}

func rawPoints(regimes ...Regime) []SeriesPoint {
	points := make([]SeriesPoint, len(regimes))
	for i, regime := range regimes {
		confidence := 0.8
		if regime == RegimeUnknown {
			confidence = 0
		}
		points[i] = SeriesPoint{Regime: regime, Confidence: confidence}
	}
	return points
}
