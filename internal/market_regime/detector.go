package market_regime

import (
	"github.com/rs/zerolog"

	"github.com/quantgate/quantgate/pkg/formulas"
)

// Detector classifies OHLCV history into market regimes. It is stateless
// between calls; hysteresis state lives only inside a single DetectSeries
// fold.
type Detector struct {
	cfg Config
	log zerolog.Logger
}

// NewDetector creates a regime detector with the given configuration.
func NewDetector(cfg Config, log zerolog.Logger) *Detector {
	return &Detector{
		cfg: cfg,
		log: log.With().Str("component", "regime_detector").Logger(),
	}
}

// SeriesPoint is the per-bar output of DetectSeries.
type SeriesPoint struct {
	Regime     Regime
	Confidence float64
}

// Detect classifies the last bar of the series and attaches transition
// probabilities estimated from the hysteresis-classified history of the same
// series. Bars whose sub-indicators are still warming up produce an Unknown
// state with zero confidence.
func (d *Detector) Detect(s Series) State {
	n := s.Len()
	if n == 0 {
		return State{Regime: RegimeUnknown, TransitionProbabilities: map[string]float64{}}
	}

	ind := d.computeIndicators(s)
	last := n - 1

	state := State{
		Regime:                  RegimeUnknown,
		TransitionProbabilities: map[string]float64{},
	}
	if !ind.valid(last) {
		d.log.Debug().Int("bars", n).Msg("Insufficient history for regime classification")
		return state
	}

	state.ADXValue = ind.adx[last]
	state.BBWidthPercentile = ind.bbPct[last]
	state.EMASlope = ind.emaSlope[last]
	state.TrendAlignment = ind.alignment[last]
	state.PriceStructureScore = ind.structure[last]

	state.Regime, state.Confidence = d.classifyRegime(
		ind.adx[last], ind.bbPct[last], ind.emaSlope[last], ind.alignment[last], ind.structure[last])

	points := d.applyHysteresis(d.rawClassifications(ind))
	state.TransitionProbabilities = d.transitionProbabilities(points, points[len(points)-1].Regime)

	d.log.Debug().
		Str("regime", string(state.Regime)).
		Float64("confidence", state.Confidence).
		Float64("adx", state.ADXValue).
		Float64("bb_width_pct", state.BBWidthPercentile).
		Msg("Regime detected")

	return state
}

// DetectSeries classifies every bar of the series, applying hysteresis so a
// regime switch only takes effect after HysteresisBars consecutive agreeing
// classifications.
func (d *Detector) DetectSeries(s Series) []SeriesPoint {
	if s.Len() == 0 {
		return nil
	}
	return d.applyHysteresis(d.rawClassifications(d.computeIndicators(s)))
}

// rawClassifications classifies each bar independently; warmup bars become
// Unknown with zero confidence.
func (d *Detector) rawClassifications(ind indicatorSet) []SeriesPoint {
	points := make([]SeriesPoint, len(ind.adx))
	for i := range points {
		if !ind.valid(i) {
			points[i] = SeriesPoint{Regime: RegimeUnknown}
			continue
		}
		regime, confidence := d.classifyRegime(
			ind.adx[i], ind.bbPct[i], ind.emaSlope[i], ind.alignment[i], ind.structure[i])
		points[i] = SeriesPoint{Regime: regime, Confidence: confidence}
	}
	return points
}

// applyHysteresis folds raw per-bar classifications into a held sequence: a
// raw regime differing from the held one only takes effect once it has been
// seen for HysteresisBars consecutive bars. Unknown bars pass through
// unchanged without advancing hysteresis state, and the first valid
// classification after start or after an Unknown bar is accepted
// immediately.
func (d *Detector) applyHysteresis(raw []SeriesPoint) []SeriesPoint {
	out := make([]SeriesPoint, len(raw))

	held := RegimeUnknown
	pending := RegimeUnknown
	holdCount := 0

	for i, point := range raw {
		if point.Regime == RegimeUnknown {
			held = RegimeUnknown
			pending = RegimeUnknown
			holdCount = 0
			out[i] = SeriesPoint{Regime: RegimeUnknown}
			continue
		}

		switch {
		case held == RegimeUnknown:
			held = point.Regime
			pending, holdCount = RegimeUnknown, 0
		case point.Regime == held:
			pending, holdCount = RegimeUnknown, 0
		case point.Regime == pending:
			holdCount++
			if holdCount >= d.cfg.HysteresisBars {
				held = point.Regime
				pending, holdCount = RegimeUnknown, 0
			}
		default:
			pending, holdCount = point.Regime, 1
			if holdCount >= d.cfg.HysteresisBars {
				held = point.Regime
				pending, holdCount = RegimeUnknown, 0
			}
		}

		out[i] = SeriesPoint{Regime: held, Confidence: point.Confidence}
	}
	return out
}

// transitionProbabilities estimates empirical next-regime frequencies over
// the last TransitionLookback classified bars, conditioned on the current
// regime. Pairs involving Unknown bars are skipped; fewer than 2 usable
// samples yields an empty map.
func (d *Detector) transitionProbabilities(points []SeriesPoint, current Regime) map[string]float64 {
	probs := map[string]float64{}
	if current == RegimeUnknown || len(points) < 2 {
		return probs
	}

	start := len(points) - d.cfg.TransitionLookback
	if start < 0 {
		start = 0
	}
	window := points[start:]

	counts := map[Regime]int{}
	total := 0
	for i := 0; i+1 < len(window); i++ {
		if window[i].Regime != current || window[i+1].Regime == RegimeUnknown {
			continue
		}
		counts[window[i+1].Regime]++
		total++
	}
	if total < 2 {
		return probs
	}

	for regime, count := range counts {
		probs[string(regime)] = formulas.RoundTo(float64(count)/float64(total), 3)
	}
	return probs
}
