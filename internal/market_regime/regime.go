// Package market_regime classifies OHLCV history into discrete market
// regimes using a multi-indicator composite score with temporal hysteresis.
package market_regime

// Regime is a discrete classification of current market behaviour.
type Regime string

const (
	RegimeStrongTrendUp   Regime = "strong_trend_up"
	RegimeWeakTrendUp     Regime = "weak_trend_up"
	RegimeRanging         Regime = "ranging"
	RegimeWeakTrendDown   Regime = "weak_trend_down"
	RegimeStrongTrendDown Regime = "strong_trend_down"
	RegimeHighVolatility  Regime = "high_volatility"
	RegimeUnknown         Regime = "unknown"
)

// scoredRegimes is the fixed evaluation order for classification. Unknown is
// excluded: it never wins by scoring and is only reachable through the
// missing-data path.
var scoredRegimes = []Regime{
	RegimeStrongTrendUp,
	RegimeWeakTrendUp,
	RegimeRanging,
	RegimeWeakTrendDown,
	RegimeStrongTrendDown,
	RegimeHighVolatility,
}

// State is the full classification output for a single bar.
type State struct {
	Regime                  Regime             `json:"regime"`
	Confidence              float64            `json:"confidence"`
	ADXValue                float64            `json:"adx_value"`
	BBWidthPercentile       float64            `json:"bb_width_percentile"`
	EMASlope                float64            `json:"ema_slope"`
	TrendAlignment          float64            `json:"trend_alignment"`
	PriceStructureScore     float64            `json:"price_structure_score"`
	TransitionProbabilities map[string]float64 `json:"transition_probabilities"`
}
