// Package risk owns portfolio state and limits: it gates proposed trades
// through an ordered rule chain, sizes positions, enforces drawdown and
// daily-loss halts, and aggregates a portfolio heat check.
package risk

// Limits is the immutable risk configuration of a Manager. Fractions are
// expressed as decimals (0.15 = 15%).
type Limits struct {
	MaxPortfolioDrawdown float64
	MaxSingleTradeRisk   float64
	MaxDailyLoss         float64
	MaxOpenPositions     int
	MaxPositionSizePct   float64
	MaxCorrelation       float64
	// MinRiskReward is carried in configuration but is deliberately not
	// consulted by the stop-loss width gate, which compares raw risk
	// percentage against 2*MaxSingleTradeRisk instead.
	MinRiskReward float64
	MaxLeverage   float64
}

// DefaultLimits returns the standard risk limits.
func DefaultLimits() Limits {
	return Limits{
		MaxPortfolioDrawdown: 0.15,
		MaxSingleTradeRisk:   0.02,
		MaxDailyLoss:         0.05,
		MaxOpenPositions:     10,
		MaxPositionSizePct:   0.20,
		MaxCorrelation:       0.70,
		MinRiskReward:        1.5,
		MaxLeverage:          1.0,
	}
}
