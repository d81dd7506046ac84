package routing

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantgate/quantgate/internal/market_regime"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	return New(Options{}, zerolog.Nop())
}

func stateFor(regime market_regime.Regime, confidence float64) market_regime.State {
	return market_regime.State{Regime: regime, Confidence: confidence}
}

func TestRouteRanging(t *testing.T) {
	r := newTestRouter(t)

	decision := r.Route(stateFor(market_regime.RegimeRanging, 0.8))
	assert.Equal(t, StrategyBollingerMeanReversion, decision.PrimaryStrategy)
	assert.Equal(t, 1.0, decision.PositionSizeModifier)
	assert.NotEmpty(t, decision.Reasoning)
}

func TestRouteAllRegimesWellFormed(t *testing.T) {
	r := newTestRouter(t)

	regimes := []market_regime.Regime{
		market_regime.RegimeStrongTrendUp,
		market_regime.RegimeWeakTrendUp,
		market_regime.RegimeRanging,
		market_regime.RegimeWeakTrendDown,
		market_regime.RegimeStrongTrendDown,
		market_regime.RegimeHighVolatility,
		market_regime.RegimeUnknown,
	}

	for _, regime := range regimes {
		t.Run(string(regime), func(t *testing.T) {
			decision := r.Route(stateFor(regime, 0.8))

			sum := 0.0
			for _, w := range decision.Weights {
				sum += w.Weight
			}
			assert.InDelta(t, 1.0, sum, 0.01)
			assert.Greater(t, decision.PositionSizeModifier, 0.0)
			assert.LessOrEqual(t, decision.PositionSizeModifier, 1.0)
			assert.NotEmpty(t, decision.PrimaryStrategy)
		})
	}
}

func TestRouteDefaultTable(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		regime   market_regime.Regime
		primary  string
		modifier float64
	}{
		{market_regime.RegimeStrongTrendUp, StrategyCryptoInvestorV1, 1.0},
		{market_regime.RegimeWeakTrendUp, StrategyCryptoInvestorV1, 0.8},
		{market_regime.RegimeRanging, StrategyBollingerMeanReversion, 1.0},
		{market_regime.RegimeWeakTrendDown, StrategyBollingerMeanReversion, 0.5},
		{market_regime.RegimeStrongTrendDown, StrategyBollingerMeanReversion, 0.3},
		{market_regime.RegimeHighVolatility, StrategyVolatilityBreakout, 0.8},
		{market_regime.RegimeUnknown, StrategyBollingerMeanReversion, 0.3},
	}

	for _, tt := range tests {
		t.Run(string(tt.regime), func(t *testing.T) {
			decision := r.Route(stateFor(tt.regime, 0.9))
			assert.Equal(t, tt.primary, decision.PrimaryStrategy)
			assert.Equal(t, tt.modifier, decision.PositionSizeModifier)
		})
	}
}

func TestRouteBearishHighVolatilityOverride(t *testing.T) {
	r := newTestRouter(t)

	state := stateFor(market_regime.RegimeHighVolatility, 0.9)
	state.TrendAlignment = -0.3

	decision := r.Route(state)
	assert.Equal(t, StrategyBollingerMeanReversion, decision.PrimaryStrategy)
	assert.Equal(t, 0.5, decision.PositionSizeModifier)

	// Non-negative alignment keeps the standard breakout routing
	state.TrendAlignment = 0
	decision = r.Route(state)
	assert.Equal(t, StrategyVolatilityBreakout, decision.PrimaryStrategy)
	assert.Equal(t, 0.8, decision.PositionSizeModifier)
}

func TestRouteLowConfidencePenalty(t *testing.T) {
	r := newTestRouter(t)

	decision := r.Route(stateFor(market_regime.RegimeRanging, 0.35))
	assert.Equal(t, 0.5, decision.PositionSizeModifier)

	// At the threshold the penalty does not apply
	decision = r.Route(stateFor(market_regime.RegimeRanging, 0.4))
	assert.Equal(t, 1.0, decision.PositionSizeModifier)
}

func TestRouteUnlistedRegimeFallsBackToRanging(t *testing.T) {
	table := defaultTable()
	delete(table, market_regime.RegimeHighVolatility)
	r := New(Options{Table: table}, zerolog.Nop())

	state := stateFor(market_regime.RegimeHighVolatility, 0.9)
	state.TrendAlignment = 0.2

	decision := r.Route(state)
	assert.Equal(t, StrategyBollingerMeanReversion, decision.PrimaryStrategy)
	assert.Equal(t, 1.0, decision.PositionSizeModifier)
}

func TestRouteModifierRounded(t *testing.T) {
	r := New(Options{LowConfidencePenalty: 1.0 / 3.0}, zerolog.Nop())

	decision := r.Route(stateFor(market_regime.RegimeWeakTrendUp, 0.2))
	assert.Equal(t, 0.267, decision.PositionSizeModifier)
}

func TestSuggestStrategySwitch(t *testing.T) {
	r := newTestRouter(t)

	// Current strategy is the new primary: no switch
	assert.Nil(t, r.SuggestStrategySwitch(
		StrategyBollingerMeanReversion, stateFor(market_regime.RegimeRanging, 0.8)))

	// Current strategy holds exactly half the blend: no switch
	assert.Nil(t, r.SuggestStrategySwitch(
		StrategyVolatilityBreakout, stateFor(market_regime.RegimeWeakTrendDown, 0.8)))

	// Current strategy has only 30% weight: switch suggested
	decision := r.SuggestStrategySwitch(
		StrategyVolatilityBreakout, stateFor(market_regime.RegimeWeakTrendUp, 0.8))
	require.NotNil(t, decision)
	assert.Equal(t, StrategyCryptoInvestorV1, decision.PrimaryStrategy)

	// Current strategy is absent from the blend entirely: switch suggested
	decision = r.SuggestStrategySwitch(
		StrategyCryptoInvestorV1, stateFor(market_regime.RegimeRanging, 0.8))
	require.NotNil(t, decision)
	assert.Equal(t, StrategyBollingerMeanReversion, decision.PrimaryStrategy)
}

func TestRoutingTableIntrospection(t *testing.T) {
	r := newTestRouter(t)

	table := r.RoutingTable()
	require.Len(t, table, 7)

	// Mutating the copy must not affect routing
	entry := table[market_regime.RegimeRanging]
	entry.Weights[0].Weight = 0
	table[market_regime.RegimeRanging] = entry

	decision := r.Route(stateFor(market_regime.RegimeRanging, 0.8))
	assert.Equal(t, 1.0, decision.Weights[0].Weight)
}

func TestAllStrategies(t *testing.T) {
	r := newTestRouter(t)

	assert.Equal(t, []string{
		StrategyBollingerMeanReversion,
		StrategyCryptoInvestorV1,
		StrategyVolatilityBreakout,
	}, r.AllStrategies())
}

func TestCustomTable(t *testing.T) {
	table := map[market_regime.Regime]TableEntry{
		market_regime.RegimeRanging: {
			Primary:          "GridBot",
			Weights:          []Weight{{Strategy: "GridBot", Weight: 1.0, PositionSizeFactor: 1.0}},
			PositionModifier: 0.6,
			Reasoning:        "custom",
		},
	}
	r := New(Options{Table: table}, zerolog.Nop())

	decision := r.Route(stateFor(market_regime.RegimeRanging, 0.9))
	assert.Equal(t, "GridBot", decision.PrimaryStrategy)
	assert.Equal(t, 0.6, decision.PositionSizeModifier)
}
