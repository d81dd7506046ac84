// Package routing maps a market regime classification to a weighted capital
// allocation across named strategies plus a position-size modifier.
package routing

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/quantgate/quantgate/internal/market_regime"
	"github.com/quantgate/quantgate/pkg/formulas"
)

// Strategy name constants understood by the execution and backtest engines.
const (
	StrategyCryptoInvestorV1       = "CryptoInvestorV1"
	StrategyBollingerMeanReversion = "BollingerMeanReversion"
	StrategyVolatilityBreakout     = "VolatilityBreakout"
)

// Weight is one strategy's share of the allocation.
type Weight struct {
	Strategy           string  `json:"strategy_name"`
	Weight             float64 `json:"weight"`
	PositionSizeFactor float64 `json:"position_size_factor"`
}

// Decision is the routing output: the strategy blend to run and how much to
// scale its order sizes. Weights sum to ~1.0 and the modifier lies in (0, 1].
type Decision struct {
	Regime               market_regime.Regime `json:"regime"`
	Confidence           float64              `json:"confidence"`
	PrimaryStrategy      string               `json:"primary_strategy"`
	Weights              []Weight             `json:"weights"`
	PositionSizeModifier float64              `json:"position_size_modifier"`
	Reasoning            string               `json:"reasoning"`
}

// TableEntry is the routing policy for one regime.
type TableEntry struct {
	Primary          string
	Weights          []Weight
	PositionModifier float64
	Reasoning        string
}

// Options configures a Router. A zero value selects all defaults.
type Options struct {
	// Table overrides the default regime routing table when non-nil.
	Table map[market_regime.Regime]TableEntry
	// LowConfidenceThreshold is the confidence below which the penalty
	// applies (default 0.4).
	LowConfidenceThreshold float64
	// LowConfidencePenalty multiplies the position-size modifier for
	// low-confidence states (default 0.5).
	LowConfidencePenalty float64
}

// Router is a pure function of regime state over a fixed routing table. The
// table is indexed by the closed Regime enum; the single dynamic element is
// the bearish high-volatility override layered on top of the lookup.
type Router struct {
	table         map[market_regime.Regime]TableEntry
	lowConfidence float64
	penalty       float64
	log           zerolog.Logger
}

// New creates a router with the given options.
func New(opts Options, log zerolog.Logger) *Router {
	table := opts.Table
	if table == nil {
		table = defaultTable()
	}
	lowConfidence := opts.LowConfidenceThreshold
	if lowConfidence == 0 {
		lowConfidence = 0.4
	}
	penalty := opts.LowConfidencePenalty
	if penalty == 0 {
		penalty = 0.5
	}
	return &Router{
		table:         table,
		lowConfidence: lowConfidence,
		penalty:       penalty,
		log:           log.With().Str("component", "strategy_router").Logger(),
	}
}

func defaultTable() map[market_regime.Regime]TableEntry {
	return map[market_regime.Regime]TableEntry{
		market_regime.RegimeStrongTrendUp: {
			Primary:          StrategyCryptoInvestorV1,
			Weights:          []Weight{{StrategyCryptoInvestorV1, 1.0, 1.0}},
			PositionModifier: 1.0,
			Reasoning:        "Strong uptrend favors trend-following with full size",
		},
		market_regime.RegimeWeakTrendUp: {
			Primary: StrategyCryptoInvestorV1,
			Weights: []Weight{
				{StrategyCryptoInvestorV1, 0.7, 1.0},
				{StrategyVolatilityBreakout, 0.3, 1.0},
			},
			PositionModifier: 0.8,
			Reasoning:        "Weak uptrend blends trend-following with breakout exposure",
		},
		market_regime.RegimeRanging: {
			Primary:          StrategyBollingerMeanReversion,
			Weights:          []Weight{{StrategyBollingerMeanReversion, 1.0, 1.0}},
			PositionModifier: 1.0,
			Reasoning:        "Range-bound market suits mean reversion",
		},
		market_regime.RegimeWeakTrendDown: {
			Primary: StrategyBollingerMeanReversion,
			Weights: []Weight{
				{StrategyBollingerMeanReversion, 0.5, 1.0},
				{StrategyVolatilityBreakout, 0.5, 1.0},
			},
			PositionModifier: 0.5,
			Reasoning:        "Weak downtrend splits between reversion and breakouts at reduced size",
		},
		market_regime.RegimeStrongTrendDown: {
			Primary:          StrategyBollingerMeanReversion,
			Weights:          []Weight{{StrategyBollingerMeanReversion, 1.0, 1.0}},
			PositionModifier: 0.3,
			Reasoning:        "Strong downtrend trades reversion only, heavily de-risked",
		},
		market_regime.RegimeHighVolatility: {
			Primary:          StrategyVolatilityBreakout,
			Weights:          []Weight{{StrategyVolatilityBreakout, 1.0, 1.0}},
			PositionModifier: 0.8,
			Reasoning:        "Expanding volatility favors breakout entries",
		},
		market_regime.RegimeUnknown: {
			Primary:          StrategyBollingerMeanReversion,
			Weights:          []Weight{{StrategyBollingerMeanReversion, 1.0, 1.0}},
			PositionModifier: 0.3,
			Reasoning:        "Unclassified market defaults to conservative mean reversion",
		},
	}
}

// bearishHighVolEntry is the defensive override for a high-volatility regime
// with negative trend alignment.
func bearishHighVolEntry() TableEntry {
	return TableEntry{
		Primary:          StrategyBollingerMeanReversion,
		Weights:          []Weight{{StrategyBollingerMeanReversion, 1.0, 1.0}},
		PositionModifier: 0.5,
		Reasoning:        "Bearish high-volatility environment, defensive mean reversion",
	}
}

// Route resolves the allocation for a regime state. Missing table entries
// fall back to the ranging policy; low-confidence states have their
// position-size modifier penalized.
func (r *Router) Route(state market_regime.State) Decision {
	entry, ok := r.table[state.Regime]
	if !ok {
		entry = r.table[market_regime.RegimeRanging]
	}

	if state.Regime == market_regime.RegimeHighVolatility && state.TrendAlignment < 0 {
		entry = bearishHighVolEntry()
	}

	modifier := entry.PositionModifier
	if state.Confidence < r.lowConfidence {
		modifier *= r.penalty
	}

	weights := make([]Weight, len(entry.Weights))
	copy(weights, entry.Weights)

	decision := Decision{
		Regime:               state.Regime,
		Confidence:           state.Confidence,
		PrimaryStrategy:      entry.Primary,
		Weights:              weights,
		PositionSizeModifier: formulas.RoundTo(modifier, 3),
		Reasoning:            entry.Reasoning,
	}

	r.log.Debug().
		Str("regime", string(state.Regime)).
		Str("primary", decision.PrimaryStrategy).
		Float64("modifier", decision.PositionSizeModifier).
		Msg("Routing decision")

	return decision
}

// SuggestStrategySwitch returns the new decision when the currently running
// strategy no longer fits the regime, or nil when the current strategy is
// the primary or still carries at least half the blended weight.
func (r *Router) SuggestStrategySwitch(currentStrategy string, state market_regime.State) *Decision {
	decision := r.Route(state)
	if currentStrategy == decision.PrimaryStrategy {
		return nil
	}
	for _, w := range decision.Weights {
		if w.Strategy == currentStrategy && w.Weight >= 0.5 {
			return nil
		}
	}
	return &decision
}

// RoutingTable returns a copy of the configured table for introspection.
func (r *Router) RoutingTable() map[market_regime.Regime]TableEntry {
	table := make(map[market_regime.Regime]TableEntry, len(r.table))
	for regime, entry := range r.table {
		weights := make([]Weight, len(entry.Weights))
		copy(weights, entry.Weights)
		entry.Weights = weights
		table[regime] = entry
	}
	return table
}

// AllStrategies lists every strategy referenced by the table, sorted.
func (r *Router) AllStrategies() []string {
	seen := map[string]bool{}
	for _, entry := range r.table {
		for _, w := range entry.Weights {
			seen[w.Strategy] = true
		}
	}
	strategies := make([]string, 0, len(seen))
	for strategy := range seen {
		strategies = append(strategies, strategy)
	}
	sort.Strings(strategies)
	return strategies
}
