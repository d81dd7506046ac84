// Command sim is a development harness that drives the full decision core
// end to end on synthetic data: it feeds a generated OHLCV series and tick
// stream through the regime detector, strategy router and risk manager, and
// logs every decision. It exists for manual smoke testing; it places no
// orders and talks to no services.
package main

import (
	"math"
	"math/rand"
	"time"

	"github.com/quantgate/quantgate/internal/config"
	"github.com/quantgate/quantgate/internal/market_regime"
	"github.com/quantgate/quantgate/internal/returns"
	"github.com/quantgate/quantgate/internal/risk"
	"github.com/quantgate/quantgate/internal/routing"
	"github.com/quantgate/quantgate/pkg/logger"
)

const (
	bars    = 320
	symbol  = "BTC/USDT"
	basePx  = 50000.0
	rngSeed = 42
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.Pretty})
	logger.SetGlobalLogger(log)

	tracker := returns.New(cfg.MaxHistory, log)
	detector := market_regime.NewDetector(cfg.Regime, log)
	router := routing.New(cfg.Routing, log)
	manager := risk.New(cfg.Limits, tracker, log)

	series := syntheticSeries(bars)
	for i := 0; i < series.Len(); i++ {
		tracker.RecordPrice(symbol, series.Close[i])
	}

	state := detector.Detect(series)
	log.Info().
		Str("regime", string(state.Regime)).
		Float64("confidence", state.Confidence).
		Float64("adx", state.ADXValue).
		Float64("trend_alignment", state.TrendAlignment).
		Msg("Market state classified")

	decision := router.Route(state)
	log.Info().
		Str("primary", decision.PrimaryStrategy).
		Float64("modifier", decision.PositionSizeModifier).
		Str("reasoning", decision.Reasoning).
		Msg("Capital routed")

	entry := series.Close[series.Len()-1]
	stop := entry * 0.98
	size := manager.CalculatePositionSize(entry, stop,
		risk.WithRegimeModifier(decision.PositionSizeModifier))

	approved, reason := manager.CheckNewTrade(symbol, "buy", size, entry, stop)
	log.Info().
		Bool("approved", approved).
		Str("reason", reason).
		Float64("size", size).
		Float64("entry", entry).
		Float64("stop", stop).
		Msg("Trade gate evaluated")

	if approved {
		manager.RegisterTrade(symbol, "buy", size, entry, time.Now().UTC())
	}

	heat := manager.HeatCheck()
	log.Info().
		Bool("healthy", heat.Healthy).
		Strs("issues", heat.Issues).
		Float64("var_95", heat.VaR95).
		Float64("var_99", heat.VaR99).
		Msg("Portfolio heat check")
}

// syntheticSeries builds a trending random walk with a volatility burst in
// the middle, enough bars to warm up every indicator.
func syntheticSeries(n int) market_regime.Series {
	rng := rand.New(rand.NewSource(rngSeed))
	s := market_regime.Series{
		Time:   make([]time.Time, n),
		Open:   make([]float64, n),
		High:   make([]float64, n),
		Low:    make([]float64, n),
		Close:  make([]float64, n),
		Volume: make([]float64, n),
	}

	start := time.Now().UTC().Add(-time.Duration(n) * time.Hour)
	price := basePx
	for i := 0; i < n; i++ {
		drift := 0.001
		vol := 0.004
		if i > n/2 && i < n/2+40 {
			vol = 0.015
		}
		change := drift + vol*rng.NormFloat64()
		open := price
		price *= 1 + change

		s.Time[i] = start.Add(time.Duration(i) * time.Hour)
		s.Open[i] = open
		s.Close[i] = price
		s.High[i] = math.Max(open, price) * (1 + vol/2)
		s.Low[i] = math.Min(open, price) * (1 - vol/2)
		s.Volume[i] = 1000 + 500*rng.Float64()
	}
	return s
}
