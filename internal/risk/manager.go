package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantgate/quantgate/internal/returns"
)

// initialEquity is the default starting equity of a fresh portfolio.
const initialEquity = 10000.0

// haltCause distinguishes why trading was halted so that daily resets can
// clear daily-loss halts without clearing drawdown halts.
type haltCause int

const (
	haltNone haltCause = iota
	haltDrawdown
	haltDailyLoss
	haltManual
)

// Position is one open position; the portfolio holds at most one per symbol.
type Position struct {
	Side       string    `json:"side"`
	Size       float64   `json:"size"`
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
	Value      float64   `json:"value"`
}

// Manager owns the mutable portfolio state of a single portfolio. All state
// transitions go through its methods; it performs no locking, so callers
// serialize mutating calls per portfolio.
type Manager struct {
	limits  Limits
	tracker *returns.Tracker
	log     zerolog.Logger

	totalEquity      float64
	peakEquity       float64
	dailyStartEquity float64
	openPositions    map[string]Position
	dailyPnL         float64
	totalPnL         float64
	halted           bool
	haltReason       string
	haltCause        haltCause
}

// New creates a risk manager with default starting equity. The tracker
// supplies return history for correlation gating and VaR; it may be shared
// with the price feed but must belong to the same portfolio.
func New(limits Limits, tracker *returns.Tracker, log zerolog.Logger) *Manager {
	return &Manager{
		limits:           limits,
		tracker:          tracker,
		log:              log.With().Str("component", "risk_manager").Logger(),
		totalEquity:      initialEquity,
		peakEquity:       initialEquity,
		dailyStartEquity: initialEquity,
		openPositions:    make(map[string]Position),
	}
}

// Limits returns the configured limits.
func (m *Manager) Limits() Limits {
	return m.limits
}

// UpdateEquity records the latest account equity, updating the peak and
// checking the drawdown and daily-loss circuit breakers. It returns false
// when the update tripped a halt.
func (m *Manager) UpdateEquity(equity float64) bool {
	m.totalEquity = equity
	if equity > m.peakEquity {
		m.peakEquity = equity
	}

	if m.peakEquity > 0 {
		drawdown := 1 - equity/m.peakEquity
		if drawdown >= m.limits.MaxPortfolioDrawdown {
			m.setHalt(haltDrawdown, fmt.Sprintf(
				"trading halted: drawdown %.1f%% breached max %.1f%%",
				drawdown*100, m.limits.MaxPortfolioDrawdown*100))
			return false
		}
	}

	if m.dailyStartEquity > 0 {
		dailyChange := (equity - m.dailyStartEquity) / m.dailyStartEquity
		if dailyChange <= -m.limits.MaxDailyLoss {
			m.setHalt(haltDailyLoss, fmt.Sprintf(
				"trading halted: daily loss %.1f%% breached max %.1f%%",
				-dailyChange*100, m.limits.MaxDailyLoss*100))
			return false
		}
	}

	return true
}

// ResetDaily starts a new trading day: the daily baseline becomes current
// equity and daily PnL resets. Daily-loss halts are cleared; drawdown and
// manual halts persist.
func (m *Manager) ResetDaily() {
	m.dailyStartEquity = m.totalEquity
	m.dailyPnL = 0
	if m.halted && m.haltCause == haltDailyLoss {
		m.clearHalt()
		m.log.Info().Msg("Daily-loss halt cleared by daily reset")
	}
}

// Halt stops all trading until Resume or, for daily-loss semantics, a daily
// reset.
func (m *Manager) Halt(reason string) {
	m.setHalt(haltManual, fmt.Sprintf("trading halted: %s", reason))
}

// Resume clears any halt.
func (m *Manager) Resume() {
	m.clearHalt()
	m.log.Info().Msg("Trading resumed")
}

// Halted reports whether trading is halted, with the reason.
func (m *Manager) Halted() (bool, string) {
	return m.halted, m.haltReason
}

func (m *Manager) setHalt(cause haltCause, reason string) {
	m.halted = true
	m.haltCause = cause
	m.haltReason = reason
	m.log.Warn().Str("reason", reason).Msg("Trading halted")
}

func (m *Manager) clearHalt() {
	m.halted = false
	m.haltCause = haltNone
	m.haltReason = ""
}

// SizeOption adjusts CalculatePositionSize.
type SizeOption func(*sizeParams)

type sizeParams struct {
	riskPerTrade   float64
	regimeModifier float64
}

// WithTradeRisk overrides the per-trade risk fraction (default
// Limits.MaxSingleTradeRisk).
func WithTradeRisk(risk float64) SizeOption {
	return func(p *sizeParams) { p.riskPerTrade = risk }
}

// WithRegimeModifier scales the final, already-capped size; a modifier of 0
// produces a zero size.
func WithRegimeModifier(modifier float64) SizeOption {
	return func(p *sizeParams) { p.regimeModifier = modifier }
}

// CalculatePositionSize sizes a position in base-asset units so the loss at
// the stop equals the per-trade risk budget, capped by the maximum position
// value. The regime modifier multiplies the capped size.
func (m *Manager) CalculatePositionSize(entryPrice, stopLossPrice float64, opts ...SizeOption) float64 {
	params := sizeParams{
		riskPerTrade:   m.limits.MaxSingleTradeRisk,
		regimeModifier: 1.0,
	}
	for _, opt := range opts {
		opt(&params)
	}

	priceRisk := math.Abs(entryPrice - stopLossPrice)
	if priceRisk == 0 || entryPrice <= 0 {
		return 0
	}

	riskAmount := m.totalEquity * params.riskPerTrade
	size := riskAmount / priceRisk

	maxSize := m.totalEquity * m.limits.MaxPositionSizePct / entryPrice
	if size > maxSize {
		size = maxSize
	}

	return size * params.regimeModifier
}

// CheckNewTrade gates a proposed trade through the ordered rule chain,
// short-circuiting on the first failure. A stopLossPrice <= 0 means no stop
// was supplied and skips the stop-width gate. Rejection is a normal
// outcome, not an error.
func (m *Manager) CheckNewTrade(symbol, side string, size, entryPrice, stopLossPrice float64) (bool, string) {
	if m.halted {
		return false, m.haltReason
	}

	if len(m.openPositions) >= m.limits.MaxOpenPositions {
		return false, fmt.Sprintf("max open positions reached (%d)", m.limits.MaxOpenPositions)
	}

	if _, exists := m.openPositions[symbol]; exists {
		return false, fmt.Sprintf("already have an open position in %s", symbol)
	}

	if m.totalEquity > 0 {
		positionPct := size * entryPrice / m.totalEquity
		if positionPct > m.limits.MaxPositionSizePct {
			return false, fmt.Sprintf("position too large: %.1f%% of equity exceeds max %.1f%%",
				positionPct*100, m.limits.MaxPositionSizePct*100)
		}
	}

	if stopLossPrice > 0 && entryPrice > 0 {
		riskPct := math.Abs(entryPrice-stopLossPrice) / entryPrice
		if riskPct > 2*m.limits.MaxSingleTradeRisk {
			return false, fmt.Sprintf("stop loss too wide: %.1f%% risk exceeds %.1f%%",
				riskPct*100, 2*m.limits.MaxSingleTradeRisk*100)
		}
	}

	if reason, ok := m.checkCorrelation(symbol); !ok {
		return false, reason
	}

	return true, "approved"
}

// checkCorrelation rejects the new symbol when it correlates too strongly
// with any existing open position. An empty matrix (insufficient history)
// allows the trade; warmup symbols are a known blind spot of this gate.
func (m *Manager) checkCorrelation(symbol string) (string, bool) {
	if len(m.openPositions) == 0 {
		return "", true
	}

	symbols := make([]string, 0, len(m.openPositions)+1)
	for open := range m.openPositions {
		symbols = append(symbols, open)
	}
	symbols = append(symbols, symbol)

	matrix := m.tracker.CorrelationMatrix(symbols)
	if matrix == nil {
		return "", true
	}

	for open := range m.openPositions {
		corr, ok := matrix.Corr(symbol, open)
		if !ok {
			continue
		}
		if math.Abs(corr) > m.limits.MaxCorrelation {
			return fmt.Sprintf("correlation too high: %s at %.2f", open, corr), false
		}
	}
	return "", true
}

// RegisterTrade records a newly opened position.
func (m *Manager) RegisterTrade(symbol, side string, size, entryPrice float64, at time.Time) {
	m.openPositions[symbol] = Position{
		Side:       side,
		Size:       size,
		EntryPrice: entryPrice,
		EntryTime:  at,
		Value:      size * entryPrice,
	}
	m.log.Info().
		Str("symbol", symbol).
		Str("side", side).
		Float64("size", size).
		Float64("entry_price", entryPrice).
		Msg("Trade registered")
}

// CloseTrade removes a position and books its signed PnL into the daily and
// total totals. It reports false for unknown symbols.
func (m *Manager) CloseTrade(symbol string, exitPrice float64) (float64, bool) {
	position, ok := m.openPositions[symbol]
	if !ok {
		return 0, false
	}
	delete(m.openPositions, symbol)

	pnl := (exitPrice - position.EntryPrice) * position.Size
	if position.Side == "sell" {
		pnl = (position.EntryPrice - exitPrice) * position.Size
	}
	m.dailyPnL += pnl
	m.totalPnL += pnl

	m.log.Info().
		Str("symbol", symbol).
		Float64("exit_price", exitPrice).
		Float64("pnl", pnl).
		Msg("Trade closed")
	return pnl, true
}

// VaR estimates portfolio VaR/CVaR over the open positions, weighting each
// symbol by its share of equity. No positions or non-positive equity yields
// a zeroed result.
func (m *Manager) VaR(method returns.Method) returns.VaRResult {
	if len(m.openPositions) == 0 || m.totalEquity <= 0 {
		return returns.VaRResult{Method: method}
	}

	weights := make(map[string]float64, len(m.openPositions))
	for symbol, position := range m.openPositions {
		weights[symbol] = position.Value / m.totalEquity
	}
	return m.tracker.ComputeVaR(weights, m.totalEquity, method)
}

// Status is a read-only snapshot of portfolio state for monitoring layers.
type Status struct {
	TotalEquity      float64             `json:"total_equity"`
	PeakEquity       float64             `json:"peak_equity"`
	DailyStartEquity float64             `json:"daily_start_equity"`
	Drawdown         float64             `json:"drawdown"`
	DailyPnL         float64             `json:"daily_pnl"`
	TotalPnL         float64             `json:"total_pnl"`
	OpenPositions    map[string]Position `json:"open_positions"`
	Halted           bool                `json:"is_halted"`
	HaltReason       string              `json:"halt_reason"`
}

// Status snapshots the current portfolio state.
func (m *Manager) Status() Status {
	positions := make(map[string]Position, len(m.openPositions))
	for symbol, position := range m.openPositions {
		positions[symbol] = position
	}
	return Status{
		TotalEquity:      m.totalEquity,
		PeakEquity:       m.peakEquity,
		DailyStartEquity: m.dailyStartEquity,
		Drawdown:         m.drawdown(),
		DailyPnL:         m.dailyPnL,
		TotalPnL:         m.totalPnL,
		OpenPositions:    positions,
		Halted:           m.halted,
		HaltReason:       m.haltReason,
	}
}

func (m *Manager) drawdown() float64 {
	if m.peakEquity <= 0 {
		return 0
	}
	return 1 - m.totalEquity/m.peakEquity
}
