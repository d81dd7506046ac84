package risk

import (
	"fmt"
	"math"

	"github.com/quantgate/quantgate/internal/returns"
)

// HeatReport aggregates portfolio health signals into one snapshot for
// monitoring and alerting layers.
type HeatReport struct {
	Healthy          bool                      `json:"healthy"`
	Issues           []string                  `json:"issues"`
	Drawdown         float64                   `json:"drawdown"`
	DailyPnL         float64                   `json:"daily_pnl"`
	OpenPositions    int                       `json:"open_positions"`
	MaxCorrelation   float64                   `json:"max_correlation"`
	HighCorrPairs    []returns.CorrelationPair `json:"high_corr_pairs"`
	MaxConcentration float64                   `json:"max_concentration"`
	PositionWeights  map[string]float64        `json:"position_weights"`
	VaR95            float64                   `json:"var_95"`
	VaR99            float64                   `json:"var_99"`
	CVaR95           float64                   `json:"cvar_95"`
	CVaR99           float64                   `json:"cvar_99"`
	Halted           bool                      `json:"is_halted"`
}

// HeatCheck evaluates drawdown, correlation clustering, concentration and
// tail risk in one pass. The report is healthy when no issue triggered.
func (m *Manager) HeatCheck() HeatReport {
	report := HeatReport{
		Issues:          []string{},
		Drawdown:        m.drawdown(),
		DailyPnL:        m.dailyPnL,
		OpenPositions:   len(m.openPositions),
		HighCorrPairs:   []returns.CorrelationPair{},
		PositionWeights: map[string]float64{},
		Halted:          m.halted,
	}

	if m.halted {
		report.Issues = append(report.Issues, m.haltReason)
	}

	if report.Drawdown > 0.8*m.limits.MaxPortfolioDrawdown {
		report.Issues = append(report.Issues, fmt.Sprintf(
			"drawdown %.1f%% approaching max %.1f%%",
			report.Drawdown*100, m.limits.MaxPortfolioDrawdown*100))
	}

	symbols := make([]string, 0, len(m.openPositions))
	for symbol := range m.openPositions {
		symbols = append(symbols, symbol)
	}
	if matrix := m.tracker.CorrelationMatrix(symbols); matrix != nil {
		for _, pair := range matrix.Pairs() {
			abs := math.Abs(pair.Corr)
			if abs > report.MaxCorrelation {
				report.MaxCorrelation = abs
			}
			if abs > m.limits.MaxCorrelation {
				report.HighCorrPairs = append(report.HighCorrPairs, pair)
				report.Issues = append(report.Issues, fmt.Sprintf(
					"correlation %s/%s at %.2f exceeds max %.2f",
					pair.A, pair.B, pair.Corr, m.limits.MaxCorrelation))
			}
		}
	}

	if m.totalEquity > 0 {
		for symbol, position := range m.openPositions {
			weight := position.Value / m.totalEquity
			report.PositionWeights[symbol] = weight
			if weight > report.MaxConcentration {
				report.MaxConcentration = weight
			}
		}
	}
	if report.MaxConcentration > 0.9*m.limits.MaxPositionSizePct {
		report.Issues = append(report.Issues, fmt.Sprintf(
			"concentration %.1f%% approaching max position size %.1f%%",
			report.MaxConcentration*100, m.limits.MaxPositionSizePct*100))
	}

	varResult := m.VaR(returns.MethodParametric)
	report.VaR95 = varResult.VaR95
	report.VaR99 = varResult.VaR99
	report.CVaR95 = varResult.CVaR95
	report.CVaR99 = varResult.CVaR99
	if varResult.VaR99 > 0.10*m.totalEquity {
		report.Issues = append(report.Issues, fmt.Sprintf(
			"99%% VaR %.2f exceeds 10%% of equity", varResult.VaR99))
	}

	report.Healthy = len(report.Issues) == 0
	return report
}
