package returns

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/quantgate/quantgate/pkg/formulas"
)

// Method selects the VaR estimation technique.
type Method string

const (
	MethodParametric Method = "parametric"
	MethodHistorical Method = "historical"
)

// VaRResult holds Value-at-Risk and Expected Shortfall estimates in currency
// units. On real data VaR99 >= VaR95 and CVaR >= VaR at each level.
type VaRResult struct {
	VaR95      float64 `json:"var_95"`
	VaR99      float64 `json:"var_99"`
	CVaR95     float64 `json:"cvar_95"`
	CVaR99     float64 `json:"cvar_99"`
	Method     Method  `json:"method"`
	WindowDays int     `json:"window_days"`
}

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// ComputeVaR estimates portfolio VaR/CVaR at the 95% and 99% levels for the
// given symbol weights and portfolio value. Symbols with fewer than
// MinObservations returns are skipped; when none qualify a zeroed result is
// returned. Aligned symbol returns are combined into a single portfolio
// return series (returns matrix dotted with the weight vector) before
// estimation.
func (t *Tracker) ComputeVaR(weights map[string]float64, portfolioValue float64, method Method) VaRResult {
	qualified := make([]string, 0, len(weights))
	minLen := 0
	for symbol := range weights {
		series, ok := t.returns[symbol]
		if !ok || len(series.values) < MinObservations {
			continue
		}
		qualified = append(qualified, symbol)
		if minLen == 0 || len(series.values) < minLen {
			minLen = len(series.values)
		}
	}
	if len(qualified) == 0 {
		t.log.Debug().Str("method", string(method)).Msg("No symbols with sufficient history for VaR")
		return VaRResult{Method: method}
	}
	sort.Strings(qualified)

	portfolio := make([]float64, minLen)
	for _, symbol := range qualified {
		values := t.returns[symbol].values
		aligned := values[len(values)-minLen:]
		weight := weights[symbol]
		for i, r := range aligned {
			portfolio[i] += weight * r
		}
	}

	var result VaRResult
	switch method {
	case MethodHistorical:
		result = historicalVaR(portfolio, portfolioValue)
	default:
		result = parametricVaR(portfolio, portfolioValue)
	}
	result.Method = method
	result.WindowDays = minLen
	return result
}

// historicalVaR reads VaR from the empirical return distribution and CVaR as
// the mean of the tail beyond it.
func historicalVaR(portfolio []float64, value float64) VaRResult {
	n := len(portfolio)
	sorted := make([]float64, n)
	copy(sorted, portfolio)
	sort.Float64s(sorted)

	varAt := func(p float64) (varValue, cvarValue float64) {
		idx := int(math.Floor(float64(n) * p))
		if idx < 0 {
			idx = 0
		}
		if idx >= n {
			idx = n - 1
		}
		varValue = -sorted[idx] * value
		if idx == 0 {
			return varValue, varValue
		}
		cvarValue = -formulas.Mean(sorted[:idx]) * value
		return varValue, cvarValue
	}

	var result VaRResult
	result.VaR95, result.CVaR95 = varAt(0.05)
	result.VaR99, result.CVaR99 = varAt(0.01)
	roundResult(&result)
	return result
}

// parametricVaR fits a normal distribution to the portfolio returns.
// VaR_p = -(mu + z_p*sigma)*V and CVaR_p = -(mu - sigma*phi(z_p)/p)*V where
// z_p is the standard normal quantile and phi its density.
func parametricVaR(portfolio []float64, value float64) VaRResult {
	mu := stat.Mean(portfolio, nil)
	sigma := stat.StdDev(portfolio, nil)
	if sigma == 0 || math.IsNaN(sigma) {
		return VaRResult{}
	}

	varAt := func(p float64) (varValue, cvarValue float64) {
		z := stdNormal.Quantile(p)
		varValue = -(mu + z*sigma) * value
		cvarValue = -(mu - sigma*stdNormal.Prob(z)/p) * value
		return varValue, cvarValue
	}

	var result VaRResult
	result.VaR95, result.CVaR95 = varAt(0.05)
	result.VaR99, result.CVaR99 = varAt(0.01)
	roundResult(&result)
	return result
}

func roundResult(r *VaRResult) {
	r.VaR95 = formulas.RoundTo(r.VaR95, 2)
	r.VaR99 = formulas.RoundTo(r.VaR99, 2)
	r.CVaR95 = formulas.RoundTo(r.CVaR95, 2)
	r.CVaR99 = formulas.RoundTo(r.CVaR99, 2)
}
