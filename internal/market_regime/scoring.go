package market_regime

import (
	"math"

	"github.com/quantgate/quantgate/pkg/formulas"
)

// slopeSaturation is the EMA slope magnitude treated as a fully directional
// signal when normalizing.
const slopeSaturation = 0.01

// computeRegimeScores blends the normalized sub-indicators into one score
// per scored regime. Trend regimes weight ADX strength above threshold plus
// direction-congruent alignment, slope and structure with small threshold
// bonuses; high volatility weights band width plus low ADX; ranging weights
// low ADX, low slope and low alignment, scaled down when a directional
// signal exists. Unknown always scores 0.
func (d *Detector) computeRegimeScores(adx, bbPct, slope, alignment, structure float64) map[Regime]float64 {
	cfg := d.cfg

	trendStrength := formulas.Clamp((adx-cfg.ADXWeak)/(cfg.ADXStrong-cfg.ADXWeak), 0, 1)
	weakTrend := formulas.Clamp((adx-(cfg.ADXWeak-10))/10, 0, 1) * (1 - trendStrength)
	lowADX := formulas.Clamp((cfg.ADXWeak-adx)/cfg.ADXWeak, 0, 1)
	bbNorm := formulas.Clamp(bbPct/100, 0, 1)
	slopeNorm := formulas.Clamp(slope/slopeSaturation, -1, 1)

	upAlign, downAlign := math.Max(alignment, 0), math.Max(-alignment, 0)
	upSlope, downSlope := math.Max(slopeNorm, 0), math.Max(-slopeNorm, 0)
	upStruct, downStruct := math.Max(structure, 0), math.Max(-structure, 0)
	dirMagnitude := math.Min(1, math.Max(math.Abs(alignment), math.Abs(slopeNorm)))

	strongBonus := func(align, structScore float64) float64 {
		if adx < cfg.ADXStrong {
			return 0
		}
		bonus := 0.0
		if align >= cfg.StrongAlignmentThreshold {
			bonus += 0.05
		}
		if structScore >= cfg.StrongStructureThreshold {
			bonus += 0.05
		}
		return bonus
	}
	weakBonus := 0.0
	if adx >= cfg.ADXWeak && adx < cfg.ADXStrong {
		weakBonus = 0.05
	}
	highVolBonus := 0.0
	if bbPct >= cfg.BBHighVolPct {
		highVolBonus = 0.10
	}

	scores := map[Regime]float64{
		RegimeStrongTrendUp: 0.35*trendStrength + 0.25*upAlign + 0.25*upSlope +
			0.15*upStruct + strongBonus(alignment, structure),
		RegimeWeakTrendUp: 0.30*weakTrend + 0.30*upAlign + 0.25*upSlope +
			0.15*upStruct + weakBonus,
		RegimeRanging: (0.40*lowADX + 0.30*(1-math.Min(1, math.Abs(slopeNorm))) +
			0.30*(1-math.Abs(alignment))) * (1 - 0.5*dirMagnitude),
		RegimeWeakTrendDown: 0.30*weakTrend + 0.30*downAlign + 0.25*downSlope +
			0.15*downStruct + weakBonus,
		RegimeStrongTrendDown: 0.35*trendStrength + 0.25*downAlign + 0.25*downSlope +
			0.15*downStruct + strongBonus(-alignment, -structure),
		RegimeHighVolatility: 0.60*bbNorm + 0.40*lowADX + highVolBonus,
		RegimeUnknown:        0,
	}
	return scores
}

// classifyRegime picks the highest-scoring regime and derives a confidence
// from the winning score and its margin over the runner-up, clamped to
// [0.3, 1.0].
func (d *Detector) classifyRegime(adx, bbPct, slope, alignment, structure float64) (Regime, float64) {
	scores := d.computeRegimeScores(adx, bbPct, slope, alignment, structure)

	winner := scoredRegimes[0]
	best, second := math.Inf(-1), math.Inf(-1)
	for _, regime := range scoredRegimes {
		score := scores[regime]
		if score > best {
			second = best
			best = score
			winner = regime
		} else if score > second {
			second = score
		}
	}

	confidence := formulas.Clamp(0.6*best+2.0*(best-second)+0.2, 0.3, 1.0)
	return winner, confidence
}
