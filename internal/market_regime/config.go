package market_regime

// Config holds the tunable thresholds and periods of the detector.
type Config struct {
	ADXStrong                float64 // ADX at or above this is a strong trend
	ADXWeak                  float64 // ADX below this is considered trendless
	BBHighVolPct             float64 // band-width percentile marking high volatility
	EMASlopePeriod           int
	EMASlopeLookback         int
	AlignmentEMAPeriods      []int
	StructureLookback        int
	StrongAlignmentThreshold float64
	StrongStructureThreshold float64
	TransitionLookback       int
	BBPeriod                 int
	BBStd                    float64
	ADXPeriod                int
	HysteresisBars           int
}

// DefaultConfig returns the standard detector configuration.
func DefaultConfig() Config {
	return Config{
		ADXStrong:                40,
		ADXWeak:                  25,
		BBHighVolPct:             80,
		EMASlopePeriod:           20,
		EMASlopeLookback:         5,
		AlignmentEMAPeriods:      []int{21, 50, 100, 200},
		StructureLookback:        20,
		StrongAlignmentThreshold: 0.5,
		StrongStructureThreshold: 0.3,
		TransitionLookback:       50,
		BBPeriod:                 20,
		BBStd:                    2.0,
		ADXPeriod:                14,
		HysteresisBars:           3,
	}
}
