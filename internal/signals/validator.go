package signals

import (
	"fmt"
	"math"

	"crypto-signal-engine/internal/patterns"
)

const (
	maxEntryDistancePct = 2.0
	maxRiskPct          = 5.0
	minRiskReward       = 1.5
	maxBandWidthPct     = 10.0
)

// requiredIndicators must be present for a signal to be considered
// backed by enough market context.
var requiredIndicators = []string{"RSI", "SMA_12", "SMA_30"}

// Validator applies the pre-issue sanity checks to signal candidates.
type Validator struct{}

// NewValidator creates a validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks a candidate against the current price and indicator
// context. The reason is empty when valid.
func (v *Validator) Validate(c patterns.Candidate, currentPrice float64, ind map[string]float64) (bool, string) {
	if c.Entry <= 0 || c.Target <= 0 || c.Stop <= 0 || currentPrice <= 0 {
		return false, "non-positive price level"
	}

	if math.Abs(c.Entry-currentPrice)/currentPrice*100 > maxEntryDistancePct {
		return false, fmt.Sprintf("entry %.2f too far from current price %.2f", c.Entry, currentPrice)
	}

	if patterns.IsBullish(c.Pattern) {
		if !(c.Target > c.Entry && c.Entry > c.Stop) {
			return false, "buy levels out of order"
		}
	} else {
		if !(c.Target < c.Entry && c.Entry < c.Stop) {
			return false, "sell levels out of order"
		}
	}

	risk := math.Abs(c.Entry-c.Stop) / c.Entry * 100
	if risk > maxRiskPct {
		return false, fmt.Sprintf("risk %.2f%% exceeds %.0f%%", risk, maxRiskPct)
	}

	reward := math.Abs(c.Target - c.Entry)
	if stopDist := math.Abs(c.Entry - c.Stop); stopDist == 0 || reward/stopDist < minRiskReward {
		return false, "risk/reward below 1.5"
	}

	for _, name := range requiredIndicators {
		if _, ok := ind[name]; !ok {
			return false, "missing indicator " + name
		}
	}

	if upper, uOK := ind["BB_UPPER"]; uOK {
		if lower, lOK := ind["BB_LOWER"]; lOK && lower > 0 {
			if (upper-lower)/lower*100 > maxBandWidthPct {
				return false, "market too volatile"
			}
		}
	}

	return true, ""
}
