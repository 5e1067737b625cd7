package patterns

import "crypto-signal-engine/internal/indicators"

// DetectTriangleBreakout looks for a converging range whose last close
// presses against the recent resistance or support, emitting the
// breakout in that direction.
func (d *Detector) DetectTriangleBreakout(s indicators.Series) *Candidate {
	highs, lows, closes := s.Highs, s.Lows, s.Closes
	if len(closes) < 40 {
		return nil
	}

	n := len(closes)
	lateRange := tailMax(highs, 15) - tailMin(lows, 15)
	earlyRange := tailMax(highs[:n-15], 15) - tailMin(lows[:n-15], 15)

	// Converging only when the late window is clearly tighter.
	if earlyRange <= 0 || lateRange >= earlyRange*0.7 {
		return nil
	}

	resistance := tailMax(highs, 10)
	support := tailMin(lows, 10)
	last := closes[n-1]

	if last >= resistance*0.998 {
		return &Candidate{
			Pattern:    TriangleBreakoutUp,
			Entry:      resistance * 1.002,
			Target:     resistance + (resistance - support),
			Stop:       support * 0.99,
			Confidence: 70,
		}
	}
	if last <= support*1.002 {
		return &Candidate{
			Pattern:    TriangleBreakoutDown,
			Entry:      support * 0.998,
			Target:     support - (resistance - support),
			Stop:       resistance * 1.01,
			Confidence: 70,
		}
	}
	return nil
}
