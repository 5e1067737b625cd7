package patterns

import (
	"math"

	"crypto-signal-engine/internal/indicators"
)

// Weighted votes per indicator group. MACD and RSI carry the most
// weight, band position the least.
const (
	weightRSI   = 2.0
	weightStoch = 1.5
	weightMACD  = 2.0
	weightSMA   = 1.5
	weightBB    = 1.0
)

// DetectConfluence scores buy and sell votes across the computed
// indicator set and emits a setup when one side clears 60% of the total
// weight.
func (d *Detector) DetectConfluence(s indicators.Series, ind map[string]float64) *Candidate {
	if len(s.Closes) == 0 || len(ind) == 0 {
		return nil
	}
	price := s.Closes[len(s.Closes)-1]

	var buy, sell, total float64

	if rsi, ok := ind["RSI"]; ok {
		total += weightRSI
		switch {
		case rsi < 25:
			buy += weightRSI
		case rsi < 35:
			buy += weightRSI / 2
		case rsi > 75:
			sell += weightRSI
		case rsi > 65:
			sell += weightRSI / 2
		}
	}

	if k, ok := ind["STOCH_K"]; ok {
		if dv, dOK := ind["STOCH_D"]; dOK {
			total += weightStoch
			if k < 15 && dv < 15 {
				buy += weightStoch
			} else if k > 85 && dv > 85 {
				sell += weightStoch
			}
		}
	}

	if macd, ok := ind["MACD"]; ok {
		if signal, sOK := ind["MACD_SIGNAL"]; sOK {
			total += weightMACD
			switch {
			case macd > signal && macd > 0:
				buy += weightMACD
			case macd < signal && macd < 0:
				sell += weightMACD
			case macd > signal:
				buy += weightMACD / 2
			default:
				sell += weightMACD / 2
			}
		}
	}

	if sma12, ok := ind["SMA_12"]; ok {
		if sma30, sOK := ind["SMA_30"]; sOK {
			total += weightSMA
			if sma12 > sma30 && price > sma12 {
				buy += weightSMA
			} else if sma12 < sma30 && price < sma12 {
				sell += weightSMA
			}
		}
	}

	if pos, ok := ind["BB_POSITION"]; ok {
		total += weightBB
		if pos < 0.1 {
			buy += weightBB
		} else if pos > 0.9 {
			sell += weightBB
		}
	}

	if total == 0 {
		return nil
	}

	buyPct := buy / total * 100
	sellPct := sell / total * 100

	if buyPct > 60 {
		return confluenceCandidate(IndicatorsBuy, price, buyPct)
	}
	if sellPct > 60 {
		return confluenceCandidate(IndicatorsSell, price, sellPct)
	}
	return nil
}

func confluenceCandidate(pattern string, price, confluence float64) *Candidate {
	move := 0.02 * math.Min(3, confluence/30)
	c := &Candidate{Pattern: pattern, Confidence: math.Min(90, confluence)}
	if IsBullish(pattern) {
		c.Entry = price * 1.002
		c.Target = price * (1 + move)
		c.Stop = price * 0.985
	} else {
		c.Entry = price * 0.998
		c.Target = price * (1 - move)
		c.Stop = price * 1.015
	}
	return c
}
