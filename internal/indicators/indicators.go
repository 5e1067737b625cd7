package indicators

import "math"

// Series carries the aligned OHLCV arrays an instrument's rolling
// time-series flattens into. Oldest sample first.
type Series struct {
	Opens   []float64
	Highs   []float64
	Lows    []float64
	Closes  []float64
	Volumes []float64
}

// SMA is the arithmetic mean of the last period values. ok is false when
// history is insufficient.
func SMA(values []float64, period int) (float64, bool) {
	if len(values) < period || period <= 0 {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), true
}

// EMA is the exponential moving average seeded with the SMA of the first
// period values, smoothing 2/(period+1).
func EMA(values []float64, period int) (float64, bool) {
	if len(values) < period || period <= 0 {
		return 0, false
	}
	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}
	ema := seed / float64(period)
	multiplier := 2.0 / float64(period+1)
	for _, v := range values[period:] {
		ema = v*multiplier + ema*(1-multiplier)
	}
	return ema, true
}

// RSI is the 14-period-style relative strength index using simple
// averages of gains and losses over the last period deltas. An all-gain
// window returns 100.
func RSI(closes []float64, period int) (float64, bool) {
	if len(closes) < period+1 || period <= 0 {
		return 0, false
	}
	gains, losses := 0.0, 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// rawK computes %K over the window ending at index end (inclusive).
func rawK(highs, lows, closes []float64, kPeriod, end int) (float64, bool) {
	if end < kPeriod-1 {
		return 0, false
	}
	lo, hi := lows[end], highs[end]
	for i := end - kPeriod + 1; i <= end; i++ {
		if lows[i] < lo {
			lo = lows[i]
		}
		if highs[i] > hi {
			hi = highs[i]
		}
	}
	if hi == lo {
		return 50, false
	}
	return 100 * (closes[end] - lo) / (hi - lo), true
}

// Stochastic computes %K over the last kPeriod samples and %D as the mean
// of the dPeriod most recent reconstructed %K values. With insufficient
// history %D equals %K.
func Stochastic(highs, lows, closes []float64, kPeriod, dPeriod int) (k, d float64, ok bool) {
	n := len(closes)
	if n < kPeriod {
		return 0, 0, false
	}

	k, valid := rawK(highs, lows, closes, kPeriod, n-1)
	if !valid {
		k = 50
	}

	if n >= kPeriod+dPeriod-1 {
		sum, count := 0.0, 0
		for i := 0; i < dPeriod; i++ {
			if v, vOK := rawK(highs, lows, closes, kPeriod, n-1-i); vOK {
				sum += v
				count++
			}
		}
		if count > 0 {
			d = sum / float64(count)
		} else {
			d = k
		}
	} else {
		d = k
	}
	return k, d, true
}

// MACD computes the MACD line from 12- and 26-period EMAs. The signal
// line is approximated as 0.9 of the MACD line; this mirrors the legacy
// engine rather than a true 9-period EMA. See MACDStrict for the exact
// form.
func MACD(closes []float64) (macd, signal, histogram float64, ok bool) {
	const fastPeriod, slowPeriod = 12, 26
	if len(closes) < slowPeriod {
		return 0, 0, 0, false
	}
	fast, _ := EMA(closes, fastPeriod)
	slow, _ := EMA(closes, slowPeriod)
	macd = fast - slow
	signal = macd * 0.9
	return macd, signal, macd - signal, true
}

// MACDStrict computes MACD with a proper 9-period EMA signal line over
// the reconstructed MACD series.
func MACDStrict(closes []float64) (macd, signal, histogram float64, ok bool) {
	const fastPeriod, slowPeriod, signalPeriod = 12, 26, 9
	if len(closes) < slowPeriod+signalPeriod {
		return 0, 0, 0, false
	}

	series := make([]float64, 0, len(closes)-slowPeriod+1)
	for end := slowPeriod; end <= len(closes); end++ {
		fast, _ := EMA(closes[:end], fastPeriod)
		slow, _ := EMA(closes[:end], slowPeriod)
		series = append(series, fast-slow)
	}

	macd = series[len(series)-1]
	signal, _ = EMA(series, signalPeriod)
	return macd, signal, macd - signal, true
}

// BollingerBands is the 20-period-style SMA band with stdDev population
// standard deviations.
func BollingerBands(closes []float64, period int, stdDev float64) (upper, middle, lower float64, ok bool) {
	sma, valid := SMA(closes, period)
	if !valid {
		return 0, 0, 0, false
	}
	variance := 0.0
	for _, v := range closes[len(closes)-period:] {
		diff := v - sma
		variance += diff * diff
	}
	sigma := math.Sqrt(variance / float64(period))
	return sma + stdDev*sigma, sma, sma - stdDev*sigma, true
}

// ATR is the mean True Range over the last period samples, where
// TR = max(high-low, |high-prevClose|, |low-prevClose|).
func ATR(highs, lows, closes []float64, period int) (float64, bool) {
	if len(closes) < period+1 || period <= 0 {
		return 0, false
	}
	sum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		tr := highs[i] - lows[i]
		if hc := math.Abs(highs[i] - closes[i-1]); hc > tr {
			tr = hc
		}
		if lc := math.Abs(lows[i] - closes[i-1]); lc > tr {
			tr = lc
		}
		sum += tr
	}
	return sum / float64(period), true
}

// Compute evaluates the full indicator set over the series. Indicators
// with insufficient history are absent from the result.
func Compute(s Series, strictMACD bool) map[string]float64 {
	out := make(map[string]float64, 18)

	put := func(name string, v float64, ok bool) {
		if ok {
			out[name] = v
		}
	}

	v, ok := SMA(s.Closes, 12)
	put("SMA_12", v, ok)
	v, ok = SMA(s.Closes, 30)
	put("SMA_30", v, ok)
	v, ok = SMA(s.Closes, 60)
	put("SMA_60", v, ok)

	v, ok = EMA(s.Closes, 12)
	put("EMA_12", v, ok)
	v, ok = EMA(s.Closes, 26)
	put("EMA_26", v, ok)

	v, ok = RSI(s.Closes, 14)
	put("RSI", v, ok)

	if k, d, sOK := Stochastic(s.Highs, s.Lows, s.Closes, 14, 3); sOK {
		out["STOCH_K"] = k
		out["STOCH_D"] = d
	}

	macdFn := MACD
	if strictMACD {
		macdFn = MACDStrict
	}
	if macd, signal, hist, mOK := macdFn(s.Closes); mOK {
		out["MACD"] = macd
		out["MACD_SIGNAL"] = signal
		out["MACD_HISTOGRAM"] = hist
	}

	if upper, middle, lower, bOK := BollingerBands(s.Closes, 20, 2); bOK {
		out["BB_UPPER"] = upper
		out["BB_MIDDLE"] = middle
		out["BB_LOWER"] = lower
		if len(s.Closes) > 0 && upper != lower {
			out["BB_POSITION"] = (s.Closes[len(s.Closes)-1] - lower) / (upper - lower)
		}
	}

	v, ok = ATR(s.Highs, s.Lows, s.Closes, 14)
	put("ATR", v, ok)

	v, ok = SMA(s.Volumes, 20)
	put("VOLUME_SMA", v, ok)

	return out
}
