package patterns

import (
	"strings"

	"crypto-signal-engine/internal/indicators"
)

// Pattern names emitted by the detectors.
const (
	DoubleBottom         = "DOUBLE_BOTTOM"
	HeadAndShoulders     = "HEAD_AND_SHOULDERS"
	TriangleBreakoutUp   = "TRIANGLE_BREAKOUT_UP"
	TriangleBreakoutDown = "TRIANGLE_BREAKOUT_DOWN"
	IndicatorsBuy        = "INDICATORS_BUY"
	IndicatorsSell       = "INDICATORS_SELL"
	ManualBuy            = "MANUAL_BUY"
	ManualSell           = "MANUAL_SELL"
)

// Candidate is a detected trade setup awaiting validation.
type Candidate struct {
	Pattern    string  `json:"pattern"`
	Entry      float64 `json:"entry"`
	Target     float64 `json:"target"`
	Stop       float64 `json:"stop"`
	Confidence float64 `json:"confidence"`
}

// IsBullish reports the trading direction of a pattern name. Buy-side
// patterns are *_BUY, *_UP and the double bottom; everything else trades
// short.
func IsBullish(pattern string) bool {
	return strings.HasSuffix(pattern, "_BUY") ||
		strings.HasSuffix(pattern, "_UP") ||
		pattern == DoubleBottom
}

// Detector runs every chart-pattern and confluence detector over an
// instrument's series.
type Detector struct{}

// NewDetector creates a pattern detector.
func NewDetector() *Detector {
	return &Detector{}
}

// DetectAll returns every candidate found in the series. Detectors emit
// at most one candidate each.
func (d *Detector) DetectAll(s indicators.Series, ind map[string]float64) []Candidate {
	var out []Candidate
	if c := d.DetectDoubleBottom(s); c != nil {
		out = append(out, *c)
	}
	if c := d.DetectHeadAndShoulders(s); c != nil {
		out = append(out, *c)
	}
	if c := d.DetectTriangleBreakout(s); c != nil {
		out = append(out, *c)
	}
	if c := d.DetectConfluence(s, ind); c != nil {
		out = append(out, *c)
	}
	return out
}

// localExtremum reports whether values[i] is the window extremum over
// [i-span, i+span]. max selects maxima, otherwise minima.
func localExtremum(values []float64, i, span int, max bool) bool {
	lo, hi := i-span, i+span
	if lo < 0 || hi >= len(values) {
		return false
	}
	for j := lo; j <= hi; j++ {
		if max && values[j] > values[i] {
			return false
		}
		if !max && values[j] < values[i] {
			return false
		}
	}
	return true
}

func tailMean(values []float64, n int) float64 {
	if len(values) < n || n <= 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-n:] {
		sum += v
	}
	return sum / float64(n)
}

func tailMax(values []float64, n int) float64 {
	window := values[len(values)-n:]
	max := window[0]
	for _, v := range window[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

func tailMin(values []float64, n int) float64 {
	window := values[len(values)-n:]
	min := window[0]
	for _, v := range window[1:] {
		if v < min {
			min = v
		}
	}
	return min
}
