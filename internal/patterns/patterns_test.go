package patterns

import (
	"math"
	"testing"

	"crypto-signal-engine/internal/indicators"
)

// rampSeries builds a series whose lows/highs/closes follow linear
// segments between the given (index, value) anchor points.
func rampSeries(n int, anchors [][2]float64) indicators.Series {
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i)
		// find surrounding anchors
		prev, next := anchors[0], anchors[len(anchors)-1]
		for j := 0; j < len(anchors)-1; j++ {
			if x >= anchors[j][0] && x <= anchors[j+1][0] {
				prev, next = anchors[j], anchors[j+1]
				break
			}
		}
		if next[0] == prev[0] {
			values[i] = prev[1]
		} else {
			t := (x - prev[0]) / (next[0] - prev[0])
			values[i] = prev[1] + t*(next[1]-prev[1])
		}
	}
	volumes := make([]float64, n)
	for i := range volumes {
		volumes[i] = 1000
	}
	return indicators.Series{
		Opens:   values,
		Highs:   values,
		Lows:    values,
		Closes:  values,
		Volumes: volumes,
	}
}

func approx(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %.4f, want %.4f", name, got, want)
	}
}

func TestDetectDoubleBottom(t *testing.T) {
	// Two equal bottoms at 43000 with a 44000 peak between them.
	s := rampSeries(110, [][2]float64{
		{0, 44000}, {40, 43000}, {60, 44000}, {80, 43000}, {109, 44450},
	})

	d := NewDetector()
	c := d.DetectDoubleBottom(s)
	if c == nil {
		t.Fatal("expected double bottom candidate")
	}
	if c.Pattern != DoubleBottom {
		t.Errorf("pattern = %s, want %s", c.Pattern, DoubleBottom)
	}
	approx(t, "entry", c.Entry, 43344, 1)
	approx(t, "stop", c.Stop, 42355, 1)
	approx(t, "target", c.Target, 43344+800, 1)
	approx(t, "confidence", c.Confidence, 85, 0.01)
}

func TestDetectDoubleBottomRejectsUnequalLows(t *testing.T) {
	// Second low 2% above the first breaks the similarity bound.
	s := rampSeries(110, [][2]float64{
		{0, 44500}, {40, 43000}, {60, 44500}, {80, 43900}, {109, 44800},
	})
	if c := NewDetector().DetectDoubleBottom(s); c != nil {
		t.Fatalf("unexpected candidate: %+v", c)
	}
}

func TestDetectDoubleBottomInsufficientHistory(t *testing.T) {
	s := rampSeries(60, [][2]float64{{0, 100}, {59, 100}})
	if c := NewDetector().DetectDoubleBottom(s); c != nil {
		t.Fatalf("unexpected candidate: %+v", c)
	}
}

func TestDetectHeadAndShoulders(t *testing.T) {
	// Shoulders at 100, head at 108, valleys at 90.
	s := rampSeries(150, [][2]float64{
		{0, 90}, {40, 100}, {60, 90}, {80, 108}, {100, 90}, {120, 100}, {149, 88},
	})

	c := NewDetector().DetectHeadAndShoulders(s)
	if c == nil {
		t.Fatal("expected head-and-shoulders candidate")
	}
	if c.Pattern != HeadAndShoulders {
		t.Errorf("pattern = %s, want %s", c.Pattern, HeadAndShoulders)
	}
	approx(t, "entry", c.Entry, 99.8, 0.01)
	approx(t, "target", c.Target, 93.6, 0.01)
	approx(t, "stop", c.Stop, 109.62, 0.01)
	approx(t, "confidence", c.Confidence, 80, 0.01)
}

func TestDetectHeadAndShouldersRejectsFlatHead(t *testing.T) {
	// Head barely above the shoulders: ratio below 1.03.
	s := rampSeries(150, [][2]float64{
		{0, 90}, {40, 100}, {60, 90}, {80, 101}, {100, 90}, {120, 100}, {149, 88},
	})
	if c := NewDetector().DetectHeadAndShoulders(s); c != nil {
		t.Fatalf("unexpected candidate: %+v", c)
	}
}

func TestDetectTriangleBreakoutUp(t *testing.T) {
	n := 60
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		if i < n-15 {
			highs[i], lows[i], closes[i] = 105, 95, 100
		} else {
			highs[i], lows[i], closes[i] = 101, 99, 100
		}
	}
	closes[n-1] = 101 // pressing resistance

	s := indicators.Series{Highs: highs, Lows: lows, Closes: closes}
	c := NewDetector().DetectTriangleBreakout(s)
	if c == nil {
		t.Fatal("expected triangle breakout candidate")
	}
	if c.Pattern != TriangleBreakoutUp {
		t.Errorf("pattern = %s, want %s", c.Pattern, TriangleBreakoutUp)
	}
	approx(t, "entry", c.Entry, 101.202, 0.001)
	approx(t, "target", c.Target, 103, 0.001)
	approx(t, "stop", c.Stop, 98.01, 0.001)
	approx(t, "confidence", c.Confidence, 70, 0.01)
}

func TestDetectTriangleBreakoutDown(t *testing.T) {
	n := 60
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		if i < n-15 {
			highs[i], lows[i], closes[i] = 105, 95, 100
		} else {
			highs[i], lows[i], closes[i] = 101, 99, 100
		}
	}
	closes[n-1] = 99 // pressing support

	s := indicators.Series{Highs: highs, Lows: lows, Closes: closes}
	c := NewDetector().DetectTriangleBreakout(s)
	if c == nil {
		t.Fatal("expected triangle breakout candidate")
	}
	if c.Pattern != TriangleBreakoutDown {
		t.Errorf("pattern = %s, want %s", c.Pattern, TriangleBreakoutDown)
	}
	approx(t, "entry", c.Entry, 98.802, 0.001)
	approx(t, "target", c.Target, 97, 0.001)
	approx(t, "stop", c.Stop, 102.01, 0.001)
}

func TestDetectTriangleBreakoutNoConvergence(t *testing.T) {
	n := 60
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i], lows[i], closes[i] = 105, 95, 100
	}
	s := indicators.Series{Highs: highs, Lows: lows, Closes: closes}
	if c := NewDetector().DetectTriangleBreakout(s); c != nil {
		t.Fatalf("unexpected candidate: %+v", c)
	}
}

func TestDetectConfluenceBuy(t *testing.T) {
	s := indicators.Series{Closes: []float64{105}}
	ind := map[string]float64{
		"RSI":         20,
		"STOCH_K":     10,
		"STOCH_D":     10,
		"MACD":        5,
		"MACD_SIGNAL": 3,
		"SMA_12":      100,
		"SMA_30":      95,
		"BB_POSITION": 0.05,
	}
	c := NewDetector().DetectConfluence(s, ind)
	if c == nil {
		t.Fatal("expected confluence buy candidate")
	}
	if c.Pattern != IndicatorsBuy {
		t.Errorf("pattern = %s, want %s", c.Pattern, IndicatorsBuy)
	}
	approx(t, "entry", c.Entry, 105*1.002, 0.001)
	approx(t, "stop", c.Stop, 105*0.985, 0.001)
	approx(t, "target", c.Target, 105*1.06, 0.001)
	approx(t, "confidence", c.Confidence, 90, 0.01)
}

func TestDetectConfluenceSell(t *testing.T) {
	s := indicators.Series{Closes: []float64{90}}
	ind := map[string]float64{
		"RSI":         80,
		"STOCH_K":     90,
		"STOCH_D":     92,
		"MACD":        -5,
		"MACD_SIGNAL": -3,
		"SMA_12":      95,
		"SMA_30":      100,
		"BB_POSITION": 0.95,
	}
	c := NewDetector().DetectConfluence(s, ind)
	if c == nil {
		t.Fatal("expected confluence sell candidate")
	}
	if c.Pattern != IndicatorsSell {
		t.Errorf("pattern = %s, want %s", c.Pattern, IndicatorsSell)
	}
	approx(t, "entry", c.Entry, 90*0.998, 0.001)
	approx(t, "stop", c.Stop, 90*1.015, 0.001)
}

func TestDetectConfluenceNeutral(t *testing.T) {
	s := indicators.Series{Closes: []float64{100}}
	ind := map[string]float64{
		"RSI":         50,
		"STOCH_K":     50,
		"STOCH_D":     50,
		"SMA_12":      100,
		"SMA_30":      100,
		"BB_POSITION": 0.5,
	}
	if c := NewDetector().DetectConfluence(s, ind); c != nil {
		t.Fatalf("unexpected candidate: %+v", c)
	}
}

func TestIsBullish(t *testing.T) {
	cases := map[string]bool{
		DoubleBottom:         true,
		HeadAndShoulders:     false,
		TriangleBreakoutUp:   true,
		TriangleBreakoutDown: false,
		IndicatorsBuy:        true,
		IndicatorsSell:       false,
		ManualBuy:            true,
		ManualSell:           false,
	}
	for pattern, want := range cases {
		if got := IsBullish(pattern); got != want {
			t.Errorf("IsBullish(%s) = %v, want %v", pattern, got, want)
		}
	}
}
