package indicators

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}

	v, ok := SMA(values, 5)
	if !ok || v != 3 {
		t.Errorf("SMA(5) = %v, %v; want 3, true", v, ok)
	}

	v, ok = SMA(values, 2)
	if !ok || v != 4.5 {
		t.Errorf("SMA(2) = %v, %v; want 4.5, true", v, ok)
	}

	if _, ok := SMA(values, 6); ok {
		t.Error("SMA with insufficient history should not be ok")
	}
	if _, ok := SMA(values, 0); ok {
		t.Error("SMA with zero period should not be ok")
	}
}

func TestEMAConvergesToConstant(t *testing.T) {
	values := make([]float64, 50)
	for i := range values {
		values[i] = 100
	}
	v, ok := EMA(values, 12)
	if !ok || !almostEqual(v, 100, 1e-9) {
		t.Errorf("EMA of constant series = %v, %v; want 100, true", v, ok)
	}
}

func TestEMAWeighsRecentValues(t *testing.T) {
	// Accelerating series: the exponential average should sit above the
	// simple one because it weighs the latest values more.
	accelerating := make([]float64, 20)
	for i := range accelerating {
		accelerating[i] = float64((i + 1) * (i + 1))
	}
	ema, _ := EMA(accelerating, 12)
	sma, _ := SMA(accelerating, 12)
	if ema <= sma {
		t.Errorf("EMA %v should exceed SMA %v on an accelerating series", ema, sma)
	}
}

func TestRSI(t *testing.T) {
	rising := make([]float64, 20)
	for i := range rising {
		rising[i] = float64(100 + i)
	}
	v, ok := RSI(rising, 14)
	if !ok || v != 100 {
		t.Errorf("RSI of all gains = %v, %v; want 100, true", v, ok)
	}

	falling := make([]float64, 20)
	for i := range falling {
		falling[i] = float64(200 - i)
	}
	v, _ = RSI(falling, 14)
	if v != 0 {
		t.Errorf("RSI of all losses = %v; want 0", v)
	}

	if _, ok := RSI([]float64{1, 2, 3}, 14); ok {
		t.Error("RSI with insufficient history should not be ok")
	}
}

func TestStochastic(t *testing.T) {
	n := 30
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i], lows[i] = 110, 90
		closes[i] = 100
	}
	// Close at the top of the range.
	closes[n-1] = 110

	k, d, ok := Stochastic(highs, lows, closes, 14, 3)
	if !ok {
		t.Fatal("expected stochastic to compute")
	}
	if k != 100 {
		t.Errorf("%%K = %v; want 100", k)
	}
	if d < 0 || d > 100 {
		t.Errorf("%%D = %v out of bounds", d)
	}
}

func TestMACDLegacySignal(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5
	}
	macd, signal, hist, ok := MACD(closes)
	if !ok {
		t.Fatal("expected MACD to compute")
	}
	if !almostEqual(signal, macd*0.9, 1e-9) {
		t.Errorf("signal = %v; want 0.9*MACD = %v", signal, macd*0.9)
	}
	if !almostEqual(hist, macd-signal, 1e-9) {
		t.Errorf("histogram = %v; want %v", hist, macd-signal)
	}
}

func TestMACDStrict(t *testing.T) {
	if _, _, _, ok := MACDStrict(make([]float64, 34)); ok {
		t.Error("strict MACD needs at least 35 closes")
	}

	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5
	}
	macd, signal, _, ok := MACDStrict(closes)
	if !ok {
		t.Fatal("expected strict MACD to compute")
	}
	// On a steadily rising series both lines are positive and the MACD
	// line leads its signal.
	if macd <= 0 || signal <= 0 {
		t.Errorf("macd = %v, signal = %v; want both positive", macd, signal)
	}
}

func TestBollingerBands(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100
	}
	upper, middle, lower, ok := BollingerBands(closes, 20, 2)
	if !ok {
		t.Fatal("expected bands to compute")
	}
	if upper != 100 || middle != 100 || lower != 100 {
		t.Errorf("bands on constant series = %v/%v/%v; want all 100", upper, middle, lower)
	}

	closes[19] = 120
	upper, middle, lower, _ = BollingerBands(closes, 20, 2)
	if !(upper > middle && middle > lower) {
		t.Errorf("bands not ordered: %v/%v/%v", upper, middle, lower)
	}
	if !almostEqual(upper-middle, middle-lower, 1e-9) {
		t.Error("bands should be symmetric around the middle")
	}
}

func TestATR(t *testing.T) {
	n := 20
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i], lows[i], closes[i] = 105, 95, 100
	}
	v, ok := ATR(highs, lows, closes, 14)
	if !ok || v != 10 {
		t.Errorf("ATR = %v, %v; want 10, true", v, ok)
	}
}

func TestComputeInsufficientHistory(t *testing.T) {
	s := Series{Closes: []float64{1, 2, 3}, Highs: []float64{1, 2, 3}, Lows: []float64{1, 2, 3}, Volumes: []float64{1, 2, 3}}
	out := Compute(s, false)
	if _, ok := out["RSI"]; ok {
		t.Error("RSI should be absent with 3 closes")
	}
	if _, ok := out["SMA_60"]; ok {
		t.Error("SMA_60 should be absent with 3 closes")
	}
}

func TestComputeFullSet(t *testing.T) {
	n := 120
	s := Series{
		Opens:   make([]float64, n),
		Highs:   make([]float64, n),
		Lows:    make([]float64, n),
		Closes:  make([]float64, n),
		Volumes: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		price := 100 + math.Sin(float64(i)/5)*3
		s.Opens[i] = price
		s.Highs[i] = price + 1
		s.Lows[i] = price - 1
		s.Closes[i] = price
		s.Volumes[i] = 1000
	}

	out := Compute(s, true)
	want := []string{
		"SMA_12", "SMA_30", "SMA_60", "EMA_12", "EMA_26", "RSI",
		"STOCH_K", "STOCH_D", "MACD", "MACD_SIGNAL", "MACD_HISTOGRAM",
		"BB_UPPER", "BB_MIDDLE", "BB_LOWER", "BB_POSITION", "ATR", "VOLUME_SMA",
	}
	for _, name := range want {
		if _, ok := out[name]; !ok {
			t.Errorf("missing indicator %s", name)
		}
	}
	if out["VOLUME_SMA"] != 1000 {
		t.Errorf("VOLUME_SMA = %v; want 1000", out["VOLUME_SMA"])
	}
	if pos := out["BB_POSITION"]; pos < 0 || pos > 1 {
		t.Errorf("BB_POSITION = %v out of [0, 1]", pos)
	}
}
