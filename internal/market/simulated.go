package market

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// defaultBasePrices seeds the simulated random walk per symbol.
var defaultBasePrices = map[string]float64{
	"BTCUSDT":  45000,
	"ETHUSDT":  3000,
	"SOLUSDT":  100,
	"BNBUSDT":  300,
	"ADAUSDT":  0.5,
	"DOTUSDT":  6,
	"LINKUSDT": 15,
}

// SimulatedSource produces random-walk ticks around per-symbol base
// prices. It is deterministic for a given seed and always available,
// serving as the last-resort fallback in the source chain.
type SimulatedSource struct {
	sourceState

	mu         sync.Mutex
	rng        *rand.Rand
	basePrices map[string]float64
	lastPrices map[string]float64
}

// NewSimulatedSource creates a simulated source seeded with seed.
func NewSimulatedSource(spacing time.Duration, seed int64) *SimulatedSource {
	last := make(map[string]float64, len(defaultBasePrices))
	for sym, price := range defaultBasePrices {
		last[sym] = price
	}
	return &SimulatedSource{
		sourceState: newSourceState("Simulated", spacing),
		rng:         rand.New(rand.NewSource(seed)),
		basePrices:  defaultBasePrices,
		lastPrices:  last,
	}
}

// Fetch implements Source. Each call advances the walk by up to ±2% and
// jitters the OHLC fields around the new price.
func (s *SimulatedSource) Fetch(ctx context.Context, symbol string) (*Tick, error) {
	if !s.IsAvailable() {
		return nil, ErrSourceUnavailable
	}

	base, ok := s.basePrices[symbol]
	if !ok {
		return nil, ErrSymbolNotSupported
	}

	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	prev := s.lastPrices[symbol]
	price := prev * (1 + (s.rng.Float64()*0.04 - 0.02))
	high := price * (1 + s.rng.Float64()*0.01)
	low := price * (1 - s.rng.Float64()*0.01)
	volume := 1_000_000 + s.rng.Float64()*4_000_000
	s.lastPrices[symbol] = price
	s.mu.Unlock()

	return &Tick{
		Timestamp:      time.Now(),
		Symbol:         symbol,
		Price:          price,
		Open:           prev,
		High:           high,
		Low:            low,
		Close:          price,
		Volume:         volume,
		Source:         s.Name(),
		PriceChange24h: (price - base) / base * 100,
	}, nil
}
