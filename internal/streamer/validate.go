package streamer

import (
	"fmt"
	"math"
	"sync"
	"time"

	"crypto-signal-engine/internal/market"
	"crypto-signal-engine/internal/pair"
)

const (
	// maxJumpPct rejects quotes that move more than this against the
	// last accepted price.
	maxJumpPct = 10.0

	// Duplicate window: same source, near-identical price, arriving
	// within dedupWindow of the previous accepted tick.
	dedupPriceDelta = 0.01
	dedupWindow     = 2 * time.Second
)

// tickValidator applies the ingestion sanity checks and deduplication
// against the last accepted tick per symbol.
type tickValidator struct {
	mu   sync.Mutex
	last map[string]*market.Tick
}

func newTickValidator() *tickValidator {
	return &tickValidator{last: make(map[string]*market.Tick)}
}

// Validate checks a fetched tick against the pair's configured bounds
// and the previously accepted tick. The reason is empty when accepted.
func (v *tickValidator) Validate(p *pair.TradingPair, t *market.Tick) (bool, string) {
	if t == nil || t.Price <= 0 {
		return false, "non-positive price"
	}

	if !p.Config().PriceRange.Contains(t.Price) {
		return false, fmt.Sprintf("price %.2f outside configured range", t.Price)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	prev := v.last[t.Symbol]
	if prev != nil {
		jump := math.Abs(t.Price-prev.Price) / prev.Price * 100
		if jump > maxJumpPct {
			return false, fmt.Sprintf("price jump %.1f%% exceeds %.0f%%", jump, maxJumpPct)
		}
		if t.Source == prev.Source &&
			math.Abs(t.Price-prev.Price) < dedupPriceDelta &&
			t.Timestamp.Sub(prev.Timestamp) < dedupWindow {
			return false, "duplicate tick"
		}
	}

	v.last[t.Symbol] = t
	return true, ""
}
