package signals

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"crypto-signal-engine/internal/patterns"
)

const (
	uniquenessCap     = 1000
	uniquenessCompact = 800
)

// Hash derives a stable 12-hex-character identifier from the setup's
// defining prices rounded to cents, so near-identical setups collapse to
// one signal.
func Hash(pattern string, entry, target, stop, current float64) string {
	raw := fmt.Sprintf("%s_%.2f_%.2f_%.2f_%.2f", pattern, entry, target, stop, current)
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])[:12]
}

// uniquenessSet remembers recently issued signal hashes in insertion
// order, compacting to the most recent entries when full.
type uniquenessSet struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

func newUniquenessSet() *uniquenessSet {
	return &uniquenessSet{seen: make(map[string]struct{})}
}

// Has reports whether the hash is remembered.
func (u *uniquenessSet) Has(hash string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.seen[hash]
	return ok
}

// Add records the hash. Returns false when it was already present.
func (u *uniquenessSet) Add(hash string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.seen[hash]; ok {
		return false
	}
	u.seen[hash] = struct{}{}
	u.order = append(u.order, hash)

	if len(u.order) > uniquenessCap {
		drop := u.order[:len(u.order)-uniquenessCompact]
		for _, h := range drop {
			delete(u.seen, h)
		}
		u.order = append([]string(nil), u.order[len(u.order)-uniquenessCompact:]...)
	}
	return true
}

// Len returns the number of remembered hashes.
func (u *uniquenessSet) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.order)
}

// patternCooldowns is the minimum spacing between signals of the same
// pattern, across all instruments.
var patternCooldowns = map[string]time.Duration{
	patterns.DoubleBottom:         4 * time.Hour,
	patterns.HeadAndShoulders:     6 * time.Hour,
	patterns.TriangleBreakoutUp:   2 * time.Hour,
	patterns.TriangleBreakoutDown: 2 * time.Hour,
	patterns.IndicatorsBuy:        30 * time.Minute,
	patterns.IndicatorsSell:       30 * time.Minute,
}

const defaultCooldown = time.Hour

// cooldownTracker tracks the last emission time per pattern.
type cooldownTracker struct {
	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

func newCooldownTracker() *cooldownTracker {
	return &cooldownTracker{last: make(map[string]time.Time), now: time.Now}
}

func cooldownFor(pattern string) time.Duration {
	if d, ok := patternCooldowns[pattern]; ok {
		return d
	}
	return defaultCooldown
}

// InCooldown reports whether a signal of this pattern was emitted within
// the pattern's cooldown window, on any instrument.
func (c *cooldownTracker) InCooldown(pattern string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.last[pattern]
	if !ok {
		return false
	}
	return c.now().Sub(at) < cooldownFor(pattern)
}

// Mark records an emission of the pattern.
func (c *cooldownTracker) Mark(pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last[pattern] = c.now()
}
