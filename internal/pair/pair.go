package pair

import (
	"sync"
	"time"

	"crypto-signal-engine/internal/logging"
	"crypto-signal-engine/internal/market"
)

// Status is the lifecycle state of a trading pair.
type Status string

const (
	StatusEnabled     Status = "enabled"
	StatusDisabled    Status = "disabled"
	StatusError       Status = "error"
	StatusMaintenance Status = "maintenance"
)

// maxHistorySize caps the in-memory rolling series per pair.
const maxHistorySize = 1000

// PriceRange bounds accepted tick prices for a pair. Zero values disable
// the check. BTC pairs default to [20000, 200000]; everything else is
// unbounded.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether price falls inside the configured bounds.
func (r PriceRange) Contains(price float64) bool {
	if r.Min == 0 && r.Max == 0 {
		return true
	}
	return price >= r.Min && price <= r.Max
}

// Config is the per-pair runtime configuration.
type Config struct {
	UpdateIntervalSec int        `json:"update_interval"`
	MaxErrors         int        `json:"max_errors"`
	RetryDelaySec     int        `json:"retry_delay"`
	PriceRange        PriceRange `json:"price_range"`
}

// RangeStats summarizes prices over a trailing window.
type RangeStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

// updateStats tracks per-pair ingestion counters.
type updateStats struct {
	TotalUpdates      int64
	SuccessfulUpdates int64
	FailedUpdates     int64
	FirstUpdate       time.Time
	LastSuccessful    time.Time
	AvgPrice24h       float64
	PriceChange24h    float64
}

// TradingPair holds the rolling time-series, streaming status and health
// state for one instrument.
type TradingPair struct {
	Symbol      string
	DisplayName string
	Color       string
	Icon        string

	mu        sync.Mutex
	enabled   bool
	status    Status
	streaming bool

	cfg        Config
	lastUpdate time.Time
	errorCount int
	lastError  string

	history []*market.Tick
	stats   updateStats

	log *logging.Logger
}

// New creates a trading pair with default runtime configuration.
func New(symbol, displayName string, enabled bool, color, icon string) *TradingPair {
	status := StatusDisabled
	if enabled {
		status = StatusEnabled
	}
	p := &TradingPair{
		Symbol:      symbol,
		DisplayName: displayName,
		Color:       color,
		Icon:        icon,
		enabled:     enabled,
		status:      status,
		cfg: Config{
			UpdateIntervalSec: 5,
			MaxErrors:         10,
			RetryDelaySec:     30,
		},
		history: make([]*market.Tick, 0, maxHistorySize),
		log:     logging.PairContext(symbol),
	}
	return p
}

// SetMetadata updates the display attributes under the pair's lock, so
// a config import cannot race concurrent status reads.
func (p *TradingPair) SetMetadata(displayName, color, icon string) {
	p.mu.Lock()
	p.DisplayName = displayName
	p.Color = color
	p.Icon = icon
	p.mu.Unlock()
}

// Metadata returns the display attributes.
func (p *TradingPair) Metadata() (displayName, color, icon string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.DisplayName, p.Color, p.Icon
}

// Enable allows the pair to stream and clears its error counter.
func (p *TradingPair) Enable() {
	p.mu.Lock()
	p.enabled = true
	p.status = StatusEnabled
	p.errorCount = 0
	p.mu.Unlock()
	p.log.Info("Pair enabled")
}

// Disable stops streaming and marks the pair disabled.
func (p *TradingPair) Disable() {
	p.mu.Lock()
	p.enabled = false
	p.status = StatusDisabled
	p.streaming = false
	p.mu.Unlock()
	p.log.Info("Pair disabled")
}

// SetMaintenance takes the pair out of rotation until errors are reset.
func (p *TradingPair) SetMaintenance(reason string) {
	p.mu.Lock()
	p.status = StatusMaintenance
	p.streaming = false
	p.lastError = reason
	p.mu.Unlock()
	p.log.Warn("Pair put in maintenance", "reason", reason)
}

// Enabled reports whether the pair is enabled.
func (p *TradingPair) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// Status returns the lifecycle status.
func (p *TradingPair) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Config returns a copy of the runtime configuration.
func (p *TradingPair) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// UpdateConfig applies a partial configuration update. Zero fields are
// left unchanged.
func (p *TradingPair) UpdateConfig(cfg Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cfg.UpdateIntervalSec > 0 {
		p.cfg.UpdateIntervalSec = cfg.UpdateIntervalSec
	}
	if cfg.MaxErrors > 0 {
		p.cfg.MaxErrors = cfg.MaxErrors
	}
	if cfg.RetryDelaySec > 0 {
		p.cfg.RetryDelaySec = cfg.RetryDelaySec
	}
	if cfg.PriceRange.Min != 0 || cfg.PriceRange.Max != 0 {
		p.cfg.PriceRange = cfg.PriceRange
	}
}

// AddTick validates and appends a tick to the rolling series, updating
// derived 24h statistics. The series never exceeds 1000 entries.
func (p *TradingPair) AddTick(t *market.Tick) bool {
	if t == nil || t.Price <= 0 {
		p.recordFailure("invalid tick price")
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.history = append(p.history, t)
	if len(p.history) > maxHistorySize {
		p.history = p.history[len(p.history)-maxHistorySize:]
	}

	p.stats.TotalUpdates++
	p.stats.SuccessfulUpdates++
	p.stats.LastSuccessful = t.Timestamp
	if p.stats.FirstUpdate.IsZero() {
		p.stats.FirstUpdate = t.Timestamp
	}
	p.refresh24hStatsLocked()

	p.lastUpdate = time.Now()
	p.errorCount = 0
	return true
}

// refresh24hStatsLocked recomputes 24h aggregates over the in-memory
// window. With a 1000-entry cap this is best-effort rather than a strict
// wall-clock day.
func (p *TradingPair) refresh24hStatsLocked() {
	stats := p.rangeLocked(24)
	p.stats.AvgPrice24h = stats.Avg

	if len(p.history) < 2 {
		p.stats.PriceChange24h = 0
		return
	}
	current := p.history[len(p.history)-1].Price
	cutoff := time.Now().Add(-24 * time.Hour)

	var old float64
	for _, tick := range p.history {
		if tick.Timestamp.After(cutoff) {
			break
		}
		old = tick.Price
	}
	if old > 0 {
		p.stats.PriceChange24h = (current - old) / old * 100
	} else {
		p.stats.PriceChange24h = 0
	}
}

// Latest returns the most recent tick, or nil when empty.
func (p *TradingPair) Latest() *market.Tick {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.history) == 0 {
		return nil
	}
	return p.history[len(p.history)-1]
}

// History returns up to limit most recent ticks (all when limit <= 0).
func (p *TradingPair) History(limit int) []*market.Tick {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*market.Tick, limit)
	copy(out, p.history[n-limit:])
	return out
}

// HistoryLen returns the current series length.
func (p *TradingPair) HistoryLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.history)
}

// Range summarizes prices over the trailing window of the given hours.
func (p *TradingPair) Range(hours int) RangeStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rangeLocked(hours)
}

func (p *TradingPair) rangeLocked(hours int) RangeStats {
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)

	var stats RangeStats
	var sum float64
	for _, tick := range p.history {
		if tick.Timestamp.Before(cutoff) {
			continue
		}
		if stats.Count == 0 || tick.Price < stats.Min {
			stats.Min = tick.Price
		}
		if tick.Price > stats.Max {
			stats.Max = tick.Price
		}
		sum += tick.Price
		stats.Count++
	}
	if stats.Count > 0 {
		stats.Avg = sum / float64(stats.Count)
	}
	return stats
}

// StartStreaming marks the pair as streaming. It fails when the pair is
// disabled or in maintenance.
func (p *TradingPair) StartStreaming() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled {
		p.log.Warn("Cannot start streaming for disabled pair")
		return false
	}
	if p.status == StatusMaintenance {
		p.log.Warn("Cannot start streaming for pair in maintenance")
		return false
	}
	p.streaming = true
	p.status = StatusEnabled
	return true
}

// StopStreaming marks the pair as not streaming.
func (p *TradingPair) StopStreaming() {
	p.mu.Lock()
	p.streaming = false
	p.mu.Unlock()
}

// IsStreaming reports whether the pair is currently streaming.
func (p *TradingPair) IsStreaming() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streaming
}

// IsStreamingHealthy reports whether the pair is streaming, has a fresh
// update (within 3x the update interval) and sits below its error
// threshold.
func (p *TradingPair) IsStreamingHealthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.streaming {
		return false
	}
	if !p.lastUpdate.IsZero() {
		stale := time.Duration(p.cfg.UpdateIntervalSec*3) * time.Second
		if time.Since(p.lastUpdate) > stale {
			return false
		}
	}
	return p.errorCount < p.cfg.MaxErrors
}

// RecordError counts a failed update; crossing the error threshold moves
// the pair into maintenance and stops streaming.
func (p *TradingPair) RecordError(msg string) {
	p.recordFailure(msg)
}

func (p *TradingPair) recordFailure(msg string) {
	p.mu.Lock()
	p.errorCount++
	p.lastError = msg
	p.stats.FailedUpdates++
	p.stats.TotalUpdates++
	crossed := p.errorCount >= p.cfg.MaxErrors
	count := p.errorCount
	p.mu.Unlock()

	p.log.Error("Pair update failed", "error", msg, "error_count", count)
	if crossed {
		p.SetMaintenance("too many consecutive errors")
	}
}

// ResetErrors clears the error counter; a pair parked in maintenance
// returns to enabled if it is still configured as enabled.
func (p *TradingPair) ResetErrors() {
	p.mu.Lock()
	p.errorCount = 0
	p.lastError = ""
	if p.status == StatusMaintenance && p.enabled {
		p.status = StatusEnabled
	}
	p.mu.Unlock()
	p.log.Info("Errors reset")
}

// ErrorCount returns the consecutive-error counter.
func (p *TradingPair) ErrorCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errorCount
}

// LastUpdate returns the time of the last accepted tick.
func (p *TradingPair) LastUpdate() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastUpdate
}

// PairStatus is a point-in-time snapshot of a pair's externally visible
// state.
type PairStatus struct {
	Symbol         string  `json:"symbol"`
	DisplayName    string  `json:"display_name"`
	Enabled        bool    `json:"enabled"`
	Status         Status  `json:"status"`
	IsStreaming    bool    `json:"is_streaming"`
	Color          string  `json:"color"`
	Icon           string  `json:"icon"`
	CurrentPrice   float64 `json:"current_price"`
	LastUpdate     string  `json:"last_update,omitempty"`
	DataPoints     int     `json:"data_points"`
	ErrorCount     int     `json:"error_count"`
	HealthStatus   string  `json:"health_status"`
	PriceChange24h float64 `json:"price_change_24h"`
	AvgPrice24h    float64 `json:"avg_price_24h"`
	SuccessRate    float64 `json:"success_rate"`
}

// GetStatus builds the status snapshot.
func (p *TradingPair) GetStatus() PairStatus {
	healthy := p.IsStreamingHealthy()

	p.mu.Lock()
	defer p.mu.Unlock()

	st := PairStatus{
		Symbol:         p.Symbol,
		DisplayName:    p.DisplayName,
		Enabled:        p.enabled,
		Status:         p.status,
		IsStreaming:    p.streaming,
		Color:          p.Color,
		Icon:           p.Icon,
		DataPoints:     len(p.history),
		ErrorCount:     p.errorCount,
		PriceChange24h: p.stats.PriceChange24h,
		AvgPrice24h:    p.stats.AvgPrice24h,
	}
	if len(p.history) > 0 {
		st.CurrentPrice = p.history[len(p.history)-1].Price
	}
	if !p.lastUpdate.IsZero() {
		st.LastUpdate = p.lastUpdate.Format(time.RFC3339)
	}
	if healthy {
		st.HealthStatus = "healthy"
	} else {
		st.HealthStatus = "unhealthy"
	}
	if p.stats.TotalUpdates > 0 {
		st.SuccessRate = float64(p.stats.SuccessfulUpdates) / float64(p.stats.TotalUpdates) * 100
	}
	return st
}
