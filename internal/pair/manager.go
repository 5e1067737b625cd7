package pair

import (
	"strings"
	"sync"
	"time"

	"crypto-signal-engine/internal/logging"
)

// Manager centralizes operations over the configured trading pairs.
type Manager struct {
	mu    sync.RWMutex
	pairs map[string]*TradingPair
	order []string

	log *logging.Logger
}

// NewManager creates a manager seeded with the default pair set.
func NewManager() *Manager {
	m := &Manager{
		pairs: make(map[string]*TradingPair),
		log:   logging.Default().WithComponent("pairs"),
	}
	m.initializeDefaults()
	return m
}

func (m *Manager) initializeDefaults() {
	defaults := []struct {
		symbol, displayName string
		enabled             bool
		color, icon         string
	}{
		{"BTCUSDT", "Bitcoin/USDT", true, "#f7931a", "fab fa-bitcoin"},
		{"ETHUSDT", "Ethereum/USDT", true, "#627eea", "fab fa-ethereum"},
		{"SOLUSDT", "Solana/USDT", false, "#9945ff", "fas fa-sun"},
		{"BNBUSDT", "BNB/USDT", false, "#f3ba2f", "fas fa-coins"},
		{"ADAUSDT", "Cardano/USDT", false, "#0033ad", "fas fa-heart"},
		{"DOTUSDT", "Polkadot/USDT", false, "#e6007a", "fas fa-circle"},
		{"LINKUSDT", "Chainlink/USDT", false, "#2a5ada", "fas fa-link"},
	}
	for _, d := range defaults {
		p := m.AddPair(d.symbol, d.displayName, d.enabled, d.color, d.icon)
		if d.symbol == "BTCUSDT" {
			// Hard sanity bounds for BTC quotes; other pairs stay unbounded.
			p.UpdateConfig(Config{PriceRange: PriceRange{Min: 20_000, Max: 200_000}})
		}
	}
}

// AddPair registers a new pair or updates the metadata of an existing one.
func (m *Manager) AddPair(symbol, displayName string, enabled bool, color, icon string) *TradingPair {
	symbol = strings.ToUpper(symbol)

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.pairs[symbol]; ok {
		existing.SetMetadata(displayName, color, icon)
		if enabled {
			existing.Enable()
		} else {
			existing.Disable()
		}
		return existing
	}

	p := New(symbol, displayName, enabled, color, icon)
	m.pairs[symbol] = p
	m.order = append(m.order, symbol)
	m.log.Info("Pair added", "symbol", symbol, "display_name", displayName)
	return p
}

// RemovePair drops a pair, stopping its streaming first.
func (m *Manager) RemovePair(symbol string) bool {
	symbol = strings.ToUpper(symbol)

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pairs[symbol]
	if !ok {
		return false
	}
	p.StopStreaming()
	delete(m.pairs, symbol)
	for i, s := range m.order {
		if s == symbol {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.log.Info("Pair removed", "symbol", symbol)
	return true
}

// Get returns the pair for symbol, or nil.
func (m *Manager) Get(symbol string) *TradingPair {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pairs[strings.ToUpper(symbol)]
}

// All returns every pair in registration order.
func (m *Manager) All() []*TradingPair {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*TradingPair, 0, len(m.order))
	for _, s := range m.order {
		out = append(out, m.pairs[s])
	}
	return out
}

// Enabled returns the enabled pairs.
func (m *Manager) Enabled() []*TradingPair {
	var out []*TradingPair
	for _, p := range m.All() {
		if p.Enabled() {
			out = append(out, p)
		}
	}
	return out
}

// Streaming returns the pairs currently streaming.
func (m *Manager) Streaming() []*TradingPair {
	var out []*TradingPair
	for _, p := range m.All() {
		if p.IsStreaming() {
			out = append(out, p)
		}
	}
	return out
}

// StartAllStreaming starts streaming for every enabled pair and returns
// how many started.
func (m *Manager) StartAllStreaming() int {
	count := 0
	for _, p := range m.Enabled() {
		if p.StartStreaming() {
			count++
		}
	}
	m.log.Info("Streaming started", "pairs", count)
	return count
}

// StopAllStreaming stops streaming for every pair.
func (m *Manager) StopAllStreaming() {
	for _, p := range m.Streaming() {
		p.StopStreaming()
	}
}

// ResetAllErrors clears error counters on every pair.
func (m *Manager) ResetAllErrors() {
	for _, p := range m.All() {
		p.ResetErrors()
	}
	m.log.Info("Errors reset for all pairs")
}

// Summary aggregates counters over all pairs.
type Summary struct {
	TotalPairs      int `json:"total_pairs"`
	EnabledPairs    int `json:"enabled_pairs"`
	StreamingPairs  int `json:"streaming_pairs"`
	TotalDataPoints int `json:"total_data_points"`
	HealthyPairs    int `json:"healthy_pairs"`
	PairsInError    int `json:"pairs_in_error"`
}

// GetSummary builds the aggregate summary.
func (m *Manager) GetSummary() Summary {
	var s Summary
	for _, p := range m.All() {
		s.TotalPairs++
		if p.Enabled() {
			s.EnabledPairs++
		}
		if p.IsStreaming() {
			s.StreamingPairs++
		}
		if p.IsStreamingHealthy() {
			s.HealthyPairs++
		}
		if p.ErrorCount() > 0 {
			s.PairsInError++
		}
		s.TotalDataPoints += p.HistoryLen()
	}
	return s
}

// HealthReport buckets pairs by health.
type HealthReport struct {
	HealthyPairs     []string `json:"healthy_pairs"`
	UnhealthyPairs   []string `json:"unhealthy_pairs"`
	MaintenancePairs []string `json:"maintenance_pairs"`
	OverallHealth    string   `json:"overall_health"`
}

// GetHealthReport builds the health report.
func (m *Manager) GetHealthReport() HealthReport {
	report := HealthReport{OverallHealth: "healthy"}
	for _, p := range m.All() {
		switch {
		case p.Status() == StatusMaintenance:
			report.MaintenancePairs = append(report.MaintenancePairs, p.Symbol)
		case p.IsStreamingHealthy():
			report.HealthyPairs = append(report.HealthyPairs, p.Symbol)
		default:
			report.UnhealthyPairs = append(report.UnhealthyPairs, p.Symbol)
		}
	}
	if len(report.UnhealthyPairs) > 0 {
		report.OverallHealth = "degraded"
	}
	return report
}

// PairConfigExport is the serializable per-pair configuration.
type PairConfigExport struct {
	DisplayName       string     `json:"display_name"`
	Enabled           bool       `json:"enabled"`
	Color             string     `json:"color"`
	Icon              string     `json:"icon"`
	UpdateIntervalSec int        `json:"update_interval"`
	MaxErrors         int        `json:"max_errors"`
	RetryDelaySec     int        `json:"retry_delay"`
	PriceRange        PriceRange `json:"price_range"`
}

// ConfigExport is the full pair configuration snapshot.
type ConfigExport struct {
	Pairs      map[string]PairConfigExport `json:"pairs"`
	ExportedAt time.Time                   `json:"exported_at"`
	TotalPairs int                         `json:"total_pairs"`
}

// ExportConfig snapshots every pair's metadata and runtime config.
func (m *Manager) ExportConfig() ConfigExport {
	out := ConfigExport{
		Pairs:      make(map[string]PairConfigExport),
		ExportedAt: time.Now(),
	}
	for _, p := range m.All() {
		cfg := p.Config()
		displayName, color, icon := p.Metadata()
		out.Pairs[p.Symbol] = PairConfigExport{
			DisplayName:       displayName,
			Enabled:           p.Enabled(),
			Color:             color,
			Icon:              icon,
			UpdateIntervalSec: cfg.UpdateIntervalSec,
			MaxErrors:         cfg.MaxErrors,
			RetryDelaySec:     cfg.RetryDelaySec,
			PriceRange:        cfg.PriceRange,
		}
	}
	out.TotalPairs = len(out.Pairs)
	return out
}

// ImportConfig applies an exported configuration. Importing an export is
// idempotent on pair metadata.
func (m *Manager) ImportConfig(cfg ConfigExport) {
	for symbol, pc := range cfg.Pairs {
		p := m.AddPair(symbol, pc.DisplayName, pc.Enabled, pc.Color, pc.Icon)
		p.UpdateConfig(Config{
			UpdateIntervalSec: pc.UpdateIntervalSec,
			MaxErrors:         pc.MaxErrors,
			RetryDelaySec:     pc.RetryDelaySec,
			PriceRange:        pc.PriceRange,
		})
	}
	m.log.Info("Pair configuration imported", "pairs", len(cfg.Pairs))
}
