package system

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"crypto-signal-engine/config"
	"crypto-signal-engine/internal/analysis"
	"crypto-signal-engine/internal/events"
	"crypto-signal-engine/internal/logging"
	"crypto-signal-engine/internal/market"
	"crypto-signal-engine/internal/pair"
	"crypto-signal-engine/internal/signals"
	"crypto-signal-engine/internal/store"
	"crypto-signal-engine/internal/streamer"
)

const (
	maintenanceInterval = time.Hour

	maxDataLimit = 1000
)

var (
	ErrPairNotFound   = errors.New("system: pair not found")
	ErrNotRunning     = errors.New("system: not running")
	ErrAlreadyRunning = errors.New("system: already running")
	ErrNoMarketData   = errors.New("system: no market data for pair")
)

// System wires together the store, pair registry, quote scheduler,
// analysis engine and signal manager, and exposes the operational
// surface.
type System struct {
	cfg       *config.Config
	log       *logging.Logger
	db        *store.DB
	bus       *events.EventBus
	pairs     *pair.Manager
	signals   *signals.Manager
	engine    *analysis.Engine
	scheduler *streamer.Scheduler

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	maintStop chan struct{}
	maintDone chan struct{}
}

// New builds the full engine from configuration. Unresolved signals are
// recovered from the store so a restart picks up where it left off.
func New(cfg *config.Config) (*System, error) {
	db, err := store.Open(cfg.DatabaseConfig.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// Mirror warnings and errors into system_logs.
	logging.SetSink(db)

	bus := events.NewEventBus()
	pairs := pair.NewManager()
	sm := signals.NewManager(cfg.TradingConfig, db, bus)
	engine := analysis.NewEngine(cfg.TradingConfig, db, sm)
	sched := streamer.NewScheduler(
		cfg.StreamingConfig, pairs, streamer.BuildSources(cfg.StreamingConfig), db, bus, engine)

	if err := sm.Recover(); err != nil {
		db.Close()
		return nil, err
	}

	return &System{
		cfg:       cfg,
		log:       logging.Default().WithComponent("system"),
		db:        db,
		bus:       bus,
		pairs:     pairs,
		signals:   sm,
		engine:    engine,
		scheduler: sched,
	}, nil
}

// Bus exposes the event bus for external subscribers.
func (s *System) Bus() *events.EventBus {
	return s.bus
}

// Start launches quote collection and background maintenance.
func (s *System) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.startedAt = time.Now()
	s.maintStop = make(chan struct{})
	s.maintDone = make(chan struct{})
	s.mu.Unlock()

	s.scheduler.StartAll()
	go s.maintenanceLoop()

	s.bus.Publish(events.Event{Type: events.EventSystemStarted, Data: map[string]interface{}{
		"pairs": len(s.pairs.Enabled()),
	}})
	s.log.Info("System started")
	return nil
}

// Stop halts collection and maintenance. The store stays open until
// Close.
func (s *System) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	close(s.maintStop)
	done := s.maintDone
	s.mu.Unlock()

	s.scheduler.StopAll()
	<-done

	s.bus.Publish(events.Event{Type: events.EventSystemStopped})
	s.log.Info("System stopped")
	return nil
}

// Restart stops and starts the engine.
func (s *System) Restart() error {
	if err := s.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	return s.Start()
}

// Close releases the store. The system must be stopped first.
func (s *System) Close() error {
	logging.SetSink(nil)
	return s.db.Close()
}

// IsRunning reports whether the engine is started.
func (s *System) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *System) maintenanceLoop() {
	defer close(s.maintDone)

	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.maintStop:
			return
		case <-ticker.C:
			if _, err := s.db.CleanupOlderThan(s.cfg.DatabaseConfig.CleanupDays); err != nil {
				s.log.Error("Maintenance cleanup failed", "error", err.Error())
			}
		}
	}
}

// Status is a point-in-time operational snapshot.
type Status struct {
	Running       bool           `json:"running"`
	UptimeSec     int64          `json:"uptime_sec"`
	Pairs         pair.Summary   `json:"pairs"`
	Streamer      streamer.Stats `json:"streamer"`
	ActiveSignals int            `json:"active_signals"`
	Database      store.Stats    `json:"database"`
}

// GetStatus aggregates counters across all subsystems.
func (s *System) GetStatus() Status {
	st := Status{
		Running:       s.IsRunning(),
		Pairs:         s.pairs.GetSummary(),
		Streamer:      s.scheduler.GetStats(),
		ActiveSignals: len(s.signals.Active()),
	}
	s.mu.Lock()
	if s.running {
		st.UptimeSec = int64(time.Since(s.startedAt).Seconds())
	}
	s.mu.Unlock()
	if dbStats, err := s.db.GetStats(); err == nil {
		st.Database = dbStats
	}
	return st
}

// Health composes subsystem health reports.
func (s *System) Health(ctx context.Context) map[string]interface{} {
	dbHealth := s.db.HealthCheck(ctx)
	pairHealth := s.pairs.GetHealthReport()
	streamHealth := s.scheduler.HealthCheck()

	status := "healthy"
	if !dbHealth.Healthy || streamHealth["status"] == "unhealthy" {
		status = "unhealthy"
	} else if pairHealth.OverallHealth != "healthy" || streamHealth["status"] == "degraded" {
		status = "degraded"
	}

	return map[string]interface{}{
		"status":   status,
		"database": dbHealth,
		"pairs":    pairHealth,
		"streamer": streamHealth,
	}
}

// ListPairs returns status snapshots for every registered pair.
func (s *System) ListPairs() []pair.PairStatus {
	all := s.pairs.All()
	out := make([]pair.PairStatus, 0, len(all))
	for _, p := range all {
		out = append(out, p.GetStatus())
	}
	return out
}

// EnabledPairs returns the enabled pair symbols.
func (s *System) EnabledPairs() []string {
	enabled := s.pairs.Enabled()
	out := make([]string, 0, len(enabled))
	for _, p := range enabled {
		out = append(out, p.Symbol)
	}
	return out
}

// PairSummary aggregates counters over all pairs.
func (s *System) PairSummary() pair.Summary {
	return s.pairs.GetSummary()
}

// PairStatus returns one pair's status snapshot.
func (s *System) PairStatus(symbol string) (pair.PairStatus, error) {
	p := s.pairs.Get(symbol)
	if p == nil {
		return pair.PairStatus{}, ErrPairNotFound
	}
	return p.GetStatus(), nil
}

// StartPair begins streaming one pair.
func (s *System) StartPair(symbol string) error {
	if s.pairs.Get(symbol) == nil {
		return ErrPairNotFound
	}
	if !s.scheduler.StartInstrument(symbol) {
		return fmt.Errorf("system: pair %s cannot stream", symbol)
	}
	return nil
}

// StopPair stops streaming one pair.
func (s *System) StopPair(symbol string) error {
	if !s.scheduler.StopInstrument(symbol) {
		return ErrPairNotFound
	}
	return nil
}

// PairData returns up to limit recent ticks for a pair, oldest first.
// The limit is clamped to [1, 1000].
func (s *System) PairData(symbol string, limit int) ([]*market.Tick, error) {
	p := s.pairs.Get(symbol)
	if p == nil {
		return nil, ErrPairNotFound
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxDataLimit {
		limit = maxDataLimit
	}
	return p.History(limit), nil
}

// UpdatePairConfig applies a partial runtime-config update to one pair.
func (s *System) UpdatePairConfig(symbol string, cfg pair.Config) error {
	p := s.pairs.Get(symbol)
	if p == nil {
		return ErrPairNotFound
	}
	p.UpdateConfig(cfg)
	return nil
}

// ActiveSignals returns the unresolved signals.
func (s *System) ActiveSignals() []*signals.Signal {
	return s.signals.Active()
}

// RecentSignals returns the newest persisted signals, optionally
// filtered to the given statuses.
func (s *System) RecentSignals(limit int, statuses ...string) ([]store.SignalRecord, error) {
	if limit < 1 {
		limit = 1
	}
	return s.signals.Recent(limit, statuses...)
}

// Indicators computes the current indicator set for a pair.
func (s *System) Indicators(symbol string) (map[string]float64, error) {
	p := s.pairs.Get(symbol)
	if p == nil {
		return nil, ErrPairNotFound
	}
	return s.engine.LatestIndicators(p), nil
}

// PatternStats aggregates resolved-signal outcomes per pattern.
func (s *System) PatternStats() ([]store.PatternStat, error) {
	return s.db.PatternStats()
}

// CreateManualSignal issues an operator signal against the pair's
// current price.
func (s *System) CreateManualSignal(symbol string, buy bool, entry, target, stop float64) (*signals.Signal, error) {
	p := s.pairs.Get(symbol)
	if p == nil {
		return nil, ErrPairNotFound
	}
	latest := p.Latest()
	if latest == nil {
		return nil, ErrNoMarketData
	}
	ind := s.engine.LatestIndicators(p)
	return s.signals.CreateManual(symbol, buy, entry, target, stop, latest.Price, ind)
}

// CloseSignal force-expires a live signal.
func (s *System) CloseSignal(signalID, reason string) (*signals.Signal, error) {
	return s.signals.CloseSignal(signalID, reason)
}
