package streamer

import (
	"context"
	"errors"
	"sync"
	"time"

	"crypto-signal-engine/config"
	"crypto-signal-engine/internal/events"
	"crypto-signal-engine/internal/logging"
	"crypto-signal-engine/internal/market"
	"crypto-signal-engine/internal/pair"
	"crypto-signal-engine/internal/store"
)

const (
	// Each collection cycle must finish within this deadline.
	cycleTimeout = 30 * time.Second

	// After this many consecutive cycles where every pair failed, the
	// scheduler pauses and resets error counters before resuming.
	maxFailedCycles = 10
	failurePause    = 60 * time.Second

	stopTimeout = 10 * time.Second
)

// TickSink receives every accepted tick.
type TickSink interface {
	HandleTick(p *pair.TradingPair, t *market.Tick)
}

// Stats counts scheduler activity since start.
type Stats struct {
	StartedAt         time.Time        `json:"started_at"`
	Cycles            int64            `json:"cycles"`
	TicksAccepted     int64            `json:"ticks_accepted"`
	TicksRejected     int64            `json:"ticks_rejected"`
	SourceFailures    int64            `json:"source_failures"`
	ConsecutiveFailed int64            `json:"consecutive_failed_cycles"`
	LastCycle         time.Time        `json:"last_cycle"`
	SourceUse         map[string]int64 `json:"source_use"`
}

// SuccessRate is the share of accepted ticks among all accepted and
// rejected ones, as a percentage.
func (s Stats) SuccessRate() float64 {
	total := s.TicksAccepted + s.TicksRejected
	if total == 0 {
		return 0
	}
	return float64(s.TicksAccepted) / float64(total) * 100
}

// Scheduler drives periodic quote collection across all streaming pairs
// through a fixed worker pool, with per-source failover.
type Scheduler struct {
	cfg     config.StreamingConfig
	pairs   *pair.Manager
	sources []market.Source
	db      *store.DB
	bus     *events.EventBus
	sink    TickSink

	validator *tickValidator
	log       *logging.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
	stats   Stats
}

// NewScheduler creates a scheduler. Sources are tried in the given
// order, so the primary exchange source comes first and the simulated
// fallback last.
func NewScheduler(cfg config.StreamingConfig, pairs *pair.Manager, sources []market.Source, db *store.DB, bus *events.EventBus, sink TickSink) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		pairs:     pairs,
		sources:   sources,
		db:        db,
		bus:       bus,
		sink:      sink,
		validator: newTickValidator(),
		log:       logging.Default().WithComponent("streamer"),
	}
}

// StartAll begins streaming for every enabled pair and launches the
// collection loop.
func (s *Scheduler) StartAll() int {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return 0
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	if s.stats.StartedAt.IsZero() {
		s.stats.StartedAt = time.Now()
	}
	s.mu.Unlock()

	started := s.pairs.StartAllStreaming()
	go s.loop()
	s.log.Info("Scheduler started",
		"pairs", started, "workers", s.cfg.MaxWorkers,
		"interval_sec", s.cfg.UpdateIntervalSec)
	return started
}

// StopAll stops the collection loop and all pair streaming, waiting up
// to 10 seconds for in-flight work to drain.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
	case <-time.After(stopTimeout):
		s.log.Warn("Scheduler stop timed out")
	}
	s.pairs.StopAllStreaming()
	s.log.Info("Scheduler stopped")
}

// IsRunning reports whether the collection loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// StartInstrument begins streaming for one pair.
func (s *Scheduler) StartInstrument(symbol string) bool {
	p := s.pairs.Get(symbol)
	if p == nil {
		return false
	}
	return p.StartStreaming()
}

// StopInstrument stops streaming for one pair.
func (s *Scheduler) StopInstrument(symbol string) bool {
	p := s.pairs.Get(symbol)
	if p == nil {
		return false
	}
	p.StopStreaming()
	return true
}

// GetStats returns a snapshot of the scheduler counters.
func (s *Scheduler) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stats
	out.SourceUse = make(map[string]int64, len(s.stats.SourceUse))
	for name, n := range s.stats.SourceUse {
		out.SourceUse[name] = n
	}
	return out
}

// SourceHealth describes one quote source's failover state.
type SourceHealth struct {
	Name       string `json:"name"`
	Available  bool   `json:"available"`
	ErrorCount int    `json:"error_count"`
}

// HealthCheck reports the scheduler and per-source state.
func (s *Scheduler) HealthCheck() map[string]interface{} {
	stats := s.GetStats()
	sources := make([]SourceHealth, 0, len(s.sources))
	available := 0
	for _, src := range s.sources {
		h := SourceHealth{
			Name:       src.Name(),
			Available:  src.IsAvailable(),
			ErrorCount: src.ErrorCount(),
		}
		if h.Available {
			available++
		}
		sources = append(sources, h)
	}

	status := "healthy"
	if available == 0 || stats.ConsecutiveFailed >= maxFailedCycles {
		status = "unhealthy"
	} else if stats.ConsecutiveFailed > 0 || available < len(s.sources) {
		status = "degraded"
	}

	return map[string]interface{}{
		"status":             status,
		"running":            s.IsRunning(),
		"sources":            sources,
		"cycles":             stats.Cycles,
		"consecutive_failed": stats.ConsecutiveFailed,
		"ticks_accepted":     stats.TicksAccepted,
		"ticks_rejected":     stats.TicksRejected,
		"success_rate":       stats.SuccessRate(),
	}
}

func (s *Scheduler) loop() {
	defer close(s.done)

	interval := time.Duration(s.cfg.UpdateIntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First cycle runs immediately.
	s.runCycle()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runCycle()

			if s.GetStats().ConsecutiveFailed >= maxFailedCycles {
				s.log.Warn("All pairs failing, pausing collection",
					"pause", failurePause.String())
				select {
				case <-s.stopCh:
					return
				case <-time.After(failurePause):
				}
				s.pairs.ResetAllErrors()
				for _, src := range s.sources {
					src.ResetErrors()
				}
				s.resetFailedCycles()
			}
		}
	}
}

func (s *Scheduler) runCycle() {
	streaming := s.pairs.Streaming()
	if len(streaming) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	jobs := make(chan *pair.TradingPair)
	var wg sync.WaitGroup
	var failed int64
	var failedMu sync.Mutex

	workers := s.cfg.MaxWorkers
	if workers > len(streaming) {
		workers = len(streaming)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				if !s.collectPair(ctx, p) {
					failedMu.Lock()
					failed++
					failedMu.Unlock()
				}
			}
		}()
	}

	for _, p := range streaming {
		jobs <- p
	}
	close(jobs)
	wg.Wait()

	s.mu.Lock()
	s.stats.Cycles++
	s.stats.LastCycle = time.Now()
	if failed == int64(len(streaming)) {
		s.stats.ConsecutiveFailed++
	} else {
		s.stats.ConsecutiveFailed = 0
	}
	s.mu.Unlock()
}

// collectPair fetches one quote for the pair, trying each source in
// priority order. Returns false when every source failed.
func (s *Scheduler) collectPair(ctx context.Context, p *pair.TradingPair) bool {
	var lastErr error
	for _, src := range s.sources {
		if !src.IsAvailable() {
			continue
		}
		t, err := src.Fetch(ctx, p.Symbol)
		if err != nil {
			if errors.Is(err, market.ErrSymbolNotSupported) {
				continue
			}
			lastErr = err
			s.mu.Lock()
			s.stats.SourceFailures++
			s.mu.Unlock()
			if !src.IsAvailable() {
				s.publish(events.EventSourceDisabled, map[string]interface{}{
					"source": src.Name(),
				})
			}
			continue
		}
		s.mu.Lock()
		if s.stats.SourceUse == nil {
			s.stats.SourceUse = make(map[string]int64)
		}
		s.stats.SourceUse[src.Name()]++
		s.mu.Unlock()
		s.accept(p, t)
		return true
	}

	msg := "no available source"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	p.RecordError(msg)
	if p.Status() == pair.StatusMaintenance {
		s.publish(events.EventPairMaintenance, map[string]interface{}{
			"symbol": p.Symbol,
		})
	}
	return false
}

func (s *Scheduler) accept(p *pair.TradingPair, t *market.Tick) {
	if ok, reason := s.validator.Validate(p, t); !ok {
		s.mu.Lock()
		s.stats.TicksRejected++
		s.mu.Unlock()
		s.log.Debug("Tick rejected",
			"symbol", t.Symbol, "source", t.Source, "reason", reason)
		s.publish(events.EventTickRejected, map[string]interface{}{
			"symbol": t.Symbol,
			"source": t.Source,
			"reason": reason,
		})
		return
	}

	if !p.AddTick(t) {
		return
	}

	if s.db != nil {
		if err := s.db.InsertTicks([]*market.Tick{t}); err != nil {
			s.log.Error("Failed to persist tick",
				"symbol", t.Symbol, "error", err.Error())
		}
	}

	s.mu.Lock()
	s.stats.TicksAccepted++
	s.mu.Unlock()

	s.publish(events.EventTickAccepted, map[string]interface{}{
		"symbol": t.Symbol,
		"price":  t.Price,
		"source": t.Source,
	})

	if s.sink != nil {
		s.sink.HandleTick(p, t)
	}
}

func (s *Scheduler) resetFailedCycles() {
	s.mu.Lock()
	s.stats.ConsecutiveFailed = 0
	s.mu.Unlock()
}

func (s *Scheduler) publish(t events.EventType, data map[string]interface{}) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{Type: t, Data: data})
}

// BuildSources assembles the source chain from configuration: exchange
// first, aggregator second, simulated fallback last when enabled.
func BuildSources(cfg config.StreamingConfig) []market.Source {
	timeout := time.Duration(cfg.ConnectionTimeoutSec) * time.Second
	spacing := func(sec float64) time.Duration {
		return time.Duration(sec * float64(time.Second))
	}

	sources := []market.Source{
		market.NewExchangeTickerSource("", spacing(cfg.RateLimitExchange), timeout),
		market.NewAggregatorSource("", spacing(cfg.RateLimitAggregator), timeout),
	}
	if cfg.FallbackToSimulated {
		sources = append(sources, market.NewSimulatedSource(spacing(cfg.RateLimitSimulated), 0))
	}
	return sources
}
