package analysis

import (
	"sync"
	"time"

	"crypto-signal-engine/config"
	"crypto-signal-engine/internal/indicators"
	"crypto-signal-engine/internal/logging"
	"crypto-signal-engine/internal/market"
	"crypto-signal-engine/internal/pair"
	"crypto-signal-engine/internal/patterns"
	"crypto-signal-engine/internal/signals"
	"crypto-signal-engine/internal/store"
)

// analysisInterval throttles the full indicator/pattern pass per pair;
// live signals are still updated on every tick.
const analysisInterval = 30 * time.Second

// Engine consumes accepted ticks, maintains live signals and periodically
// runs the indicator and pattern pipeline over each pair's series.
type Engine struct {
	cfg      config.TradingConfig
	db       *store.DB
	signals  *signals.Manager
	detector *patterns.Detector
	log      *logging.Logger

	mu      sync.Mutex
	lastRun map[string]time.Time
}

// NewEngine creates an analysis engine.
func NewEngine(cfg config.TradingConfig, db *store.DB, sm *signals.Manager) *Engine {
	return &Engine{
		cfg:      cfg,
		db:       db,
		signals:  sm,
		detector: patterns.NewDetector(),
		log:      logging.Default().WithComponent("analysis"),
		lastRun:  make(map[string]time.Time),
	}
}

// HandleTick receives every accepted tick. Signal tracking happens on
// each tick; indicator computation and pattern detection run at most
// once per pair per analysis interval.
func (e *Engine) HandleTick(p *pair.TradingPair, t *market.Tick) {
	e.signals.UpdateWithTick(t.Symbol, t.Price, t.Timestamp)

	if !e.analysisDue(t.Symbol, t.Timestamp) {
		return
	}
	e.analyze(p, t)
}

func (e *Engine) analysisDue(symbol string, at time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if last, ok := e.lastRun[symbol]; ok && at.Sub(last) < analysisInterval {
		return false
	}
	e.lastRun[symbol] = at
	return true
}

func (e *Engine) analyze(p *pair.TradingPair, t *market.Tick) {
	series := seriesFrom(p.History(0))
	ind := indicators.Compute(series, e.cfg.StrictMACD)
	if len(ind) == 0 {
		return
	}

	if err := e.db.InsertIndicators(t.Symbol, t.Timestamp, ind); err != nil {
		e.log.Error("Failed to persist indicators", "symbol", t.Symbol, "error", err.Error())
	}

	for _, c := range e.detector.DetectAll(series, ind) {
		if _, err := e.signals.Create(t.Symbol, c, t.Price, ind); err != nil {
			e.log.Debug("Candidate not issued",
				"symbol", t.Symbol, "pattern", c.Pattern, "reason", err.Error())
		}
	}
}

// LatestIndicators computes the indicator set for a pair on demand.
func (e *Engine) LatestIndicators(p *pair.TradingPair) map[string]float64 {
	return indicators.Compute(seriesFrom(p.History(0)), e.cfg.StrictMACD)
}

// seriesFrom flattens ticks into aligned OHLCV arrays, falling back to
// the last price when a tick carries no candle data.
func seriesFrom(ticks []*market.Tick) indicators.Series {
	s := indicators.Series{
		Opens:   make([]float64, 0, len(ticks)),
		Highs:   make([]float64, 0, len(ticks)),
		Lows:    make([]float64, 0, len(ticks)),
		Closes:  make([]float64, 0, len(ticks)),
		Volumes: make([]float64, 0, len(ticks)),
	}
	for _, t := range ticks {
		o, h, l, c := t.Open, t.High, t.Low, t.Close
		if o <= 0 {
			o = t.Price
		}
		if h <= 0 {
			h = t.Price
		}
		if l <= 0 {
			l = t.Price
		}
		if c <= 0 {
			c = t.Price
		}
		s.Opens = append(s.Opens, o)
		s.Highs = append(s.Highs, h)
		s.Lows = append(s.Lows, l)
		s.Closes = append(s.Closes, c)
		s.Volumes = append(s.Volumes, t.Volume)
	}
	return s
}
