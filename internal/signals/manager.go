package signals

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"crypto-signal-engine/config"
	"crypto-signal-engine/internal/events"
	"crypto-signal-engine/internal/logging"
	"crypto-signal-engine/internal/patterns"
	"crypto-signal-engine/internal/store"
)

const (
	// Unactivated signals activate when the price comes within this
	// fraction of the entry level on the activation side.
	activationTolerance = 0.001

	// Activated signals run for at most twice the base expiry window,
	// both measured from creation.
	activeExpiryFactor = 2

	// Two signals whose entries sit closer than this percentage with the
	// same directional bias overlap; the newer one is rejected.
	overlapEntryPct = 1.0
)

var (
	ErrTooManySignals = errors.New("signals: concurrent signal limit reached")
	ErrInCooldown     = errors.New("signals: pattern in cooldown")
	ErrDuplicate      = errors.New("signals: duplicate signal")
	ErrOverlap        = errors.New("signals: overlapping signal exists")
	ErrNotFound       = errors.New("signals: signal not found")
)

// ValidationError carries the reason a candidate failed validation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "signals: rejected: " + e.Reason
}

// Manager owns the live signal set: creation, activation, resolution and
// persistence.
type Manager struct {
	mu     sync.RWMutex
	active map[string]*Signal

	cfg       config.TradingConfig
	db        *store.DB
	bus       *events.EventBus
	uniq      *uniquenessSet
	cooldowns *cooldownTracker
	validator *Validator
	log       *logging.Logger
	now       func() time.Time
}

// NewManager creates a signal manager backed by db.
func NewManager(cfg config.TradingConfig, db *store.DB, bus *events.EventBus) *Manager {
	return &Manager{
		active:    make(map[string]*Signal),
		cfg:       cfg,
		db:        db,
		bus:       bus,
		uniq:      newUniquenessSet(),
		cooldowns: newCooldownTracker(),
		validator: NewValidator(),
		log:       logging.Default().WithComponent("signals"),
		now:       time.Now,
	}
}

// Recover reloads unresolved signals from the store, so a restart
// continues tracking them.
func (m *Manager) Recover() error {
	rows, err := m.db.SignalsByStatus(string(StatusActive))
	if err != nil {
		return fmt.Errorf("recover signals: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range rows {
		s := fromRecord(&rows[i])
		m.active[s.ID] = s
		m.uniq.Add(s.ID)
	}
	m.log.Info("Signals recovered", "count", len(rows))
	return nil
}

// Create runs a candidate through the issue pipeline: confidence floor,
// capacity, cooldown, validation, uniqueness, overlap, persistence.
func (m *Manager) Create(symbol string, c patterns.Candidate, currentPrice float64, ind map[string]float64) (*Signal, error) {
	if c.Confidence/100 < m.cfg.MinConfidenceThreshold {
		return nil, &ValidationError{Reason: fmt.Sprintf("confidence %.0f%% below threshold", c.Confidence)}
	}

	m.mu.RLock()
	activeCount := len(m.active)
	m.mu.RUnlock()
	if activeCount >= m.cfg.MaxConcurrentSignals {
		return nil, ErrTooManySignals
	}

	manual := c.Pattern == patterns.ManualBuy || c.Pattern == patterns.ManualSell
	if !manual && m.cooldowns.InCooldown(c.Pattern) {
		return nil, ErrInCooldown
	}

	if ok, reason := m.validator.Validate(c, currentPrice, ind); !ok {
		m.log.Debug("Candidate rejected", "symbol", symbol, "pattern", c.Pattern, "reason", reason)
		return nil, &ValidationError{Reason: reason}
	}

	id := Hash(c.Pattern, c.Entry, c.Target, c.Stop, currentPrice)
	if m.uniq.Has(id) {
		return nil, ErrDuplicate
	}

	if m.hasOverlap(c) {
		m.log.Debug("Candidate overlaps live signal",
			"symbol", symbol, "pattern", c.Pattern, "entry", c.Entry)
		return nil, ErrOverlap
	}

	s := &Signal{
		ID:           id,
		Symbol:       symbol,
		PatternType:  c.Pattern,
		EntryPrice:   c.Entry,
		TargetPrice:  c.Target,
		StopLoss:     c.Stop,
		Confidence:   c.Confidence,
		Status:       StatusActive,
		CurrentPrice: currentPrice,
		CreatedAt:    m.now(),
	}

	if err := m.db.InsertSignal(s.record()); err != nil {
		if errors.Is(err, store.ErrDuplicateSignal) {
			m.uniq.Add(id)
			return nil, ErrDuplicate
		}
		return nil, err
	}
	// Registered only after a durable insert, so a store failure does not
	// poison the setup's hash.
	m.uniq.Add(id)

	m.mu.Lock()
	m.active[id] = s
	m.mu.Unlock()

	if !manual {
		m.cooldowns.Mark(c.Pattern)
	}

	m.log.Info("Signal created",
		"signal_id", id, "symbol", symbol, "pattern", c.Pattern,
		"entry", c.Entry, "target", c.Target, "stop", c.Stop,
		"confidence", c.Confidence)
	m.publish(events.EventSignalCreated, s)
	return s, nil
}

// CreateManual issues an operator-initiated signal, bypassing the
// pattern cooldowns but not validation. Zero levels default to the
// current price and the configured stop-loss/take-profit percentages.
func (m *Manager) CreateManual(symbol string, buy bool, entry, target, stop, currentPrice float64, ind map[string]float64) (*Signal, error) {
	pattern := patterns.ManualSell
	if buy {
		pattern = patterns.ManualBuy
	}
	if entry <= 0 {
		entry = currentPrice
	}
	if stop <= 0 {
		if buy {
			stop = entry * (1 - m.cfg.DefaultStopLossPct/100)
		} else {
			stop = entry * (1 + m.cfg.DefaultStopLossPct/100)
		}
	}
	if target <= 0 {
		if buy {
			target = entry * (1 + m.cfg.DefaultTakeProfitPct/100)
		} else {
			target = entry * (1 - m.cfg.DefaultTakeProfitPct/100)
		}
	}
	return m.Create(symbol, patterns.Candidate{
		Pattern:    pattern,
		Entry:      entry,
		Target:     target,
		Stop:       stop,
		Confidence: 100,
	}, currentPrice, ind)
}

// hasOverlap reports whether a live signal has an entry within 1% of the
// candidate's with the same directional bias.
func (m *Manager) hasOverlap(c patterns.Candidate) bool {
	bullish := patterns.IsBullish(c.Pattern)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.active {
		if math.Abs(s.EntryPrice-c.Entry)/c.Entry*100 < overlapEntryPct && s.IsBuy() == bullish {
			return true
		}
	}
	return false
}

// UpdateWithTick advances every unresolved signal for symbol against a
// new price. Target and stop take precedence over expiry in the same
// pass; both expiry windows are measured from creation.
func (m *Manager) UpdateWithTick(symbol string, price float64, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	baseExpiry := time.Duration(m.cfg.SignalExpiryHours) * time.Hour

	for id, s := range m.active {
		if s.Symbol != symbol {
			continue
		}
		s.CurrentPrice = price

		if !s.Activated() && m.shouldActivate(s, price) {
			ts := at
			s.ActivatedAt = &ts
			m.persist(s)
			m.log.Info("Signal activated", "signal_id", id, "symbol", symbol, "price", price)
			m.publish(events.EventSignalActivated, s)
		}

		if s.Activated() {
			if (s.IsBuy() && price >= s.TargetPrice) || (!s.IsBuy() && price <= s.TargetPrice) {
				m.close(s, at, s.TargetPrice, StatusHitTarget, "target_hit")
				continue
			}
			if (s.IsBuy() && price <= s.StopLoss) || (!s.IsBuy() && price >= s.StopLoss) {
				m.close(s, at, s.StopLoss, StatusHitStop, "stop_loss")
				continue
			}
		}

		maxAge, reason := baseExpiry, "not_activated"
		if s.Activated() {
			maxAge, reason = activeExpiryFactor*baseExpiry, "max_duration"
		}
		if at.Sub(s.CreatedAt) > maxAge {
			m.close(s, at, price, StatusExpired, reason)
			continue
		}
		m.persist(s)
	}
}

// shouldActivate latches an unactivated signal once the price reaches
// the entry level, with 0.1% tolerance on the activation side.
func (m *Manager) shouldActivate(s *Signal, price float64) bool {
	if s.IsBuy() {
		return price >= s.EntryPrice*(1-activationTolerance)
	}
	return price <= s.EntryPrice*(1+activationTolerance)
}

// close resolves a signal and drops it from the live set. Profit/loss is
// taken at the contract level that triggered the resolution, not the
// tick that crossed it; expired signals settle flat. Caller holds the
// lock.
func (m *Manager) close(s *Signal, at time.Time, exit float64, status Status, reason string) {
	ts := at
	s.Status = status
	s.ClosedAt = &ts
	s.CloseReason = reason
	if status == StatusExpired {
		s.ProfitLossPct = 0
	} else {
		s.ProfitLossPct = s.profitLossAt(exit)
	}
	m.persist(s)
	delete(m.active, s.ID)

	m.log.Info("Signal closed",
		"signal_id", s.ID, "symbol", s.Symbol, "status", string(status),
		"reason", reason, "profit_loss_pct", s.ProfitLossPct)
	m.publish(events.EventSignalClosed, s)
}

// CloseSignal force-expires a live signal with the given reason.
func (m *Manager) CloseSignal(signalID, reason string) (*Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.active[signalID]
	if !ok {
		return nil, ErrNotFound
	}
	if reason == "" {
		reason = "manual_close"
	}
	m.close(s, m.now(), s.CurrentPrice, StatusExpired, reason)
	return s, nil
}

// Active returns a snapshot of the unresolved signals.
func (m *Manager) Active() []*Signal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Signal, 0, len(m.active))
	for _, s := range m.active {
		copied := *s
		out = append(out, &copied)
	}
	return out
}

// Get returns a live signal by id.
func (m *Manager) Get(signalID string) (*Signal, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.active[signalID]
	if !ok {
		return nil, false
	}
	copied := *s
	return &copied, true
}

// Recent returns the newest persisted signals, optionally filtered by
// status.
func (m *Manager) Recent(limit int, statuses ...string) ([]store.SignalRecord, error) {
	return m.db.RecentSignals(limit, statuses...)
}

func (m *Manager) persist(s *Signal) {
	if err := m.db.UpdateSignal(s.record()); err != nil {
		m.log.Error("Failed to persist signal", "signal_id", s.ID, "error", err.Error())
	}
}

func (m *Manager) publish(t events.EventType, s *Signal) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(events.Event{Type: t, Data: map[string]interface{}{
		"signal_id": s.ID,
		"symbol":    s.Symbol,
		"pattern":   s.PatternType,
		"status":    string(s.Status),
	}})
}
