package signals

import (
	"database/sql"
	"time"

	"crypto-signal-engine/internal/patterns"
	"crypto-signal-engine/internal/store"
)

// Status is a signal's lifecycle state.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusHitTarget Status = "HIT_TARGET"
	StatusHitStop   Status = "HIT_STOP"
	StatusExpired   Status = "EXPIRED"
)

// Terminal reports whether the status is a resolution state.
func (s Status) Terminal() bool {
	return s == StatusHitTarget || s == StatusHitStop || s == StatusExpired
}

// Signal is a detected trade setup moving through the
// pending/active/resolved lifecycle.
type Signal struct {
	ID            string     `json:"signal_id"`
	Symbol        string     `json:"symbol"`
	PatternType   string     `json:"pattern_type"`
	EntryPrice    float64    `json:"entry_price"`
	TargetPrice   float64    `json:"target_price"`
	StopLoss      float64    `json:"stop_loss"`
	Confidence    float64    `json:"confidence"`
	Status        Status     `json:"status"`
	CurrentPrice  float64    `json:"current_price"`
	CreatedAt     time.Time  `json:"created_at"`
	ActivatedAt   *time.Time `json:"activated_at,omitempty"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	CloseReason   string     `json:"close_reason,omitempty"`
	ProfitLossPct float64    `json:"profit_loss_pct"`
}

// IsBuy reports the trade direction derived from the pattern type.
func (s *Signal) IsBuy() bool {
	return patterns.IsBullish(s.PatternType)
}

// Activated reports whether the price ever crossed the entry level. Once
// latched it never resets.
func (s *Signal) Activated() bool {
	return s.ActivatedAt != nil
}

// profitLossAt computes the realized percentage move from entry to exit
// in the trade's direction.
func (s *Signal) profitLossAt(exit float64) float64 {
	if s.EntryPrice == 0 {
		return 0
	}
	if s.IsBuy() {
		return (exit - s.EntryPrice) / s.EntryPrice * 100
	}
	return (s.EntryPrice - exit) / s.EntryPrice * 100
}

// record converts the signal to its persistence row.
func (s *Signal) record() *store.SignalRecord {
	signalType := "SELL"
	if s.IsBuy() {
		signalType = "BUY"
	}
	r := &store.SignalRecord{
		SignalID:    s.ID,
		CreatedAt:   s.CreatedAt,
		Symbol:      s.Symbol,
		PatternType: s.PatternType,
		SignalType:  sql.NullString{String: signalType, Valid: true},
		EntryPrice:  s.EntryPrice,
		TargetPrice: s.TargetPrice,
		StopLoss:    s.StopLoss,
		Confidence:  s.Confidence,
		Status:      string(s.Status),
		UpdatedAt:   sql.NullTime{Time: time.Now(), Valid: true},
	}
	if s.CurrentPrice > 0 {
		r.CurrentPrice = sql.NullFloat64{Float64: s.CurrentPrice, Valid: true}
	}
	if s.ActivatedAt != nil {
		r.ActivatedAt = sql.NullTime{Time: *s.ActivatedAt, Valid: true}
	}
	if s.ClosedAt != nil {
		r.ClosedAt = sql.NullTime{Time: *s.ClosedAt, Valid: true}
	}
	if s.CloseReason != "" {
		r.CloseReason = sql.NullString{String: s.CloseReason, Valid: true}
	}
	if s.Status.Terminal() {
		r.ProfitLossPct = sql.NullFloat64{Float64: s.ProfitLossPct, Valid: true}
	}
	return r
}

// fromRecord rebuilds a signal from its persistence row.
func fromRecord(r *store.SignalRecord) *Signal {
	s := &Signal{
		ID:          r.SignalID,
		Symbol:      r.Symbol,
		PatternType: r.PatternType,
		EntryPrice:  r.EntryPrice,
		TargetPrice: r.TargetPrice,
		StopLoss:    r.StopLoss,
		Confidence:  r.Confidence,
		Status:      Status(r.Status),
		CreatedAt:   r.CreatedAt,
		CloseReason: r.CloseReason.String,
	}
	if r.CurrentPrice.Valid {
		s.CurrentPrice = r.CurrentPrice.Float64
	}
	if r.ActivatedAt.Valid {
		t := r.ActivatedAt.Time
		s.ActivatedAt = &t
	}
	if r.ClosedAt.Valid {
		t := r.ClosedAt.Time
		s.ClosedAt = &t
	}
	if r.ProfitLossPct.Valid {
		s.ProfitLossPct = r.ProfitLossPct.Float64
	}
	return s
}
