package store

import (
	"database/sql"
	"time"
)

// SignalRecord is a trading_signals row.
type SignalRecord struct {
	ID            int64           `db:"id" json:"-"`
	SignalID      string          `db:"signal_id" json:"signal_id"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	Symbol        string          `db:"symbol" json:"symbol"`
	PatternType   string          `db:"pattern_type" json:"pattern_type"`
	SignalType    sql.NullString  `db:"signal_type" json:"signal_type"`
	EntryPrice    float64         `db:"entry_price" json:"entry_price"`
	TargetPrice   float64         `db:"target_price" json:"target_price"`
	StopLoss      float64         `db:"stop_loss" json:"stop_loss"`
	Confidence    float64         `db:"confidence" json:"confidence"`
	Status        string          `db:"status" json:"status"`
	CurrentPrice  sql.NullFloat64 `db:"current_price" json:"current_price"`
	ActivatedAt   sql.NullTime    `db:"activated_at" json:"activated_at"`
	ClosedAt      sql.NullTime    `db:"closed_at" json:"closed_at"`
	CloseReason   sql.NullString  `db:"close_reason" json:"close_reason"`
	ProfitLossPct sql.NullFloat64 `db:"profit_loss_pct" json:"profit_loss_pct"`
	Metadata      sql.NullString  `db:"metadata" json:"metadata"`
	UpdatedAt     sql.NullTime    `db:"updated_at" json:"updated_at"`
}

// IndicatorSample is a technical_indicators row.
type IndicatorSample struct {
	ID            int64          `db:"id" json:"-"`
	Timestamp     time.Time      `db:"timestamp" json:"timestamp"`
	Symbol        string         `db:"symbol" json:"symbol"`
	IndicatorName string         `db:"indicator_name" json:"indicator_name"`
	Value         float64        `db:"value" json:"value"`
	Timeframe     sql.NullString `db:"timeframe" json:"timeframe"`
	Metadata      sql.NullString `db:"metadata" json:"metadata"`
}

// ConfigEntry is a configurations row.
type ConfigEntry struct {
	Key         string         `db:"key" json:"key"`
	Value       string         `db:"value" json:"value"`
	Type        sql.NullString `db:"type" json:"type"`
	Description sql.NullString `db:"description" json:"description"`
	CreatedAt   sql.NullTime   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// LogEntry is a system_logs row.
type LogEntry struct {
	ID        int64          `db:"id" json:"-"`
	Timestamp time.Time      `db:"timestamp" json:"timestamp"`
	Level     string         `db:"level" json:"level"`
	Component sql.NullString `db:"component" json:"component"`
	Message   string         `db:"message" json:"message"`
	Details   sql.NullString `db:"details" json:"details"`
}

// PatternStat aggregates resolved-signal outcomes for one pattern type.
type PatternStat struct {
	PatternType   string  `db:"pattern_type" json:"pattern_type"`
	Total         int     `db:"total" json:"total"`
	Wins          int     `db:"wins" json:"wins"`
	Losses        int     `db:"losses" json:"losses"`
	Expired       int     `db:"expired" json:"expired"`
	SuccessRate   float64 `db:"-" json:"success_rate"`
	AvgProfitLoss float64 `db:"avg_profit_loss" json:"avg_profit_loss"`
	AvgRiskReward float64 `db:"avg_risk_reward" json:"avg_risk_reward"`
}
