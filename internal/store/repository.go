package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"crypto-signal-engine/internal/market"
)

// InsertTicks writes a batch of ticks in one transaction.
func (d *DB) InsertTicks(ticks []*market.Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	return d.withRetry(func() error {
		tx, err := d.conn.Beginx()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareNamed(`INSERT INTO price_data
			(timestamp, symbol, price, open_price, high_price, low_price, close_price, volume, source)
			VALUES (:timestamp, :symbol, :price, :open_price, :high_price, :low_price, :close_price, :volume, :source)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, t := range ticks {
			if _, err := stmt.Exec(t); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// RecentTicks returns the newest limit ticks for symbol, oldest first.
func (d *DB) RecentTicks(symbol string, limit int) ([]market.Tick, error) {
	var rows []market.Tick
	err := d.withRetry(func() error {
		return d.conn.Select(&rows, `SELECT timestamp, symbol, price, open_price,
			high_price, low_price, close_price, volume, source
			FROM price_data WHERE symbol = ?
			ORDER BY timestamp DESC LIMIT ?`, symbol, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("select recent ticks: %w", err)
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// TickCountSince counts symbol's ticks newer than since.
func (d *DB) TickCountSince(symbol string, since time.Time) (int64, error) {
	var n int64
	err := d.withRetry(func() error {
		return d.conn.Get(&n, `SELECT COUNT(*) FROM price_data
			WHERE symbol = ? AND timestamp >= ?`, symbol, since)
	})
	return n, err
}

// InsertSignal persists a new signal. Returns ErrDuplicateSignal when
// the signal_id already exists.
func (d *DB) InsertSignal(s *SignalRecord) error {
	err := d.withRetry(func() error {
		_, e := d.conn.NamedExec(`INSERT INTO trading_signals
			(signal_id, created_at, symbol, pattern_type, signal_type, entry_price,
			 target_price, stop_loss, confidence, status, current_price, activated_at,
			 closed_at, close_reason, profit_loss_pct, metadata, updated_at)
			VALUES (:signal_id, :created_at, :symbol, :pattern_type, :signal_type,
			 :entry_price, :target_price, :stop_loss, :confidence, :status,
			 :current_price, :activated_at, :closed_at, :close_reason,
			 :profit_loss_pct, :metadata, :updated_at)`, s)
		return e
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return ErrDuplicateSignal
		}
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// UpdateSignal rewrites the mutable columns of an existing signal.
func (d *DB) UpdateSignal(s *SignalRecord) error {
	err := d.withRetry(func() error {
		_, e := d.conn.NamedExec(`UPDATE trading_signals SET
			status = :status, current_price = :current_price,
			activated_at = :activated_at, closed_at = :closed_at,
			close_reason = :close_reason, profit_loss_pct = :profit_loss_pct,
			updated_at = :updated_at
			WHERE signal_id = :signal_id`, s)
		return e
	})
	if err != nil {
		return fmt.Errorf("update signal: %w", err)
	}
	return nil
}

// SignalsByStatus returns signals with any of the given statuses, newest
// first.
func (d *DB) SignalsByStatus(statuses ...string) ([]SignalRecord, error) {
	query, args, err := sqlx.In(`SELECT * FROM trading_signals
		WHERE status IN (?) ORDER BY created_at DESC`, statuses)
	if err != nil {
		return nil, fmt.Errorf("build status query: %w", err)
	}
	var rows []SignalRecord
	err = d.withRetry(func() error {
		return d.conn.Select(&rows, d.conn.Rebind(query), args...)
	})
	if err != nil {
		return nil, fmt.Errorf("select signals by status: %w", err)
	}
	return rows, nil
}

// RecentSignals returns the newest limit signals, optionally filtered to
// the given statuses.
func (d *DB) RecentSignals(limit int, statuses ...string) ([]SignalRecord, error) {
	query := `SELECT * FROM trading_signals ORDER BY created_at DESC LIMIT ?`
	args := []interface{}{limit}
	if len(statuses) > 0 {
		in, inArgs, err := sqlx.In(`SELECT * FROM trading_signals
			WHERE status IN (?) ORDER BY created_at DESC LIMIT ?`, statuses, limit)
		if err != nil {
			return nil, fmt.Errorf("build recent signals query: %w", err)
		}
		query, args = d.conn.Rebind(in), inArgs
	}
	var rows []SignalRecord
	err := d.withRetry(func() error {
		return d.conn.Select(&rows, query, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("select recent signals: %w", err)
	}
	return rows, nil
}

// InsertIndicators persists one timestamped sample per indicator.
func (d *DB) InsertIndicators(symbol string, at time.Time, values map[string]float64) error {
	if len(values) == 0 {
		return nil
	}
	return d.withRetry(func() error {
		tx, err := d.conn.Beginx()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for name, v := range values {
			if _, err := tx.Exec(`INSERT INTO technical_indicators
				(timestamp, symbol, indicator_name, value) VALUES (?, ?, ?, ?)`,
				at, symbol, name, v); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// LatestIndicators returns the newest stored value per indicator for
// symbol.
func (d *DB) LatestIndicators(symbol string) (map[string]float64, error) {
	var rows []IndicatorSample
	err := d.withRetry(func() error {
		return d.conn.Select(&rows, `SELECT t.id, t.timestamp, t.symbol, t.indicator_name, t.value
			FROM technical_indicators t
			JOIN (SELECT indicator_name, MAX(timestamp) AS ts
			      FROM technical_indicators WHERE symbol = ?
			      GROUP BY indicator_name) latest
			ON t.indicator_name = latest.indicator_name AND t.timestamp = latest.ts
			WHERE t.symbol = ?`, symbol, symbol)
	})
	if err != nil {
		return nil, fmt.Errorf("select latest indicators: %w", err)
	}
	out := make(map[string]float64, len(rows))
	for _, r := range rows {
		out[r.IndicatorName] = r.Value
	}
	return out, nil
}

// SetConfig upserts a configuration key.
func (d *DB) SetConfig(key, value string) error {
	now := time.Now()
	_, err := d.exec(`INSERT INTO configurations (key, value, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now, now)
	if err != nil {
		return fmt.Errorf("set config %q: %w", key, err)
	}
	return nil
}

// GetConfig reads a configuration key. Missing keys return ("", false).
func (d *DB) GetConfig(key string) (string, bool, error) {
	var value string
	err := d.withRetry(func() error {
		return d.conn.Get(&value, "SELECT value FROM configurations WHERE key = ?", key)
	})
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get config %q: %w", key, err)
	}
	return value, true, nil
}

// SetConfigValue stores any JSON-serializable value under key.
func (d *DB) SetConfigValue(key string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode config %q: %w", key, err)
	}
	return d.SetConfig(key, string(b))
}

// GetConfigValue decodes the stored JSON value for key into dest.
// Missing keys return (false, nil) and leave dest untouched.
func (d *DB) GetConfigValue(key string, dest interface{}) (bool, error) {
	raw, ok, err := d.GetConfig(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("decode config %q: %w", key, err)
	}
	return true, nil
}

// WriteSystemLog persists a log record. Implements logging.Sink so the
// logger can mirror warnings and errors into the database.
func (d *DB) WriteSystemLog(level, component, message string, details map[string]interface{}) {
	var detailsJSON interface{}
	if len(details) > 0 {
		if b, err := json.Marshal(details); err == nil {
			detailsJSON = string(b)
		}
	}
	// Best effort: a failed log write must not cascade.
	d.conn.Exec(`INSERT INTO system_logs (timestamp, level, component, message, details)
		VALUES (?, ?, ?, ?, ?)`, time.Now(), level, component, message, detailsJSON)
}

// RecentLogs returns the newest limit system log rows.
func (d *DB) RecentLogs(limit int) ([]LogEntry, error) {
	var rows []LogEntry
	err := d.withRetry(func() error {
		return d.conn.Select(&rows, `SELECT * FROM system_logs
			ORDER BY timestamp DESC LIMIT ?`, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("select recent logs: %w", err)
	}
	return rows, nil
}

// PatternStats aggregates resolved-signal outcomes per pattern type.
func (d *DB) PatternStats() ([]PatternStat, error) {
	var rows []PatternStat
	err := d.withRetry(func() error {
		return d.conn.Select(&rows, `SELECT pattern_type,
			COUNT(*) AS total,
			SUM(CASE WHEN status = 'HIT_TARGET' THEN 1 ELSE 0 END) AS wins,
			SUM(CASE WHEN status = 'HIT_STOP' THEN 1 ELSE 0 END) AS losses,
			SUM(CASE WHEN status = 'EXPIRED' THEN 1 ELSE 0 END) AS expired,
			COALESCE(AVG(profit_loss_pct), 0) AS avg_profit_loss,
			COALESCE(AVG(ABS(target_price - entry_price) / NULLIF(ABS(entry_price - stop_loss), 0)), 0) AS avg_risk_reward
			FROM trading_signals
			WHERE status IN ('HIT_TARGET', 'HIT_STOP', 'EXPIRED')
			GROUP BY pattern_type ORDER BY total DESC`)
	})
	if err != nil {
		return nil, fmt.Errorf("select pattern stats: %w", err)
	}
	for i := range rows {
		resolved := rows[i].Wins + rows[i].Losses
		if resolved > 0 {
			rows[i].SuccessRate = float64(rows[i].Wins) / float64(resolved) * 100
		}
	}
	return rows, nil
}
